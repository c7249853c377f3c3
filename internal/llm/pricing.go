package llm

import (
	"slices"
	"strings"
)

// ModelCost is USD per million tokens.
type ModelCost struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// Cost returns the USD cost of one or more calls.
func (c ModelCost) Cost(inputTokens, outputTokens int) float64 {
	return (float64(inputTokens)*c.InputPerMTok + float64(outputTokens)*c.OutputPerMTok) / 1e6
}

type familyCost struct {
	family string
	cost   ModelCost
}

// familyCosts holds list prices (models.dev, February 2026) for the model
// families the provider aliases resolve to. Lookup matches the longest
// family that prefixes the model id, so dated snapshots ("-2025-04-14") and
// "-latest" tags resolve to their family.
var familyCosts = func() []familyCost {
	fc := []familyCost{
		// OpenAI, the default vendor.
		{"gpt-4.1", ModelCost{2, 8}},
		{"gpt-4.1-mini", ModelCost{0.4, 1.6}},
		{"gpt-4.1-nano", ModelCost{0.1, 0.4}},
		{"gpt-4o", ModelCost{2.5, 10}},
		{"gpt-4o-mini", ModelCost{0.15, 0.6}},
		{"gpt-5", ModelCost{1.25, 10}},
		{"gpt-5-mini", ModelCost{0.25, 2}},
		{"gpt-5-nano", ModelCost{0.05, 0.4}},

		// Anthropic.
		{"claude-3-5-haiku", ModelCost{0.8, 4}},
		{"claude-haiku-4-5", ModelCost{1, 5}},
		{"claude-sonnet-4", ModelCost{3, 15}},

		// Google.
		{"gemini-2.0-flash", ModelCost{0.1, 0.4}},
		{"gemini-2.0-flash-lite", ModelCost{0.075, 0.3}},
		{"gemini-2.5-flash", ModelCost{0.3, 2.5}},
		{"gemini-2.5-flash-lite", ModelCost{0.1, 0.4}},
		{"gemini-2.5-pro", ModelCost{1.25, 10}},
	}
	slices.SortFunc(fc, func(a, b familyCost) int { return len(b.family) - len(a.family) })
	return fc
}()

// LookupCost returns pricing for a model id, or nil when unknown. Vendor
// prefixes as used by OpenRouter ("openai/gpt-4.1-mini") are ignored.
func LookupCost(modelID string) *ModelCost {
	if _, name, ok := strings.Cut(modelID, "/"); ok {
		modelID = name
	}
	for _, fc := range familyCosts {
		if modelID == fc.family || strings.HasPrefix(modelID, fc.family+"-") {
			c := fc.cost
			return &c
		}
	}
	return nil
}
