package llm

import (
	"context"
	"encoding/json"
)

// Provider sends one completion request to a model vendor.
type Provider interface {
	// Generate returns the model's answer. With req.Schema set the vendor's
	// structured output mode is used and Content is validated against it.
	// Output that is empty or withheld by a filter yields *ErrNoContent.
	Generate(ctx context.Context, req Request) (*Response, error)

	ModelID() string
}

// Request is one completion call. Generation sends a single user message
// holding both the prompt template and the tense directive.
type Request struct {
	System   string
	Messages []Message

	// Schema switches the vendor into structured output mode. Without it
	// Content comes back as the model's raw text.
	Schema *Schema

	MaxTokens int

	// Temperature in [0, 1]. Zero leaves the vendor default in place.
	Temperature float64
}

type Message struct {
	Role    Role
	Content string
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Schema is a named JSON Schema document. Name doubles as the cache key
// for the compiled validator and as the vendor-side schema name, so it
// must be unique per Definition.
type Schema struct {
	Name        string
	Description string
	Definition  map[string]any
}

// Response is a successful completion. Model is what the vendor reports
// having served, which may be a dated snapshot of the requested alias.
type Response struct {
	Content    json.RawMessage
	Usage      Usage
	Model      string
	StopReason string // one of the Stop* constants
}

// Normalized stop reasons shared by every provider.
const (
	StopEnd       = "end"
	StopMaxTokens = "max_tokens"
	StopFiltered  = "filtered"
)

type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}
