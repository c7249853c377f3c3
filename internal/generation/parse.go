package generation

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/abhisek/conjugar/internal/llm"
	"github.com/abhisek/conjugar/internal/questionset"
	"github.com/abhisek/conjugar/internal/tense"
)

var (
	errEmptyOutput = errors.New("model returned no content")
	errNoValid     = errors.New("no generated question passed validation")
)

// questionArraySchema is the document shape accepted from the model. Element
// fields are checked per item so one bad element does not sink the batch.
var questionArraySchema = &llm.Schema{
	Name:        "question-array",
	Description: "A JSON array of fill-in-the-blank conjugation questions",
	Definition: map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "object"},
	},
}

var (
	codeFence  = regexp.MustCompile("(?s)^```[A-Za-z0-9_-]*\\s*\\n?(.*?)\\n?\\s*```$")
	blankRunRe = regexp.MustCompile(`_{2,}`)
)

// stripFence removes surrounding whitespace and one enclosing Markdown code
// fence, if present.
func stripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if m := codeFence.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}
	return s
}

// parseItems splits model output into array elements. It returns
// errEmptyOutput for blank output and an *llm.ErrInvalidResponse when the
// text is not a JSON array of objects.
func parseItems(raw string) ([]json.RawMessage, error) {
	text := stripFence(raw)
	if text == "" {
		return nil, errEmptyOutput
	}
	if err := llm.ValidateJSON(questionArraySchema, json.RawMessage(text)); err != nil {
		return nil, err
	}
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		return nil, &llm.ErrInvalidResponse{Content: json.RawMessage(text), Err: err}
	}
	return items, nil
}

// repair normalizes cosmetic drift in a decoded question: stray whitespace,
// upper-case tense keys and over-long blank runs.
func repair(q *questionset.Question) {
	q.SpanishText = blankRunRe.ReplaceAllString(strings.TrimSpace(q.SpanishText), questionset.BlankMarker)
	q.EnglishTranslation = strings.TrimSpace(q.EnglishTranslation)
	q.FrenchTranslation = strings.TrimSpace(q.FrenchTranslation)
	q.Answer = strings.TrimSpace(q.Answer)
	q.Infinitive = strings.TrimSpace(q.Infinitive)
	q.TenseID = tense.ID(strings.ToLower(strings.TrimSpace(string(q.TenseID))))
}
