package generation

import (
	"fmt"
	"strings"

	"github.com/abhisek/conjugar/internal/questionset"
	"github.com/abhisek/conjugar/internal/tense"
)

const (
	maxSentenceLen = 500
	maxAnswerLen   = 100
)

// StructuralValidator checks required fields and length limits.
type StructuralValidator struct{}

func (v *StructuralValidator) Name() string { return "structural" }

func (v *StructuralValidator) Validate(q *questionset.Question, _ Request) *ValidationError {
	switch {
	case q.SpanishText == "":
		return &ValidationError{Validator: v.Name(), Message: "es is empty"}
	case len(q.SpanishText) > maxSentenceLen:
		return &ValidationError{Validator: v.Name(), Message: fmt.Sprintf("es exceeds %d characters", maxSentenceLen)}
	case q.Answer == "":
		return &ValidationError{Validator: v.Name(), Message: "answer is empty"}
	case len(q.Answer) > maxAnswerLen:
		return &ValidationError{Validator: v.Name(), Message: fmt.Sprintf("answer exceeds %d characters", maxAnswerLen)}
	case len(q.EnglishTranslation) > maxSentenceLen:
		return &ValidationError{Validator: v.Name(), Message: fmt.Sprintf("en exceeds %d characters", maxSentenceLen)}
	case len(q.FrenchTranslation) > maxSentenceLen:
		return &ValidationError{Validator: v.Name(), Message: fmt.Sprintf("fr exceeds %d characters", maxSentenceLen)}
	}
	return nil
}

// BlankMarkerValidator requires exactly one blank in the Spanish sentence and
// rejects answers that leave the blank visible.
type BlankMarkerValidator struct{}

func (v *BlankMarkerValidator) Name() string { return "blank-marker" }

func (v *BlankMarkerValidator) Validate(q *questionset.Question, _ Request) *ValidationError {
	if n := q.BlankCount(); n != 1 {
		return &ValidationError{
			Validator: v.Name(),
			Message:   fmt.Sprintf("es must contain exactly one %q, found %d", questionset.BlankMarker, n),
		}
	}
	if strings.Contains(q.Answer, questionset.BlankMarker) {
		return &ValidationError{Validator: v.Name(), Message: "answer contains the blank marker"}
	}
	return nil
}

// TenseValidator requires a known tense key. With Strict set the key must
// also be one the request asked for.
type TenseValidator struct {
	Strict bool
}

func (v *TenseValidator) Name() string { return "tense" }

func (v *TenseValidator) Validate(q *questionset.Question, req Request) *ValidationError {
	if !tense.IsValid(string(q.TenseID)) {
		return &ValidationError{Validator: v.Name(), Message: fmt.Sprintf("unknown tense key %q", q.TenseID)}
	}
	if v.Strict && len(req.Tenses) > 0 {
		for _, id := range req.Tenses {
			if id == q.TenseID {
				return nil
			}
		}
		return &ValidationError{Validator: v.Name(), Message: fmt.Sprintf("tense %q was not requested", q.TenseID)}
	}
	return nil
}
