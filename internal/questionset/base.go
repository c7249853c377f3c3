package questionset

import (
	_ "embed"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/abhisek/conjugar/internal/tense"
)

//go:embed base_questions.yaml
var baseQuestionsYAML []byte

var baseQuestions []Question

func init() {
	qs, err := loadBaseQuestions(baseQuestionsYAML)
	if err != nil {
		panic(fmt.Sprintf("questionset: invalid embedded base questions: %v", err))
	}
	baseQuestions = qs
}

func loadBaseQuestions(data []byte) ([]Question, error) {
	var doc struct {
		Questions []Question `yaml:"questions"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse base questions: %w", err)
	}
	if len(doc.Questions) == 0 {
		return nil, fmt.Errorf("no base questions")
	}
	for i, q := range doc.Questions {
		if q.BlankCount() != 1 {
			return nil, fmt.Errorf("question %d: want exactly one blank marker, got %d", i, q.BlankCount())
		}
		if q.Answer == "" {
			return nil, fmt.Errorf("question %d: empty answer", i)
		}
		if !tense.IsValid(string(q.TenseID)) {
			return nil, fmt.Errorf("question %d: unknown tense %q", i, q.TenseID)
		}
	}
	return doc.Questions, nil
}

// BaseQuestions returns the built-in question collection.
func BaseQuestions() []Question {
	return slices.Clone(baseQuestions)
}
