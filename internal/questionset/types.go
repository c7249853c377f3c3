package questionset

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/abhisek/conjugar/internal/tense"
)

// BlankMarker stands in for the conjugated verb in Question.SpanishText.
const BlankMarker = "__"

// Question is one fill-in-the-blank exercise.
type Question struct {
	SpanishText        string   `json:"es" yaml:"es"`
	EnglishTranslation string   `json:"en" yaml:"en"`
	FrenchTranslation  string   `json:"fr,omitempty" yaml:"fr"`
	Answer             string   `json:"answer" yaml:"answer"`
	TenseID            tense.ID `json:"tense" yaml:"tense"`
	Infinitive         string   `json:"inf,omitempty" yaml:"inf"`
}

// BlankCount returns how many blank markers the Spanish text carries.
func (q Question) BlankCount() int {
	return strings.Count(q.SpanishText, BlankMarker)
}

// QuestionSet is a named, immutable sequence of questions.
type QuestionSet struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	OwnerUsername string     `json:"owner_username,omitempty"`
	Questions     []Question `json:"questions"`
}

// IsLegacy reports whether the set predates ownership.
func (s QuestionSet) IsLegacy() bool {
	return s.OwnerUsername == ""
}

// setDocument is the persisted form of a set. The id lives in the path.
type setDocument struct {
	Title         string     `json:"title"`
	Questions     []Question `json:"questions"`
	OwnerUsername string     `json:"owner_username,omitempty"`
}

// IndexEntry summarizes one set in the index.
type IndexEntry struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	OwnerUsername string `json:"owner_username,omitempty"`
}

// Index is the directory of all known sets, in append order.
type Index struct {
	Entries []IndexEntry `json:"entries"`
}

// UnmarshalJSON accepts both the object form and a bare array of entries.
func (idx *Index) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var entries []IndexEntry
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return err
		}
		idx.Entries = entries
		return nil
	}
	type plain Index
	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return err
	}
	*idx = Index(p)
	return nil
}

// Filter returns the entries owned by username. Legacy entries are never
// included in a filtered view.
func (idx Index) Filter(username string) Index {
	out := Index{Entries: []IndexEntry{}}
	for _, e := range idx.Entries {
		if e.OwnerUsername != "" && e.OwnerUsername == username {
			out.Entries = append(out.Entries, e)
		}
	}
	return out
}

// Contains reports whether an entry with id is present.
func (idx Index) Contains(id string) bool {
	for _, e := range idx.Entries {
		if e.ID == id {
			return true
		}
	}
	return false
}
