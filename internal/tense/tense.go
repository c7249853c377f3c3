package tense

import (
	_ "embed"
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ID is a canonical tense key such as "pres" or "subplup".
type ID string

const (
	Present                   ID = "pres"
	Preterite                 ID = "pret"
	Imperfect                 ID = "imp"
	Future                    ID = "fut"
	Conditional               ID = "cond"
	PresentPerfect            ID = "presperf"
	Pluperfect                ID = "plup"
	FuturePerfect             ID = "futperf"
	ConditionalPerfect        ID = "condperf"
	PresentSubjunctive        ID = "subpres"
	ImperfectSubjunctive      ID = "subimp"
	PresentPerfectSubjunctive ID = "subperf"
	PluperfectSubjunctive     ID = "subplup"
)

// Endings lists the person endings for each infinitive class.
type Endings struct {
	AR []string `yaml:"ar" json:"ar"`
	ER []string `yaml:"er" json:"er"`
	IR []string `yaml:"ir" json:"ir"`
}

// Tense is the reference entry for one verbal tense/mood combination.
type Tense struct {
	ID          ID          `yaml:"id" json:"id"`
	Name        string      `yaml:"name" json:"name"`
	EnglishName string      `yaml:"english" json:"-"`
	Level       string      `yaml:"level" json:"level"`
	Description string      `yaml:"desc" json:"desc"`
	Endings     Endings     `yaml:"endings" json:"endings"`
	Examples    [][2]string `yaml:"examples" json:"examples"`
}

//go:embed tenses.yaml
var tensesYAML []byte

type reference struct {
	tenses []Tense
	byID   map[ID]*Tense
}

// ref is the package-level reference table, built once at init.
var ref *reference

func init() {
	r, err := load(tensesYAML)
	if err != nil {
		panic(fmt.Sprintf("tense: invalid embedded reference data: %v", err))
	}
	ref = r
}

func load(data []byte) (*reference, error) {
	var doc struct {
		Tenses []Tense `yaml:"tenses"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse tenses: %w", err)
	}
	if err := validateTenses(doc.Tenses); err != nil {
		return nil, err
	}

	r := &reference{
		tenses: doc.Tenses,
		byID:   make(map[ID]*Tense, len(doc.Tenses)),
	}
	for i := range r.tenses {
		r.byID[r.tenses[i].ID] = &r.tenses[i]
	}
	return r, nil
}

// validateTenses checks the table covers every canonical key exactly once.
func validateTenses(tenses []Tense) error {
	var errs []string
	seen := make(map[ID]bool, len(tenses))
	for _, t := range tenses {
		if seen[t.ID] {
			errs = append(errs, fmt.Sprintf("duplicate tense %q", t.ID))
		}
		seen[t.ID] = true
		if t.Name == "" {
			errs = append(errs, fmt.Sprintf("tense %q has no name", t.ID))
		}
	}
	for _, id := range canonical {
		if !seen[id] {
			errs = append(errs, fmt.Sprintf("missing tense %q", id))
		}
	}
	if len(tenses) != len(canonical) {
		errs = append(errs, fmt.Sprintf("got %d tenses, want %d", len(tenses), len(canonical)))
	}
	if len(errs) > 0 {
		return fmt.Errorf("tense table: %s", strings.Join(errs, "; "))
	}
	return nil
}

// canonical is the fixed key order used in prompts and listings.
var canonical = []ID{
	Present, Preterite, Imperfect, Future, Conditional,
	PresentPerfect, Pluperfect, FuturePerfect, ConditionalPerfect,
	PresentSubjunctive, ImperfectSubjunctive, PresentPerfectSubjunctive, PluperfectSubjunctive,
}

// Keys returns the 13 tense keys in canonical order.
func Keys() []ID {
	return slices.Clone(canonical)
}

// IsValid reports whether id is one of the canonical tense keys.
func IsValid(id string) bool {
	_, ok := ref.byID[ID(id)]
	return ok
}

// Get returns the reference entry for id.
func Get(id string) (Tense, error) {
	t, ok := ref.byID[ID(id)]
	if !ok {
		return Tense{}, fmt.Errorf("unknown tense: %q", id)
	}
	return *t, nil
}

// All returns every tense in canonical order.
func All() []Tense {
	return slices.Clone(ref.tenses)
}

// DisplayName returns the Spanish display name for id, or id itself when unknown.
func DisplayName(id string) string {
	if t, ok := ref.byID[ID(id)]; ok {
		return t.Name
	}
	return id
}

// ParseList splits a comma-separated list of tense keys, trimming blanks and
// dropping duplicates. Unknown keys are reported as an error.
func ParseList(s string) ([]ID, error) {
	var out []ID
	seen := make(map[ID]bool)
	for _, part := range strings.Split(s, ",") {
		key := strings.ToLower(strings.TrimSpace(part))
		if key == "" {
			continue
		}
		if !IsValid(key) {
			return nil, fmt.Errorf("unknown tense: %q", key)
		}
		if seen[ID(key)] {
			continue
		}
		seen[ID(key)] = true
		out = append(out, ID(key))
	}
	return out, nil
}
