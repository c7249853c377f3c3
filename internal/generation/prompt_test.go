package generation

import (
	"strings"
	"testing"

	"github.com/abhisek/conjugar/internal/tense"
)

func TestPromptsBuild_AllTenses(t *testing.T) {
	p := DefaultPrompts()

	got, err := p.Build(12, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.HasSuffix(got, "\n\nGenerate 12 questions spread across all of the tenses") {
		t.Errorf("unexpected directive: %q", got[max(0, len(got)-80):])
	}
	for _, tt := range tense.All() {
		line := "- " + string(tt.ID) + ": "
		if !strings.Contains(got, line) {
			t.Errorf("tense key reference missing %q", line)
		}
	}
	for _, field := range []string{"- es:", "- en:", "- fr:", "- answer:", "- tense:", "- inf:"} {
		if !strings.Contains(got, field) {
			t.Errorf("output contract missing %q", field)
		}
	}
	if !strings.Contains(got, "Generate 12 Spanish fill-in-the-blank exercises for the following tenses: all") {
		t.Error("task line not rendered")
	}
}

func TestPromptsBuild_SelectedTenses(t *testing.T) {
	got, err := DefaultPrompts().Build(4, []tense.ID{tense.Imperfect, tense.PresentSubjunctive})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.HasSuffix(got, "\n\nGenerate a total of 4 questions spread across the imp,subpres tenses") {
		t.Errorf("unexpected directive: %q", got[max(0, len(got)-80):])
	}
	if strings.Count(got, "\n\nGenerate a total of") != 1 {
		t.Error("directive should be separated from the template by exactly one blank line")
	}
}

func TestParsePrompts_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"not yaml", "system: [unterminated"},
		{"missing directive", "system: hello\n"},
		{"bad template", "system: \"{{.Count\"\ndirective:\n  selected: a\n  all: b\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParsePrompts([]byte(tt.yaml)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestParsePrompts_UnknownFieldFailsAtRender(t *testing.T) {
	p, err := ParsePrompts([]byte("system: \"{{.Nope}}\"\ndirective:\n  selected: a\n  all: b\n"))
	if err != nil {
		t.Fatalf("ParsePrompts: %v", err)
	}
	if _, err := p.Build(1, nil); err == nil {
		t.Fatal("expected render error for unknown field")
	}
}
