package generation

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/abhisek/conjugar/internal/questionset"
	"github.com/abhisek/conjugar/internal/tense"
)

//go:embed prompts.yaml
var promptsYAML []byte

// Prompts holds the compiled prompt templates.
type Prompts struct {
	system   *template.Template
	selected *template.Template
	all      *template.Template
}

type promptFile struct {
	System    string `yaml:"system"`
	Directive struct {
		Selected string `yaml:"selected"`
		All      string `yaml:"all"`
	} `yaml:"directive"`
}

type promptData struct {
	Count     int
	TenseList string
	Tenses    []tense.Tense
	Blank     string
}

// DefaultPrompts returns the embedded templates.
func DefaultPrompts() *Prompts {
	p, err := ParsePrompts(promptsYAML)
	if err != nil {
		panic(fmt.Sprintf("generation: invalid embedded prompts: %v", err))
	}
	return p
}

// ParsePrompts compiles prompt templates from YAML.
func ParsePrompts(data []byte) (*Prompts, error) {
	var f promptFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse prompts: %w", err)
	}
	if f.System == "" || f.Directive.Selected == "" || f.Directive.All == "" {
		return nil, fmt.Errorf("prompts: system, directive.selected and directive.all are required")
	}

	p := &Prompts{}
	var err error
	if p.system, err = template.New("system").Option("missingkey=error").Parse(f.System); err != nil {
		return nil, fmt.Errorf("system template: %w", err)
	}
	if p.selected, err = template.New("selected").Option("missingkey=error").Parse(f.Directive.Selected); err != nil {
		return nil, fmt.Errorf("selected directive: %w", err)
	}
	if p.all, err = template.New("all").Option("missingkey=error").Parse(f.Directive.All); err != nil {
		return nil, fmt.Errorf("all directive: %w", err)
	}
	return p, nil
}

// Build renders the single instruction sent to the model: the system
// template, a blank line, then the directive.
func (p *Prompts) Build(count int, tenses []tense.ID) (string, error) {
	data := promptData{
		Count:     count,
		TenseList: "all",
		Tenses:    tense.All(),
		Blank:     questionset.BlankMarker,
	}
	directive := p.all
	if len(tenses) > 0 {
		ids := make([]string, len(tenses))
		for i, id := range tenses {
			ids[i] = string(id)
		}
		data.TenseList = strings.Join(ids, ",")
		directive = p.selected
	}

	var b strings.Builder
	if err := p.system.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render system prompt: %w", err)
	}
	system := strings.TrimRight(b.String(), "\n")

	b.Reset()
	if err := directive.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render directive: %w", err)
	}
	return system + "\n\n" + b.String(), nil
}
