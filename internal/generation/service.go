// Package generation turns a request for N questions into a stored question
// set by prompting a language model and validating what comes back.
package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abhisek/conjugar/internal/llm"
	"github.com/abhisek/conjugar/internal/logger"
	"github.com/abhisek/conjugar/internal/questionset"
	"github.com/abhisek/conjugar/internal/tense"
)

// Purpose labels model calls made by the Service in the event log.
const Purpose = "question-set-gen"

// Outcome classifies a generation attempt.
type Outcome string

const (
	OutcomeOK                Outcome = "ok"
	OutcomeNoOutput          Outcome = "no_output"
	OutcomeMalformedOutput   Outcome = "malformed_output"
	OutcomeStoreWriteFailure Outcome = "store_write_failure"
)

// ErrInvalidRequest is returned for requests that never reach the model.
var ErrInvalidRequest = errors.New("invalid generation request")

// SetCreator persists a generated set. *questionset.Repository satisfies it.
type SetCreator interface {
	CreateSet(ctx context.Context, title string, questions []questionset.Question, ownerUsername string) (questionset.QuestionSet, error)
}

// Observer receives one call per completed attempt.
type Observer interface {
	ObserveGeneration(outcome string, dropped int, elapsed time.Duration)
}

// Request asks for a new question set.
type Request struct {
	Title         string
	Count         int
	Tenses        []tense.ID // empty means all tenses
	OwnerUsername string
}

// Result is what a generation attempt produced. On failure Set carries the
// failure title, no id and no questions, and Err holds the cause.
type Result struct {
	Set     questionset.QuestionSet
	Outcome Outcome
	Err     error
	Dropped []*ValidationError
}

// Failed reports whether the attempt produced no stored set.
func (r Result) Failed() bool { return r.Outcome != OutcomeOK }

// Service generates and stores question sets.
type Service struct {
	provider llm.Provider
	sets     SetCreator
	prompts  *Prompts
	config   Config
	log      *logger.Logger
	obs      Observer
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithObserver attaches a metrics observer.
func WithObserver(o Observer) Option {
	return func(s *Service) { s.obs = o }
}

// WithPrompts replaces the embedded prompt templates.
func WithPrompts(p *Prompts) Option {
	return func(s *Service) { s.prompts = p }
}

// New creates a Service.
func New(provider llm.Provider, sets SetCreator, cfg Config, opts ...Option) *Service {
	s := &Service{
		provider: provider,
		sets:     sets,
		config:   cfg,
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.prompts == nil {
		s.prompts = DefaultPrompts()
	}
	if s.config.FailureTitle == "" {
		s.config.FailureTitle = DefaultConfig().FailureTitle
	}
	s.log = s.log.With("component", "generation")
	return s
}

// Normalize applies defaults and checks a request without calling the model.
func (s *Service) Normalize(req Request) (Request, error) {
	req.OwnerUsername = strings.TrimSpace(req.OwnerUsername)
	if req.OwnerUsername == "" {
		return req, fmt.Errorf("%w: username is required", ErrInvalidRequest)
	}
	if req.Count == 0 {
		req.Count = s.config.DefaultCount
	}
	if req.Count < 1 || (s.config.MaxCount > 0 && req.Count > s.config.MaxCount) {
		return req, fmt.Errorf("%w: count must be between 1 and %d", ErrInvalidRequest, s.config.MaxCount)
	}
	for _, id := range req.Tenses {
		if !tense.IsValid(string(id)) {
			return req, fmt.Errorf("%w: unknown tense %q", ErrInvalidRequest, id)
		}
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		req.Title = DefaultTitle(req.Count, req.Tenses)
	}
	return req, nil
}

// Generate asks the model for req.Count questions, validates them and stores
// the survivors as a new set owned by req.OwnerUsername. Model and store
// failures are reported through Result.Outcome, never as an error; the
// returned error is non-nil only for an invalid request. A failed attempt
// writes nothing to the store.
func (s *Service) Generate(ctx context.Context, req Request) (Result, error) {
	req, err := s.Normalize(req)
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	res := s.generate(ctx, req)
	if s.obs != nil {
		s.obs.ObserveGeneration(string(res.Outcome), len(res.Dropped), time.Since(start))
	}

	if res.Failed() {
		s.log.Warn("question set generation failed",
			"outcome", res.Outcome, "owner", req.OwnerUsername, "count", req.Count,
			"dropped", len(res.Dropped), "error", res.Err)
	} else {
		s.log.Info("question set generated",
			"id", res.Set.ID, "owner", req.OwnerUsername, "requested", req.Count,
			"kept", len(res.Set.Questions), "dropped", len(res.Dropped))
	}
	return res, nil
}

func (s *Service) generate(ctx context.Context, req Request) Result {
	prompt, err := s.prompts.Build(req.Count, req.Tenses)
	if err != nil {
		return s.failure(OutcomeNoOutput, err, nil)
	}

	ctx = llm.WithPurpose(llm.WithOwner(ctx, req.OwnerUsername), Purpose)
	resp, err := s.provider.Generate(ctx, llm.Request{
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		MaxTokens:   s.config.MaxTokens,
		Temperature: s.config.Temperature,
	})
	if err != nil {
		return s.failure(OutcomeNoOutput, fmt.Errorf("model request failed: %w", err), nil)
	}

	items, err := parseItems(string(resp.Content))
	if errors.Is(err, errEmptyOutput) {
		return s.failure(OutcomeNoOutput, err, nil)
	}
	if err != nil {
		return s.failure(OutcomeMalformedOutput, err, nil)
	}

	questions, dropped := s.validate(items, req)
	for _, d := range dropped {
		s.log.Debug("generated question dropped", "index", d.Index, "validator", d.Validator, "reason", d.Message)
	}
	if len(questions) == 0 {
		return s.failure(OutcomeMalformedOutput, errNoValid, dropped)
	}
	if len(questions) > req.Count {
		questions = questions[:req.Count]
	}

	set, err := s.sets.CreateSet(ctx, req.Title, questions, req.OwnerUsername)
	if err != nil {
		return s.failure(OutcomeStoreWriteFailure, fmt.Errorf("store question set: %w", err), dropped)
	}
	return Result{Set: set, Outcome: OutcomeOK, Dropped: dropped}
}

// validate decodes each element independently, repairs it and runs the
// validator chain. Elements that fail are reported, not returned.
func (s *Service) validate(items []json.RawMessage, req Request) ([]questionset.Question, []*ValidationError) {
	var (
		kept    []questionset.Question
		dropped []*ValidationError
	)
	for i, item := range items {
		var q questionset.Question
		if err := json.Unmarshal(item, &q); err != nil {
			dropped = append(dropped, &ValidationError{Validator: "decode", Message: err.Error(), Index: i})
			continue
		}
		repair(&q)
		if verr := s.runValidators(&q, req); verr != nil {
			verr.Index = i
			dropped = append(dropped, verr)
			continue
		}
		kept = append(kept, q)
	}
	return kept, dropped
}

func (s *Service) runValidators(q *questionset.Question, req Request) *ValidationError {
	for _, v := range s.config.Validators {
		if verr := v.Validate(q, req); verr != nil {
			return verr
		}
	}
	return nil
}

func (s *Service) failure(outcome Outcome, err error, dropped []*ValidationError) Result {
	return Result{
		Set: questionset.QuestionSet{
			Title:     s.config.FailureTitle,
			Questions: []questionset.Question{},
		},
		Outcome: outcome,
		Err:     err,
		Dropped: dropped,
	}
}

// DefaultTitle names a set after its tenses and size.
func DefaultTitle(count int, tenses []tense.ID) string {
	if len(tenses) == 0 {
		return fmt.Sprintf("Todos los tiempos · %d preguntas", count)
	}
	names := make([]string, len(tenses))
	for i, id := range tenses {
		names[i] = tense.DisplayName(string(id))
	}
	return fmt.Sprintf("%s · %d preguntas", strings.Join(names, ", "), count)
}
