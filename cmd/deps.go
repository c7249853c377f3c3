package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/abhisek/conjugar/internal/blob"
	"github.com/abhisek/conjugar/internal/config"
	"github.com/abhisek/conjugar/internal/eventlog"
	"github.com/abhisek/conjugar/internal/generation"
	"github.com/abhisek/conjugar/internal/llm"
	"github.com/abhisek/conjugar/internal/logger"
	"github.com/abhisek/conjugar/internal/questionset"
)

// deps holds the components shared by commands. close releases them in
// reverse order of construction.
type deps struct {
	cfg    config.Config
	log    *logger.Logger
	store  blob.Store
	repo   *questionset.Repository
	events *eventlog.Store
	closer []func() error
}

// loadConfig reads configuration and applies persistent flag overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	cfg, err := config.Load(envFile)
	if err != nil {
		return config.Config{}, err
	}
	if p, _ := cmd.Flags().GetString("events-db"); p != "" {
		cfg.EventsDB = p
	}
	return cfg, nil
}

// newDeps loads configuration, builds the logger and opens the question set
// store. obs, when non-nil, instruments the blob backend.
func newDeps(cmd *cobra.Command, obs blob.Observer) (*deps, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	log := logger.Nop()
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose || cmd.Name() == "serve" {
		if log, err = logger.New(cfg.Env); err != nil {
			return nil, fmt.Errorf("build logger: %w", err)
		}
	}

	d := &deps{cfg: cfg, log: log}
	d.closer = append(d.closer, func() error { log.Sync(); return nil })

	ctx := cmd.Context()
	store, err := blob.Open(ctx, cfg.Blob())
	if err != nil {
		d.close()
		return nil, fmt.Errorf("open %s blob store: %w", cfg.Storage.Backend, err)
	}
	d.store = blob.Instrument(store, cfg.Storage.Backend, obs)
	d.closer = append(d.closer, d.store.Close)

	d.repo = questionset.NewRepository(d.store, questionset.Options{
		Prefix:     cfg.Storage.Prefix,
		CAS:        cfg.Storage.IndexCAS,
		MaxRetries: cfg.Storage.IndexMaxRetries,
		Logger:     log,
	})
	return d, nil
}

// openEvents opens the LLM event log, or returns nil when it is disabled.
func (d *deps) openEvents() (*eventlog.Store, error) {
	if d.events != nil || d.cfg.EventsDB == "" {
		return d.events, nil
	}
	if err := eventlog.EnsureDir(d.cfg.EventsDB); err != nil {
		return nil, fmt.Errorf("create event log dir: %w", err)
	}
	s, err := eventlog.Open(d.cfg.EventsDB)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	d.events = s
	d.closer = append(d.closer, s.Close)
	return s, nil
}

// newGenerator builds the model provider and the generation service.
func (d *deps) newGenerator(ctx context.Context, obs generation.Observer) (*generation.Service, error) {
	if err := d.cfg.LLM.Validate(); err != nil {
		return nil, err
	}
	var recorder eventlog.Recorder = eventlog.Discard
	events, err := d.openEvents()
	if err != nil {
		d.log.Warn("LLM event log unavailable, continuing without it", "error", err)
	} else if events != nil {
		recorder = events
	}

	provider, err := llm.NewProvider(ctx, d.cfg.LLM, recorder, d.log)
	if err != nil {
		return nil, err
	}

	gcfg := generation.DefaultConfig()
	gcfg.DefaultCount = d.cfg.DefaultCount
	gcfg.MaxCount = d.cfg.MaxCount

	opts := []generation.Option{generation.WithLogger(d.log)}
	if obs != nil {
		opts = append(opts, generation.WithObserver(obs))
	}
	return generation.New(provider, d.repo, gcfg, opts...), nil
}

func (d *deps) close() {
	for i := len(d.closer) - 1; i >= 0; i-- {
		if err := d.closer[i](); err != nil {
			fmt.Fprintln(os.Stderr, "close:", err)
		}
	}
	d.closer = nil
}
