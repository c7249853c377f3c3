// Package jobs runs scheduled maintenance work.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/abhisek/conjugar/internal/logger"
	"github.com/abhisek/conjugar/internal/questionset"
)

// Sweepable is the repository operation the sweeper drives.
type Sweepable interface {
	Sweep(ctx context.Context, opts questionset.SweepOptions) (questionset.SweepReport, error)
}

// SweepObserver receives the result of every run.
type SweepObserver interface {
	ObserveSweep(deleted, pruned int, err error)
}

// SweeperConfig configures the scheduled orphan sweep.
type SweeperConfig struct {
	Schedule      string        // cron spec, e.g. "0 3 * * *" or "@hourly"
	MinAge        time.Duration // passed to SweepOptions.MinAge
	PruneDangling bool
	Timeout       time.Duration // per run; defaults to 5m
}

// Sweeper removes orphaned set blobs on a schedule.
type Sweeper struct {
	repo   Sweepable
	config SweeperConfig
	obs    SweepObserver
	log    *logger.Logger
	cron   *cron.Cron

	mu      sync.Mutex
	running bool
}

// NewSweeper creates a Sweeper. obs may be nil.
func NewSweeper(repo Sweepable, cfg SweeperConfig, obs SweepObserver, log *logger.Logger) *Sweeper {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Sweeper{
		repo:   repo,
		config: cfg,
		obs:    obs,
		log:    log.With("component", "sweeper"),
		cron:   cron.New(),
	}
}

// Start schedules the sweep. An empty schedule leaves the sweeper idle.
func (s *Sweeper) Start() error {
	if s.config.Schedule == "" {
		s.log.Info("orphan sweep disabled")
		return nil
	}
	_, err := s.cron.AddFunc(s.config.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.Timeout)
		defer cancel()
		_, _ = s.RunOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("schedule orphan sweep %q: %w", s.config.Schedule, err)
	}
	s.cron.Start()
	s.log.Info("orphan sweep scheduled", "schedule", s.config.Schedule, "min_age", s.config.MinAge)
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// RunOnce performs one sweep. Overlapping runs are skipped.
func (s *Sweeper) RunOnce(ctx context.Context) (questionset.SweepReport, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Warn("orphan sweep already running, skipping")
		return questionset.SweepReport{}, nil
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	start := time.Now()
	report, err := s.repo.Sweep(ctx, questionset.SweepOptions{
		MinAge:        s.config.MinAge,
		PruneDangling: s.config.PruneDangling,
	})
	if s.obs != nil {
		s.obs.ObserveSweep(report.Deleted, report.Pruned, err)
	}
	if err != nil {
		s.log.Error("orphan sweep failed", "error", err, "deleted", report.Deleted)
		return report, err
	}
	s.log.Info("orphan sweep finished",
		"scanned", report.Scanned, "orphaned", report.Orphaned, "deleted", report.Deleted,
		"dangling", report.Dangling, "pruned", report.Pruned, "duration_ms", time.Since(start).Milliseconds())
	return report, nil
}
