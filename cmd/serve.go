package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/abhisek/conjugar/internal/auth"
	"github.com/abhisek/conjugar/internal/jobs"
	"github.com/abhisek/conjugar/internal/metrics"
	"github.com/abhisek/conjugar/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		cmd.SetContext(ctx)

		m := metrics.New()
		d, err := newDeps(cmd, m)
		if err != nil {
			return err
		}
		defer d.close()

		gen, err := d.newGenerator(ctx, m)
		if err != nil {
			return fmt.Errorf("configure question generation: %w", err)
		}

		sweeper := jobs.NewSweeper(d.repo, jobs.SweeperConfig{
			Schedule:      d.cfg.SweepSchedule,
			MinAge:        d.cfg.SweepMinAge,
			PruneDangling: true,
		}, m, d.log)
		if err := sweeper.Start(); err != nil {
			return err
		}
		defer sweeper.Stop()

		srv := server.New(server.Options{
			Addr:           d.cfg.HTTPAddr,
			AllowedOrigins: d.cfg.AllowedOrigins,
			APIPassword:    d.cfg.APIPassword,
			DefaultCount:   d.cfg.DefaultCount,
			MaxCount:       d.cfg.MaxCount,
		}, d.repo, gen, auth.NewSharedPassword(d.cfg.APIPassword), m, d.log)

		d.log.Info("starting conjugar",
			"version", version,
			"storage", d.cfg.Storage.Backend,
			"llm_provider", d.cfg.LLM.Provider,
			"llm_model", d.cfg.LLM.ModelName(),
			"index_cas", d.cfg.Storage.IndexCAS)
		return srv.Run(ctx)
	},
}
