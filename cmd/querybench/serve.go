package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/perflab/querybench/pkg/api"
	"github.com/perflab/querybench/pkg/bench"
	"github.com/perflab/querybench/pkg/config"
	"github.com/perflab/querybench/pkg/orchestrator"
	"github.com/perflab/querybench/pkg/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP control surface",
	Long: `Start the API server. Benchmark runs are triggered over HTTP and
results are queryable from the persisted store; Prometheus metrics are
exposed on /metrics.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if cfg.Server == nil {
		cfg.Server = &config.ServerConfig{Listen: ":8080"}
	}

	cat, err := buildCatalog(cfg)
	if err != nil {
		return fmt.Errorf("building catalog: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The server can receive requests for any path, so all backends are
	// wired up front.
	selector, cleanup, err := buildSelector(ctx, cfg, bench.AllPaths)
	if err != nil {
		return err
	}
	defer cleanup()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening results store: %w", err)
	}

	defer func() {
		if err := st.Stop(); err != nil {
			log.WithError(err).Warn("Store stop error")
		}
	}()

	metrics := telemetry.New()
	orch := orchestrator.New(log, selector, st, metrics)

	server := api.NewServer(
		log, cfg.Server, &cfg.Benchmark, cat, orch, st, metrics,
	)

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting api server: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	log.WithField("signal", sig).Info("Received shutdown signal")

	cancel()

	return server.Stop()
}
