package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/perflab/querybench/pkg/bench"
	"github.com/perflab/querybench/pkg/config"
	"github.com/perflab/querybench/pkg/orchestrator"
	"github.com/perflab/querybench/pkg/report"
	"github.com/perflab/querybench/pkg/sysinfo"
	"github.com/perflab/querybench/pkg/telemetry"
	"github.com/perflab/querybench/pkg/upload"
)

var (
	runTests       []string
	runPaths       []string
	runConcurrency int
	runDuration    time.Duration
	runIterations  int
	runRate        float64
	runFormat      string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run benchmark tests",
	Long: `Execute the selected tests over the requested paths under concurrent
load, persist the per-path digests, and write run artifacts to the
results directory.`,
	RunE: runBenchmark,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringSliceVar(&runTests, "test", nil,
		"Test names to run (comma-separated or repeated flag; default all)")
	runCmd.Flags().StringSliceVar(&runPaths, "paths", nil,
		"Execution paths to measure (direct, mediated, cached)")
	runCmd.Flags().IntVar(&runConcurrency, "concurrency", 0,
		"Virtual users per path (default from config)")
	runCmd.Flags().DurationVar(&runDuration, "duration", 0,
		"Wall-clock budget for each test run")
	runCmd.Flags().IntVar(&runIterations, "iterations", 0,
		"Iteration quota per virtual user")
	runCmd.Flags().Float64Var(&runRate, "rate", 0,
		"Per-user pacing in calls per second (0 = unpaced)")
	runCmd.Flags().StringVar(&runFormat, "format", "table",
		"Output format (table, md, json)")
}

func runBenchmark(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cat, err := buildCatalog(cfg)
	if err != nil {
		return fmt.Errorf("building catalog: %w", err)
	}

	tests := runTests
	if len(tests) == 0 {
		tests = cat.Names()
	}

	paths, err := parsePaths(runPaths, cfg)
	if err != nil {
		return err
	}

	// Setup context with signal handling.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.WithField("signal", sig).Info("Received shutdown signal")
		cancel()
	}()

	selector, cleanup, err := buildSelector(ctx, cfg, paths)
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

	artifactDir := filepath.Join(
		cfg.Benchmark.ResultsDir,
		fmt.Sprintf("run-%s", time.Now().UTC().Format("20060102-150405")),
	)

	if err := os.MkdirAll(artifactDir, 0o755); err != nil {
		return fmt.Errorf("creating artifact directory: %w", err)
	}

	if snap, err := sysinfo.Collect(ctx); err != nil {
		log.WithError(err).Warn("System snapshot failed")
	} else if err := writeArtifact(artifactDir, "system.json", snap); err != nil {
		return err
	}

	results := make([]*bench.RunResult, 0, len(tests))

	for _, name := range tests {
		if ctx.Err() != nil {
			break
		}

		def, err := cat.Lookup(name)
		if err != nil {
			return err
		}

		result, err := orch.Run(ctx, orchestrator.RunOptions{
			Test:        def,
			Paths:       paths,
			Concurrency: pick(runConcurrency, cfg.Benchmark.Concurrency),
			Duration:    pickDur(runDuration, cfg.Benchmark.Duration),
			Iterations:  pick(runIterations, cfg.Benchmark.Iterations),
			Rate:        pickRate(runRate, cfg.Benchmark.Rate),
		})
		if err != nil {
			return fmt.Errorf("running test %q: %w", name, err)
		}

		results = append(results, result)

		if err := report.RenderRun(cmd.OutOrStdout(), result, runFormat); err != nil {
			return err
		}

		fileName := fmt.Sprintf("result-%s.json", name)
		if err := writeArtifact(artifactDir, fileName, result); err != nil {
			return err
		}
	}

	if err := writeArtifact(artifactDir, "results.json", results); err != nil {
		return err
	}

	if cfg.Upload != nil && cfg.Upload.Enabled {
		if err := uploadArtifacts(ctx, cfg, artifactDir); err != nil {
			return err
		}
	}

	return nil
}

// writeArtifact serializes v as indented JSON into dir.
func writeArtifact(dir, name string, v any) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", name, err)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}

	return nil
}

// uploadArtifacts ships the artifact directory to remote storage.
func uploadArtifacts(ctx context.Context, cfg *config.Config, dir string) error {
	uploader, err := upload.NewS3Uploader(log, cfg.Upload)
	if err != nil {
		return fmt.Errorf("creating uploader: %w", err)
	}

	if err := uploader.Preflight(ctx); err != nil {
		return fmt.Errorf("upload preflight: %w", err)
	}

	if err := uploader.UploadRun(ctx, dir); err != nil {
		return fmt.Errorf("uploading artifacts: %w", err)
	}

	return nil
}

func pick(flag, fallback int) int {
	if flag != 0 {
		return flag
	}

	return fallback
}

func pickDur(flag, fallback time.Duration) time.Duration {
	if flag != 0 {
		return flag
	}

	return fallback
}

func pickRate(flag, fallback float64) float64 {
	if flag != 0 {
		return flag
	}

	return fallback
}
