package main

import (
	"context"
	"fmt"

	"github.com/perflab/querybench/pkg/adapter"
	"github.com/perflab/querybench/pkg/backend"
	"github.com/perflab/querybench/pkg/bench"
	"github.com/perflab/querybench/pkg/catalog"
	"github.com/perflab/querybench/pkg/config"
	"github.com/perflab/querybench/pkg/store"
)

// loadConfig loads and validates the configuration file given on the command
// line.
func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		return nil, fmt.Errorf("config file is required (use --config)")
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// buildCatalog assembles the test catalog: built-in tests, inline config
// tests, then entries from the standalone catalog file.
func buildCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	cat := catalog.New(log)

	if err := catalog.RegisterDefaults(cat); err != nil {
		return nil, err
	}

	register := func(tcs []config.TestConfig) error {
		for i := range tcs {
			def, err := tcs[i].Definition()
			if err != nil {
				return fmt.Errorf("test %q: %w", tcs[i].Name, err)
			}

			if err := cat.Register(def); err != nil {
				return err
			}
		}

		return nil
	}

	if err := register(cfg.Tests); err != nil {
		return nil, err
	}

	if cfg.CatalogFile != "" {
		tcs, err := config.LoadCatalogFile(cfg.CatalogFile)
		if err != nil {
			return nil, err
		}

		if err := register(tcs); err != nil {
			return nil, err
		}
	}

	return cat, nil
}

// buildSelector starts the backends the requested paths need and wires the
// path adapters over them. The returned cleanup stops whatever was started.
func buildSelector(
	ctx context.Context,
	cfg *config.Config,
	paths []bench.Path,
) (*adapter.Selector, func(), error) {
	needs := make(map[bench.Path]bool, len(paths))
	for _, p := range paths {
		needs[p] = true
	}

	delegatePath := bench.Path(cfg.Benchmark.Cache.Delegate)
	if needs[bench.PathCached] {
		needs[delegatePath] = true
	}

	var (
		stops    []func()
		direct   adapter.Executor
		mediated adapter.Executor
		cached   adapter.Executor
	)

	cleanup := func() {
		for i := len(stops) - 1; i >= 0; i-- {
			stops[i]()
		}
	}

	if needs[bench.PathDirect] {
		pg := backend.NewPostgres(log, &cfg.Backends.Postgres)
		if err := pg.Start(ctx); err != nil {
			cleanup()

			return nil, nil, fmt.Errorf("starting postgres backend: %w", err)
		}

		stops = append(stops, func() { _ = pg.Stop() })
		direct = adapter.NewDirect(log, pg)
	}

	if needs[bench.PathMediated] {
		gq := backend.NewGraphQL(log, &cfg.Backends.GraphQL)
		mediated = adapter.NewMediated(log, gq)
	}

	if needs[bench.PathCached] {
		rd := backend.NewRedis(log, &cfg.Backends.Redis)
		if err := rd.Start(ctx); err != nil {
			cleanup()

			return nil, nil, fmt.Errorf("starting redis backend: %w", err)
		}

		stops = append(stops, func() { _ = rd.Stop() })

		delegate := direct
		if delegatePath == bench.PathMediated {
			delegate = mediated
		}

		cached = adapter.NewCached(log, rd, delegate, cfg.Benchmark.Cache.TTL)
	}

	return adapter.NewSelector(direct, mediated, cached), cleanup, nil
}

// openStore starts the results store.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	st := store.NewStore(log, &cfg.Results.Database)
	if err := st.Start(ctx); err != nil {
		return nil, err
	}

	return st, nil
}

// parsePaths converts path flags, falling back to the configured defaults.
func parsePaths(flags []string, cfg *config.Config) ([]bench.Path, error) {
	raw := flags
	if len(raw) == 0 {
		raw = cfg.Benchmark.Paths
	}

	out := make([]bench.Path, 0, len(raw))

	for _, s := range raw {
		p, err := bench.ParsePath(s)
		if err != nil {
			return nil, err
		}

		out = append(out, p)
	}

	return out, nil
}
