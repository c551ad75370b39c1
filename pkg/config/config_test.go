package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perflab/querybench/pkg/bench"
	"github.com/perflab/querybench/pkg/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	return path
}

const minimalConfig = `
global:
  log_level: debug
backends:
  postgres:
    host: db.internal
    user: northwind
    password: secret
    database: northwind
  graphql:
    endpoint: http://hasura:8080/v1/graphql
    admin_secret: hush
  redis:
    address: redis:6379
benchmark:
  concurrency: 25
  duration: 30s
  cache:
    ttl: 60s
    delegate: mediated
`

func TestLoad(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Global.LogLevel)
	assert.Equal(t, "db.internal", cfg.Backends.Postgres.Host)
	assert.Equal(t, "http://hasura:8080/v1/graphql", cfg.Backends.GraphQL.Endpoint)
	assert.Equal(t, 25, cfg.Benchmark.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.Benchmark.Duration)
	assert.Equal(t, 60*time.Second, cfg.Benchmark.Cache.TTL)
	assert.Equal(t, "mediated", cfg.Benchmark.Cache.Delegate)

	require.NoError(t, cfg.Validate())
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, "global: {}\n"))
	require.NoError(t, err)

	assert.Equal(t, config.DefaultLogLevel, cfg.Global.LogLevel)
	assert.Equal(t, 5432, cfg.Backends.Postgres.Port)
	assert.Equal(t, "disable", cfg.Backends.Postgres.SSLMode)
	assert.Equal(t, config.DefaultGraphQLTimeout, cfg.Backends.GraphQL.Timeout)
	assert.Equal(t, "localhost:6379", cfg.Backends.Redis.Address)
	assert.Equal(t, config.DefaultConcurrency, cfg.Benchmark.Concurrency)
	assert.Equal(t, config.DefaultIterations, cfg.Benchmark.Iterations)
	assert.Equal(t, config.DefaultCacheTTL, cfg.Benchmark.Cache.TTL)
	assert.Equal(t, string(bench.PathDirect), cfg.Benchmark.Cache.Delegate)
	assert.Equal(t, "sqlite", cfg.Results.Database.Driver)
	assert.Len(t, cfg.Benchmark.Paths, 3)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("QUERYBENCH_GLOBAL_LOG_LEVEL", "warn")

	cfg, err := config.Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Global.LogLevel)
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	_, err := config.Load(writeConfig(t, "global: [not: a: map\n"))
	require.Error(t, err)
}

func TestValidateDuplicateTestNames(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, minimalConfig+`
tests:
  - name: custom
    sql: SELECT 1
  - name: custom
    sql: SELECT 2
`))
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate name")
}

func TestValidateBadDelegate(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, `
benchmark:
  cache:
    delegate: cached
`))
	require.NoError(t, err)

	require.Error(t, cfg.Validate())
}

func TestValidateBadDriver(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, `
results:
  database:
    driver: oracle
`))
	require.NoError(t, err)

	require.Error(t, cfg.Validate())
}

func TestTestConfigDefinition(t *testing.T) {
	tc := config.TestConfig{
		Name:    "lookup_by_id",
		SQL:     "SELECT * FROM customers WHERE customer_id = @id",
		GraphQL: "query { customers { customer_id } }",
		Params:  map[string]any{"id": "ALFKI"},
		Paths:   []string{"direct", "cached"},
		Timeout: "250ms",
	}

	def, err := tc.Definition()
	require.NoError(t, err)

	assert.Equal(t, []bench.Path{bench.PathDirect, bench.PathCached}, def.Paths)
	assert.Equal(t, 250*time.Millisecond, def.Timeout)
}

func TestTestConfigDefinitionRejectsBadValues(t *testing.T) {
	_, err := (&config.TestConfig{Name: "x", Paths: []string{"warp"}}).Definition()
	require.Error(t, err)

	_, err = (&config.TestConfig{Name: "x", Timeout: "soon"}).Definition()
	require.Error(t, err)
}

func TestLoadCatalogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tests:
  - name: recent_orders
    description: Orders in the last month
    sql: SELECT * FROM orders WHERE order_date >= '2024-01-01'
    graphql: "query { orders(where: {order_date: {_gte: \"2024-01-01\"}}) { order_id } }"
    paths: [direct, mediated]
    timeout: 10s
`), 0644))

	tests, err := config.LoadCatalogFile(path)
	require.NoError(t, err)
	require.Len(t, tests, 1)
	assert.Equal(t, "recent_orders", tests[0].Name)

	def, err := tests[0].Definition()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, def.Timeout)
}
