package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/perflab/querybench/pkg/bench"
)

const (
	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// DefaultResultsDir is the default directory for run artifacts.
	DefaultResultsDir = "./results"

	// DefaultCacheTTL is the default TTL for cached query results.
	DefaultCacheTTL = 300 * time.Second

	// DefaultGraphQLTimeout bounds a single mediated request.
	DefaultGraphQLTimeout = 60 * time.Second

	// DefaultConcurrency is the default number of virtual users per path.
	DefaultConcurrency = 10

	// DefaultIterations is the default iteration quota per virtual user.
	DefaultIterations = 10

	// envPrefix scopes environment variable overrides, e.g.
	// QUERYBENCH_GLOBAL_LOG_LEVEL.
	envPrefix = "QUERYBENCH"
)

// Config is the root configuration for querybench.
type Config struct {
	Global    GlobalConfig    `yaml:"global" mapstructure:"global"`
	Backends  BackendsConfig  `yaml:"backends" mapstructure:"backends"`
	Benchmark BenchmarkConfig `yaml:"benchmark" mapstructure:"benchmark"`
	Results   ResultsConfig   `yaml:"results" mapstructure:"results"`
	Server    *ServerConfig   `yaml:"server,omitempty" mapstructure:"server"`
	Upload    *S3UploadConfig `yaml:"upload,omitempty" mapstructure:"upload"`

	// Tests declared inline. Merged with the built-in catalog and with
	// CatalogFile entries; names must be unique across all three sources.
	Tests []TestConfig `yaml:"tests,omitempty" mapstructure:"tests"`

	// CatalogFile points at a standalone YAML file with additional test
	// definitions.
	CatalogFile string `yaml:"catalog_file,omitempty" mapstructure:"catalog_file"`
}

// GlobalConfig contains global application settings.
type GlobalConfig struct {
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
}

// BackendsConfig groups the external backends reached by the adapters.
type BackendsConfig struct {
	Postgres PostgresConfig `yaml:"postgres" mapstructure:"postgres"`
	GraphQL  GraphQLConfig  `yaml:"graphql" mapstructure:"graphql"`
	Redis    RedisConfig    `yaml:"redis" mapstructure:"redis"`
}

// PostgresConfig contains relational backend connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
	SSLMode  string `yaml:"ssl_mode" mapstructure:"ssl_mode"`
	MaxConns int    `yaml:"max_conns,omitempty" mapstructure:"max_conns"`
}

// DSN builds a keyword/value connection string for pgx.
func (c *PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// GraphQLConfig contains the API-mediated backend settings.
type GraphQLConfig struct {
	Endpoint    string        `yaml:"endpoint" mapstructure:"endpoint"`
	AdminSecret string        `yaml:"admin_secret,omitempty" mapstructure:"admin_secret"`
	Timeout     time.Duration `yaml:"timeout,omitempty" mapstructure:"timeout"`
}

// RedisConfig contains cache backend connection settings.
type RedisConfig struct {
	Address  string `yaml:"address" mapstructure:"address"`
	Password string `yaml:"password,omitempty" mapstructure:"password"`
	DB       int    `yaml:"db,omitempty" mapstructure:"db"`
}

// CacheConfig controls the cached execution path.
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl,omitempty" mapstructure:"ttl"`

	// Delegate selects which path serves a cache miss: direct or mediated.
	Delegate string `yaml:"delegate,omitempty" mapstructure:"delegate"`
}

// BenchmarkConfig contains default load parameters for runs.
type BenchmarkConfig struct {
	Concurrency int           `yaml:"concurrency,omitempty" mapstructure:"concurrency"`
	Duration    time.Duration `yaml:"duration,omitempty" mapstructure:"duration"`
	Iterations  int           `yaml:"iterations,omitempty" mapstructure:"iterations"`

	// Rate paces each virtual user to at most this many requests per
	// second. Zero means unpaced.
	Rate float64 `yaml:"rate,omitempty" mapstructure:"rate"`

	Paths      []string    `yaml:"paths,omitempty" mapstructure:"paths"`
	ResultsDir string      `yaml:"results_dir,omitempty" mapstructure:"results_dir"`
	Cache      CacheConfig `yaml:"cache,omitempty" mapstructure:"cache"`
}

// ResultsConfig contains result persistence settings.
type ResultsConfig struct {
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
}

// DatabaseConfig selects the result store driver.
type DatabaseConfig struct {
	Driver   string               `yaml:"driver" mapstructure:"driver"`
	SQLite   SQLiteDatabaseConfig `yaml:"sqlite,omitempty" mapstructure:"sqlite"`
	Postgres PostgresConfig       `yaml:"postgres,omitempty" mapstructure:"postgres"`
}

// SQLiteDatabaseConfig contains SQLite settings.
type SQLiteDatabaseConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig contains HTTP control-surface settings.
type ServerConfig struct {
	Listen      string          `yaml:"listen" mapstructure:"listen"`
	CORSOrigins []string        `yaml:"cors_origins,omitempty" mapstructure:"cors_origins"`
	RateLimit   RateLimitConfig `yaml:"rate_limit,omitempty" mapstructure:"rate_limit"`
	Auth        BasicAuthConfig `yaml:"auth,omitempty" mapstructure:"auth"`
}

// RateLimitConfig configures per-IP rate limiting.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute,omitempty" mapstructure:"requests_per_minute"`
}

// BasicAuthConfig configures username/password authentication.
type BasicAuthConfig struct {
	Enabled bool            `yaml:"enabled" mapstructure:"enabled"`
	Users   []BasicAuthUser `yaml:"users,omitempty" mapstructure:"users"`
}

// BasicAuthUser defines a basic auth user from config.
type BasicAuthUser struct {
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
}

// S3UploadConfig configures optional result uploads to S3-compatible
// storage.
type S3UploadConfig struct {
	Enabled         bool   `yaml:"enabled" mapstructure:"enabled"`
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	Prefix          string `yaml:"prefix,omitempty" mapstructure:"prefix"`
	Region          string `yaml:"region,omitempty" mapstructure:"region"`
	EndpointURL     string `yaml:"endpoint_url,omitempty" mapstructure:"endpoint_url"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" mapstructure:"secret_access_key"`
	ForcePathStyle  bool   `yaml:"force_path_style,omitempty" mapstructure:"force_path_style"`
	StorageClass    string `yaml:"storage_class,omitempty" mapstructure:"storage_class"`
	ACL             string `yaml:"acl,omitempty" mapstructure:"acl"`
}

// TestConfig is the serialized form of a test definition. Timeout is a Go
// duration string so the same shape works in both the main config and a
// standalone catalog file.
type TestConfig struct {
	Name        string         `yaml:"name" mapstructure:"name"`
	Description string         `yaml:"description,omitempty" mapstructure:"description"`
	SQL         string         `yaml:"sql" mapstructure:"sql"`
	GraphQL     string         `yaml:"graphql" mapstructure:"graphql"`
	Params      map[string]any `yaml:"params,omitempty" mapstructure:"params"`
	Paths       []string       `yaml:"paths,omitempty" mapstructure:"paths"`
	Timeout     string         `yaml:"timeout,omitempty" mapstructure:"timeout"`
}

// Definition converts the serialized form into a TestDefinition.
func (tc *TestConfig) Definition() (bench.TestDefinition, error) {
	def := bench.TestDefinition{
		Name:        tc.Name,
		Description: tc.Description,
		SQL:         tc.SQL,
		GraphQL:     tc.GraphQL,
		Params:      tc.Params,
	}

	for _, p := range tc.Paths {
		parsed, err := bench.ParsePath(p)
		if err != nil {
			return bench.TestDefinition{}, fmt.Errorf("test %q: %w", tc.Name, err)
		}

		def.Paths = append(def.Paths, parsed)
	}

	if tc.Timeout != "" {
		d, err := time.ParseDuration(tc.Timeout)
		if err != nil {
			return bench.TestDefinition{}, fmt.Errorf(
				"test %q: invalid timeout %q: %w", tc.Name, tc.Timeout, err,
			)
		}

		def.Timeout = d
	}

	return def, nil
}

// Load reads and parses the configuration file at path. Values may be
// overridden through QUERYBENCH_-prefixed environment variables, e.g.
// QUERYBENCH_GLOBAL_LOG_LEVEL=debug.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config

	if err := v.Unmarshal(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	)); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// LoadCatalogFile parses a standalone catalog YAML file holding a list of
// test definitions under a top-level "tests" key.
func LoadCatalogFile(path string) ([]TestConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}

	var doc struct {
		Tests []TestConfig `yaml:"tests"`
	}

	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing catalog file: %w", err)
	}

	return doc.Tests, nil
}

// applyDefaults sets default values for unspecified configuration options.
func (c *Config) applyDefaults() {
	if c.Global.LogLevel == "" {
		c.Global.LogLevel = DefaultLogLevel
	}

	if c.Backends.Postgres.Host == "" {
		c.Backends.Postgres.Host = "localhost"
	}

	if c.Backends.Postgres.Port == 0 {
		c.Backends.Postgres.Port = 5432
	}

	if c.Backends.Postgres.SSLMode == "" {
		c.Backends.Postgres.SSLMode = "disable"
	}

	if c.Backends.GraphQL.Timeout == 0 {
		c.Backends.GraphQL.Timeout = DefaultGraphQLTimeout
	}

	if c.Backends.Redis.Address == "" {
		c.Backends.Redis.Address = "localhost:6379"
	}

	if c.Benchmark.Concurrency == 0 {
		c.Benchmark.Concurrency = DefaultConcurrency
	}

	if c.Benchmark.Iterations == 0 && c.Benchmark.Duration == 0 {
		c.Benchmark.Iterations = DefaultIterations
	}

	if len(c.Benchmark.Paths) == 0 {
		for _, p := range bench.AllPaths {
			c.Benchmark.Paths = append(c.Benchmark.Paths, string(p))
		}
	}

	if c.Benchmark.ResultsDir == "" {
		c.Benchmark.ResultsDir = DefaultResultsDir
	}

	if c.Benchmark.Cache.TTL == 0 {
		c.Benchmark.Cache.TTL = DefaultCacheTTL
	}

	if c.Benchmark.Cache.Delegate == "" {
		c.Benchmark.Cache.Delegate = string(bench.PathDirect)
	}

	if c.Results.Database.Driver == "" {
		c.Results.Database.Driver = "sqlite"
	}

	if c.Results.Database.Driver == "sqlite" && c.Results.Database.SQLite.Path == "" {
		c.Results.Database.SQLite.Path = "./results/querybench.db"
	}

	if c.Server != nil && c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Benchmark.Concurrency <= 0 {
		return fmt.Errorf("benchmark concurrency must be positive, got %d",
			c.Benchmark.Concurrency)
	}

	for _, p := range c.Benchmark.Paths {
		if _, err := bench.ParsePath(p); err != nil {
			return fmt.Errorf("benchmark paths: %w", err)
		}
	}

	switch c.Benchmark.Cache.Delegate {
	case string(bench.PathDirect), string(bench.PathMediated):
	default:
		return fmt.Errorf("cache delegate must be %q or %q, got %q",
			bench.PathDirect, bench.PathMediated, c.Benchmark.Cache.Delegate)
	}

	switch c.Results.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported results database driver: %s",
			c.Results.Database.Driver)
	}

	seen := make(map[string]struct{}, len(c.Tests))

	for i, tc := range c.Tests {
		if tc.Name == "" {
			return fmt.Errorf("tests[%d]: name is required", i)
		}

		if _, exists := seen[tc.Name]; exists {
			return fmt.Errorf("tests[%d]: duplicate name %q", i, tc.Name)
		}

		seen[tc.Name] = struct{}{}

		if _, err := tc.Definition(); err != nil {
			return err
		}
	}

	if c.Upload != nil && c.Upload.Enabled && c.Upload.Bucket == "" {
		return fmt.Errorf("upload bucket is required when upload is enabled")
	}

	if c.Server != nil && c.Server.Auth.Enabled && len(c.Server.Auth.Users) == 0 {
		return fmt.Errorf("server auth requires at least one user")
	}

	return nil
}
