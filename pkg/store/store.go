package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/perflab/querybench/pkg/bench"
	"github.com/perflab/querybench/pkg/config"
)

// ErrInsufficientData marks a comparison request for which no persisted run
// covers both requested paths with at least one successful sample each.
var ErrInsufficientData = errors.New("insufficient data for comparison")

// Store provides persistence for completed benchmark runs.
type Store interface {
	Start(ctx context.Context) error
	Stop() error

	// Put persists a finished run and returns the assigned run ID.
	Put(ctx context.Context, result *bench.RunResult) (uint64, error)

	// List returns all runs for a test, oldest first.
	List(ctx context.Context, testName string) ([]*bench.RunResult, error)

	// Latest returns the most recent run for a test, or nil when the test
	// has never run.
	Latest(ctx context.Context, testName string) (*bench.RunResult, error)

	// Compare computes the base-over-target latency ratio from the most
	// recent run that exercised both paths successfully.
	Compare(
		ctx context.Context, testName string, base, target bench.Path,
	) (*Comparison, error)

	// TestNames returns the distinct test names with at least one
	// persisted run.
	TestNames(ctx context.Context) ([]string, error)
}

// Comparison relates the mean latencies of two execution paths within a
// single run.
type Comparison struct {
	TestName   string     `json:"test_name"`
	RunID      uint64     `json:"run_id"`
	StartedAt  time.Time  `json:"started_at"`
	Base       bench.Path `json:"base"`
	Target     bench.Path `json:"target"`
	BaseMean   int64      `json:"base_mean_ns"`
	TargetMean int64      `json:"target_mean_ns"`

	// Ratio is base mean over target mean. Above 1.0 the target path is
	// faster.
	Ratio float64 `json:"ratio"`

	FasterPath        bench.Path `json:"faster_path"`
	DifferencePercent float64    `json:"difference_percent"`
}

// Compile-time interface check.
var _ Store = (*store)(nil)

type store struct {
	log logrus.FieldLogger
	cfg *config.DatabaseConfig
	db  *gorm.DB
}

// NewStore creates a run Store backed by the configured database driver.
func NewStore(log logrus.FieldLogger, cfg *config.DatabaseConfig) Store {
	return &store{
		log: log.WithField("component", "store"),
		cfg: cfg,
	}
}

// Start opens the database connection and runs migrations.
func (s *store) Start(ctx context.Context) error {
	var dialector gorm.Dialector

	gormCfg := &gorm.Config{
		Logger: logger.Discard,
	}

	switch s.cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(s.cfg.SQLite.Path)
	case "postgres":
		dialector = postgres.Open(s.cfg.Postgres.DSN())
	default:
		return fmt.Errorf("unsupported database driver: %s", s.cfg.Driver)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return fmt.Errorf("opening results database: %w", err)
	}

	s.db = db

	if err := s.db.WithContext(ctx).AutoMigrate(
		&Run{},
		&PathSummary{},
	); err != nil {
		return fmt.Errorf("running results migrations: %w", err)
	}

	s.log.WithField("driver", s.cfg.Driver).
		Info("Results database connected")

	return nil
}

// Stop closes the underlying database connection.
func (s *store) Stop() error {
	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying db: %w", err)
	}

	return sqlDB.Close()
}

// Put persists a finished run together with its per-path summaries in one
// transaction. The assigned auto-increment ID becomes the run ID.
func (s *store) Put(
	ctx context.Context, result *bench.RunResult,
) (uint64, error) {
	run := newRun(result)

	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return 0, fmt.Errorf("persisting run: %w", err)
	}

	result.RunID = uint64(run.ID)

	return result.RunID, nil
}

// List returns all runs for a test, oldest first.
func (s *store) List(
	ctx context.Context, testName string,
) ([]*bench.RunResult, error) {
	var runs []Run
	if err := s.db.WithContext(ctx).
		Preload("Summaries").
		Where("test_name = ?", testName).
		Order("id ASC").
		Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	out := make([]*bench.RunResult, 0, len(runs))
	for i := range runs {
		out = append(out, runs[i].toResult())
	}

	return out, nil
}

// Latest returns the most recent run for a test, or nil when no run exists.
func (s *store) Latest(
	ctx context.Context, testName string,
) (*bench.RunResult, error) {
	var run Run

	err := s.db.WithContext(ctx).
		Preload("Summaries").
		Where("test_name = ?", testName).
		Order("id DESC").
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("loading latest run: %w", err)
	}

	return run.toResult(), nil
}

// Compare relates the mean latencies of both paths in the most recent run of
// the test that exercised them together. Runs covering only one of the two
// paths are skipped, never mixed across runs. A run that covers both but has
// zero successes on either side is a terminal ErrInsufficientData, not a
// reason to fall back to an older run.
func (s *store) Compare(
	ctx context.Context, testName string, base, target bench.Path,
) (*Comparison, error) {
	var runs []Run
	if err := s.db.WithContext(ctx).
		Preload("Summaries").
		Where("test_name = ?", testName).
		Order("id DESC").
		Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("loading runs for comparison: %w", err)
	}

	for i := range runs {
		result := runs[i].toResult()

		bs, ok := result.Summaries[base]
		if !ok {
			continue
		}

		ts, ok := result.Summaries[target]
		if !ok {
			continue
		}

		if bs.Latency == nil || ts.Latency == nil {
			return nil, fmt.Errorf(
				"test %q run %d has no successful samples for both %s and %s: %w",
				testName, result.RunID, base, target, ErrInsufficientData,
			)
		}

		return compare(result, base, target, bs, ts), nil
	}

	return nil, fmt.Errorf(
		"test %q was never run with paths %s and %s: %w", testName, base, target,
		ErrInsufficientData,
	)
}

func compare(
	r *bench.RunResult, base, target bench.Path,
	bs, ts *bench.RunSummary,
) *Comparison {
	c := &Comparison{
		TestName:   r.TestName,
		RunID:      r.RunID,
		StartedAt:  r.StartedAt,
		Base:       base,
		Target:     target,
		BaseMean:   bs.Latency.Mean.Nanoseconds(),
		TargetMean: ts.Latency.Mean.Nanoseconds(),
	}

	if c.TargetMean > 0 {
		c.Ratio = float64(c.BaseMean) / float64(c.TargetMean)
	}

	faster := base
	fastMean, slowMean := c.BaseMean, c.TargetMean

	if c.TargetMean < c.BaseMean {
		faster = target
		fastMean, slowMean = c.TargetMean, c.BaseMean
	}

	c.FasterPath = faster

	if slowMean > 0 {
		c.DifferencePercent = float64(slowMean-fastMean) /
			float64(slowMean) * 100
	}

	return c
}

// TestNames returns the distinct test names with persisted runs, sorted.
func (s *store) TestNames(ctx context.Context) ([]string, error) {
	var names []string
	if err := s.db.WithContext(ctx).
		Model(&Run{}).
		Distinct("test_name").
		Order("test_name ASC").
		Pluck("test_name", &names).Error; err != nil {
		return nil, fmt.Errorf("listing test names: %w", err)
	}

	return names, nil
}
