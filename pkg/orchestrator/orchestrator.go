// Package orchestrator drives benchmark runs: it fans virtual users out over
// the requested execution paths, collects their samples, and seals the result.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/perflab/querybench/pkg/adapter"
	"github.com/perflab/querybench/pkg/aggregate"
	"github.com/perflab/querybench/pkg/bench"
	"github.com/perflab/querybench/pkg/store"
)

var (
	// ErrInvalidConcurrency rejects a run request with fewer than one
	// virtual user.
	ErrInvalidConcurrency = errors.New("concurrency must be at least 1")

	// ErrNoPathsRequested rejects a run request with an empty path set.
	ErrNoPathsRequested = errors.New("no execution paths requested")

	// ErrNoStopCondition rejects a run request with neither a duration
	// budget nor an iteration quota.
	ErrNoStopCondition = errors.New("run needs a duration or an iteration count")
)

// Observer receives execution events as they happen. Implementations must be
// safe for concurrent use.
type Observer interface {
	ObserveSample(s bench.Sample)
	ObserveRun(r *bench.RunResult)
}

// RunOptions parameterize a single benchmark run.
type RunOptions struct {
	Test  bench.TestDefinition
	Paths []bench.Path

	// Concurrency is the number of virtual users per path.
	Concurrency int

	// Duration bounds the run in wall-clock time. Iterations bounds each
	// virtual user's loop. With both set, whichever triggers first stops
	// the run. At least one must be set.
	Duration   time.Duration
	Iterations int

	// Rate paces each virtual user to at most this many calls per second.
	// Zero means unpaced.
	Rate float64
}

// Orchestrator runs benchmark load against the configured execution paths.
type Orchestrator struct {
	log      logrus.FieldLogger
	selector *adapter.Selector
	store    store.Store
	observer Observer
}

// New creates an orchestrator. Both st and obs may be nil: a nil store skips
// persistence, a nil observer skips metric export.
func New(
	log logrus.FieldLogger,
	selector *adapter.Selector,
	st store.Store,
	obs Observer,
) *Orchestrator {
	return &Orchestrator{
		log:      log.WithField("component", "orchestrator"),
		selector: selector,
		store:    st,
		observer: obs,
	}
}

// Run executes one benchmark run and returns its sealed result. The run
// stops when the duration budget or the per-user iteration quota is reached,
// whichever comes first, or when ctx is cancelled. In-flight calls are
// allowed to finish: the stop condition is only observed between iterations,
// while each call is bounded by the test's own timeout.
func (o *Orchestrator) Run(
	ctx context.Context, opts RunOptions,
) (*bench.RunResult, error) {
	if opts.Concurrency < 1 {
		return nil, fmt.Errorf("concurrency %d: %w",
			opts.Concurrency, ErrInvalidConcurrency)
	}

	if len(opts.Paths) == 0 {
		return nil, ErrNoPathsRequested
	}

	if opts.Duration <= 0 && opts.Iterations <= 0 {
		return nil, ErrNoStopCondition
	}

	executors := make([]adapter.Executor, 0, len(opts.Paths))

	for _, p := range opts.Paths {
		if !opts.Test.SupportsPath(p) {
			return nil, fmt.Errorf(
				"test %q does not support path %q", opts.Test.Name, p,
			)
		}

		exec, err := o.selector.For(p)
		if err != nil {
			return nil, err
		}

		executors = append(executors, exec)
	}

	runCtx := ctx
	if opts.Duration > 0 {
		var cancel context.CancelFunc

		runCtx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	o.log.WithFields(logrus.Fields{
		"test":        opts.Test.Name,
		"paths":       opts.Paths,
		"concurrency": opts.Concurrency,
		"duration":    opts.Duration,
		"iterations":  opts.Iterations,
	}).Info("Starting benchmark run")

	agg := aggregate.New(opts.Paths...)
	started := time.Now()

	var g errgroup.Group

	for _, exec := range executors {
		for i := 0; i < opts.Concurrency; i++ {
			exec := exec

			g.Go(func() error {
				o.virtualUser(ctx, runCtx, exec, &opts, agg)

				return nil
			})
		}
	}

	// Workers never return errors; Wait only synchronizes the drain.
	_ = g.Wait()

	result := &bench.RunResult{
		TestName:    opts.Test.Name,
		StartedAt:   started,
		CompletedAt: time.Now(),
		Summaries:   agg.SummarizeAll(),
	}

	if o.observer != nil {
		o.observer.ObserveRun(result)
	}

	// Persistence uses the parent context: the run deadline has usually
	// expired by the time the workers drain.
	if o.store != nil {
		if _, err := o.store.Put(ctx, result); err != nil {
			return result, fmt.Errorf("persisting run result: %w", err)
		}
	}

	o.log.WithFields(logrus.Fields{
		"test":    result.TestName,
		"run_id":  result.RunID,
		"elapsed": result.CompletedAt.Sub(result.StartedAt),
	}).Info("Benchmark run complete")

	return result, nil
}

// virtualUser is one worker's execution loop. The stop condition (runCtx) is
// checked at iteration boundaries only; the call itself runs under the
// parent signal context so the per-call timeout governs in-flight work.
func (o *Orchestrator) virtualUser(
	ctx, runCtx context.Context,
	exec adapter.Executor,
	opts *RunOptions,
	agg *aggregate.Aggregator,
) {
	var limiter *rate.Limiter
	if opts.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.Rate), 1)
	}

	for i := 0; opts.Iterations <= 0 || i < opts.Iterations; i++ {
		if runCtx.Err() != nil {
			return
		}

		if limiter != nil {
			if err := limiter.Wait(runCtx); err != nil {
				return
			}
		}

		s := exec.Execute(ctx, &opts.Test)

		agg.Record(exec.Path(), s)

		if o.observer != nil {
			o.observer.ObserveSample(s)
		}
	}
}
