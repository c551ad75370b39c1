// Package adapter provides the uniform execution interface over the
// heterogeneous backends. Each variant independently times one call and
// converts its outcome into a Sample; failures are classified and absorbed,
// never propagated past the orchestrator.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/perflab/querybench/pkg/backend"
	"github.com/perflab/querybench/pkg/bench"
)

// Executor runs one execution attempt of a test definition over a specific
// path. Implementations never return errors: a failed call yields a Sample
// with a non-empty error classification.
type Executor interface {
	// Path identifies the execution path this adapter serves.
	Path() bench.Path

	// Execute performs one timed call. The context bounds graceful
	// shutdown; the definition's own timeout bounds the call itself.
	Execute(ctx context.Context, def *bench.TestDefinition) bench.Sample
}

// Selector maps each execution path to its adapter. The path set is closed;
// construction requires all three variants so dispatch stays exhaustive.
type Selector struct {
	direct   Executor
	mediated Executor
	cached   Executor
}

// NewSelector builds a selector over the three path adapters.
func NewSelector(direct, mediated, cached Executor) *Selector {
	return &Selector{
		direct:   direct,
		mediated: mediated,
		cached:   cached,
	}
}

// For returns the adapter serving the given path.
func (s *Selector) For(p bench.Path) (Executor, error) {
	switch p {
	case bench.PathDirect:
		return s.direct, nil
	case bench.PathMediated:
		return s.mediated, nil
	case bench.PathCached:
		return s.cached, nil
	default:
		return nil, fmt.Errorf("unknown execution path %q", p)
	}
}

// callCtx derives the per-call context from the definition's timeout.
func callCtx(ctx context.Context, def *bench.TestDefinition) (context.Context, context.CancelFunc) {
	if def.Timeout > 0 {
		return context.WithTimeout(ctx, def.Timeout)
	}

	return ctx, func() {}
}

// classify maps a call error to its sample classification.
func classify(err error) bench.ErrorClass {
	if err == nil {
		return bench.ErrorNone
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return bench.ErrorTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return bench.ErrorTimeout
	}

	if errors.Is(err, backend.ErrMalformedResponse) {
		return bench.ErrorMalformedResponse
	}

	return bench.ErrorBackendUnavailable
}

// timed measures one call and builds its sample.
func timed(
	ctx context.Context,
	path bench.Path,
	def *bench.TestDefinition,
	call func(ctx context.Context) (int, error),
) bench.Sample {
	cctx, cancel := callCtx(ctx, def)
	defer cancel()

	start := time.Now()
	rows, err := call(cctx)
	elapsed := time.Since(start)

	return bench.Sample{
		Path:     path,
		Start:    start,
		Duration: elapsed,
		Error:    classify(err),
		Rows:     rows,
	}
}
