package bench

import (
	"fmt"
	"time"
)

// Path identifies one of the interchangeable ways a query reaches a backend.
type Path string

const (
	// PathDirect issues the literal SQL query against the relational backend.
	PathDirect Path = "direct"

	// PathMediated issues the equivalent operation through the GraphQL layer.
	PathMediated Path = "mediated"

	// PathCached checks the cache first and delegates on a miss.
	PathCached Path = "cached"
)

// AllPaths lists every supported execution path.
var AllPaths = []Path{PathDirect, PathMediated, PathCached}

// ParsePath converts a string into a Path.
func ParsePath(s string) (Path, error) {
	switch Path(s) {
	case PathDirect, PathMediated, PathCached:
		return Path(s), nil
	default:
		return "", fmt.Errorf("unknown execution path %q", s)
	}
}

// Valid reports whether p is one of the supported paths.
func (p Path) Valid() bool {
	switch p {
	case PathDirect, PathMediated, PathCached:
		return true
	default:
		return false
	}
}

// ErrorClass classifies a failed execution sample. The empty class marks
// a successful sample.
type ErrorClass string

const (
	ErrorNone               ErrorClass = ""
	ErrorTimeout            ErrorClass = "timeout"
	ErrorBackendUnavailable ErrorClass = "backend_unavailable"
	ErrorMalformedResponse  ErrorClass = "malformed_response"
)

// TestDefinition is a named, parameterized benchmark query. Definitions are
// immutable after registration; the catalog hands out copies.
type TestDefinition struct {
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	SQL         string         `json:"sql" yaml:"sql"`
	GraphQL     string         `json:"graphql" yaml:"graphql"`
	Params      map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
	Paths       []Path         `json:"paths,omitempty" yaml:"paths,omitempty"`
	Timeout     time.Duration  `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// SupportsPath reports whether the definition expects the given path.
// A definition with no explicit path set supports all paths.
func (d *TestDefinition) SupportsPath(p Path) bool {
	if len(d.Paths) == 0 {
		return true
	}

	for _, dp := range d.Paths {
		if dp == p {
			return true
		}
	}

	return false
}

// Clone returns a deep copy of the definition.
func (d *TestDefinition) Clone() TestDefinition {
	out := *d

	if d.Params != nil {
		out.Params = make(map[string]any, len(d.Params))
		for k, v := range d.Params {
			out.Params[k] = v
		}
	}

	if d.Paths != nil {
		out.Paths = append([]Path(nil), d.Paths...)
	}

	return out
}

// Sample is one observed execution. It is created by a virtual user
// immediately after an adapter call returns and never mutated afterwards.
type Sample struct {
	Path     Path          `json:"path"`
	Start    time.Time     `json:"start"`
	Duration time.Duration `json:"duration_ns"`
	Error    ErrorClass    `json:"error,omitempty"`
	CacheHit bool          `json:"cache_hit,omitempty"`
	Rows     int           `json:"rows,omitempty"`
}

// Failed reports whether the sample recorded a failed call.
func (s Sample) Failed() bool {
	return s.Error != ErrorNone
}

// LatencyStats holds the latency digest of the successful samples for one
// path. It is absent from a RunSummary when the path had zero successes.
type LatencyStats struct {
	Min    time.Duration `json:"min_ns"`
	Max    time.Duration `json:"max_ns"`
	Mean   time.Duration `json:"mean_ns"`
	Median time.Duration `json:"median_ns"`
	P95    time.Duration `json:"p95_ns"`
	P99    time.Duration `json:"p99_ns"`
	StdDev time.Duration `json:"stddev_ns"`
}

// RunSummary is the statistical digest of all samples for one path in one
// run. It is recomputed wholesale from the sample set, never mutated.
type RunSummary struct {
	Count     int           `json:"count"`
	Successes int           `json:"successes"`
	Failures  int           `json:"failures"`
	ErrorRate float64       `json:"error_rate"`
	CacheHits int           `json:"cache_hits,omitempty"`
	Latency   *LatencyStats `json:"latency,omitempty"`
}

// RunResult binds a test name to the per-path summaries of one completed
// run. It is written once, after the run's concurrency group has drained.
type RunResult struct {
	RunID       uint64               `json:"run_id"`
	TestName    string               `json:"test_name"`
	StartedAt   time.Time            `json:"started_at"`
	CompletedAt time.Time            `json:"completed_at"`
	Summaries   map[Path]*RunSummary `json:"summaries"`
}

// Paths returns the paths exercised by the run in a stable order.
func (r *RunResult) Paths() []Path {
	out := make([]Path, 0, len(r.Summaries))

	for _, p := range AllPaths {
		if _, ok := r.Summaries[p]; ok {
			out = append(out, p)
		}
	}

	return out
}
