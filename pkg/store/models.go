package store

import (
	"time"

	"github.com/perflab/querybench/pkg/bench"
)

// Run is the persisted record of one completed benchmark run. The
// auto-incremented primary key doubles as the monotonic run identifier.
type Run struct {
	ID          uint          `gorm:"primarykey"`
	TestName    string        `gorm:"index"`
	StartedAt   time.Time     `gorm:"index"`
	CompletedAt time.Time     ``
	Summaries   []PathSummary `gorm:"foreignKey:RunID"`
}

// PathSummary is the persisted per-path digest of one run. Latency columns
// are nullable: a path with zero successful samples stores NULLs, never
// zeros.
type PathSummary struct {
	ID    uint   `gorm:"primarykey"`
	RunID uint   `gorm:"index"`
	Path  string `gorm:"index"`

	Count     int
	Successes int
	Failures  int
	ErrorRate float64
	CacheHits int

	MinNS    *int64
	MaxNS    *int64
	MeanNS   *int64
	MedianNS *int64
	P95NS    *int64
	P99NS    *int64
	StdDevNS *int64
}

// newRun converts a finished run result into its persisted form.
func newRun(r *bench.RunResult) *Run {
	run := &Run{
		TestName:    r.TestName,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
		Summaries:   make([]PathSummary, 0, len(r.Summaries)),
	}

	for _, p := range r.Paths() {
		run.Summaries = append(run.Summaries, newPathSummary(p, r.Summaries[p]))
	}

	return run
}

func newPathSummary(p bench.Path, s *bench.RunSummary) PathSummary {
	ps := PathSummary{
		Path:      string(p),
		Count:     s.Count,
		Successes: s.Successes,
		Failures:  s.Failures,
		ErrorRate: s.ErrorRate,
		CacheHits: s.CacheHits,
	}

	if s.Latency != nil {
		ps.MinNS = ns(s.Latency.Min)
		ps.MaxNS = ns(s.Latency.Max)
		ps.MeanNS = ns(s.Latency.Mean)
		ps.MedianNS = ns(s.Latency.Median)
		ps.P95NS = ns(s.Latency.P95)
		ps.P99NS = ns(s.Latency.P99)
		ps.StdDevNS = ns(s.Latency.StdDev)
	}

	return ps
}

func ns(d time.Duration) *int64 {
	v := d.Nanoseconds()

	return &v
}

// toResult converts a persisted run back into the in-memory form.
func (r *Run) toResult() *bench.RunResult {
	out := &bench.RunResult{
		RunID:       uint64(r.ID),
		TestName:    r.TestName,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
		Summaries:   make(map[bench.Path]*bench.RunSummary, len(r.Summaries)),
	}

	for i := range r.Summaries {
		ps := &r.Summaries[i]

		summary := &bench.RunSummary{
			Count:     ps.Count,
			Successes: ps.Successes,
			Failures:  ps.Failures,
			ErrorRate: ps.ErrorRate,
			CacheHits: ps.CacheHits,
		}

		if ps.MeanNS != nil {
			summary.Latency = &bench.LatencyStats{
				Min:    dur(ps.MinNS),
				Max:    dur(ps.MaxNS),
				Mean:   dur(ps.MeanNS),
				Median: dur(ps.MedianNS),
				P95:    dur(ps.P95NS),
				P99:    dur(ps.P99NS),
				StdDev: dur(ps.StdDevNS),
			}
		}

		out.Summaries[bench.Path(ps.Path)] = summary
	}

	return out
}

func dur(v *int64) time.Duration {
	if v == nil {
		return 0
	}

	return time.Duration(*v)
}
