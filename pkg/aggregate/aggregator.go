package aggregate

import (
	"sort"
	"sync"
	"time"

	"github.com/perflab/querybench/pkg/bench"
)

// Aggregator accumulates timing samples for one run, bucketed per execution
// path. Each bucket carries its own mutex so virtual users on different
// paths never contend with each other.
type Aggregator struct {
	mu      sync.Mutex
	buckets map[bench.Path]*bucket
}

type bucket struct {
	mu        sync.Mutex
	samples   []bench.Sample
	cacheHits int
	failures  int
	latency   welford
}

// New creates an aggregator with a pre-allocated bucket per path. Recording
// against a pre-allocated bucket takes only that bucket's lock.
func New(paths ...bench.Path) *Aggregator {
	a := &Aggregator{
		buckets: make(map[bench.Path]*bucket, len(paths)),
	}

	for _, p := range paths {
		a.buckets[p] = &bucket{}
	}

	return a
}

// Record appends a sample to the path's bucket.
func (a *Aggregator) Record(path bench.Path, s bench.Sample) {
	b := a.bucket(path)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.samples = append(b.samples, s)

	if s.CacheHit {
		b.cacheHits++
	}

	if s.Failed() {
		b.failures++

		return
	}

	b.latency.add(float64(s.Duration))
}

// bucket returns the bucket for path, creating it on the slow path if the
// path was not pre-allocated.
func (a *Aggregator) bucket(path bench.Path) *bucket {
	a.mu.Lock()
	defer a.mu.Unlock()

	b, ok := a.buckets[path]
	if !ok {
		b = &bucket{}
		a.buckets[path] = b
	}

	return b
}

// Count returns the number of samples recorded for path.
func (a *Aggregator) Count(path bench.Path) int {
	b := a.bucket(path)

	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.samples)
}

// Summarize computes the statistical digest for a path. Percentiles use a
// full sort rather than a streaming approximation: runs top out in the low
// millions of samples, where exact nearest-rank selection is affordable and
// reproducible. Calling Summarize twice over an unchanged bucket yields
// bit-identical results.
func (a *Aggregator) Summarize(path bench.Path) *bench.RunSummary {
	b := a.bucket(path)

	b.mu.Lock()

	count := len(b.samples)
	failures := b.failures
	cacheHits := b.cacheHits
	lat := b.latency

	durations := make([]time.Duration, 0, count-failures)

	for _, s := range b.samples {
		if !s.Failed() {
			durations = append(durations, s.Duration)
		}
	}

	b.mu.Unlock()

	successes := count - failures

	summary := &bench.RunSummary{
		Count:     count,
		Successes: successes,
		Failures:  failures,
		CacheHits: cacheHits,
	}

	if count > 0 {
		summary.ErrorRate = float64(failures) / float64(count)
	}

	// Latency percentiles are undefined without at least one success; the
	// digest stays absent rather than reporting zeros.
	if successes == 0 {
		return summary
	}

	sort.Slice(durations, func(i, j int) bool {
		return durations[i] < durations[j]
	})

	summary.Latency = &bench.LatencyStats{
		Min:    durations[0],
		Max:    durations[len(durations)-1],
		Mean:   time.Duration(lat.mean),
		Median: percentile(durations, 50),
		P95:    percentile(durations, 95),
		P99:    percentile(durations, 99),
		StdDev: time.Duration(lat.stddev()),
	}

	return summary
}

// SummarizeAll returns the digest for every bucket that recorded at least
// one sample.
func (a *Aggregator) SummarizeAll() map[bench.Path]*bench.RunSummary {
	a.mu.Lock()

	paths := make([]bench.Path, 0, len(a.buckets))
	for p := range a.buckets {
		paths = append(paths, p)
	}

	a.mu.Unlock()

	out := make(map[bench.Path]*bench.RunSummary, len(paths))

	for _, p := range paths {
		out[p] = a.Summarize(p)
	}

	return out
}
