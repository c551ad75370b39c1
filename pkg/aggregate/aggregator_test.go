package aggregate_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perflab/querybench/pkg/aggregate"
	"github.com/perflab/querybench/pkg/bench"
)

func sampleOK(d time.Duration) bench.Sample {
	return bench.Sample{Path: bench.PathDirect, Duration: d}
}

func sampleFail(class bench.ErrorClass) bench.Sample {
	return bench.Sample{Path: bench.PathDirect, Error: class}
}

func TestSummarizeNearestRank(t *testing.T) {
	a := aggregate.New(bench.PathDirect)

	// 100 samples of 1ms..100ms; nearest-rank p-th percentile of this
	// sequence is exactly p milliseconds.
	for i := 100; i >= 1; i-- {
		a.Record(bench.PathDirect, sampleOK(time.Duration(i)*time.Millisecond))
	}

	s := a.Summarize(bench.PathDirect)
	require.NotNil(t, s.Latency)

	assert.Equal(t, 100, s.Count)
	assert.Equal(t, 100, s.Successes)
	assert.Equal(t, time.Millisecond, s.Latency.Min)
	assert.Equal(t, 100*time.Millisecond, s.Latency.Max)
	assert.Equal(t, 50*time.Millisecond, s.Latency.Median)
	assert.Equal(t, 95*time.Millisecond, s.Latency.P95)
	assert.Equal(t, 99*time.Millisecond, s.Latency.P99)
}

func TestSummarizeNearestRankRoundsUp(t *testing.T) {
	a := aggregate.New(bench.PathDirect)

	// n=3: rank(p50) = ceil(1.5) = 2, rank(p95) = ceil(2.85) = 3.
	for _, d := range []time.Duration{10, 20, 30} {
		a.Record(bench.PathDirect, sampleOK(d*time.Millisecond))
	}

	s := a.Summarize(bench.PathDirect)
	require.NotNil(t, s.Latency)
	assert.Equal(t, 20*time.Millisecond, s.Latency.Median)
	assert.Equal(t, 30*time.Millisecond, s.Latency.P95)
	assert.Equal(t, 30*time.Millisecond, s.Latency.P99)
}

func TestSummarizePercentileMonotonicity(t *testing.T) {
	a := aggregate.New(bench.PathMediated)

	durations := []time.Duration{
		7, 3, 19, 3, 42, 8, 1, 99, 56, 23, 5, 17, 4, 88, 12,
	}
	for _, d := range durations {
		a.Record(bench.PathMediated, bench.Sample{
			Path:     bench.PathMediated,
			Duration: d * time.Millisecond,
		})
	}

	s := a.Summarize(bench.PathMediated)
	require.NotNil(t, s.Latency)

	lat := s.Latency
	assert.LessOrEqual(t, lat.Min, lat.Median)
	assert.LessOrEqual(t, lat.Median, lat.P95)
	assert.LessOrEqual(t, lat.P95, lat.P99)
	assert.LessOrEqual(t, lat.P99, lat.Max)
}

func TestSummarizeMeanAndStdDev(t *testing.T) {
	a := aggregate.New(bench.PathDirect)

	for _, d := range []time.Duration{10, 20, 30, 40} {
		a.Record(bench.PathDirect, sampleOK(d*time.Millisecond))
	}

	s := a.Summarize(bench.PathDirect)
	require.NotNil(t, s.Latency)

	assert.Equal(t, 25*time.Millisecond, s.Latency.Mean)

	// Sample stddev of {10,20,30,40}ms is sqrt(500/3) ≈ 12.909944ms.
	want := 12909944 * time.Nanosecond
	assert.InDelta(t, float64(want), float64(s.Latency.StdDev), 1000)
}

func TestSummarizeAllFailures(t *testing.T) {
	a := aggregate.New(bench.PathDirect)

	for i := 0; i < 10; i++ {
		a.Record(bench.PathDirect, sampleFail(bench.ErrorTimeout))
	}

	s := a.Summarize(bench.PathDirect)

	assert.Equal(t, 10, s.Count)
	assert.Equal(t, 0, s.Successes)
	assert.Equal(t, 10, s.Failures)
	assert.Equal(t, 1.0, s.ErrorRate)
	assert.Nil(t, s.Latency, "latency digest must be absent, not zero")
}

func TestSummarizeMixedOutcomes(t *testing.T) {
	a := aggregate.New(bench.PathCached)

	for i := 0; i < 6; i++ {
		a.Record(bench.PathCached, bench.Sample{
			Path:     bench.PathCached,
			Duration: 5 * time.Millisecond,
			CacheHit: true,
		})
	}

	for i := 0; i < 4; i++ {
		a.Record(bench.PathCached, bench.Sample{
			Path:  bench.PathCached,
			Error: bench.ErrorBackendUnavailable,
		})
	}

	s := a.Summarize(bench.PathCached)

	assert.Equal(t, 10, s.Count)
	assert.Equal(t, 6, s.Successes)
	assert.Equal(t, 4, s.Failures)
	assert.Equal(t, 6, s.CacheHits)
	assert.InDelta(t, 0.4, s.ErrorRate, 1e-12)
	require.NotNil(t, s.Latency)
	assert.Equal(t, 5*time.Millisecond, s.Latency.Median)
}

func TestSummarizeIdempotent(t *testing.T) {
	a := aggregate.New(bench.PathDirect)

	durations := []time.Duration{13, 7, 29, 3, 101, 55, 17, 91}
	for _, d := range durations {
		a.Record(bench.PathDirect, sampleOK(d*time.Microsecond))
	}

	first := a.Summarize(bench.PathDirect)
	second := a.Summarize(bench.PathDirect)

	assert.Equal(t, first, second)
}

func TestRecordConcurrentNoLostSamples(t *testing.T) {
	const (
		workers    = 100
		iterations = 1000
	)

	a := aggregate.New(bench.PathDirect)

	var wg sync.WaitGroup
	wg.Add(workers)

	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()

			for i := 0; i < iterations; i++ {
				if i%10 == 9 {
					a.Record(bench.PathDirect, sampleFail(bench.ErrorTimeout))

					continue
				}

				a.Record(bench.PathDirect, sampleOK(time.Duration(i+1)*time.Microsecond))
			}
		}(w)
	}

	wg.Wait()

	s := a.Summarize(bench.PathDirect)

	assert.Equal(t, workers*iterations, s.Count)
	assert.Equal(t, workers*iterations, s.Successes+s.Failures)
	assert.Equal(t, workers*iterations/10, s.Failures)
}

func TestBucketsIndependent(t *testing.T) {
	a := aggregate.New(bench.PathDirect, bench.PathMediated)

	a.Record(bench.PathDirect, sampleOK(time.Millisecond))
	a.Record(bench.PathMediated, sampleOK(2*time.Millisecond))
	a.Record(bench.PathMediated, sampleOK(4*time.Millisecond))

	assert.Equal(t, 1, a.Count(bench.PathDirect))
	assert.Equal(t, 2, a.Count(bench.PathMediated))

	all := a.SummarizeAll()
	require.Len(t, all, 2)
	assert.Equal(t, 1, all[bench.PathDirect].Count)
	assert.Equal(t, 2, all[bench.PathMediated].Count)
}
