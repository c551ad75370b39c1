// Package telemetry exposes Prometheus metrics for benchmark activity.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/perflab/querybench/pkg/bench"
)

// Metrics collects benchmark counters and latency histograms on a private
// registry.
type Metrics struct {
	registry *prometheus.Registry

	queriesTotal  *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec
	cacheOps      *prometheus.CounterVec
	runsTotal     *prometheus.CounterVec
}

// New creates the metric set and registers it together with the standard Go
// and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		queriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "querybench_queries_total",
				Help: "Query executions by path and outcome.",
			},
			[]string{"path", "status"},
		),
		queryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "querybench_query_duration_seconds",
				Help:    "Query latency by execution path.",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 16),
			},
			[]string{"path"},
		),
		cacheOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "querybench_cache_operations_total",
				Help: "Cache lookups on the cached path by result.",
			},
			[]string{"result"},
		),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "querybench_runs_total",
				Help: "Completed benchmark runs by test name.",
			},
			[]string{"test"},
		),
	}

	m.registry.MustRegister(
		m.queriesTotal,
		m.queryDuration,
		m.cacheOps,
		m.runsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// ObserveSample records one executed query sample.
func (m *Metrics) ObserveSample(s bench.Sample) {
	status := "success"
	if s.Failed() {
		status = string(s.Error)
	}

	m.queriesTotal.WithLabelValues(string(s.Path), status).Inc()

	if !s.Failed() {
		m.queryDuration.WithLabelValues(string(s.Path)).
			Observe(s.Duration.Seconds())
	}

	if s.Path == bench.PathCached && !s.Failed() {
		result := "miss"
		if s.CacheHit {
			result = "hit"
		}

		m.cacheOps.WithLabelValues(result).Inc()
	}
}

// ObserveRun records one completed run.
func (m *Metrics) ObserveRun(r *bench.RunResult) {
	m.runsTotal.WithLabelValues(r.TestName).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
