package adapter

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/perflab/querybench/pkg/backend"
	"github.com/perflab/querybench/pkg/bench"
)

// cachedEntry is the stored representation of a previously executed query.
type cachedEntry struct {
	TestName string `json:"test_name"`
	Rows     int    `json:"rows"`
	CachedAt int64  `json:"cached_at"`
}

// Cached checks the cache before touching a backend. A hit reports the
// cache retrieval time; a miss delegates to the configured fallback path
// and reports the miss-path duration as the sample, then stores the result
// with a TTL. Storing happens outside the timed window.
type Cached struct {
	log      logrus.FieldLogger
	cache    backend.Cache
	delegate Executor
	ttl      time.Duration
}

// Compile-time interface check.
var _ Executor = (*Cached)(nil)

// NewCached creates the cache-augmented adapter. delegate serves misses and
// is either the Direct or the Mediated adapter.
func NewCached(
	log logrus.FieldLogger,
	cache backend.Cache,
	delegate Executor,
	ttl time.Duration,
) *Cached {
	return &Cached{
		log:      log.WithField("component", "adapter.cached"),
		cache:    cache,
		delegate: delegate,
		ttl:      ttl,
	}
}

// Path implements Executor.
func (c *Cached) Path() bench.Path {
	return bench.PathCached
}

// Execute implements Executor.
func (c *Cached) Execute(ctx context.Context, def *bench.TestDefinition) bench.Sample {
	key := CacheKey(def.Name, def.Params)

	cctx, cancel := callCtx(ctx, def)
	defer cancel()

	start := time.Now()
	val, ok, err := c.cache.Get(cctx, key)
	elapsed := time.Since(start)

	if err != nil {
		// A broken cache lookup counts as a miss; the delegate still
		// measures the backend.
		c.log.WithError(err).Debug("Cache lookup failed, treating as miss")
	}

	if err == nil && ok {
		sample := bench.Sample{
			Path:     bench.PathCached,
			Start:    start,
			Duration: elapsed,
			CacheHit: true,
		}

		var entry cachedEntry
		if jsonErr := json.Unmarshal(val, &entry); jsonErr == nil {
			sample.Rows = entry.Rows
		}

		return sample
	}

	sample := c.delegate.Execute(ctx, def)
	sample.Path = bench.PathCached

	if !sample.Failed() {
		c.store(ctx, key, def, sample.Rows)
	}

	return sample
}

// store writes the executed result back to the cache. Failures are logged,
// not surfaced: an unwritable cache degrades hit rate, nothing else.
func (c *Cached) store(ctx context.Context, key string, def *bench.TestDefinition, rows int) {
	entry, err := json.Marshal(cachedEntry{
		TestName: def.Name,
		Rows:     rows,
		CachedAt: time.Now().Unix(),
	})
	if err != nil {
		return
	}

	if err := c.cache.Set(ctx, key, entry, c.ttl); err != nil {
		c.log.WithError(err).Debug("Cache store failed")
	}
}
