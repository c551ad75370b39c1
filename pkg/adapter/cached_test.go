package adapter_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perflab/querybench/pkg/adapter"
	"github.com/perflab/querybench/pkg/bench"
)

// fakeCache is an in-memory backend.Cache with TTL bookkeeping under a
// controllable clock.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string]fakeEntry
	now     time.Time
	getErr  error
	setErr  error
	sets    int
}

type fakeEntry struct {
	value   []byte
	expires time.Time
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		entries: make(map[string]fakeEntry),
		now:     time.Now(),
	}
}

func (f *fakeCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getErr != nil {
		return nil, false, f.getErr
	}

	e, ok := f.entries[key]
	if !ok || f.now.After(e.expires) {
		return nil, false, nil
	}

	return e.value, true, nil
}

func (f *fakeCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sets++

	if f.setErr != nil {
		return f.setErr
	}

	f.entries[key] = fakeEntry{value: value, expires: f.now.Add(ttl)}

	return nil
}

func (f *fakeCache) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.now = f.now.Add(d)
}

func TestCacheKeyDeterministic(t *testing.T) {
	a := adapter.CacheKey("customer_orders", map[string]any{
		"customer_id": "ALFKI",
		"limit":       10,
	})
	b := adapter.CacheKey("customer_orders", map[string]any{
		"limit":       10,
		"customer_id": "ALFKI",
	})

	assert.Equal(t, a, b)
	assert.Contains(t, a, "query:")
}

func TestCacheKeyDistinguishes(t *testing.T) {
	base := adapter.CacheKey("customer_orders", map[string]any{"customer_id": "ALFKI"})

	assert.NotEqual(t, base,
		adapter.CacheKey("customer_orders", map[string]any{"customer_id": "ANATR"}))
	assert.NotEqual(t, base,
		adapter.CacheKey("order_aggregation", map[string]any{"customer_id": "ALFKI"}))
}

func TestCachedMissThenHit(t *testing.T) {
	cache := newFakeCache()
	db := &fakeRelational{rows: 7}
	c := adapter.NewCached(testLogger(), cache, adapter.NewDirect(testLogger(), db), time.Minute)

	def := bench.TestDefinition{Name: "simple_select", SQL: "SELECT 1"}

	miss := c.Execute(context.Background(), &def)
	require.False(t, miss.Failed())
	assert.Equal(t, bench.PathCached, miss.Path)
	assert.False(t, miss.CacheHit)
	assert.Equal(t, 7, miss.Rows)
	assert.Equal(t, 1, db.calls)

	hit := c.Execute(context.Background(), &def)
	require.False(t, hit.Failed())
	assert.True(t, hit.CacheHit)
	assert.Equal(t, 7, hit.Rows)
	assert.Equal(t, 1, db.calls, "hit must not touch the backend")
}

func TestCachedExpiry(t *testing.T) {
	cache := newFakeCache()
	db := &fakeRelational{rows: 3}
	ttl := 300 * time.Second
	c := adapter.NewCached(testLogger(), cache, adapter.NewDirect(testLogger(), db), ttl)

	def := bench.TestDefinition{Name: "pagination_test", SQL: "SELECT 1"}

	c.Execute(context.Background(), &def)
	require.Equal(t, 1, db.calls)

	cache.advance(ttl + time.Second)

	s := c.Execute(context.Background(), &def)
	assert.False(t, s.CacheHit)
	assert.Equal(t, 2, db.calls, "expired entry must re-run the delegate")
}

func TestCachedFailedDelegateNotStored(t *testing.T) {
	cache := newFakeCache()
	db := &fakeRelational{err: errors.New("down")}
	c := adapter.NewCached(testLogger(), cache, adapter.NewDirect(testLogger(), db), time.Minute)

	def := bench.TestDefinition{Name: "simple_select", SQL: "SELECT 1"}

	s := c.Execute(context.Background(), &def)
	require.True(t, s.Failed())
	assert.Equal(t, bench.PathCached, s.Path)
	assert.Zero(t, cache.sets, "failures must not populate the cache")
}

func TestCachedBrokenCacheIsMiss(t *testing.T) {
	cache := newFakeCache()
	cache.getErr = errors.New("cache unreachable")

	db := &fakeRelational{rows: 9}
	c := adapter.NewCached(testLogger(), cache, adapter.NewDirect(testLogger(), db), time.Minute)

	def := bench.TestDefinition{Name: "simple_select", SQL: "SELECT 1"}

	s := c.Execute(context.Background(), &def)
	require.False(t, s.Failed())
	assert.False(t, s.CacheHit)
	assert.Equal(t, 9, s.Rows)
	assert.Equal(t, 1, db.calls)
}
