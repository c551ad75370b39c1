// Package backend defines the boundary interfaces to the external systems
// the adapters measure: the relational database, the GraphQL layer in front
// of it, and the cache. The benchmarking core treats all three as opaque;
// only round-trip behavior is observed.
package backend

import (
	"context"
	"errors"
	"time"
)

// ErrMalformedResponse marks a backend reply that arrived but could not be
// interpreted: invalid JSON, a GraphQL error document, an unexpected status.
// Adapters classify it separately from transport failures.
var ErrMalformedResponse = errors.New("malformed backend response")

// Relational executes a raw SQL query and fully materializes the result.
// The returned count is the number of rows read.
type Relational interface {
	Query(ctx context.Context, sql string, params map[string]any) (int, error)
}

// Document is a decoded GraphQL response data document.
type Document map[string]any

// GraphQL executes an operation through the API-mediated protocol.
type GraphQL interface {
	Execute(ctx context.Context, operation string, variables map[string]any) (Document, error)
}

// Cache is a shared external key/value store with per-entry TTLs. The store
// provides its own atomicity for Get/Set; callers do not serialize access.
type Cache interface {
	// Get returns the stored value and whether the key was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key for at most ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
