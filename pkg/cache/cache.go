// Package cache provides byte-oriented caches for registry metadata.
//
// Three backends implement [Cache]:
//   - [FileCache]: entries stored as JSON files under a directory (CLI default)
//   - [RedisCache]: entries stored in Redis, shared between machines
//   - [NullCache]: caching disabled
//
// Keys are opaque strings. Use [Namespaced] to prefix keys per data source so
// several consumers can share one backend.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque byte payloads with an optional TTL.
type Cache interface {
	// Get returns the cached payload. A miss is reported as (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A zero ttl means the entry never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Namespaced returns a view of c that prefixes every key with prefix.
func Namespaced(c Cache, prefix string) Cache {
	if c == nil {
		c = NewNullCache()
	}
	return &namespaced{inner: c, prefix: prefix}
}

type namespaced struct {
	inner  Cache
	prefix string
}

func (n *namespaced) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return n.inner.Get(ctx, n.prefix+key)
}

func (n *namespaced) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return n.inner.Set(ctx, n.prefix+key, data, ttl)
}

func (n *namespaced) Delete(ctx context.Context, key string) error {
	return n.inner.Delete(ctx, n.prefix+key)
}

func (n *namespaced) Close() error { return n.inner.Close() }
