// Package cache provides byte caches used to avoid re-downloading overlays.
//
// Three backends implement [Cache]:
//   - [NullCache]: caching disabled (the default)
//   - [Memory]: in-process cache backed by github.com/patrickmn/go-cache
//   - [FileCache]: on-disk cache that survives restarts
//
// [Scoped] prefixes keys and reports hits and misses to the observability
// hooks, so callers normally wrap a backend with it:
//
//	c := cache.NewScoped(cache.NewMemory(time.Minute), "overlay")
//	if data, hit, _ := c.Get(ctx, url); hit {
//	    return data, nil
//	}
package cache

import (
	"context"
	"fmt"
	"time"
)

// Backend names accepted by [New].
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendFile   = "file"
)

// Cache stores opaque byte slices with an optional TTL.
type Cache interface {
	// Get returns the value for key and whether it was found.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A zero ttl means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the cache.
	Close() error
}

// New creates a cache backend by name. dir is only used by the file backend.
func New(backend, dir string, ttl time.Duration) (Cache, error) {
	switch backend {
	case "", BackendNone:
		return NewNullCache(), nil
	case BackendMemory:
		return NewMemory(ttl), nil
	case BackendFile:
		return NewFileCache(dir)
	default:
		return nil, fmt.Errorf("unknown cache backend %q (must be one of: none, memory, file)", backend)
	}
}
