package cache

import (
	"context"
	"time"

	"github.com/matzehuels/mockup/pkg/observability"
)

// Scoped wraps a Cache with a key namespace and reports hits, misses and
// writes to [observability.Cache] under that namespace.
//
// Keys are hashed, so arbitrary strings such as URLs are safe to use:
//
//	overlays := cache.NewScoped(cache.NewMemory(0), "overlay")
//	overlays.Set(ctx, "https://cdn.example.com/stamp.png", data, time.Hour)
type Scoped struct {
	inner     Cache
	namespace string
}

// NewScoped creates a namespaced view of inner. A nil inner disables caching.
func NewScoped(inner Cache, namespace string) *Scoped {
	if inner == nil {
		inner = NewNullCache()
	}
	return &Scoped{inner: inner, namespace: namespace}
}

// Key returns the backend key used for k.
func (s *Scoped) Key(k string) string {
	return s.namespace + ":" + Hash([]byte(k))
}

// Get retrieves a value and records a hit or miss.
func (s *Scoped) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, hit, err := s.inner.Get(ctx, s.Key(key))
	if err == nil {
		if hit {
			observability.Cache().OnCacheHit(ctx, s.namespace)
		} else {
			observability.Cache().OnCacheMiss(ctx, s.namespace)
		}
	}
	return data, hit, err
}

// Set stores a value and records the write.
func (s *Scoped) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := s.inner.Set(ctx, s.Key(key), data, ttl); err != nil {
		return err
	}
	observability.Cache().OnCacheSet(ctx, s.namespace, len(data))
	return nil
}

// Delete removes a value.
func (s *Scoped) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, s.Key(key))
}

// Close closes the underlying cache.
func (s *Scoped) Close() error {
	return s.inner.Close()
}

var _ Cache = (*Scoped)(nil)
