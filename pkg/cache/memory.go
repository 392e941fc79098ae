package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// DefaultCleanupInterval is how often expired in-memory entries are purged.
const DefaultCleanupInterval = 10 * time.Minute

// Memory is an in-process cache. Entries are lost on restart.
type Memory struct {
	cache *gocache.Cache
}

// NewMemory creates an in-memory cache whose entries expire after
// defaultTTL unless Set is given an explicit ttl. A zero defaultTTL keeps
// entries until they are deleted.
func NewMemory(defaultTTL time.Duration) Cache {
	exp := defaultTTL
	if exp <= 0 {
		exp = gocache.NoExpiration
	}
	return &Memory{cache: gocache.New(exp, DefaultCleanupInterval)}
}

// Get retrieves a value from the cache.
func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok := m.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	data, ok := v.([]byte)
	if !ok {
		m.cache.Delete(key)
		return nil, false, nil
	}
	return data, true, nil
}

// Set stores a copy of data so later mutation by the caller is not visible.
func (m *Memory) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	exp := gocache.DefaultExpiration
	if ttl > 0 {
		exp = ttl
	}
	m.cache.Set(key, append([]byte(nil), data...), exp)
	return nil
}

// Delete removes a value from the cache.
func (m *Memory) Delete(ctx context.Context, key string) error {
	m.cache.Delete(key)
	return nil
}

// Close flushes all entries.
func (m *Memory) Close() error {
	m.cache.Flush()
	return nil
}

var _ Cache = (*Memory)(nil)
