// Package catalog builds the category parent->children graph, caches it and
// walks subtrees for recommendations.
package catalog

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrMiss is returned by a Cache when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

type memItem struct {
	val     []byte
	expires time.Time
}

// MemoryCache is a process-local TTL cache used when no Redis is configured.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]memItem
	now   func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string]memItem), now: time.Now}
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	it, ok := m.items[key]
	m.mu.RUnlock()
	if !ok || !m.now().Before(it.expires) {
		return nil, ErrMiss
	}
	return it.val, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	cp := make([]byte, len(val))
	copy(cp, val)
	m.mu.Lock()
	m.items[key] = memItem{val: cp, expires: m.now().Add(ttl)}
	m.mu.Unlock()
	return nil
}
