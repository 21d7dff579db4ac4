package cache

import (
	"context"
	"sync"

	"github.com/example/storefront-sync/internal/domain"
)

// MemoryStateCache keeps serialized store state in process memory. Used by
// tests and the "memory" storage backend.
type MemoryStateCache struct {
	mu    sync.RWMutex
	store map[string][]byte
	// SaveErr, when set, is returned by every Save.
	SaveErr error
}

func NewMemoryStateCache() *MemoryStateCache {
	return &MemoryStateCache{store: make(map[string][]byte)}
}

func (c *MemoryStateCache) Load(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	raw, ok := c.store[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append([]byte(nil), raw...), nil
}

func (c *MemoryStateCache) Save(_ context.Context, key string, raw []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SaveErr != nil {
		return c.SaveErr
	}
	c.store[key] = append([]byte(nil), raw...)
	return nil
}

var _ domain.StateStorage = (*MemoryStateCache)(nil)
