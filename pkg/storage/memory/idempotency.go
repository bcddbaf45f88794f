package memory

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/platinummonkey/basekeeper/pkg/storage"
)

// IdempotencyCache implements storage.IdempotencyStore with an expiring LRU.
// Entries are lost on restart and are not shared between replicas.
type IdempotencyCache struct {
	mu    sync.Mutex
	cache *lru.LRU[string, *storage.CachedResponse]
}

// NewIdempotencyCache creates a cache holding at most size responses for ttl
func NewIdempotencyCache(size int, ttl time.Duration) *IdempotencyCache {
	if size < 1 {
		size = 1
	}
	return &IdempotencyCache{
		cache: lru.NewLRU[string, *storage.CachedResponse](size, nil, ttl),
	}
}

// Get returns the response stored under key, or nil on a miss
func (c *IdempotencyCache) Get(ctx context.Context, key string) (*storage.CachedResponse, error) {
	resp, ok := c.cache.Get(key)
	if !ok {
		return nil, nil
	}
	return resp, nil
}

// Put stores resp unless key is already present
func (c *IdempotencyCache) Put(ctx context.Context, key string, resp *storage.CachedResponse) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cache.Contains(key) {
		return false, nil
	}
	c.cache.Add(key, resp)
	return true, nil
}

// Len returns the number of live entries
func (c *IdempotencyCache) Len() int {
	return c.cache.Len()
}

var _ storage.IdempotencyStore = (*IdempotencyCache)(nil)
