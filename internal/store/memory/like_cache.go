package memory

import (
	"context"
	"sync"
	"time"
)

// cachedCount is one cache entry with its expiry.
type cachedCount struct {
	count     int
	expiresAt time.Time
}

// LikeCountCache is an in-memory implementation of store.LikeCountCache.
type LikeCountCache struct {
	mu     sync.Mutex
	counts map[string]cachedCount
}

// NewLikeCountCache creates a new in-memory like-count cache.
func NewLikeCountCache() *LikeCountCache {
	return &LikeCountCache{
		counts: make(map[string]cachedCount),
	}
}

// Get returns the cached count and whether it was present and unexpired.
func (c *LikeCountCache) Get(ctx context.Context, noteID string) (int, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.counts[noteID]
	if !ok {
		return 0, false, nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.counts, noteID)
		return 0, false, nil
	}
	return entry.count, true, nil
}

// Set stores the count with the given TTL.
func (c *LikeCountCache) Set(ctx context.Context, noteID string, count int, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.counts[noteID] = cachedCount{
		count:     count,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Invalidate drops the cached count for a note.
func (c *LikeCountCache) Invalidate(ctx context.Context, noteID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.counts, noteID)
	return nil
}
