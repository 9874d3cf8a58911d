package cache

import (
	"context"
	"sync"
	"time"

	"confess.share/internal/models"
)

// Compile-time interface check
var _ Cache = (*MemoryCache)(nil)

type memoryEntry struct {
	value     models.CachedSecret
	expiresAt time.Time
}

// MemoryCache is an in-process Cache. Expired entries are invisible to Get
// and are evicted by a background loop every cleanupInterval.
type MemoryCache struct {
	entries       map[string]memoryEntry
	mu            sync.RWMutex
	now           func() time.Time
	cleanupCancel context.CancelFunc
}

func NewMemoryCache(cleanupInterval time.Duration) *MemoryCache {
	ctx, cancel := context.WithCancel(context.Background())
	c := &MemoryCache{
		entries:       make(map[string]memoryEntry),
		now:           time.Now,
		cleanupCancel: cancel,
	}
	go c.cleanupLoop(ctx, cleanupInterval)
	return c
}

func (c *MemoryCache) Set(ctx context.Context, id string, entry *models.CachedSecret, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[id] = memoryEntry{value: *entry, expiresAt: c.now().Add(ttl)}
	return nil
}

func (c *MemoryCache) Get(ctx context.Context, id string) (*models.CachedSecret, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[id]
	if !ok || !c.now().Before(e.expiresAt) {
		return nil, ErrMiss
	}

	v := e.value
	return &v, nil
}

func (c *MemoryCache) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, id)
	return nil
}

func (c *MemoryCache) Ping(ctx context.Context) error { return ctx.Err() }

func (c *MemoryCache) Close() error {
	if c.cleanupCancel != nil {
		c.cleanupCancel()
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]memoryEntry)
	return nil
}

func (c *MemoryCache) cleanupLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

func (c *MemoryCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for id, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, id)
		}
	}
}

func (c *MemoryCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
