package cache

import (
	"context"
	"sync"
	"time"

	"github.com/fraudsentry/fraudsentry/internal/fraud"
)

type memoryEntry struct {
	entry     fraud.CacheEntry
	expiresAt time.Time
}

// MemoryCache is an in-memory result cache for demo/development mode.
// Expired entries are dropped lazily on read.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCache creates an in-memory result cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// WithClock overrides the time source (for expiry tests).
func (c *MemoryCache) WithClock(now func() time.Time) *MemoryCache {
	c.now = now
	return c
}

func (c *MemoryCache) Put(_ context.Context, transactionID string, result fraud.ScoringResult, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	ts := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[transactionID] = memoryEntry{
		entry: fraud.CacheEntry{
			FraudScore: result.FraudScore,
			IsFraud:    result.IsFraud,
			CachedAt:   ts,
		},
		expiresAt: ts.Add(ttl),
	}
	return nil
}

func (c *MemoryCache) Get(_ context.Context, transactionID string) (*fraud.CacheEntry, error) {
	c.mu.RLock()
	e, ok := c.entries[transactionID]
	c.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	if c.now().After(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, transactionID)
		c.mu.Unlock()
		return nil, nil
	}
	cp := e.entry
	return &cp, nil
}
