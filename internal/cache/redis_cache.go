package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fraudsentry/fraudsentry/internal/fraud"
	"github.com/fraudsentry/fraudsentry/internal/retry"
)

// RedisCache implements Cache over Redis with per-key expiry.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a Redis-backed result cache.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Ping checks connectivity, for health checks.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Put(ctx context.Context, transactionID string, result fraud.ScoringResult, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	entry := fraud.CacheEntry{
		FraudScore: result.FraudScore,
		IsFraud:    result.IsFraud,
		CachedAt:   time.Now().UTC(),
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	// The write is idempotent per ID, so transient redis errors are retried.
	err = retry.Do(ctx, 3, 50*time.Millisecond, func() error {
		return c.client.Set(ctx, KeyPrefix+transactionID, payload, ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("cache set %s: %w", transactionID, err)
	}
	return nil
}

func (c *RedisCache) Get(ctx context.Context, transactionID string) (*fraud.CacheEntry, error) {
	value, err := c.client.Get(ctx, KeyPrefix+transactionID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get %s: %w", transactionID, err)
	}

	entry := &fraud.CacheEntry{}
	if err := json.Unmarshal([]byte(value), entry); err != nil {
		return nil, fmt.Errorf("decode cache entry %s: %w", transactionID, err)
	}
	return entry, nil
}
