// Package cache provides the TTL-bounded result cache mapping transaction
// IDs to scoring outcomes.
//
// The cache is a performance optimization, not a correctness dependency:
// write failures are logged by the caller and never fail a request, and a
// get on an expired or absent key is a miss, never an error.
package cache

import (
	"context"
	"time"

	"github.com/fraudsentry/fraudsentry/internal/fraud"
)

// KeyPrefix namespaces cache keys in shared stores.
const KeyPrefix = "fraud_result:"

// DefaultTTL is the result cache expiry when none is configured.
const DefaultTTL = time.Hour

// Cache stores scoring outcomes keyed by transaction ID.
//
// Put is idempotent per transaction ID: each ID is scored at most once per
// process lifetime, so a repeated put writes the same payload and readers
// observe the same value. Conflicting concurrent puts for one ID are a
// caller bug; the cache is last-writer-wins.
type Cache interface {
	// Put stores the cacheable subset of a scoring result.
	Put(ctx context.Context, transactionID string, result fraud.ScoringResult, ttl time.Duration) error

	// Get returns the entry for a transaction ID, or (nil, nil) on a miss.
	Get(ctx context.Context, transactionID string) (*fraud.CacheEntry, error)
}
