package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fraudsentry/fraudsentry/internal/fraud"
)

func TestMemoryCache_PutAndGet(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	result := fraud.ScoringResult{
		TransactionID: "tx_1",
		FraudScore:    0.92,
		IsFraud:       true,
		RiskFactors:   []string{"high_amount"},
	}
	require.NoError(t, c.Put(ctx, "tx_1", result, time.Minute))

	entry, err := c.Get(ctx, "tx_1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 0.92, entry.FraudScore)
	assert.True(t, entry.IsFraud)
	assert.False(t, entry.CachedAt.IsZero())
}

func TestMemoryCache_MissIsNilNil(t *testing.T) {
	c := NewMemoryCache()

	entry, err := c.Get(context.Background(), "unknown")
	assert.NoError(t, err)
	assert.Nil(t, entry)
}

func TestMemoryCache_RepeatedPutIsStable(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	result := fraud.ScoringResult{TransactionID: "tx_1", FraudScore: 0.4}
	require.NoError(t, c.Put(ctx, "tx_1", result, time.Minute))
	require.NoError(t, c.Put(ctx, "tx_1", result, time.Minute))

	entry, err := c.Get(ctx, "tx_1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 0.4, entry.FraudScore)
}

func TestMemoryCache_Expiry(t *testing.T) {
	now := time.Now()
	clock := &now
	c := NewMemoryCache().WithClock(func() time.Time { return *clock })
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "tx_1", fraud.ScoringResult{FraudScore: 0.1}, time.Hour))

	// Still there just before expiry.
	later := now.Add(time.Hour)
	clock = &later
	entry, err := c.Get(ctx, "tx_1")
	require.NoError(t, err)
	assert.NotNil(t, entry)

	// Gone after.
	expired := now.Add(time.Hour + time.Second)
	clock = &expired
	entry, err = c.Get(ctx, "tx_1")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestMemoryCache_ZeroTTLUsesDefault(t *testing.T) {
	now := time.Now()
	clock := &now
	c := NewMemoryCache().WithClock(func() time.Time { return *clock })
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "tx_1", fraud.ScoringResult{}, 0))

	later := now.Add(DefaultTTL - time.Second)
	clock = &later
	entry, err := c.Get(ctx, "tx_1")
	require.NoError(t, err)
	assert.NotNil(t, entry)
}
