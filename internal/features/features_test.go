package features

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fraudsentry/fraudsentry/internal/circuitbreaker"
	"github.com/fraudsentry/fraudsentry/internal/fraud"
)

// failingStore errors on every lookup.
type failingStore struct{}

var errStoreDown = errors.New("connection refused")

func (failingStore) UserRiskScore(context.Context, string) (float64, error) {
	return 0, errStoreDown
}
func (failingStore) AvgTransactionAmount(context.Context, string) (float64, bool, error) {
	return 0, false, errStoreDown
}
func (failingStore) TransactionCount(context.Context, string) (int, error) {
	return 0, errStoreDown
}
func (failingStore) EnsureUser(context.Context, string) error {
	return errStoreDown
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func tx(userID string, amount float64) fraud.Transaction {
	return fraud.Transaction{
		TransactionID: "tx_1",
		UserID:        userID,
		Amount:        amount,
		MerchantRisk:  0.4,
	}
}

func TestAssemble_KnownUser(t *testing.T) {
	store := NewMemoryStore()
	store.SetUserRisk("u1", 0.7)
	store.RecordAmount("u1", 100)
	store.RecordAmount("u1", 300)

	a := NewAssembler(store, testLogger())
	f := a.Assemble(context.Background(), tx("u1", 400))

	require.Len(t, f.Vector, fraud.FeatureCount)
	assert.Equal(t, 400.0, f.Vector[fraud.FeatureAmount])
	assert.Equal(t, 0.4, f.Vector[fraud.FeatureMerchantRisk])
	assert.Equal(t, 0.7, f.Vector[fraud.FeatureUserRiskScore])
	assert.InDelta(t, 2.0, f.Vector[fraud.FeatureAmountRatio], 1e-9, "400 / avg(100,300)")
	assert.Equal(t, 2, f.HistoryCount)
}

func TestAssemble_UnknownUserGetsDefaults(t *testing.T) {
	a := NewAssembler(NewMemoryStore(), testLogger())
	f := a.Assemble(context.Background(), tx("nobody", 250))

	assert.Equal(t, DefaultUserRiskScore, f.Vector[fraud.FeatureUserRiskScore])
	assert.InDelta(t, 2.5, f.Vector[fraud.FeatureAmountRatio], 1e-9, "amount over the default average")
	assert.Equal(t, 0, f.HistoryCount)
}

func TestAssemble_StoreFailureDegradesToDefaults(t *testing.T) {
	a := NewAssembler(failingStore{}, testLogger())
	f := a.Assemble(context.Background(), tx("u1", 500))

	require.Len(t, f.Vector, fraud.FeatureCount)
	assert.Equal(t, DefaultUserRiskScore, f.Vector[fraud.FeatureUserRiskScore])
	assert.InDelta(t, 5.0, f.Vector[fraud.FeatureAmountRatio], 1e-9)
	assert.Equal(t, 0, f.HistoryCount)
}

func TestAssemble_RequestHistoryCountWins(t *testing.T) {
	store := NewMemoryStore()
	store.RecordAmount("u1", 100)

	a := NewAssembler(store, testLogger())

	in := tx("u1", 100)
	in.UserHistoryCount = 42
	f := a.Assemble(context.Background(), in)

	assert.Equal(t, 42, f.HistoryCount, "caller-supplied count is authoritative")
}

func TestAssemble_OpenBreakerSkipsLookups(t *testing.T) {
	breaker := circuitbreaker.New(1, time.Minute)
	a := NewAssembler(failingStore{}, testLogger()).WithBreaker(breaker)

	// First assembly records failures and trips the breaker.
	a.Assemble(context.Background(), tx("u1", 100))
	require.Equal(t, circuitbreaker.StateOpen, breaker.State("feature_store"))

	// Subsequent assemblies still produce a full default vector.
	f := a.Assemble(context.Background(), tx("u1", 100))
	assert.Equal(t, DefaultUserRiskScore, f.Vector[fraud.FeatureUserRiskScore])
	assert.InDelta(t, 1.0, f.Vector[fraud.FeatureAmountRatio], 1e-9)
}

func TestMemoryStore_EnsureUser(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.EnsureUser(ctx, "u1"))
	score, err := store.UserRiskScore(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, DefaultUserRiskScore, score)

	// Upsert must not clobber an existing score.
	store.SetUserRisk("u1", 0.9)
	require.NoError(t, store.EnsureUser(ctx, "u1"))
	score, err = store.UserRiskScore(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0.9, score)
}
