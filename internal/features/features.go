// Package features assembles the model input vector for a transaction from
// request fields plus historical lookups against the feature store.
//
// Assembly never fails: every lookup is best-effort and degrades to a
// documented default when the store is slow, unreachable, or has no record
// for the user.
package features

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fraudsentry/fraudsentry/internal/circuitbreaker"
	"github.com/fraudsentry/fraudsentry/internal/fraud"
	"github.com/fraudsentry/fraudsentry/internal/metrics"
)

// Fallback defaults applied when a lookup fails or finds no record.
const (
	DefaultUserRiskScore = 0.5
	DefaultAvgAmount     = 100.0
)

// breakerKey guards all feature store calls as one dependency.
const breakerKey = "feature_store"

// Store provides per-user historical features.
type Store interface {
	// UserRiskScore returns the stored risk score for a user.
	// Returns fraud.ErrNotFound when the user is unknown.
	UserRiskScore(ctx context.Context, userID string) (float64, error)

	// AvgTransactionAmount returns the user's historical average transaction
	// amount. ok is false when the user has no transaction history.
	AvgTransactionAmount(ctx context.Context, userID string) (avg float64, ok bool, err error)

	// TransactionCount returns the number of recorded transactions for a user.
	TransactionCount(ctx context.Context, userID string) (int, error)

	// EnsureUser inserts the user with the default risk score if absent.
	EnsureUser(ctx context.Context, userID string) error
}

// Assembler builds feature vectors, degrading to defaults on store failure.
type Assembler struct {
	store   Store
	breaker *circuitbreaker.Breaker
	timeout time.Duration
	logger  *slog.Logger
}

// NewAssembler creates a feature assembler over the given store.
func NewAssembler(store Store, logger *slog.Logger) *Assembler {
	return &Assembler{
		store:   store,
		breaker: circuitbreaker.New(5, 30*time.Second),
		timeout: 2 * time.Second,
		logger:  logger,
	}
}

// WithTimeout bounds each feature store call. Expiry takes the same
// fallback path as a hard failure.
func (a *Assembler) WithTimeout(d time.Duration) *Assembler {
	if d > 0 {
		a.timeout = d
	}
	return a
}

// WithBreaker replaces the default circuit breaker.
func (a *Assembler) WithBreaker(b *circuitbreaker.Breaker) *Assembler {
	a.breaker = b
	return a
}

// Assemble builds the feature vector for a transaction. It never fails.
//
// Vector layout: [amount, merchant_risk, user_risk_score, amount_to_history_ratio].
// The history count is taken from the request when supplied, else from the
// store, else zero.
func (a *Assembler) Assemble(ctx context.Context, tx fraud.Transaction) fraud.Features {
	riskScore := a.userRiskScore(ctx, tx.UserID)
	ratio := a.amountRatio(ctx, tx.UserID, tx.Amount)

	count := tx.UserHistoryCount
	if count <= 0 {
		count = a.historyCount(ctx, tx.UserID)
	}

	return fraud.Features{
		Vector:       []float64{tx.Amount, tx.MerchantRisk, riskScore, ratio},
		HistoryCount: count,
	}
}

func (a *Assembler) userRiskScore(ctx context.Context, userID string) float64 {
	if !a.breaker.Allow(breakerKey) {
		metrics.FeatureLookupsTotal.WithLabelValues("user_risk_score", "skipped").Inc()
		return DefaultUserRiskScore
	}

	lctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	score, err := a.store.UserRiskScore(lctx, userID)
	switch {
	case errors.Is(err, fraud.ErrNotFound):
		a.breaker.RecordSuccess(breakerKey)
		metrics.FeatureLookupsTotal.WithLabelValues("user_risk_score", "miss").Inc()
		return DefaultUserRiskScore
	case err != nil:
		a.breaker.RecordFailure(breakerKey)
		metrics.FeatureLookupsTotal.WithLabelValues("user_risk_score", "error").Inc()
		a.logger.Warn("user risk lookup failed, using default",
			"user_id", userID, "error", err)
		return DefaultUserRiskScore
	}
	a.breaker.RecordSuccess(breakerKey)
	metrics.FeatureLookupsTotal.WithLabelValues("user_risk_score", "ok").Inc()
	return score
}

func (a *Assembler) amountRatio(ctx context.Context, userID string, amount float64) float64 {
	avg := DefaultAvgAmount

	if !a.breaker.Allow(breakerKey) {
		metrics.FeatureLookupsTotal.WithLabelValues("avg_amount", "skipped").Inc()
	} else {
		lctx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()

		got, ok, err := a.store.AvgTransactionAmount(lctx, userID)
		switch {
		case err != nil:
			a.breaker.RecordFailure(breakerKey)
			metrics.FeatureLookupsTotal.WithLabelValues("avg_amount", "error").Inc()
			a.logger.Warn("avg amount lookup failed, using default",
				"user_id", userID, "error", err)
		case !ok:
			a.breaker.RecordSuccess(breakerKey)
			metrics.FeatureLookupsTotal.WithLabelValues("avg_amount", "miss").Inc()
		default:
			a.breaker.RecordSuccess(breakerKey)
			metrics.FeatureLookupsTotal.WithLabelValues("avg_amount", "ok").Inc()
			avg = got
		}
	}

	// A non-positive average cannot be a divisor.
	if avg <= 0 {
		return 1.0
	}
	return amount / avg
}

func (a *Assembler) historyCount(ctx context.Context, userID string) int {
	if !a.breaker.Allow(breakerKey) {
		metrics.FeatureLookupsTotal.WithLabelValues("history_count", "skipped").Inc()
		return 0
	}

	lctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	count, err := a.store.TransactionCount(lctx, userID)
	if err != nil {
		a.breaker.RecordFailure(breakerKey)
		metrics.FeatureLookupsTotal.WithLabelValues("history_count", "error").Inc()
		a.logger.Warn("history count lookup failed, treating as no history",
			"user_id", userID, "error", err)
		return 0
	}
	a.breaker.RecordSuccess(breakerKey)
	metrics.FeatureLookupsTotal.WithLabelValues("history_count", "ok").Inc()
	return count
}
