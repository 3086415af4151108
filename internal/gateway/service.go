// Package gateway is the scoring front door. It runs the full pipeline for
// a transaction (feature assembly, model scoring, override policy) and fans
// the verdict out to the result cache, the audit ledger, the event bus and
// connected realtime clients.
//
// Persistence and delivery are best effort: a cache, ledger or broker
// failure is logged and counted but never blocks the verdict. The only
// errors callers see are invalid input and scoring failures.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fraudsentry/fraudsentry/internal/cache"
	"github.com/fraudsentry/fraudsentry/internal/events"
	"github.com/fraudsentry/fraudsentry/internal/features"
	"github.com/fraudsentry/fraudsentry/internal/fraud"
	"github.com/fraudsentry/fraudsentry/internal/ledger"
	"github.com/fraudsentry/fraudsentry/internal/metrics"
	"github.com/fraudsentry/fraudsentry/internal/realtime"
	"github.com/fraudsentry/fraudsentry/internal/scorer"
	"github.com/fraudsentry/fraudsentry/internal/traces"
)

// Service wires the scoring pipeline to its dependencies.
type Service struct {
	assembler *features.Assembler
	adapter   *scorer.Adapter
	cache     cache.Cache
	ledger    *ledger.Ledger
	users     features.Store
	publisher events.Publisher
	hub       *realtime.Hub
	cacheTTL  time.Duration
	logger    *slog.Logger
}

// NewService creates the scoring service.
func NewService(assembler *features.Assembler, adapter *scorer.Adapter, c cache.Cache, led *ledger.Ledger, users features.Store, logger *slog.Logger) *Service {
	return &Service{
		assembler: assembler,
		adapter:   adapter,
		cache:     c,
		ledger:    led,
		users:     users,
		publisher: events.NoopPublisher{},
		cacheTTL:  cache.DefaultTTL,
		logger:    logger,
	}
}

// WithPublisher attaches an event publisher for scored transactions.
func (s *Service) WithPublisher(p events.Publisher) *Service {
	if p != nil {
		s.publisher = p
	}
	return s
}

// WithHub attaches a realtime hub for live verdict broadcasts.
func (s *Service) WithHub(h *realtime.Hub) *Service {
	s.hub = h
	return s
}

// WithCacheTTL overrides the result cache expiry.
func (s *Service) WithCacheTTL(d time.Duration) *Service {
	if d > 0 {
		s.cacheTTL = d
	}
	return s
}

// ScoreTransaction runs the stateless scoring pipeline: validate, assemble
// features, score. Nothing is persisted or published, so a transaction_id
// is optional here. Feature store outages degrade to default features
// rather than failing the call.
func (s *Service) ScoreTransaction(ctx context.Context, tx fraud.Transaction) (fraud.ScoringResult, error) {
	start := time.Now()

	ctx, span := traces.StartSpan(ctx, "gateway.score_transaction",
		traces.TransactionID(tx.TransactionID),
		traces.UserID(tx.UserID),
		traces.Amount(tx.Amount),
	)
	defer span.End()

	if err := tx.ValidateScoring(); err != nil {
		return fraud.ScoringResult{}, &fraud.InvalidFeatureError{Reason: err.Error()}
	}

	feats := s.assembler.Assemble(ctx, tx)

	result, err := s.adapter.Score(feats)
	if err != nil {
		return fraud.ScoringResult{}, fmt.Errorf("score transaction %s: %w", tx.TransactionID, err)
	}

	result.TransactionID = tx.TransactionID
	result.ProcessingTimeMs = time.Since(start).Milliseconds()

	verdict := "legit"
	if result.IsFraud {
		verdict = "fraud"
	}
	metrics.TransactionsScoredTotal.WithLabelValues(verdict).Inc()

	return result, nil
}

// ProcessTransaction scores a transaction and records the outcome: the
// verdict is cached, appended to the audit ledger (raising an alert on a
// fraud verdict), published to the event bus and broadcast to realtime
// clients. Each side effect is independent; failures are logged and the
// verdict is still returned.
func (s *Service) ProcessTransaction(ctx context.Context, tx fraud.Transaction) (fraud.ScoringResult, error) {
	ctx, span := traces.StartSpan(ctx, "gateway.process_transaction",
		traces.TransactionID(tx.TransactionID),
		traces.UserID(tx.UserID),
		traces.Amount(tx.Amount),
	)
	defer span.End()

	// The processing path persists by transaction ID, so the full
	// invariants apply here even though scoring alone does not need an ID.
	if err := tx.Validate(); err != nil {
		return fraud.ScoringResult{}, &fraud.InvalidFeatureError{Reason: err.Error()}
	}

	result, err := s.ScoreTransaction(ctx, tx)
	if err != nil {
		return result, err
	}

	if err := s.users.EnsureUser(ctx, tx.UserID); err != nil {
		s.logger.Warn("user upsert failed",
			"user_id", tx.UserID, "error", err)
	}

	if err := s.cache.Put(ctx, tx.TransactionID, result, s.cacheTTL); err != nil {
		metrics.CacheOpsTotal.WithLabelValues("put", "error").Inc()
		s.logger.Warn("result cache write failed",
			"transaction_id", tx.TransactionID, "error", err)
	} else {
		metrics.CacheOpsTotal.WithLabelValues("put", "ok").Inc()
	}

	alert, err := s.ledger.Append(ctx, tx, result)
	if err != nil {
		s.logger.Warn("ledger append failed, verdict not audited",
			"transaction_id", tx.TransactionID, "error", err)
	}

	if err := s.publisher.PublishScored(ctx, tx, result); err != nil {
		s.logger.Warn("event publish failed",
			"transaction_id", tx.TransactionID, "error", err)
	}

	if s.hub != nil {
		s.hub.BroadcastScored(tx, result)
		if alert != nil {
			s.hub.BroadcastAlert(alert)
		}
	}

	return result, nil
}

// TransactionStatus is a recorded verdict, served from cache when fresh.
type TransactionStatus struct {
	TransactionID string         `json:"transaction_id"`
	FraudScore    float64        `json:"fraud_score"`
	IsFraud       bool           `json:"is_fraud"`
	Source        string         `json:"source"`
	CachedAt      *time.Time     `json:"cached_at,omitempty"`
	Transaction   *ledger.Record `json:"transaction,omitempty"`
}

// GetTransaction looks up a previously processed transaction, preferring
// the result cache over the ledger. A cache failure is treated as a miss.
// Returns fraud.ErrNotFound when the transaction was never recorded.
func (s *Service) GetTransaction(ctx context.Context, transactionID string) (*TransactionStatus, error) {
	entry, err := s.cache.Get(ctx, transactionID)
	if err != nil {
		metrics.CacheOpsTotal.WithLabelValues("get", "error").Inc()
		s.logger.Warn("result cache read failed",
			"transaction_id", transactionID, "error", err)
	} else if entry != nil {
		metrics.CacheOpsTotal.WithLabelValues("get", "hit").Inc()
		cachedAt := entry.CachedAt
		return &TransactionStatus{
			TransactionID: transactionID,
			FraudScore:    entry.FraudScore,
			IsFraud:       entry.IsFraud,
			Source:        "cache",
			CachedAt:      &cachedAt,
		}, nil
	} else {
		metrics.CacheOpsTotal.WithLabelValues("get", "miss").Inc()
	}

	rec, err := s.ledger.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	return &TransactionStatus{
		TransactionID: transactionID,
		FraudScore:    rec.FraudScore,
		IsFraud:       rec.IsFraud,
		Source:        "ledger",
		Transaction:   rec,
	}, nil
}

// UserRisk is the stored risk profile for a user.
type UserRisk struct {
	UserID           string  `json:"user_id"`
	RiskScore        float64 `json:"risk_score"`
	TransactionCount int     `json:"transaction_count"`
}

// GetUserRisk returns a user's stored risk score and history size.
// Returns fraud.ErrNotFound for unknown users.
func (s *Service) GetUserRisk(ctx context.Context, userID string) (*UserRisk, error) {
	score, err := s.users.UserRiskScore(ctx, userID)
	if err != nil {
		return nil, err
	}

	count, err := s.users.TransactionCount(ctx, userID)
	if err != nil {
		if !errors.Is(err, fraud.ErrNotFound) {
			s.logger.Warn("transaction count lookup failed",
				"user_id", userID, "error", err)
		}
		count = 0
	}

	return &UserRisk{UserID: userID, RiskScore: score, TransactionCount: count}, nil
}

// ListAlerts returns a user's fraud alerts, newest first.
func (s *Service) ListAlerts(ctx context.Context, userID string, since time.Time, maxAlerts int) ([]*fraud.FraudAlert, error) {
	return s.ledger.ListAlerts(ctx, userID, since, maxAlerts)
}

// ModelVersion reports the active model version.
func (s *Service) ModelVersion() string {
	return s.adapter.Version()
}
