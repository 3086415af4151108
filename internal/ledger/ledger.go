// Package ledger is the durable, append-only record of every scored
// transaction. It is also the read path for fraud alerts: fraudulent
// verdicts raise an alert through a side-channel at append time, and the
// alert stream reads them back newest first.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fraudsentry/fraudsentry/internal/fraud"
	"github.com/fraudsentry/fraudsentry/internal/idgen"
	"github.com/fraudsentry/fraudsentry/internal/metrics"
)

// DefaultMaxAlerts bounds alert reads when the caller does not.
const DefaultMaxAlerts = 100

// AlertTypeModelDetection marks alerts raised by the scoring pipeline.
const AlertTypeModelDetection = "ml_detection"

// Record is a persisted transaction with its verdict.
type Record struct {
	fraud.Transaction
	FraudScore float64 `json:"fraud_score"`
	IsFraud    bool    `json:"is_fraud"`
}

// Store persists transactions and alerts.
type Store interface {
	// AppendTransaction durably records a transaction and its verdict.
	// Keyed by transaction ID; appends for an already-recorded ID fail.
	AppendTransaction(ctx context.Context, tx fraud.Transaction, result fraud.ScoringResult) error

	// GetTransaction returns a recorded transaction, or fraud.ErrNotFound.
	GetTransaction(ctx context.Context, transactionID string) (*Record, error)

	// CreateAlert stores a fraud alert.
	CreateAlert(ctx context.Context, alert *fraud.FraudAlert) error

	// ListAlerts returns a user's alerts created after since, newest first,
	// bounded by maxAlerts.
	ListAlerts(ctx context.Context, userID string, since time.Time, maxAlerts int) ([]*fraud.FraudAlert, error)
}

// Ledger wraps a Store with the alert side-channel and audit accounting.
// Safe for concurrent use; the store serializes access internally.
type Ledger struct {
	store   Store
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a ledger over the given store.
func New(store Store, logger *slog.Logger) *Ledger {
	return &Ledger{store: store, timeout: 2 * time.Second, logger: logger}
}

// WithTimeout bounds each store call.
func (l *Ledger) WithTimeout(d time.Duration) *Ledger {
	if d > 0 {
		l.timeout = d
	}
	return l
}

// Append records a scored transaction. When the verdict is fraudulent it
// also raises an alert; a failed alert write is logged but does not fail
// the append. The returned alert is nil for legitimate transactions.
//
// An append failure is an audit gap: the scoring response still goes out,
// and callers needing durability must retry outside this path.
func (l *Ledger) Append(ctx context.Context, tx fraud.Transaction, result fraud.ScoringResult) (*fraud.FraudAlert, error) {
	actx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	if err := l.store.AppendTransaction(actx, tx, result); err != nil {
		metrics.LedgerAppendFailuresTotal.Inc()
		return nil, fmt.Errorf("append transaction %s: %w", tx.TransactionID, err)
	}

	if !result.IsFraud {
		return nil, nil
	}

	alert := NewAlert(tx, result)
	cctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	if err := l.store.CreateAlert(cctx, alert); err != nil {
		l.logger.Warn("failed to store fraud alert",
			"transaction_id", tx.TransactionID, "error", err)
		return nil, nil
	}
	return alert, nil
}

// GetTransaction returns a recorded transaction.
func (l *Ledger) GetTransaction(ctx context.Context, transactionID string) (*Record, error) {
	gctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	return l.store.GetTransaction(gctx, transactionID)
}

// ListAlerts returns a user's alerts newest first. maxAlerts defaults to
// DefaultMaxAlerts when non-positive.
func (l *Ledger) ListAlerts(ctx context.Context, userID string, since time.Time, maxAlerts int) ([]*fraud.FraudAlert, error) {
	if maxAlerts <= 0 {
		maxAlerts = DefaultMaxAlerts
	}
	lctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	return l.store.ListAlerts(lctx, userID, since, maxAlerts)
}

// NewAlert builds the alert raised for a fraudulent verdict.
func NewAlert(tx fraud.Transaction, result fraud.ScoringResult) *fraud.FraudAlert {
	desc := fmt.Sprintf("transaction %s flagged with score %.2f", tx.TransactionID, result.FraudScore)
	if len(result.RiskFactors) > 0 {
		desc += ": " + strings.Join(result.RiskFactors, ", ")
	}
	return &fraud.FraudAlert{
		AlertID:         idgen.WithPrefix("alert_"),
		TransactionID:   tx.TransactionID,
		UserID:          tx.UserID,
		AlertType:       AlertTypeModelDetection,
		Severity:        severityFor(result.FraudScore),
		Description:     desc,
		ConfidenceScore: result.Confidence,
		CreatedAt:       time.Now().UTC(),
	}
}

func severityFor(score float64) string {
	switch {
	case score >= 0.9:
		return fraud.SeverityCritical
	case score >= 0.7:
		return fraud.SeverityHigh
	default:
		return fraud.SeverityMedium
	}
}
