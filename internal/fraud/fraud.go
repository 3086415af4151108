// Package fraud defines the domain types shared by the scoring pipeline:
// transactions, feature vectors, scoring results, cache entries, and alerts.
package fraud

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by stores when a record does not exist.
var ErrNotFound = errors.New("record not found")

// InvalidFeatureError reports a malformed feature vector (wrong length or
// non-finite value). It is surfaced to the caller as a request failure.
type InvalidFeatureError struct {
	Reason string
}

func (e *InvalidFeatureError) Error() string {
	return "invalid feature vector: " + e.Reason
}

// FeatureCount is the number of model inputs per transaction.
const FeatureCount = 4

// Feature vector positions. Order matters: it must match the fitted
// scaling transform and the model's training layout.
const (
	FeatureAmount = iota
	FeatureMerchantRisk
	FeatureUserRiskScore
	FeatureAmountRatio
)

// Transaction is a single financial event submitted for fraud evaluation.
// Immutable once received.
type Transaction struct {
	TransactionID string    `json:"transaction_id"`
	UserID        string    `json:"user_id"`
	Amount        float64   `json:"amount"`
	Timestamp     time.Time `json:"timestamp"`
	MerchantID    string    `json:"merchant_id"`
	MerchantRisk  float64   `json:"merchant_risk"`

	// UserHistoryCount is the caller-supplied transaction count for the user.
	// Zero means unknown; the feature assembler resolves it from the feature
	// store in that case. Not persisted.
	UserHistoryCount int `json:"user_history_count,omitempty"`
}

// Validate checks the request-level invariants on a full transaction.
func (t *Transaction) Validate() error {
	if t.TransactionID == "" {
		return errors.New("transaction_id is required")
	}
	return t.ValidateScoring()
}

// ValidateScoring checks only the fields the model consumes. Stateless
// scoring accepts a partial transaction with no transaction_id, so this
// is the bar for score-only requests.
func (t *Transaction) ValidateScoring() error {
	if t.UserID == "" {
		return errors.New("user_id is required")
	}
	if t.Amount <= 0 {
		return fmt.Errorf("amount must be positive, got %v", t.Amount)
	}
	if t.MerchantRisk < 0 || t.MerchantRisk > 1 {
		return fmt.Errorf("merchant_risk must be in [0,1], got %v", t.MerchantRisk)
	}
	return nil
}

// Features carries the assembled model inputs for one transaction.
// Vector layout: [amount, merchant_risk, user_risk_score, amount_to_history_ratio].
type Features struct {
	Vector       []float64
	HistoryCount int
}

// ScoringResult is the immutable outcome of scoring one transaction.
type ScoringResult struct {
	TransactionID    string   `json:"transaction_id"`
	IsFraud          bool     `json:"is_fraud"`
	FraudScore       float64  `json:"fraud_score"`
	Confidence       float64  `json:"confidence"`
	RiskFactors      []string `json:"risk_factors"`
	ModelVersion     string   `json:"model_version"`
	ProcessingTimeMs int64    `json:"processing_time_ms"`
}

// CacheEntry is the cached subset of a scoring result, keyed by transaction ID.
type CacheEntry struct {
	FraudScore float64   `json:"fraud_score"`
	IsFraud    bool      `json:"is_fraud"`
	CachedAt   time.Time `json:"cached_at"`
}

// Alert severities, ordered by urgency.
const (
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// FraudAlert is a stored alert raised for a suspicious transaction.
// Read-only to the scoring pipeline.
type FraudAlert struct {
	AlertID         string    `json:"alert_id"`
	TransactionID   string    `json:"transaction_id"`
	UserID          string    `json:"user_id"`
	AlertType       string    `json:"alert_type"`
	Severity        string    `json:"severity"`
	Description     string    `json:"description"`
	ConfidenceScore float64   `json:"confidence_score"`
	CreatedAt       time.Time `json:"created_at"`
}
