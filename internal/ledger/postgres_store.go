package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fraudsentry/fraudsentry/internal/fraud"
)

// PostgresStore implements Store with PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed ledger store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the ledger tables. cmd/migrate owns the canonical goose
// migrations; this exists so a fresh database works without the CLI.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			user_id     VARCHAR(64) PRIMARY KEY,
			risk_score  DOUBLE PRECISION NOT NULL DEFAULT 0.5,
			created_at  TIMESTAMPTZ DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS transactions (
			transaction_id  VARCHAR(64) PRIMARY KEY,
			user_id         VARCHAR(64) NOT NULL REFERENCES users(user_id),
			amount          DOUBLE PRECISION NOT NULL,
			timestamp       TIMESTAMPTZ NOT NULL,
			merchant_id     VARCHAR(64),
			merchant_risk   DOUBLE PRECISION NOT NULL DEFAULT 0,
			fraud_score     DOUBLE PRECISION NOT NULL,
			is_fraud        BOOLEAN NOT NULL,
			created_at      TIMESTAMPTZ DEFAULT NOW(),
			CONSTRAINT chk_amount_positive CHECK (amount > 0)
		);

		CREATE TABLE IF NOT EXISTS fraud_alerts (
			alert_id         VARCHAR(36) PRIMARY KEY,
			transaction_id   VARCHAR(64) NOT NULL REFERENCES transactions(transaction_id),
			user_id          VARCHAR(64) NOT NULL,
			alert_type       VARCHAR(32) NOT NULL,
			severity         VARCHAR(16) NOT NULL,
			description      TEXT,
			confidence_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at       TIMESTAMPTZ DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(user_id);
		CREATE INDEX IF NOT EXISTS idx_alerts_user_created ON fraud_alerts(user_id, created_at DESC);
	`)
	return err
}

func (p *PostgresStore) AppendTransaction(ctx context.Context, tx fraud.Transaction, result fraud.ScoringResult) error {
	ts := tx.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO transactions
			(transaction_id, user_id, amount, timestamp, merchant_id, merchant_risk, fraud_score, is_fraud)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, tx.TransactionID, tx.UserID, tx.Amount, ts, tx.MerchantID, tx.MerchantRisk,
		result.FraudScore, result.IsFraud)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (p *PostgresStore) GetTransaction(ctx context.Context, transactionID string) (*Record, error) {
	rec := &Record{}
	err := p.db.QueryRowContext(ctx, `
		SELECT transaction_id, user_id, amount, timestamp, COALESCE(merchant_id, ''),
		       merchant_risk, fraud_score, is_fraud
		FROM transactions WHERE transaction_id = $1
	`, transactionID).Scan(
		&rec.TransactionID, &rec.UserID, &rec.Amount, &rec.Timestamp,
		&rec.MerchantID, &rec.MerchantRisk, &rec.FraudScore, &rec.IsFraud,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fraud.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query transaction: %w", err)
	}
	return rec, nil
}

func (p *PostgresStore) CreateAlert(ctx context.Context, alert *fraud.FraudAlert) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO fraud_alerts
			(alert_id, transaction_id, user_id, alert_type, severity, description, confidence_score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, alert.AlertID, alert.TransactionID, alert.UserID, alert.AlertType,
		alert.Severity, alert.Description, alert.ConfidenceScore, alert.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (p *PostgresStore) ListAlerts(ctx context.Context, userID string, since time.Time, maxAlerts int) ([]*fraud.FraudAlert, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT alert_id, transaction_id, user_id, alert_type, severity,
		       COALESCE(description, ''), confidence_score, created_at
		FROM fraud_alerts
		WHERE user_id = $1 AND created_at > $2
		ORDER BY created_at DESC
		LIMIT $3
	`, userID, since, maxAlerts)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var alerts []*fraud.FraudAlert
	for rows.Next() {
		a := &fraud.FraudAlert{}
		if err := rows.Scan(&a.AlertID, &a.TransactionID, &a.UserID, &a.AlertType,
			&a.Severity, &a.Description, &a.ConfidenceScore, &a.CreatedAt); err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}
