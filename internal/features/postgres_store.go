package features

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fraudsentry/fraudsentry/internal/fraud"
)

// PostgresStore implements Store over the users and transactions tables.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed feature store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) UserRiskScore(ctx context.Context, userID string) (float64, error) {
	var score float64
	err := s.db.QueryRowContext(ctx, `
		SELECT risk_score FROM users WHERE user_id = $1
	`, userID).Scan(&score)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fraud.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("query user risk score: %w", err)
	}
	return score, nil
}

func (s *PostgresStore) AvgTransactionAmount(ctx context.Context, userID string) (float64, bool, error) {
	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT AVG(amount) FROM transactions WHERE user_id = $1
	`, userID).Scan(&avg)
	if err != nil {
		return 0, false, fmt.Errorf("query avg amount: %w", err)
	}
	if !avg.Valid {
		return 0, false, nil
	}
	return avg.Float64, true, nil
}

func (s *PostgresStore) TransactionCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM transactions WHERE user_id = $1
	`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("query transaction count: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) EnsureUser(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (user_id, risk_score) VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, DefaultUserRiskScore)
	if err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	return nil
}
