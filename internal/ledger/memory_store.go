package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fraudsentry/fraudsentry/internal/fraud"
)

// MemoryStore is an in-memory ledger store for demo/development mode.
type MemoryStore struct {
	mu     sync.RWMutex
	txs    map[string]*Record
	alerts []*fraud.FraudAlert
}

// NewMemoryStore creates an in-memory ledger store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{txs: make(map[string]*Record)}
}

func (m *MemoryStore) AppendTransaction(_ context.Context, tx fraud.Transaction, result fraud.ScoringResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.txs[tx.TransactionID]; exists {
		return fmt.Errorf("transaction %s already recorded", tx.TransactionID)
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = time.Now().UTC()
	}
	m.txs[tx.TransactionID] = &Record{
		Transaction: tx,
		FraudScore:  result.FraudScore,
		IsFraud:     result.IsFraud,
	}
	return nil
}

func (m *MemoryStore) GetTransaction(_ context.Context, transactionID string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.txs[transactionID]
	if !ok {
		return nil, fraud.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *MemoryStore) CreateAlert(_ context.Context, alert *fraud.FraudAlert) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *alert
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	m.alerts = append(m.alerts, &cp)
	return nil
}

func (m *MemoryStore) ListAlerts(_ context.Context, userID string, since time.Time, maxAlerts int) ([]*fraud.FraudAlert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Alerts are appended in creation order; walk backwards for newest first.
	var result []*fraud.FraudAlert
	for i := len(m.alerts) - 1; i >= 0 && len(result) < maxAlerts; i-- {
		a := m.alerts[i]
		if a.UserID == userID && a.CreatedAt.After(since) {
			cp := *a
			result = append(result, &cp)
		}
	}
	return result, nil
}

// AlertCount reports stored alerts (for tests).
func (m *MemoryStore) AlertCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.alerts)
}
