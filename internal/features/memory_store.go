package features

import (
	"context"
	"sync"

	"github.com/fraudsentry/fraudsentry/internal/fraud"
)

// MemoryStore is an in-memory feature store for demo/development mode.
type MemoryStore struct {
	mu      sync.RWMutex
	risks   map[string]float64
	amounts map[string][]float64
}

// NewMemoryStore creates an in-memory feature store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		risks:   make(map[string]float64),
		amounts: make(map[string][]float64),
	}
}

// SetUserRisk sets a user's risk score.
func (m *MemoryStore) SetUserRisk(userID string, score float64) {
	m.mu.Lock()
	m.risks[userID] = score
	m.mu.Unlock()
}

// RecordAmount appends a historical transaction amount for a user.
func (m *MemoryStore) RecordAmount(userID string, amount float64) {
	m.mu.Lock()
	m.amounts[userID] = append(m.amounts[userID], amount)
	m.mu.Unlock()
}

func (m *MemoryStore) UserRiskScore(_ context.Context, userID string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	score, ok := m.risks[userID]
	if !ok {
		return 0, fraud.ErrNotFound
	}
	return score, nil
}

func (m *MemoryStore) AvgTransactionAmount(_ context.Context, userID string) (float64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	amounts := m.amounts[userID]
	if len(amounts) == 0 {
		return 0, false, nil
	}
	var sum float64
	for _, a := range amounts {
		sum += a
	}
	return sum / float64(len(amounts)), true, nil
}

func (m *MemoryStore) TransactionCount(_ context.Context, userID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.amounts[userID]), nil
}

func (m *MemoryStore) EnsureUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.risks[userID]; !ok {
		m.risks[userID] = DefaultUserRiskScore
	}
	return nil
}
