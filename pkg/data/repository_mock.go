package data

import (
	"context"
	"sync"
)

// MockRepository is an in-memory Repository used in tests and in setups
// that run without a database.
type MockRepository struct {
	oracles    map[string]*Oracle
	proofs     map[string]*InvestmentProof
	valuations map[string][]*Valuation
	events     []*Event
	mu         sync.RWMutex
}

// Ensure MockRepository implements the Repository interface
var _ Repository = (*MockRepository)(nil)

func NewMockRepository() *MockRepository {
	return &MockRepository{
		oracles:    make(map[string]*Oracle),
		proofs:     make(map[string]*InvestmentProof),
		valuations: make(map[string][]*Valuation),
	}
}

// Oracle registry operations

func (m *MockRepository) SaveOracle(ctx context.Context, oracle *Oracle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *oracle
	m.oracles[oracle.ID] = &copied
	return nil
}

func (m *MockRepository) GetOracle(ctx context.Context, id string) (*Oracle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	oracle, ok := m.oracles[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *oracle
	return &copied, nil
}

func (m *MockRepository) ListOracles(ctx context.Context, filter OracleFilter) ([]*Oracle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var oracles []*Oracle
	for _, oracle := range m.oracles {
		if filter.Active != nil && oracle.Active != *filter.Active {
			continue
		}
		if filter.Role != "" && oracle.Role != filter.Role {
			continue
		}
		if filter.MinReputation != nil && oracle.Reputation < *filter.MinReputation {
			continue
		}
		copied := *oracle
		oracles = append(oracles, &copied)
	}
	return oracles, nil
}

// Proof operations

func (m *MockRepository) SaveProof(ctx context.Context, proof *InvestmentProof) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *proof
	copied.Voters = make(map[string]bool, len(proof.Voters))
	for id, voted := range proof.Voters {
		copied.Voters[id] = voted
	}
	m.proofs[proof.PoolID] = &copied
	return nil
}

func (m *MockRepository) GetProof(ctx context.Context, poolID string) (*InvestmentProof, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	proof, ok := m.proofs[poolID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *proof
	return &copied, nil
}

// Valuation operations

func (m *MockRepository) SaveValuation(ctx context.Context, valuation *Valuation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *valuation
	m.valuations[valuation.PoolID] = append(m.valuations[valuation.PoolID], &copied)
	return nil
}

func (m *MockRepository) ListValuations(ctx context.Context, poolID string) ([]*Valuation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	history := m.valuations[poolID]
	out := make([]*Valuation, len(history))
	for i, v := range history {
		copied := *v
		out[i] = &copied
	}
	return out, nil
}

func (m *MockRepository) GetCurrentValuation(ctx context.Context, poolID string) (*Valuation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	history := m.valuations[poolID]
	if len(history) == 0 {
		return nil, ErrNotFound
	}
	copied := *history[len(history)-1]
	return &copied, nil
}

// Audit event operations

func (m *MockRepository) SaveEvent(ctx context.Context, event *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *event
	m.events = append(m.events, &copied)
	return nil
}

func (m *MockRepository) ListEvents(ctx context.Context, filter EventFilter) ([]*Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var events []*Event
	for _, e := range m.events {
		if filter.PoolID != "" && e.PoolID != filter.PoolID {
			continue
		}
		if filter.Type != "" && e.Type != filter.Type {
			continue
		}
		if filter.Actor != "" && e.Actor != filter.Actor {
			continue
		}
		copied := *e
		events = append(events, &copied)
	}
	return events, nil
}
