package booking

import (
	"context"
	"sync"

	"github.com/robertarktes/hotel-booking/internal/domain"
)

// MemoryStore is a process-local StateStore for tests and single-instance
// runs without Redis.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]domain.FlowState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]domain.FlowState)}
}

func (m *MemoryStore) Save(_ context.Context, st *domain.FlowState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[flowKey(st.Record.Kind, st.Record.ID)] = *st
	return nil
}

func (m *MemoryStore) Load(_ context.Context, k domain.Kind, id int64) (*domain.FlowState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.states[flowKey(k, id)]
	if !ok {
		return nil, domain.ErrNoReservation
	}
	return &st, nil
}
