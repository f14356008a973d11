package session

import (
	"context"
	"sync"
)

// Store persists one State per end user. Load initializes missing users with
// an empty state rather than reporting absence; the callback layer treats a
// fresh user and an existing user identically.
type Store interface {
	Load(ctx context.Context, userID int64) (*State, error)
	Save(ctx context.Context, userID int64, state *State) error
	Close(ctx context.Context) error
}

// MemoryStore keeps states in process memory. State survives for the process
// lifetime only; it backs tests and the fallback path when no durable store
// is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[int64]*State
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[int64]*State)}
}

// Load returns the state tracked for userID, creating it on first access.
// The same pointer is returned on every call for a given user.
func (m *MemoryStore) Load(_ context.Context, userID int64) (*State, error) {
	m.mu.RLock()
	state, ok := m.states[userID]
	m.mu.RUnlock()
	if ok {
		return state, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if state, ok = m.states[userID]; ok {
		return state, nil
	}
	state = &State{}
	m.states[userID] = state
	return state, nil
}

// Save is a no-op for the memory store: callers mutate the shared instance.
// The pointer is still adopted so a state built elsewhere can be installed.
func (m *MemoryStore) Save(_ context.Context, userID int64, state *State) error {
	if state == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[userID] = state
	return nil
}

// Close drops all tracked states.
func (m *MemoryStore) Close(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = make(map[int64]*State)
	return nil
}
