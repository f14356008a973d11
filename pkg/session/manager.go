package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Manager is a write-through cache of user states over a Store. Within one
// process every caller sees the same *State instance per user, which is what
// makes the wait protocol's identity comparison and the asynchronous
// reply-keyboard hook well-defined.
//
// A nil Store degrades to process-local memory with a logged warning: state
// is then lost on restart, but the callback layer keeps working.
type Manager struct {
	store Store
	log   *slog.Logger

	mu     sync.RWMutex
	states map[int64]*State
}

// NewManager builds a manager over store.
func NewManager(store Store, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "session.manager")

	if store == nil {
		log.Warn("No session store configured, falling back to process memory; state will not survive restarts")
		store = NewMemoryStore()
	}

	return &Manager{
		store:  store,
		log:    log,
		states: make(map[int64]*State),
	}
}

// State returns the cached state for userID, loading it from the store on
// first access.
func (m *Manager) State(ctx context.Context, userID int64) (*State, error) {
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

	state, err := m.store.Load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load session for user %d: %w", userID, err)
	}
	if state == nil {
		state = &State{}
	}
	m.states[userID] = state
	return state, nil
}

// Flush persists the cached state for userID. Unknown users are a no-op.
func (m *Manager) Flush(ctx context.Context, userID int64) error {
	m.mu.RLock()
	state, ok := m.states[userID]
	m.mu.RUnlock()
	if !ok {
		return nil
	}

	if err := m.store.Save(ctx, userID, state); err != nil {
		return fmt.Errorf("flush session for user %d: %w", userID, err)
	}
	return nil
}

// Forget drops the cached state for userID without persisting it. The next
// State call reloads from the store.
func (m *Manager) Forget(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, userID)
}

// Close flushes nothing and closes the underlying store.
func (m *Manager) Close(ctx context.Context) error {
	return m.store.Close(ctx)
}
