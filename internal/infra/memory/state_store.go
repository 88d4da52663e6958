package memory

import (
	"context"
	"sync"

	"gameday-live-service/internal/domain"
)

// StateStore keeps durable engine state in-process. It satisfies the
// persistence port for development and tests; production uses Redis.
type StateStore struct {
	mu     sync.RWMutex
	states map[string]domain.SessionState
}

func NewStateStore() *StateStore {
	return &StateStore{states: make(map[string]domain.SessionState)}
}

func (s *StateStore) Load(_ context.Context, eventID, userID string) (domain.SessionState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[stateKey(eventID, userID)]
	return state, ok, nil
}

func (s *StateStore) Save(_ context.Context, eventID, userID string, state domain.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[stateKey(eventID, userID)] = state
	return nil
}

func stateKey(eventID, userID string) string {
	return eventID + ":" + userID
}
