package memory

import (
	"sync"

	"gameday-live-service/internal/app"
	"gameday-live-service/internal/domain"
	"gameday-live-service/internal/engine"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
type SessionStore struct {
	states   engine.StateStore
	mu       sync.RWMutex
	sessions map[string]*app.LiveSession
}

func NewSessionStore(states engine.StateStore) *SessionStore {
	return &SessionStore{
		states:   states,
		sessions: make(map[string]*app.LiveSession),
	}
}

func (s *SessionStore) GetOrCreate(event domain.Event) *app.LiveSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[event.ID]; ok {
		return session
	}
	session := app.NewLiveSession(event, s.states)
	s.sessions[event.ID] = session
	return session
}

func (s *SessionStore) Get(eventID string) (*app.LiveSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[eventID]
	return session, ok
}

func (s *SessionStore) All() []*app.LiveSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*app.LiveSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, session)
	}
	return out
}

func (s *SessionStore) DeleteIfEmpty(eventID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[eventID]
	if !ok {
		return
	}
	if session.IsEmpty() {
		delete(s.sessions, eventID)
	}
}
