package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gameday-live-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// StateStore persists per-user engine state in Redis so a session survives
// device reloads mid-event. One JSON document per user per event:
//
//	SET session:{eventID}:{userID} {answers, questionRuntimeState}
//
// Save replaces the whole document in one command, which gives the
// per-mutation atomicity the engine relies on.
type StateStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStateStore(client *redis.Client, ttl time.Duration) *StateStore {
	return &StateStore{client: client, ttl: ttl}
}

func (s *StateStore) Load(ctx context.Context, eventID, userID string) (domain.SessionState, bool, error) {
	raw, err := s.client.Get(ctx, s.key(eventID, userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.SessionState{}, false, nil
	}
	if err != nil {
		return domain.SessionState{}, false, fmt.Errorf("load session state: %w", err)
	}
	var state domain.SessionState
	if err := json.Unmarshal(raw, &state); err != nil {
		return domain.SessionState{}, false, fmt.Errorf("unmarshal session state: %w", err)
	}
	return state, true, nil
}

func (s *StateStore) Save(ctx context.Context, eventID, userID string, state domain.SessionState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal session state: %w", err)
	}
	if err := s.client.Set(ctx, s.key(eventID, userID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session state: %w", err)
	}
	return nil
}

func (s *StateStore) key(eventID, userID string) string {
	return "session:" + eventID + ":" + userID
}
