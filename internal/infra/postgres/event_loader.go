package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"gameday-live-service/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// EventLoader loads event catalog JSONB from Postgres.
type EventLoader struct {
	pool *pgxpool.Pool
}

func NewEventLoader(pool *pgxpool.Pool) *EventLoader {
	return &EventLoader{pool: pool}
}

func (l *EventLoader) LoadEvent(ctx context.Context, eventID string) (domain.Event, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM events WHERE id=$1`, eventID).Scan(&raw)
	if err != nil {
		return domain.Event{}, fmt.Errorf("load event: %w", err)
	}
	var event domain.Event
	if err := json.Unmarshal(raw, &event); err != nil {
		return domain.Event{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return event, nil
}
