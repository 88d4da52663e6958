package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"gameday-live-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// EventLoader fetches event catalogs from a backing store (e.g., Postgres).
type EventLoader interface {
	LoadEvent(ctx context.Context, eventID string) (domain.Event, error)
}

// CatalogRepository caches event catalogs in Redis and falls back to a loader
// on cache miss. The full catalog document is stored as:
//
//	SET event:{eventID}:catalog {json}
//
// Catalogs are immutable at runtime, so a TTL-bounded copy is always safe to serve.
type CatalogRepository struct {
	client *redis.Client
	loader EventLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewCatalogRepository(client *redis.Client, loader EventLoader, ttl time.Duration) *CatalogRepository {
	return &CatalogRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *CatalogRepository) GetEvent(ctx context.Context, eventID string) (domain.Event, error) {
	key := r.catalogKey(eventID)

	if raw, err := r.client.Get(ctx, key).Bytes(); err == nil && len(raw) > 0 {
		if event, ok := decodeEvent(raw); ok {
			return event, nil
		}
	}

	result, err, _ := r.sf.Do(eventID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if raw, err := r.client.Get(ctx, key).Bytes(); err == nil && len(raw) > 0 {
			if event, ok := decodeEvent(raw); ok {
				return event, nil
			}
		}

		event, err := r.loader.LoadEvent(ctx, eventID)
		if err != nil {
			return domain.Event{}, err
		}

		if raw, err := json.Marshal(event); err == nil {
			_ = r.client.Set(ctx, key, raw, r.ttlWithJitter()).Err()
		}
		return event, nil
	})
	if err != nil {
		return domain.Event{}, err
	}
	return result.(domain.Event), nil
}

func (r *CatalogRepository) catalogKey(eventID string) string {
	return "event:" + eventID + ":catalog"
}

func decodeEvent(raw []byte) (domain.Event, bool) {
	var event domain.Event
	if err := json.Unmarshal(raw, &event); err != nil {
		return domain.Event{}, false
	}
	return event, event.ID != ""
}

func (r *CatalogRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
