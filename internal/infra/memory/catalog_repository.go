package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"gameday-live-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// EventLoader fetches event catalogs from a backing store (e.g., Postgres).
type EventLoader interface {
	LoadEvent(ctx context.Context, eventID string) (domain.Event, error)
}

// CatalogRepository caches event catalogs with TTL to avoid repeated DB hits.
// Catalog content is immutable at runtime, so staleness within the TTL is harmless.
type CatalogRepository struct {
	loader EventLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedEvent
}

type cachedEvent struct {
	event     domain.Event
	expiresAt time.Time
}

func NewCatalogRepository(loader EventLoader, ttl time.Duration) *CatalogRepository {
	return &CatalogRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedEvent),
	}
}

func (r *CatalogRepository) GetEvent(ctx context.Context, eventID string) (domain.Event, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[eventID]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.event, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(eventID, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[eventID]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.event, nil
		}
		r.mu.RUnlock()

		event, err := r.loader.LoadEvent(ctx, eventID)
		if err != nil {
			return domain.Event{}, err
		}

		r.mu.Lock()
		r.cache[eventID] = cachedEvent{
			event:     event,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return event, nil
	})
	if err != nil {
		return domain.Event{}, err
	}
	return result.(domain.Event), nil
}

// StaticEventLoader is a simple loader backed by an in-memory map (useful for tests/demos).
type StaticEventLoader struct {
	events map[string]domain.Event
}

func NewStaticEventLoader(events map[string]domain.Event) *StaticEventLoader {
	return &StaticEventLoader{events: events}
}

func (l *StaticEventLoader) LoadEvent(_ context.Context, eventID string) (domain.Event, error) {
	if event, ok := l.events[eventID]; ok {
		return event, nil
	}
	return domain.Event{}, domain.ErrEventNotFound
}

func (r *CatalogRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
