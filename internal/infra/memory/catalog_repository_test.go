package memory

import (
	"context"
	"testing"
	"time"

	"gameday-live-service/internal/domain"
)

func TestCatalogRepositoryCaches(t *testing.T) {
	loader := &countingLoader{
		EventLoader: NewStaticEventLoader(map[string]domain.Event{
			"gameday-1": sampleEvent(),
		}),
	}
	repo := NewCatalogRepository(loader, time.Minute)

	if _, err := repo.GetEvent(context.Background(), "gameday-1"); err != nil {
		t.Fatalf("get event: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := repo.GetEvent(context.Background(), "gameday-1"); err != nil {
		t.Fatalf("get event 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestStaticLoaderUnknownEvent(t *testing.T) {
	loader := NewStaticEventLoader(map[string]domain.Event{})
	if _, err := loader.LoadEvent(context.Background(), "nope"); err != domain.ErrEventNotFound {
		t.Fatalf("expected event not found, got %v", err)
	}
}

type countingLoader struct {
	EventLoader
	calls int
}

func (l *countingLoader) LoadEvent(ctx context.Context, eventID string) (domain.Event, error) {
	l.calls++
	return l.EventLoader.LoadEvent(ctx, eventID)
}

func sampleEvent() domain.Event {
	return domain.Event{
		ID:      "gameday-1",
		Kickoff: time.Date(2026, time.September, 13, 20, 20, 0, 0, time.UTC),
		Questions: []domain.Question{
			{
				ID: "q1-1", Quarter: domain.QuarterQ1, Ordinal: 1,
				Prompt:  "Will the opening drive end in a score?",
				Options: []domain.Option{{ID: "yes", Label: "Yes"}, {ID: "no", Label: "No"}},
				Points:  10, TimeLimitSec: 60,
			},
		},
	}
}
