package memory

import "testing"

func TestSessionStoreLifecycle(t *testing.T) {
	store := NewSessionStore(NewStateStore())

	session := store.GetOrCreate(sampleEvent())
	if session == nil {
		t.Fatalf("expected session")
	}
	if _, ok := store.Get("gameday-1"); !ok {
		t.Fatalf("expected session present")
	}
	if len(store.All()) != 1 {
		t.Fatalf("expected one live session")
	}

	store.DeleteIfEmpty("gameday-1")
	if _, ok := store.Get("gameday-1"); ok {
		t.Fatalf("expected session removed when empty")
	}
}
