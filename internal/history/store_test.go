package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"moodcam/internal/emotion"
	"moodcam/internal/pipeline"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := New(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.Migrate(); err != nil {
		t.Fatalf("migration failed: %v", err)
	}
	return store
}

func TestSaveAndListTransitions(t *testing.T) {
	store := newTestStore(t)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	records := []*TransitionRecord{
		{ID: "t1", ClientID: "alice", Emotion: "happy", Previous: "neutral", Timestamp: base},
		{ID: "t2", ClientID: "alice", Emotion: "sad", Previous: "happy", Timestamp: base.Add(time.Minute)},
		{ID: "t3", ClientID: "bob", Emotion: "angry", Previous: "", Timestamp: base.Add(2 * time.Minute)},
	}
	for _, rec := range records {
		if err := store.SaveTransition(rec); err != nil {
			t.Fatalf("failed to save %s: %v", rec.ID, err)
		}
	}

	all, err := store.ListTransitions("", nil, 0)
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("listed %d transitions, want 3", len(all))
	}
	// Newest first.
	if all[0].ID != "t3" || all[2].ID != "t1" {
		t.Errorf("unexpected order: %s, %s, %s", all[0].ID, all[1].ID, all[2].ID)
	}

	alice, err := store.ListTransitions("alice", nil, 0)
	if err != nil {
		t.Fatalf("failed to list by client: %v", err)
	}
	if len(alice) != 2 {
		t.Fatalf("listed %d transitions for alice, want 2", len(alice))
	}
	if alice[0].Emotion != "sad" || alice[0].Previous != "happy" {
		t.Errorf("got %s (prev %s), want sad (prev happy)", alice[0].Emotion, alice[0].Previous)
	}

	since := base.Add(90 * time.Second)
	recent, err := store.ListTransitions("", &since, 0)
	if err != nil {
		t.Fatalf("failed to list since: %v", err)
	}
	if len(recent) != 1 || recent[0].ID != "t3" {
		t.Errorf("since filter returned %d records, want just t3", len(recent))
	}

	limited, err := store.ListTransitions("", nil, 1)
	if err != nil {
		t.Fatalf("failed to list limited: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limit 1 returned %d records", len(limited))
	}
}

func TestDeleteOldTransitions(t *testing.T) {
	store := newTestStore(t)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"old1", "old2", "new1"} {
		rec := &TransitionRecord{
			ID:        id,
			ClientID:  "c",
			Emotion:   "neutral",
			Timestamp: base.Add(time.Duration(i) * time.Hour),
		}
		if err := store.SaveTransition(rec); err != nil {
			t.Fatalf("failed to save %s: %v", id, err)
		}
	}

	deleted, err := store.DeleteOldTransitions(base.Add(90 * time.Minute))
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted %d rows, want 2", deleted)
	}

	remaining, err := store.ListTransitions("", nil, 0)
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != "new1" {
		t.Errorf("unexpected survivors: %+v", remaining)
	}
}

func TestRunRetentionPrunesOldTransitions(t *testing.T) {
	store := newTestStore(t)

	now := time.Now().UTC()
	records := []*TransitionRecord{
		{ID: "stale", ClientID: "c", Emotion: "neutral", Timestamp: now.Add(-2 * time.Hour)},
		{ID: "fresh", ClientID: "c", Emotion: "happy", Timestamp: now},
	}
	for _, rec := range records {
		if err := store.SaveTransition(rec); err != nil {
			t.Fatalf("failed to save %s: %v", rec.ID, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go store.RunRetention(ctx, time.Hour, 10*time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for {
		remaining, err := store.ListTransitions("", nil, 0)
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(remaining) == 1 && remaining[0].ID == "fresh" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("retention sweep never pruned, %d records remain", len(remaining))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRecorderPersistsBusUpdates(t *testing.T) {
	store := newTestStore(t)
	bus := pipeline.NewEventBus()
	defer bus.Close()

	recorder := NewRecorder(store, bus)
	defer recorder.Close()

	bus.Publish(&pipeline.EmotionUpdate{
		ClientID:  "cam-1",
		Emotion:   emotion.LabelSurprise,
		Previous:  emotion.LabelNeutral,
		Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	})

	records, err := store.ListTransitions("cam-1", nil, 0)
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("recorded %d transitions, want 1", len(records))
	}
	if records[0].Emotion != "surprise" || records[0].Previous != "neutral" {
		t.Errorf("recorded %s (prev %s), want surprise (prev neutral)", records[0].Emotion, records[0].Previous)
	}
	if records[0].ID == "" {
		t.Error("record missing generated ID")
	}
}
