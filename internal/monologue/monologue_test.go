package monologue

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

// #region helpers

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// #endregion helpers

func TestSaveAndForEpisodeRoundTrip(t *testing.T) {
	db := setupDB(t)
	store, err := NewStore(db)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	if err := store.Save("ep-1", 1, "buyer", "I should open low"); err != nil {
		t.Fatalf("save turn 1: %v", err)
	}
	if err := store.Save("ep-1", 2, "seller", "this offer is insulting"); err != nil {
		t.Fatalf("save turn 2: %v", err)
	}
	if err := store.Save("ep-2", 1, "buyer", "different episode"); err != nil {
		t.Fatalf("save other episode: %v", err)
	}

	entries, err := store.ForEpisode("ep-1")
	if err != nil {
		t.Fatalf("for episode: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries for ep-1, got %d", len(entries))
	}
	if entries[0].Turn != 1 || entries[0].SpeakerID != "buyer" || entries[0].Text != "I should open low" {
		t.Fatalf("unexpected first entry: %#v", entries[0])
	}
	if entries[1].Turn != 2 || entries[1].SpeakerID != "seller" {
		t.Fatalf("unexpected second entry: %#v", entries[1])
	}
	if entries[0].CreatedAt.IsZero() {
		t.Fatal("expected CreatedAt to be parsed")
	}
}

func TestForEpisodeEmptyWhenNothingRecorded(t *testing.T) {
	db := setupDB(t)
	store, err := NewStore(db)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	entries, err := store.ForEpisode("nonexistent")
	if err != nil {
		t.Fatalf("for episode: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}
}
