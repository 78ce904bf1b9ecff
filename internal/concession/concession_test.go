package concession

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

// #region detect

func TestDetectConcessionFindsKnownPhrase(t *testing.T) {
	phrase, ok := DetectConcession("Fine, I'll lower the price to match your offer.")
	if !ok {
		t.Fatal("expected a concession to be detected")
	}
	if phrase == "" {
		t.Fatal("expected a matched phrase")
	}
}

func TestDetectConcessionIgnoresPlainDialogue(t *testing.T) {
	_, ok := DetectConcession("I'm holding firm at this number.")
	if ok {
		t.Fatal("expected no concession to be detected")
	}
}

func TestDetectConcessionTreatsBlankAsNoMatch(t *testing.T) {
	_, ok := DetectConcession("   ")
	if ok {
		t.Fatal("expected blank dialogue to never match")
	}
}

func TestDetectFinalOfferFindsKnownPhrase(t *testing.T) {
	if !DetectFinalOffer("This is my final offer, take it or leave it.") {
		t.Fatal("expected a final offer to be detected")
	}
}

func TestDetectFinalOfferIgnoresPlainDialogue(t *testing.T) {
	if DetectFinalOffer("Let's keep talking.") {
		t.Fatal("expected no final offer to be detected")
	}
}

// #endregion detect

// #region store

func TestRecordAndCountForSpeaker(t *testing.T) {
	db := setupDB(t)
	store, err := NewStore(db)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	if err := store.Record(Record{EpisodeID: "ep-1", Turn: 2, SpeakerID: "buyer", Phrase: "i can accept"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := store.Record(Record{EpisodeID: "ep-1", Turn: 4, SpeakerID: "buyer", Phrase: "my final offer", IsFinal: true}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := store.Record(Record{EpisodeID: "ep-1", Turn: 3, SpeakerID: "seller", Phrase: "we can compromise"}); err != nil {
		t.Fatalf("record: %v", err)
	}

	count, err := store.CountForSpeaker("ep-1", "buyer")
	if err != nil {
		t.Fatalf("count for speaker: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 concessions for buyer, got %d", count)
	}
}

func TestForEpisodeReturnsInTurnOrder(t *testing.T) {
	db := setupDB(t)
	store, err := NewStore(db)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	if err := store.Record(Record{EpisodeID: "ep-1", Turn: 4, SpeakerID: "buyer", Phrase: "my final offer", IsFinal: true}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := store.Record(Record{EpisodeID: "ep-1", Turn: 2, SpeakerID: "seller", Phrase: "we can compromise"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := store.Record(Record{EpisodeID: "ep-2", Turn: 1, SpeakerID: "buyer", Phrase: "i concede"}); err != nil {
		t.Fatalf("record other episode: %v", err)
	}

	records, err := store.ForEpisode("ep-1")
	if err != nil {
		t.Fatalf("for episode: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records for ep-1, got %d", len(records))
	}
	if records[0].Turn != 2 || records[1].Turn != 4 {
		t.Fatalf("expected turn-ordered records, got %#v", records)
	}
	if !records[1].IsFinal {
		t.Fatal("expected the turn-4 record to be marked final")
	}
}

// #endregion store
