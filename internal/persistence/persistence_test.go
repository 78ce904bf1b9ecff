package persistence

import (
	"testing"

	"github.com/kibbyd/negotiation-engine/internal/domain"
)

// #region helpers

func setupStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// #endregion helpers

// #region generations

func TestStartAndFinishGeneration(t *testing.T) {
	s := setupStore(t)

	id, err := s.StartGeneration(1)
	if err != nil {
		t.Fatalf("start generation: %v", err)
	}
	if id == "" {
		t.Fatal("expected a non-empty generation id")
	}

	if err := s.FinishGeneration(id, 2, 3); err != nil {
		t.Fatalf("finish generation: %v", err)
	}

	var accepted, rejected int
	var finishedAt string
	if err := s.DB().QueryRow(`SELECT accepted_count, rejected_count, finished_at FROM generations WHERE generation_id = ?`, id).
		Scan(&accepted, &rejected, &finishedAt); err != nil {
		t.Fatalf("query generation: %v", err)
	}
	if accepted != 2 || rejected != 3 {
		t.Fatalf("expected accepted=2 rejected=3, got accepted=%d rejected=%d", accepted, rejected)
	}
	if finishedAt == "" {
		t.Fatal("expected finished_at to be set")
	}
}

// #endregion generations

// #region episodes

func TestRecordEpisodeAndReadBack(t *testing.T) {
	s := setupStore(t)

	genID, err := s.StartGeneration(1)
	if err != nil {
		t.Fatalf("start generation: %v", err)
	}

	result := domain.EpochResult{
		FinalState:        domain.StateObject{TurnNumber: 5, IsTerminal: true},
		Scores:            map[string]int{"buyer": 3, "seller": -1},
		TerminationReason: "agreement",
	}
	log := []domain.ActionLogEntry{
		{Turn: 1, SpeakerID: "buyer", PublicDialogue: "opening offer"},
		{Turn: 2, SpeakerID: "seller", PublicDialogue: "counter"},
	}

	if err := s.RecordEpisode(genID, "ep-1", false, result, log, 420); err != nil {
		t.Fatalf("record episode: %v", err)
	}

	records, err := s.EpisodesForGeneration(genID)
	if err != nil {
		t.Fatalf("episodes for generation: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 episode, got %d", len(records))
	}
	rec := records[0]
	if rec.EpisodeID != "ep-1" || rec.TerminationReason != "agreement" || rec.TokenCount != 420 || rec.IsShadowTrial {
		t.Fatalf("unexpected episode record: %#v", rec)
	}
	if rec.Scores["buyer"] != 3 || rec.Scores["seller"] != -1 {
		t.Fatalf("unexpected scores: %#v", rec.Scores)
	}

	var entryCount int
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM action_log_entries WHERE episode_id = ?`, "ep-1").Scan(&entryCount); err != nil {
		t.Fatalf("count log entries: %v", err)
	}
	if entryCount != 2 {
		t.Fatalf("expected 2 log entries, got %d", entryCount)
	}
}

func TestEpisodesForGenerationFiltersByGeneration(t *testing.T) {
	s := setupStore(t)

	genA, _ := s.StartGeneration(1)
	genB, _ := s.StartGeneration(2)

	result := domain.EpochResult{TerminationReason: "timeout", Scores: map[string]int{}}
	if err := s.RecordEpisode(genA, "ep-a", false, result, nil, 0); err != nil {
		t.Fatalf("record episode a: %v", err)
	}
	if err := s.RecordEpisode(genB, "ep-b", false, result, nil, 0); err != nil {
		t.Fatalf("record episode b: %v", err)
	}

	recordsA, err := s.EpisodesForGeneration(genA)
	if err != nil {
		t.Fatalf("episodes for generation a: %v", err)
	}
	if len(recordsA) != 1 || recordsA[0].EpisodeID != "ep-a" {
		t.Fatalf("expected only ep-a for generation a, got %#v", recordsA)
	}
}

// #endregion episodes

// #region agent profiles and created agents

func TestUpsertAgentProfileReplacesExisting(t *testing.T) {
	s := setupStore(t)

	hp := domain.Hyperparameters{Temperature: 0.7, FrequencyPenalty: 0.1}
	if err := s.UpsertAgentProfile("buyer", "opportunist", "opening strategy", hp); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	hp2 := domain.Hyperparameters{Temperature: 0.9, FrequencyPenalty: 0.2}
	if err := s.UpsertAgentProfile("buyer", "opportunist", "mutated strategy", hp2); err != nil {
		t.Fatalf("upsert again: %v", err)
	}

	var strategy string
	var count int
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM agent_profiles WHERE agent_id = ?`, "buyer").Scan(&count); err != nil {
		t.Fatalf("count profiles: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly 1 profile row after upsert, got %d", count)
	}
	if err := s.DB().QueryRow(`SELECT strategy_text FROM agent_profiles WHERE agent_id = ?`, "buyer").Scan(&strategy); err != nil {
		t.Fatalf("query profile: %v", err)
	}
	if strategy != "mutated strategy" {
		t.Fatalf("expected the second upsert to win, got %q", strategy)
	}
}

func TestRecordCreatedAgent(t *testing.T) {
	s := setupStore(t)

	genID, _ := s.StartGeneration(1)
	provisioning := domain.NewAgentProvisioning{
		AgentID:         "mediator-1",
		Archetype:       "mediator",
		DesignRationale: "breaks a two-way standoff",
	}
	if err := s.RecordCreatedAgent(genID, provisioning, true); err != nil {
		t.Fatalf("record created agent: %v", err)
	}

	var approved int
	if err := s.DB().QueryRow(`SELECT approved FROM created_agents WHERE agent_id = ?`, "mediator-1").Scan(&approved); err != nil {
		t.Fatalf("query created agent: %v", err)
	}
	if approved != 1 {
		t.Fatalf("expected approved=1, got %d", approved)
	}
}

// #endregion agent profiles and created agents
