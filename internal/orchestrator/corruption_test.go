package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kibbyd/negotiation-engine/internal/actor"
	"github.com/kibbyd/negotiation-engine/internal/config"
	"github.com/kibbyd/negotiation-engine/internal/critic"
	"github.com/kibbyd/negotiation-engine/internal/domain"
	"github.com/kibbyd/negotiation-engine/internal/gateway"
	"github.com/kibbyd/negotiation-engine/internal/memory"
	"github.com/kibbyd/negotiation-engine/internal/persistence"
)

// #region fixtures

// geminiTextServer returns an httptest.Server that always answers a
// generateContent call with text, and counts how many requests it saw.
func geminiTextServer(t *testing.T, text string) (*httptest.Server, *int) {
	t.Helper()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		resp := map[string]interface{}{
			"candidates": []map[string]interface{}{
				{"content": map[string]interface{}{"parts": []map[string]interface{}{{"text": text}}}},
			},
			"usageMetadata": map[string]interface{}{"promptTokenCount": 1, "candidatesTokenCount": 1, "totalTokenCount": 2},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestOrchestrator(t *testing.T, cfg config.Config, gw *gateway.Gateway, actors map[string]*actor.Actor, archetypes map[string]string, turnOrder []string) *Orchestrator {
	t.Helper()
	store, err := persistence.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	outcomes, err := memory.NewOutcomeStore(store.DB())
	if err != nil {
		t.Fatalf("new outcome store: %v", err)
	}
	lineage, err := memory.NewLineageGraph(store.DB())
	if err != nil {
		t.Fatalf("new lineage graph: %v", err)
	}

	initialState := domain.StateObject{CurrentSpeakerID: turnOrder[0], Variables: map[string]interface{}{}}
	return New(cfg, initialState, turnOrder, actors, archetypes, critic.New(gw, 0.2), store, outcomes, lineage, store.DB())
}

// #endregion fixtures

// #region forced concession

func TestRunEpisodeHardcodesPenaltyOnForcedConcessionCorruption(t *testing.T) {
	srv, calls := geminiTextServer(t, `{}`) // always fails action_proposal schema validation
	gw := gateway.New("test-key", "test-model", srv.URL)

	cfg := config.Default()
	cfg.MaxTurnsPerEpisode = 10
	cfg.MaxValidationRetries = 1
	cfg.ForcedConcessionThreshold = 1

	buyer := actor.New("buyer", "core", "strategy", domain.Hyperparameters{}, gw)
	actors := map[string]*actor.Actor{"buyer": buyer}
	archetypes := map[string]string{"buyer": "opportunist"}

	orch := newTestOrchestrator(t, cfg, gw, actors, archetypes, []string{"buyer"})

	result, _ := orch.runEpisode(context.Background(), "gen-1", false, cfg.MaxTurnsPerEpisode, orch.actorsSnapshot())
	if result == nil {
		t.Fatal("expected a non-nil result for a corrupted episode, not a dropped one")
	}
	if result.TerminationReason != domain.ReasonCorrupted {
		t.Fatalf("expected termination reason %q, got %q", domain.ReasonCorrupted, result.TerminationReason)
	}
	if result.Scores["buyer"] != -5 {
		t.Fatalf("expected hardcoded -5 for buyer, got %d", result.Scores["buyer"])
	}
	if *calls == 0 {
		t.Fatal("expected the actor to have been called at least once")
	}
}

// #endregion forced concession

// #region permission violation

func TestRunEpisodeHardcodesPenaltyOnPermissionViolation(t *testing.T) {
	// Every turn proposes a valid but identical mutation at "concessions.y".
	// The primary actor is unrestricted and applies it without issue; the
	// created agent mounted right after it is forbidden from touching
	// "concessions" and must raise a permission violation on its first turn.
	proposal := `{"internal_monologue":"","public_dialogue":"adjusting","state_mutations":[{"action":"modify","path":"concessions.y","value":1}],"propose_resolution":false,"abort_episode":false}`
	srv, _ := geminiTextServer(t, proposal)
	gw := gateway.New("test-key", "test-model", srv.URL)

	cfg := config.Default()
	cfg.MaxTurnsPerEpisode = 10
	cfg.MaxValidationRetries = 1
	cfg.ForcedConcessionThreshold = 5
	cfg.MaxActiveCreatedAgents = 3

	buyer := actor.New("buyer", "core", "strategy", domain.Hyperparameters{}, gw)
	actors := map[string]*actor.Actor{"buyer": buyer}
	archetypes := map[string]string{"buyer": "opportunist"}

	orch := newTestOrchestrator(t, cfg, gw, actors, archetypes, []string{"buyer"})
	orch.createdAgents = []createdAgentRecord{
		{
			actor:              actor.New("mediator-1", "mediator core", "mediator strategy", domain.Hyperparameters{}, gw),
			turnInjectionLogic: "speak_every_1_turns",
			perms: domain.AgentPermissions{
				CanModifyFields:    []string{"subsidies"},
				CannotModifyFields: []string{"concessions"},
			},
			provisioning: domain.NewAgentProvisioning{AgentID: "mediator-1", Archetype: "mediator"},
		},
	}

	result, _ := orch.runEpisode(context.Background(), "gen-1", false, cfg.MaxTurnsPerEpisode, orch.actorsSnapshot())
	if result == nil {
		t.Fatal("expected a non-nil result for a permission-violation episode, not a dropped one")
	}
	if result.TerminationReason != domain.ReasonCorrupted {
		t.Fatalf("expected termination reason %q, got %q", domain.ReasonCorrupted, result.TerminationReason)
	}
	if result.Scores["buyer"] != -5 {
		t.Fatalf("expected hardcoded -5 for buyer, got %d", result.Scores["buyer"])
	}
}

// #endregion permission violation
