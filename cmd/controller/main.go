// Command controller runs the generation loop against a fixed scenario
// file: the initial StateObject, turn order, and the primary-actor
// roster with their immutable cores and opening strategies.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "modernc.org/sqlite"

	"github.com/kibbyd/negotiation-engine/internal/actor"
	"github.com/kibbyd/negotiation-engine/internal/capitalizer"
	"github.com/kibbyd/negotiation-engine/internal/concession"
	"github.com/kibbyd/negotiation-engine/internal/config"
	"github.com/kibbyd/negotiation-engine/internal/critic"
	"github.com/kibbyd/negotiation-engine/internal/disruptor"
	"github.com/kibbyd/negotiation-engine/internal/domain"
	"github.com/kibbyd/negotiation-engine/internal/explorer"
	"github.com/kibbyd/negotiation-engine/internal/gateway"
	"github.com/kibbyd/negotiation-engine/internal/logging"
	"github.com/kibbyd/negotiation-engine/internal/memory"
	"github.com/kibbyd/negotiation-engine/internal/monologue"
	"github.com/kibbyd/negotiation-engine/internal/mutator"
	"github.com/kibbyd/negotiation-engine/internal/orchestrator"
	"github.com/kibbyd/negotiation-engine/internal/persistence"
	"github.com/kibbyd/negotiation-engine/internal/provisioner"
	"github.com/kibbyd/negotiation-engine/internal/websearch"
)

// #region scenario

// scenarioParticipant is one primary actor as described in the scenario
// file: identity and opening strategy, never touched again once the
// Actor is built (the Mutator owns the strategy text from here on).
type scenarioParticipant struct {
	ID              string                 `json:"id"`
	Archetype       string                 `json:"archetype"`
	ImmutableCore   string                 `json:"immutable_core"`
	OpeningStrategy string                 `json:"opening_strategy"`
	Hyperparameters domain.Hyperparameters `json:"hyperparameters"`
}

// scenario is the on-disk description of one negotiation to run the
// generation loop against.
type scenario struct {
	Participants []scenarioParticipant  `json:"participants"`
	TurnOrder    []string               `json:"turn_order"`
	Variables    map[string]interface{} `json:"initial_variables"`
}

func loadScenario(path string) (scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return scenario{}, fmt.Errorf("read scenario: %w", err)
	}
	var s scenario
	if err := json.Unmarshal(data, &s); err != nil {
		return scenario{}, fmt.Errorf("parse scenario: %w", err)
	}
	if len(s.Participants) == 0 {
		return scenario{}, fmt.Errorf("scenario has no participants")
	}
	if len(s.TurnOrder) == 0 {
		for _, p := range s.Participants {
			s.TurnOrder = append(s.TurnOrder, p.ID)
		}
	}
	return s, nil
}

// #endregion scenario

// #region main

func main() {
	dbPath := envOr("ENGINE_DB", "negotiation_engine.db")
	scenarioPath := envOr("ENGINE_SCENARIO", "scenario.json")
	configRoot := envOr("ENGINE_CONFIG_ROOT", ".")
	apiKey := os.Getenv("GEMINI_API_KEY")
	model := envOr("GEMINI_MODEL", "gemini-2.0-flash")

	cfg, err := config.Load(configRoot)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	sc, err := loadScenario(scenarioPath)
	if err != nil {
		log.Fatalf("load scenario: %v", err)
	}

	store, err := persistence.Open(dbPath)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer store.Close()

	if err := logging.EnsureSchema(store.DB()); err != nil {
		log.Fatalf("ensure provenance schema: %v", err)
	}
	outcomes, err := memory.NewOutcomeStore(store.DB())
	if err != nil {
		log.Fatalf("init outcome store: %v", err)
	}
	lineage, err := memory.NewLineageGraph(store.DB())
	if err != nil {
		log.Fatalf("init lineage graph: %v", err)
	}
	monologues, err := monologue.NewStore(store.DB())
	if err != nil {
		log.Fatalf("init monologue store: %v", err)
	}
	concessions, err := concession.NewStore(store.DB())
	if err != nil {
		log.Fatalf("init concession store: %v", err)
	}

	gw := gateway.New(apiKey, model, os.Getenv("GEMINI_BASE_URL"))

	actors := make(map[string]*actor.Actor, len(sc.Participants))
	archetypes := make(map[string]string, len(sc.Participants))
	for _, p := range sc.Participants {
		actors[p.ID] = actor.New(p.ID, p.ImmutableCore, p.OpeningStrategy, p.Hyperparameters, gw)
		archetypes[p.ID] = p.Archetype
	}

	initialState := domain.StateObject{
		CurrentSpeakerID: sc.TurnOrder[0],
		Variables:        sc.Variables,
	}

	orch := orchestrator.New(cfg, initialState, sc.TurnOrder, actors, archetypes, critic.New(gw, 0.2), store, outcomes, lineage, store.DB())
	orch.WireGateway(gw)
	orch.WireCapitalizer(capitalizer.New(gw, 0.4))
	orch.WireInfoDisruptor(disruptor.NewInformationDisruptor(gw, 0.6))
	orch.WireTensionDisruptor(disruptor.NewTensionDisruptor(gw, 0.3))
	orch.WireProvisioner(provisioner.New(gw, 0.5))
	orch.WireExplorer(explorer.New(gw, 0.5, websearch.DefaultConfig()))
	orch.WireMonologueStore(monologues)
	orch.WireConcessionStore(concessions)
	for actorID := range actors {
		orch.WireMutator(actorID, mutator.New(gw, 0.8))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fmt.Println("Negotiation engine controller ready.")
	fmt.Printf("  DB: %s | Scenario: %s | Model: %s\n", dbPath, scenarioPath, model)
	fmt.Printf("  Participants: %v | Max generations: %d\n", sc.TurnOrder, cfg.MaxGenerations)

	summaries, err := orch.Run(ctx)
	for _, s := range summaries {
		fmt.Printf("[gen %d] episodes=%d all_agreement=%v mutation_accepted=%v creation_attempted=%v creation_accepted=%v explorer_ran=%v tokens=%d\n",
			s.GenerationNum, len(s.EpochResults), s.AllAgreement, s.MutationAccepted, s.CreationAttempted, s.CreationAccepted, s.ExplorerRan, s.TokensUsed)
	}
	if err != nil {
		log.Fatalf("generation loop stopped: %v", err)
	}
}

// #endregion main

// #region helpers

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
