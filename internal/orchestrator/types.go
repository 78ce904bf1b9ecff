// Package orchestrator drives the generation loop (spec.md §4.9): per
// generation it runs an epoch of episodes, asks the Mutator to improve
// each primary actor, falls back to the Provisioner when a actor
// plateaus, and periodically sweeps the Explorer for new convergence
// hypotheses.
package orchestrator

import (
	"database/sql"
	"sync"

	"github.com/kibbyd/negotiation-engine/internal/actor"
	"github.com/kibbyd/negotiation-engine/internal/approval"
	"github.com/kibbyd/negotiation-engine/internal/concession"
	"github.com/kibbyd/negotiation-engine/internal/config"
	"github.com/kibbyd/negotiation-engine/internal/critic"
	"github.com/kibbyd/negotiation-engine/internal/domain"
	"github.com/kibbyd/negotiation-engine/internal/environment"
	"github.com/kibbyd/negotiation-engine/internal/explorer"
	"github.com/kibbyd/negotiation-engine/internal/gateway"
	"github.com/kibbyd/negotiation-engine/internal/memory"
	"github.com/kibbyd/negotiation-engine/internal/monologue"
	"github.com/kibbyd/negotiation-engine/internal/mutator"
	"github.com/kibbyd/negotiation-engine/internal/persistence"
	"github.com/kibbyd/negotiation-engine/internal/provisioner"
)

// #region created-agent-record

// createdAgentRecord is one previously accepted Provisioner output, kept
// mounted into every subsequent episode's Environment.
type createdAgentRecord struct {
	actor              *actor.Actor
	perms              domain.AgentPermissions
	turnInjectionLogic string
	provisioning       domain.NewAgentProvisioning
}

// #endregion created-agent-record

// #region orchestrator-struct

// Orchestrator owns the persistent roster (primary actors and mounted
// created agents) across generations and coordinates the four-phase
// generation loop against it.
type Orchestrator struct {
	cfg          config.Config
	initialState domain.StateObject
	turnOrder    []string
	actorsMu     sync.Mutex // guards actors: runMutationPhase fans out one goroutine per primary actor
	actors       map[string]*actor.Actor
	archetypes   map[string]string // actorID -> archetype label, for outcome recording

	critic           *critic.Critic
	capitalizer      environment.Capitalizer
	infoDisruptor    environment.InformationDisruptor
	tensionDisruptor environment.TensionDisruptor

	gw          *gateway.Gateway
	mutators    map[string]*mutator.Mutator
	provisioner *provisioner.Provisioner
	explorer    *explorer.Explorer

	store        *persistence.Store
	outcomes     *memory.OutcomeStore
	lineage      *memory.LineageGraph
	monologues   *monologue.Store
	concessions  *concession.Store
	provenanceDB *sql.DB

	createdAgents          []createdAgentRecord
	failedArchetypes       []string
	lastCreationGeneration int
	generation             int
	approvalPollAttempts   int
}

// New constructs an Orchestrator over a fixed primary-actor roster.
// actors and archetypes must share the same keys as turnOrder. Call
// WireMutator once per actor before Run.
func New(cfg config.Config, initialState domain.StateObject, turnOrder []string, actors map[string]*actor.Actor, archetypes map[string]string, c *critic.Critic, store *persistence.Store, outcomes *memory.OutcomeStore, lineage *memory.LineageGraph, provenanceDB *sql.DB) *Orchestrator {
	return &Orchestrator{
		cfg:                    cfg,
		initialState:           initialState,
		turnOrder:              append([]string(nil), turnOrder...),
		actors:                 actors,
		archetypes:             archetypes,
		critic:                 c,
		mutators:               make(map[string]*mutator.Mutator, len(actors)),
		store:                  store,
		outcomes:               outcomes,
		lineage:                lineage,
		provenanceDB:           provenanceDB,
		lastCreationGeneration: -1,
		approvalPollAttempts:   10,
	}
}

// WireCapitalizer attaches the Capitalizer meta-agent.
func (o *Orchestrator) WireCapitalizer(c environment.Capitalizer) { o.capitalizer = c }

// WireInfoDisruptor attaches the information disruptor.
func (o *Orchestrator) WireInfoDisruptor(d environment.InformationDisruptor) { o.infoDisruptor = d }

// WireTensionDisruptor attaches the tension disruptor.
func (o *Orchestrator) WireTensionDisruptor(d environment.TensionDisruptor) { o.tensionDisruptor = d }

// WireMutator attaches the Mutator meta-agent for one primary actor.
func (o *Orchestrator) WireMutator(actorID string, m *mutator.Mutator) { o.mutators[actorID] = m }

// WireGateway attaches the Model Gateway that agents the Provisioner
// mints at runtime call for their turns.
func (o *Orchestrator) WireGateway(gw *gateway.Gateway) { o.gw = gw }

// WireProvisioner attaches the Provisioner meta-agent, enabling Creation.
func (o *Orchestrator) WireProvisioner(p *provisioner.Provisioner) { o.provisioner = p }

// WireExplorer attaches the Explorer meta-agent, enabling the periodic
// scout sweep.
func (o *Orchestrator) WireExplorer(e *explorer.Explorer) { o.explorer = e }

// WireMonologueStore attaches the private-reasoning store. When set,
// every non-shadow episode's per-turn internal_monologue is persisted
// separately from the public action log (spec.md §4.4's redaction
// boundary: private reasoning is never surfaced to other actors, but is
// kept for post-hoc Critic/inspection review).
func (o *Orchestrator) WireMonologueStore(m *monologue.Store) { o.monologues = m }

// WireConcessionStore attaches the commitment-language tracker. When
// set, every non-shadow episode's public dialogue is scanned for
// concession and final-offer phrases (internal/concession) and the hits
// are recorded for post-hoc inspection; the Mutator does not read them.
func (o *Orchestrator) WireConcessionStore(c *concession.Store) { o.concessions = c }

// #endregion orchestrator-struct

// #region generation-summary

// GenerationSummary reports what happened during one generation, for the
// caller (cmd/controller) to log or display.
type GenerationSummary struct {
	GenerationID      string
	GenerationNum     int
	EpochResults      []domain.EpochResult
	AllAgreement      bool
	MutationAccepted  map[string]bool
	CreationAttempted bool
	CreationAccepted  bool
	ExplorerRan       bool
	TokensUsed        int
}

// #endregion generation-summary

// #region approval-request (re-export for cmd wiring)

// ApprovalRequest is the shape submitted to the human-approval inbox for
// a pending creation decision.
type ApprovalRequest = approval.Request

// #endregion approval-request
