package environment

import (
	"context"

	"github.com/kibbyd/negotiation-engine/internal/domain"
)

// #region actor-payload

// TurnPayload is everything an actor sees when it is asked for a turn
// (spec.md §4.1 step 3).
type TurnPayload struct {
	TurnNumber       int
	MaxTurns         int
	CurrentSpeakerID string
	Transcript       []TranscriptEntry
	Variables        map[string]interface{}
	EnvironmentVars  map[string]interface{} // includes global_tension_level
	Injections       map[string]interface{}
}

// TranscriptEntry is the public view of a log entry: dialogue for actor
// turns, headline for information-disruptor turns.
type TranscriptEntry struct {
	SpeakerID string
	Text      string
}

// #endregion actor-payload

// #region interfaces

// Actor is anything that can take a negotiation turn. The Environment
// does not care whether it is a primary actor or a created agent; only
// AgentPermissions distinguishes them.
type Actor interface {
	ID() string
	Propose(ctx context.Context, payload TurnPayload, validationError string) (domain.ActionProposal, int, error)
}

// Capitalizer produces a strategic hint from recent log entries.
type Capitalizer interface {
	Analyze(ctx context.Context, recent []domain.ActionLogEntry, state domain.StateObject) (domain.CapitalizerHint, int, error)
}

// InformationDisruptor periodically injects a headline into the log.
type InformationDisruptor interface {
	Observe(ctx context.Context, recent []domain.ActionLogEntry) (domain.InformationDisruption, int, error)
}

// TensionDisruptor reads the running log/state and returns a new tension
// level for variables.global_tension_level.
type TensionDisruptor interface {
	Read(ctx context.Context, log []domain.ActionLogEntry, state domain.StateObject) (domain.TensionReading, int, error)
}

// #endregion interfaces

// #region agent-registration

// registeredAgent pairs an Actor with its permissions (nil for primary
// actors, which are unrestricted) and whether it is a created agent
// (registered with non-nil permissions).
type registeredAgent struct {
	actor      Actor
	perms      *domain.AgentPermissions
	isCreated  bool
}

// #endregion agent-registration
