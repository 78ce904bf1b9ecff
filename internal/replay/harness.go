// Package replay deterministically re-runs a recorded episode's scripted
// turns through a fresh Environment and checks the outcome against an
// expected termination reason/turn count — the harness backing the S1-S8
// scenario fixtures.
package replay

import (
	"context"

	"github.com/kibbyd/negotiation-engine/internal/config"
	"github.com/kibbyd/negotiation-engine/internal/domain"
	"github.com/kibbyd/negotiation-engine/internal/environment"
)

// #region scripted-actor

// scriptedActor replays one actor's recorded proposals in order, holding
// the last proposal once its script is exhausted.
type scriptedActor struct {
	id     string
	script []domain.ActionProposal
	calls  int
}

func (a *scriptedActor) ID() string { return a.id }

func (a *scriptedActor) Propose(_ context.Context, _ environment.TurnPayload, _ string) (domain.ActionProposal, int, error) {
	if len(a.script) == 0 {
		a.calls++
		return domain.ActionProposal{}, 0, nil
	}
	idx := a.calls
	if idx >= len(a.script) {
		idx = len(a.script) - 1
	}
	a.calls++
	return a.script[idx], 0, nil
}

// #endregion scripted-actor

// #region types

// ScriptedTurn is one recorded proposal for one participant.
type ScriptedTurn struct {
	SpeakerID string
	Proposal  domain.ActionProposal
}

// CreatedAgentSpec mounts a created agent (S5/S6) before the episode runs.
type CreatedAgentSpec struct {
	AgentID            string
	Permissions        domain.AgentPermissions
	TurnInjectionLogic string
	Script             []domain.ActionProposal
}

// Fixture is everything needed to deterministically replay one episode.
type Fixture struct {
	Description   string
	Config        config.Config
	StartState    domain.StateObject
	TurnOrder     []string
	Scripts       map[string][]domain.ActionProposal // speakerId -> script, for turnOrder participants
	CreatedAgents []CreatedAgentSpec
	Expected      ExpectedResult
}

// ExpectedResult is the fixture's assertion target.
type ExpectedResult struct {
	TerminationReason string
	TurnNumber        int
	LogLength         int
}

// Result is what a replay run actually produced.
type Result struct {
	FinalState        domain.StateObject
	Log               []domain.ActionLogEntry
	TerminationReason string
	MountErr          error // non-nil if a CreatedAgentSpec failed to mount (S6)
}

// #endregion types

// #region replay

// Replay constructs a fresh Environment from f, mounts every participant
// and created agent, runs the episode to completion, and returns the
// outcome. It never mutates f.
func Replay(ctx context.Context, f Fixture) (Result, error) {
	env := environment.New(f.Config, f.StartState, f.TurnOrder)

	for _, id := range f.TurnOrder {
		script := f.Scripts[id]
		env.RegisterActor(&scriptedActor{id: id, script: script}, nil)
	}

	var mountErr error
	for _, ca := range f.CreatedAgents {
		a := &scriptedActor{id: ca.AgentID, script: ca.Script}
		if err := env.MountAgent(a, ca.Permissions, ca.TurnInjectionLogic); err != nil {
			mountErr = err
			break
		}
	}

	final, log, err := env.RunEpisode(ctx)
	return Result{
		FinalState:        final,
		Log:               log,
		TerminationReason: env.TerminationReason(),
		MountErr:          mountErr,
	}, err
}

// Matches reports whether a Result satisfies a Fixture's ExpectedResult.
func Matches(f Fixture, r Result) bool {
	if r.TerminationReason != f.Expected.TerminationReason {
		return false
	}
	if r.FinalState.TurnNumber != f.Expected.TurnNumber {
		return false
	}
	if len(r.Log) != f.Expected.LogLength {
		return false
	}
	return true
}

// #endregion replay
