// Package actor implements the Primary Actor: the negotiating participant
// whose system content is built in layers and whose strategy can be
// replaced wholesale by the Mutator without touching its identity or
// immutable core (spec.md §4.2).
package actor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kibbyd/negotiation-engine/internal/domain"
	"github.com/kibbyd/negotiation-engine/internal/environment"
	"github.com/kibbyd/negotiation-engine/internal/gateway"
	"github.com/kibbyd/negotiation-engine/internal/schemas"
)

// #region actor

// Actor is a Primary Actor. It satisfies environment.Actor.
type Actor struct {
	id            string
	immutableCore string // layer-1: identity, goals, constraints — never rewritten
	strategy      string // layer-2: current mutable negotiation strategy
	hyperparams   domain.Hyperparameters
	gw            *gateway.Gateway
}

// New constructs a Primary Actor with an initial strategy.
func New(id, immutableCore, strategy string, hyperparams domain.Hyperparameters, gw *gateway.Gateway) *Actor {
	return &Actor{
		id:            id,
		immutableCore: immutableCore,
		strategy:      strategy,
		hyperparams:   hyperparams,
		gw:            gw,
	}
}

// ID returns the actor's stable identifier.
func (a *Actor) ID() string { return a.id }

// WithMutatedStrategy returns a fresh Actor carrying the same id and
// immutable core but a new layer-2 strategy and sampling settings. The
// receiver is never modified; the Mutator always gets a new value back
// (spec.md §4.6 — mutation replaces an actor's strategy, not its identity).
func (a *Actor) WithMutatedStrategy(newStrategy string, newHyperparameters domain.Hyperparameters) *Actor {
	return &Actor{
		id:            a.id,
		immutableCore: a.immutableCore,
		strategy:      newStrategy,
		hyperparams:   newHyperparameters,
		gw:            a.gw,
	}
}

// Strategy returns the actor's current layer-2 strategy text, for the
// Mutator to read before proposing variants.
func (a *Actor) Strategy() string { return a.strategy }

// Hyperparameters returns the actor's current sampling settings.
func (a *Actor) Hyperparameters() domain.Hyperparameters { return a.hyperparams }

// #endregion actor

// #region propose

// Propose builds the three-layer system content, attaches the state
// payload as the user message, and invokes the Model Gateway for a
// schema-validated ActionProposal. validationError, when non-empty, is
// appended as a correction note for a retried turn (spec.md §4.1 step 4).
func (a *Actor) Propose(ctx context.Context, payload environment.TurnPayload, validationError string) (domain.ActionProposal, int, error) {
	system := a.immutableCore + "\n\n" + a.strategy
	if validationError != "" {
		system += fmt.Sprintf("\n\nYour previous turn failed schema validation: %s\nCorrect the issue and respond again with a fully valid action_proposal object.", validationError)
	}

	userMessage, err := json.Marshal(payload)
	if err != nil {
		return domain.ActionProposal{}, 0, fmt.Errorf("actor %s: marshal turn payload: %w", a.id, err)
	}

	req := gateway.Request{
		SystemPrompt:     system,
		UserMessage:      string(userMessage),
		Temperature:      a.hyperparams.Temperature,
		FrequencyPenalty: a.hyperparams.FrequencyPenalty,
		Schema:           schemas.ActionProposal,
	}

	obj, usage, err := a.gw.GenerateStructured(ctx, req)
	if err != nil {
		return domain.ActionProposal{}, usage.TotalTokens, err
	}

	raw, err := json.Marshal(obj)
	if err != nil {
		return domain.ActionProposal{}, usage.TotalTokens, fmt.Errorf("actor %s: re-marshal validated proposal: %w", a.id, err)
	}
	var proposal domain.ActionProposal
	if err := json.Unmarshal(raw, &proposal); err != nil {
		return domain.ActionProposal{}, usage.TotalTokens, fmt.Errorf("actor %s: decode validated proposal: %w", a.id, err)
	}

	return proposal, usage.TotalTokens, nil
}

// #endregion propose
