// Package provisioner implements the Provisioner meta-agent (spec.md
// §4.7): triggered when the Mutator has plateaued, it diagnoses the
// deadlock in free text, then proposes a brand-new participant via
// structured generation, subject to hard safety guardrails the
// Orchestrator never overrides.
package provisioner

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kibbyd/negotiation-engine/internal/domain"
	"github.com/kibbyd/negotiation-engine/internal/gateway"
	"github.com/kibbyd/negotiation-engine/internal/schemas"
)

// #region provisioner

const analysisPrompt = `You are the Provisioner for a multi-agent negotiation simulation. The
Mutator has run out of strategy improvements for the current roster —
this negotiation is deadlocked. Given the initial state, this epoch's
results, and archetypes already tried and rejected, write a short
free-text diagnosis of why the current participants cannot break the
deadlock, and what kind of new participant could.`

const designPrompt = `You are the Provisioner. Based on your own deadlock diagnosis, design one
new participant: its archetype, system prompt, core goals, how often it
should speak (e.g. "speak_every_3_turns"), and the state fields it may
or may not modify. New participants must never be given the power to
end the episode outright or to close the deal themselves — they
influence, they don't decide.`

// Provisioner designs new participants when the Mutator plateaus.
type Provisioner struct {
	gw          *gateway.Gateway
	temperature float64
}

// New constructs a Provisioner.
func New(gw *gateway.Gateway, temperature float64) *Provisioner {
	return &Provisioner{gw: gw, temperature: temperature}
}

type diagnosisView struct {
	InitialState     domain.StateObject   `json:"initial_state"`
	EpochResults     []domain.EpochResult `json:"epoch_results"`
	FailedArchetypes []string             `json:"failed_archetypes"`
}

// Diagnose produces a free-text deadlock analysis (spec.md §4.7, first
// model call).
func (p *Provisioner) Diagnose(ctx context.Context, initial domain.StateObject, epochResults []domain.EpochResult, failedArchetypes []string) (string, int, error) {
	view := diagnosisView{InitialState: initial, EpochResults: epochResults, FailedArchetypes: failedArchetypes}
	userMessage, err := json.Marshal(view)
	if err != nil {
		return "", 0, fmt.Errorf("provisioner: marshal diagnosis view: %w", err)
	}

	req := gateway.Request{
		SystemPrompt: analysisPrompt,
		UserMessage:  string(userMessage),
		Temperature:  p.temperature,
	}

	text, usage, err := p.gw.GenerateText(ctx, req)
	if err != nil {
		return "", usage.TotalTokens, err
	}
	return text, usage.TotalTokens, nil
}

// Design produces a structured NewAgentProvisioning from a prior
// diagnosis (spec.md §4.7, second model call).
func (p *Provisioner) Design(ctx context.Context, diagnosis string, failedArchetypes []string) (domain.NewAgentProvisioning, int, error) {
	userMessage, err := json.Marshal(struct {
		Diagnosis        string   `json:"diagnosis"`
		FailedArchetypes []string `json:"failed_archetypes"`
	}{Diagnosis: diagnosis, FailedArchetypes: failedArchetypes})
	if err != nil {
		return domain.NewAgentProvisioning{}, 0, fmt.Errorf("provisioner: marshal design view: %w", err)
	}

	req := gateway.Request{
		SystemPrompt: designPrompt,
		UserMessage:  string(userMessage),
		Temperature:  p.temperature,
		Schema:       schemas.NewAgentProvisioning,
	}

	obj, usage, err := p.gw.GenerateStructured(ctx, req)
	if err != nil {
		return domain.NewAgentProvisioning{}, usage.TotalTokens, err
	}

	raw, err := json.Marshal(obj)
	if err != nil {
		return domain.NewAgentProvisioning{}, usage.TotalTokens, fmt.Errorf("provisioner: re-marshal provisioning: %w", err)
	}
	var provisioning domain.NewAgentProvisioning
	if err := json.Unmarshal(raw, &provisioning); err != nil {
		return domain.NewAgentProvisioning{}, usage.TotalTokens, fmt.Errorf("provisioner: decode provisioning: %w", err)
	}

	if err := ApplyGuardrails(provisioning); err != nil {
		// Return the decoded provisioning alongside the error so the caller
		// can still archive its archetype (spec.md §4.9 UnsafeAgentDesign).
		return provisioning, usage.TotalTokens, err
	}

	return provisioning, usage.TotalTokens, nil
}

// #endregion provisioner

// #region guardrails

// GuardrailViolation reports that a proposed NewAgentProvisioning
// exceeds the power a created agent is ever allowed to hold, regardless
// of what the model proposed.
type GuardrailViolation struct {
	Reason string
}

func (e *GuardrailViolation) Error() string {
	return fmt.Sprintf("provisioner: guardrail violation: %s", e.Reason)
}

// ApplyGuardrails enforces the spec.md §4.7 safety guardrails applied
// after generation: a created agent may never abort the episode,
// propose resolution itself, or make more than 3 mutations per turn.
func ApplyGuardrails(p domain.NewAgentProvisioning) error {
	if p.Permissions.CanAbortEpisode {
		return &GuardrailViolation{Reason: "can_abort_episode must be false for a created agent"}
	}
	if p.Permissions.CanProposeResolution {
		return &GuardrailViolation{Reason: "can_propose_resolution must be false for a created agent"}
	}
	if p.Permissions.MaxStateMutationsPerTurn > 3 {
		return &GuardrailViolation{Reason: fmt.Sprintf("max_state_mutations_per_turn %d exceeds cap of 3", p.Permissions.MaxStateMutationsPerTurn)}
	}
	return nil
}

// #endregion guardrails
