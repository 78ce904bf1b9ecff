// Package capitalizer implements the Capitalizer meta-agent: it watches
// recent turns for overlapping interests the participants have not yet
// noticed and surfaces a strategic hint (spec.md §4.4). It never sees
// internal monologues verbatim in what it returns — redaction happens
// in the Environment, not here.
package capitalizer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kibbyd/negotiation-engine/internal/domain"
	"github.com/kibbyd/negotiation-engine/internal/gateway"
	"github.com/kibbyd/negotiation-engine/internal/schemas"
)

// #region capitalizer

const systemPrompt = `You are the Capitalizer, a meta-agent watching a multi-agent
negotiation unfold. Given the most recent turns and the current shared
state, decide whether the participants have an unrecognized overlap of
interest they could capitalize on. If so, describe it as a short
strategic hint the next speaker could act on without giving away any
single participant's private reasoning. If there is no clear overlap,
report overlap_detected=false with a low confidence_score.`

// Capitalizer satisfies environment.Capitalizer.
type Capitalizer struct {
	gw          *gateway.Gateway
	temperature float64
}

// New constructs a Capitalizer.
func New(gw *gateway.Gateway, temperature float64) *Capitalizer {
	return &Capitalizer{gw: gw, temperature: temperature}
}

type analysisView struct {
	RecentTurns []domain.ActionLogEntry `json:"recent_turns"`
	State       domain.StateObject      `json:"state"`
}

// Analyze returns a CapitalizerHint built from the recent log window
// and current state. The Environment is responsible for redacting any
// leaked monologue fragment before injecting it.
func (c *Capitalizer) Analyze(ctx context.Context, recent []domain.ActionLogEntry, state domain.StateObject) (domain.CapitalizerHint, int, error) {
	view := analysisView{RecentTurns: recent, State: state}
	userMessage, err := json.Marshal(view)
	if err != nil {
		return domain.CapitalizerHint{}, 0, fmt.Errorf("capitalizer: marshal view: %w", err)
	}

	req := gateway.Request{
		SystemPrompt: systemPrompt,
		UserMessage:  string(userMessage),
		Temperature:  c.temperature,
		Schema:       schemas.CapitalizerHint,
	}

	obj, usage, err := c.gw.GenerateStructured(ctx, req)
	if err != nil {
		return domain.CapitalizerHint{}, usage.TotalTokens, err
	}

	raw, err := json.Marshal(obj)
	if err != nil {
		return domain.CapitalizerHint{}, usage.TotalTokens, fmt.Errorf("capitalizer: re-marshal hint: %w", err)
	}
	var hint domain.CapitalizerHint
	if err := json.Unmarshal(raw, &hint); err != nil {
		return domain.CapitalizerHint{}, usage.TotalTokens, fmt.Errorf("capitalizer: decode hint: %w", err)
	}

	return hint, usage.TotalTokens, nil
}

// #endregion capitalizer
