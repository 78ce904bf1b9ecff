// Package disruptor implements the two disruptor meta-agents (spec.md
// §4.5): an information disruptor that periodically injects an external
// headline into the transcript, and a tension disruptor that rereads the
// running negotiation and reports a new ambient tension level.
package disruptor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kibbyd/negotiation-engine/internal/domain"
	"github.com/kibbyd/negotiation-engine/internal/gateway"
	"github.com/kibbyd/negotiation-engine/internal/schemas"
)

// #region information disruptor

const infoSystemPrompt = `You are the Information Disruptor. Given the most recent turns of a
negotiation, invent one plausible external news headline that would be
relevant background noise to the participants — not resolving the
negotiation, just raising or lowering the stakes. Rate its severity as
low, medium, or high, and say whether it should be injected into the
transcript now.`

// InformationDisruptor satisfies environment.InformationDisruptor.
type InformationDisruptor struct {
	gw          *gateway.Gateway
	temperature float64
}

// NewInformationDisruptor constructs an InformationDisruptor.
func NewInformationDisruptor(gw *gateway.Gateway, temperature float64) *InformationDisruptor {
	return &InformationDisruptor{gw: gw, temperature: temperature}
}

// Observe returns an InformationDisruption built from the recent log window.
func (d *InformationDisruptor) Observe(ctx context.Context, recent []domain.ActionLogEntry) (domain.InformationDisruption, int, error) {
	userMessage, err := json.Marshal(struct {
		RecentTurns []domain.ActionLogEntry `json:"recent_turns"`
	}{RecentTurns: recent})
	if err != nil {
		return domain.InformationDisruption{}, 0, fmt.Errorf("info disruptor: marshal view: %w", err)
	}

	req := gateway.Request{
		SystemPrompt: infoSystemPrompt,
		UserMessage:  string(userMessage),
		Temperature:  d.temperature,
		Schema:       schemas.InformationDisruption,
	}

	obj, usage, err := d.gw.GenerateStructured(ctx, req)
	if err != nil {
		return domain.InformationDisruption{}, usage.TotalTokens, err
	}

	raw, err := json.Marshal(obj)
	if err != nil {
		return domain.InformationDisruption{}, usage.TotalTokens, fmt.Errorf("info disruptor: re-marshal: %w", err)
	}
	var disruption domain.InformationDisruption
	if err := json.Unmarshal(raw, &disruption); err != nil {
		return domain.InformationDisruption{}, usage.TotalTokens, fmt.Errorf("info disruptor: decode: %w", err)
	}

	return disruption, usage.TotalTokens, nil
}

// #endregion information disruptor

// #region tension disruptor

const tensionSystemPrompt = `You are the Tension Disruptor. Given the full action log and the
current state of a negotiation, read the emotional temperature of the
exchange and report a new ambient tension level from 1 (calm,
cooperative) to 10 (near-breakdown), with a one-line rationale.`

// TensionDisruptor satisfies environment.TensionDisruptor.
type TensionDisruptor struct {
	gw          *gateway.Gateway
	temperature float64
}

// NewTensionDisruptor constructs a TensionDisruptor.
func NewTensionDisruptor(gw *gateway.Gateway, temperature float64) *TensionDisruptor {
	return &TensionDisruptor{gw: gw, temperature: temperature}
}

type tensionView struct {
	Log   []domain.ActionLogEntry `json:"log"`
	State domain.StateObject      `json:"state"`
}

// Read returns a TensionReading for the full log and current state.
func (d *TensionDisruptor) Read(ctx context.Context, log []domain.ActionLogEntry, state domain.StateObject) (domain.TensionReading, int, error) {
	view := tensionView{Log: log, State: state}
	userMessage, err := json.Marshal(view)
	if err != nil {
		return domain.TensionReading{}, 0, fmt.Errorf("tension disruptor: marshal view: %w", err)
	}

	req := gateway.Request{
		SystemPrompt: tensionSystemPrompt,
		UserMessage:  string(userMessage),
		Temperature:  d.temperature,
		Schema:       schemas.TensionReading,
	}

	obj, usage, err := d.gw.GenerateStructured(ctx, req)
	if err != nil {
		return domain.TensionReading{}, usage.TotalTokens, err
	}

	raw, err := json.Marshal(obj)
	if err != nil {
		return domain.TensionReading{}, usage.TotalTokens, fmt.Errorf("tension disruptor: re-marshal: %w", err)
	}
	var reading domain.TensionReading
	if err := json.Unmarshal(raw, &reading); err != nil {
		return domain.TensionReading{}, usage.TotalTokens, fmt.Errorf("tension disruptor: decode: %w", err)
	}

	return reading, usage.TotalTokens, nil
}

// #endregion tension disruptor
