// Package critic implements the Judge meta-agent: a stateless reviewer
// that scores every participant once an episode finishes (spec.md §4.3).
package critic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kibbyd/negotiation-engine/internal/domain"
	"github.com/kibbyd/negotiation-engine/internal/gateway"
	"github.com/kibbyd/negotiation-engine/internal/schemas"
)

// #region critic

const systemPrompt = `You are the Judge for a multi-agent negotiation simulation. You receive
the initial state, the final state, and the complete transcript of an
episode. You score every participating agent on a scale from -5 (badly
undermined their own or the collective goal) to 5 (excellent outcome),
with a short rationale per score. You are not a participant: never
propose actions, only evaluate what already happened.`

// Critic is stateless; a single value is reused across every episode.
type Critic struct {
	gw          *gateway.Gateway
	temperature float64
}

// New constructs a Critic. temperature should be low (spec.md §4.3
// calls for a low-variance, consistent scorer).
func New(gw *gateway.Gateway, temperature float64) *Critic {
	return &Critic{gw: gw, temperature: temperature}
}

type episodeView struct {
	InitialState domain.StateObject       `json:"initial_state"`
	FinalState   domain.StateObject       `json:"final_state"`
	Transcript   []domain.ActionLogEntry  `json:"transcript"`
}

// Score reviews one finished episode and returns a verdict plus token
// usage for the caller to fold into the episode's budget.
func (c *Critic) Score(ctx context.Context, initial, final domain.StateObject, log []domain.ActionLogEntry) (domain.CriticVerdict, int, error) {
	view := episodeView{InitialState: initial, FinalState: final, Transcript: log}
	userMessage, err := json.Marshal(view)
	if err != nil {
		return domain.CriticVerdict{}, 0, fmt.Errorf("critic: marshal episode view: %w", err)
	}

	req := gateway.Request{
		SystemPrompt: systemPrompt,
		UserMessage:  string(userMessage),
		Temperature:  c.temperature,
		Schema:       schemas.CriticVerdict,
	}

	obj, usage, err := c.gw.GenerateStructured(ctx, req)
	if err != nil {
		return domain.CriticVerdict{}, usage.TotalTokens, err
	}

	raw, err := json.Marshal(obj)
	if err != nil {
		return domain.CriticVerdict{}, usage.TotalTokens, fmt.Errorf("critic: re-marshal verdict: %w", err)
	}
	var verdict domain.CriticVerdict
	if err := json.Unmarshal(raw, &verdict); err != nil {
		return domain.CriticVerdict{}, usage.TotalTokens, fmt.Errorf("critic: decode verdict: %w", err)
	}

	return verdict, usage.TotalTokens, nil
}

// ScoresByAgent flattens a verdict into the agent_id -> score map the
// Mutator and persistence layer expect.
func ScoresByAgent(verdict domain.CriticVerdict) map[string]int {
	out := make(map[string]int, len(verdict.Scores))
	for _, s := range verdict.Scores {
		out[s.AgentID] = s.Score
	}
	return out
}

// Summary renders a short human-readable line per agent, used in logs
// and the human-approval inbox.
func Summary(verdict domain.CriticVerdict) string {
	var b strings.Builder
	for i, s := range verdict.Scores {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s=%d (%s)", s.AgentID, s.Score, s.Rationale)
	}
	return b.String()
}

// #endregion critic
