// Package explorer implements the Explorer meta-agent (spec.md §4.8):
// an optional, periodic scan of an in-memory ingredient graph that
// surfaces convergence hypotheses for the Orchestrator to inject into
// subsequent episodes' scout_hypotheses.
package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/kibbyd/negotiation-engine/internal/domain"
	"github.com/kibbyd/negotiation-engine/internal/gateway"
	"github.com/kibbyd/negotiation-engine/internal/schemas"
	"github.com/kibbyd/negotiation-engine/internal/websearch"
)

// #region explorer

const systemPrompt = `You are the Explorer for a multi-agent negotiation simulation. You scan
a graph of ingredients — prior strategies, disruptions, and state
fragments that have appeared across past episodes — looking for
combinations likely to break the current deadlock. Propose convergence
hypotheses: concrete ideas, each naming a feasibility score from 1 to
10 and the disruption mechanism it targets. Prefer ingredients that
co-occur with past success over novelty for its own sake.`

// Explorer scans the ingredient graph and proposes ConvergenceHypothesis
// records. It runs far less often than the other meta-agents — only on
// the Orchestrator's scout_sweep_interval_generations cadence.
type Explorer struct {
	gw          *gateway.Gateway
	temperature float64
	search      websearch.Config
}

// New constructs an Explorer. search controls whether ScanWithResearch
// folds web-search evidence into the scan request.
func New(gw *gateway.Gateway, temperature float64, search websearch.Config) *Explorer {
	return &Explorer{gw: gw, temperature: temperature, search: search}
}

type scanView struct {
	Ingredients  []domain.Ingredient `json:"ingredients"`
	ResearchNote string              `json:"research_note,omitempty"`
}

// Scan proposes ConvergenceHypothesis records from the current
// ingredient graph via structured generation. On any generation or
// decode failure it falls back to Fallback, a deterministic heuristic
// that never calls the model.
func (e *Explorer) Scan(ctx context.Context, ingredients []domain.Ingredient) ([]domain.ConvergenceHypothesis, int, error) {
	return e.scan(ctx, ingredients, "")
}

// ScanWithResearch behaves like Scan but injects pre-fetched web-search
// results, formatted as supplementary evidence, into the scan request,
// and appends a source attribution to every hypothesis the scan
// returns: a research-informed hypothesis should say so.
func (e *Explorer) ScanWithResearch(ctx context.Context, ingredients []domain.Ingredient, research []websearch.Result) ([]domain.ConvergenceHypothesis, int, error) {
	note := ""
	if e.search.Enabled {
		note = websearch.FormatAsEvidence(research, e.search.EntropyThreshold)
	}
	hypotheses, tokens, err := e.scan(ctx, ingredients, note)
	if note == "" {
		return hypotheses, tokens, err
	}
	attribution := websearch.Attribution(research)
	if attribution == "" {
		return hypotheses, tokens, err
	}
	for i := range hypotheses {
		hypotheses[i].Rationale += attribution
	}
	return hypotheses, tokens, err
}

func (e *Explorer) scan(ctx context.Context, ingredients []domain.Ingredient, researchNote string) ([]domain.ConvergenceHypothesis, int, error) {
	view := scanView{Ingredients: ingredients, ResearchNote: researchNote}
	userMessage, err := json.Marshal(view)
	if err != nil {
		return nil, 0, fmt.Errorf("explorer: marshal scan view: %w", err)
	}

	req := gateway.Request{
		SystemPrompt: systemPrompt,
		UserMessage:  string(userMessage),
		Temperature:  e.temperature,
		Schema:       schemas.ConvergenceHypotheses,
	}

	obj, usage, err := e.gw.GenerateStructured(ctx, req)
	if err != nil {
		return Fallback(ingredients), usage.TotalTokens, nil
	}

	raw, err := json.Marshal(obj)
	if err != nil {
		return Fallback(ingredients), usage.TotalTokens, nil
	}
	var decoded struct {
		Hypotheses []domain.ConvergenceHypothesis `json:"hypotheses"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil || len(decoded.Hypotheses) == 0 {
		return Fallback(ingredients), usage.TotalTokens, nil
	}

	return decoded.Hypotheses, usage.TotalTokens, nil
}

// #endregion explorer

// #region fallback

// Fallback deterministically scores ingredients by tag co-occurrence and
// description length, with no model call — grounded on the same
// string-heuristic scoring style used elsewhere in this codebase for
// no-model-call evaluation. It always returns at least one hypothesis
// so the Orchestrator's scout_hypotheses injection never goes empty.
func Fallback(ingredients []domain.Ingredient) []domain.ConvergenceHypothesis {
	if len(ingredients) == 0 {
		return []domain.ConvergenceHypothesis{{
			Title:            "no ingredients observed yet",
			FeasibilityScore: 1,
			DisruptionTarget: "none",
			Rationale:        "the ingredient graph is empty; nothing to converge on",
		}}
	}

	tagCounts := make(map[string]int)
	for _, ing := range ingredients {
		for _, tag := range ing.Tags {
			tagCounts[strings.ToLower(tag)]++
		}
	}

	type scored struct {
		ingredient domain.Ingredient
		score      int
	}
	var ranked []scored
	for _, ing := range ingredients {
		score := len(ing.Description) / 20
		for _, tag := range ing.Tags {
			score += tagCounts[strings.ToLower(tag)]
		}
		ranked = append(ranked, scored{ingredient: ing, score: score})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	top := ranked[0]
	feasibility := top.score
	if feasibility > 10 {
		feasibility = 10
	}
	if feasibility < 1 {
		feasibility = 1
	}

	target := "unspecified"
	if len(top.ingredient.Tags) > 0 {
		target = top.ingredient.Tags[0]
	}

	return []domain.ConvergenceHypothesis{{
		Title:            fmt.Sprintf("lean on %s", top.ingredient.Name),
		FeasibilityScore: feasibility,
		DisruptionTarget: target,
		Rationale:        "heuristic fallback: highest tag co-occurrence and description weight in the ingredient graph",
	}}
}

// #endregion fallback
