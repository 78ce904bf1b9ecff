// Package mutator implements the Mutator meta-agent (spec.md §4.6):
// proposes strategy variants for a primary actor from its worst recent
// episodes, runs them through Successive-Halving shadow trials, and
// gates acceptance on a statistically significant improvement over the
// current epoch's baseline.
package mutator

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/kibbyd/negotiation-engine/internal/domain"
	"github.com/kibbyd/negotiation-engine/internal/gateway"
	"github.com/kibbyd/negotiation-engine/internal/memory"
	"github.com/kibbyd/negotiation-engine/internal/schemas"
	"github.com/kibbyd/negotiation-engine/internal/statistics"
)

// #region mutator

// Mutator generates and gates strategy variants for one actor at a
// time, tracking its own plateau counter (spec.md §4.6 Phase C).
type Mutator struct {
	gw              *gateway.Gateway
	temperature     float64
	plateauCounters map[string]int
}

// New constructs a Mutator.
func New(gw *gateway.Gateway, temperature float64) *Mutator {
	return &Mutator{gw: gw, temperature: temperature, plateauCounters: map[string]int{}}
}

// PlateauCount returns the current plateau counter for an actor.
func (m *Mutator) PlateauCount(actorID string) int { return m.plateauCounters[actorID] }

// IsPlateaued reports whether an actor's plateau counter has reached
// patience, the signal the Orchestrator uses to consult the Provisioner.
func (m *Mutator) IsPlateaued(actorID string, patience int) bool {
	return m.plateauCounters[actorID] >= patience
}

func (m *Mutator) resetPlateau(actorID string)     { m.plateauCounters[actorID] = 0 }
func (m *Mutator) incrementPlateau(actorID string) { m.plateauCounters[actorID]++ }

// Reset clears an actor's plateau counter. The Orchestrator calls this
// after a successful Creation phase: a new participant changes the
// negotiation enough that a past plateau no longer applies.
func (m *Mutator) Reset(actorID string) { m.resetPlateau(actorID) }

// #endregion mutator

// #region phase a — generation

// FailingEpisode is one summarized episode from the worst-20% slice an
// actor's scores produced this epoch.
type FailingEpisode struct {
	FinalState domain.StateObject `json:"final_state"`
	Score      int                `json:"score"`
}

// WorstSlice sorts epochResults ascending by actorID's score and returns
// the worst ceil(20%), at least one episode if any exist (spec.md §4.6
// Phase A).
func WorstSlice(actorID string, results []domain.EpochResult) []FailingEpisode {
	type scored struct {
		result domain.EpochResult
		score  int
	}
	var withScore []scored
	for _, r := range results {
		if s, ok := r.Scores[actorID]; ok {
			withScore = append(withScore, scored{result: r, score: s})
		}
	}
	if len(withScore) == 0 {
		return nil
	}

	sort.Slice(withScore, func(i, j int) bool { return withScore[i].score < withScore[j].score })

	n := len(withScore) / 5
	if len(withScore)%5 != 0 {
		n++
	}
	if n < 1 {
		n = 1
	}
	if n > len(withScore) {
		n = len(withScore)
	}

	out := make([]FailingEpisode, 0, n)
	for _, s := range withScore[:n] {
		out = append(out, FailingEpisode{FinalState: s.result.FinalState, Score: s.score})
	}
	return out
}

const systemPrompt = `You are the Mutator for a multi-agent negotiation simulation. Given an
actor's current strategy text, its current hyperparameters, and a
summary of its worst recent episodes, propose candidate strategy
variants that might outperform the incumbent. Each variant must stand
on its own as a complete replacement strategy text, not a diff or
patch. Vary both the strategy text and the sampling hyperparameters
across variants.`

type proposeView struct {
	ActorID            string                  `json:"actor_id"`
	CurrentStrategy    string                  `json:"current_strategy"`
	CurrentHyperparams domain.Hyperparameters  `json:"current_hyperparameters"`
	FailingEpisodes    []FailingEpisode        `json:"failing_episodes"`
	PriorFailures      []memory.FailureRecord  `json:"prior_failures,omitempty"`
	VariantCount       int                     `json:"requested_variant_count"`
}

// Propose generates exactly mutationVariants candidate MutationVariants
// for one actor given its worst-20% failing slice (spec.md §4.6 Phase A).
// priorFailures is the FailureRetriever's gate-3 output for this actor's
// current failure description, if any — past episodes similar enough to
// the ones currently dragging the actor down to be worth the model
// summarizing alongside them.
func (m *Mutator) Propose(ctx context.Context, actorID, currentStrategy string, currentHP domain.Hyperparameters, failing []FailingEpisode, priorFailures []memory.FailureRecord, mutationVariants int) (domain.MutatorProposal, int, error) {
	view := proposeView{
		ActorID:            actorID,
		CurrentStrategy:    currentStrategy,
		CurrentHyperparams: currentHP,
		FailingEpisodes:    failing,
		PriorFailures:      priorFailures,
		VariantCount:       mutationVariants,
	}
	userMessage, err := json.Marshal(view)
	if err != nil {
		return domain.MutatorProposal{}, 0, fmt.Errorf("mutator: marshal view: %w", err)
	}

	req := gateway.Request{
		SystemPrompt: systemPrompt,
		UserMessage:  string(userMessage),
		Temperature:  m.temperature,
		Schema:       schemas.MutatorProposal,
	}

	obj, usage, err := m.gw.GenerateStructured(ctx, req)
	if err != nil {
		return domain.MutatorProposal{}, usage.TotalTokens, err
	}

	raw, err := json.Marshal(obj)
	if err != nil {
		return domain.MutatorProposal{}, usage.TotalTokens, fmt.Errorf("mutator: re-marshal proposal: %w", err)
	}
	var proposal domain.MutatorProposal
	if err := json.Unmarshal(raw, &proposal); err != nil {
		return domain.MutatorProposal{}, usage.TotalTokens, fmt.Errorf("mutator: decode proposal: %w", err)
	}
	if len(proposal.Variants) == 0 {
		return domain.MutatorProposal{}, usage.TotalTokens, fmt.Errorf("mutator: model returned zero variants")
	}

	return proposal, usage.TotalTokens, nil
}

// #endregion phase a — generation

// #region phase b/c — shadow trials and acceptance

// ShadowTrialRunner runs a variant through episodes episodes capped at
// maxTurns each and returns one target-agent score per episode. The
// Mutator never runs episodes itself — the Orchestrator supplies this
// closure so it can wire a fresh Environment/Actor/Critic per trial
// against the frozen opponents.
type ShadowTrialRunner func(ctx context.Context, variant domain.MutationVariant, episodes, maxTurns int) ([]float64, error)

// AcceptanceConfig mirrors the run configuration's statistical gate
// (spec.md §6).
type AcceptanceConfig struct {
	FastPruneEpisodes int
	FastPruneMaxTurns int
	FullTrialMaxTurns int
	ShadowTrialCount  int
	ImprovementMargin float64
	LCBLambda         float64
	PValueThreshold   float64
}

// fastPruneResult pairs a variant with its cheap fast-prune scores.
type fastPruneResult struct {
	variant domain.MutationVariant
	scores  []float64
	mean    float64
}

// EvaluationResult is one variant's full shadow-trial outcome.
type EvaluationResult struct {
	Variant      domain.MutationVariant
	FastScores   []float64
	FullScores   []float64
	LCB          float64
	PValue       float64
	RejectReason string
}

// Evaluate runs Successive Halving across every proposed variant: a
// cheap fast-prune pass for all of them (Phase B), keeping the top half
// by fast-prune mean; then a full shadow_trial_count batch for the
// survivors (also Phase B); then the LCB + Mann-Whitney acceptance gate
// against baselineScores — the target agent's scores from the current
// epoch — selecting the single highest-LCB survivor (Phase C).
//
// On acceptance the plateau counter for actorID resets; on rejection it
// increments. The caller is responsible for applying the accepted
// variant to the actor (actor.WithMutatedStrategy).
func (m *Mutator) Evaluate(ctx context.Context, actorID string, variants []domain.MutationVariant, baselineScores []float64, runner ShadowTrialRunner, cfg AcceptanceConfig) (EvaluationResult, bool, error) {
	fastResults := make([]fastPruneResult, 0, len(variants))
	for _, v := range variants {
		scores, err := runner(ctx, v, cfg.FastPruneEpisodes, cfg.FastPruneMaxTurns)
		if err != nil {
			return EvaluationResult{}, false, fmt.Errorf("mutator: fast-prune trial for variant %s: %w", v.VariantID, err)
		}
		fastResults = append(fastResults, fastPruneResult{variant: v, scores: scores, mean: statistics.Mean(scores)})
	}

	sort.Slice(fastResults, func(i, j int) bool { return fastResults[i].mean > fastResults[j].mean })
	keep := len(fastResults) / 2
	if keep < 1 {
		keep = 1
	}
	survivors := fastResults[:keep]

	baselineMean := statistics.Mean(baselineScores)

	var candidates []EvaluationResult
	for _, s := range survivors {
		fullScores, err := runner(ctx, s.variant, cfg.ShadowTrialCount, cfg.FullTrialMaxTurns)
		if err != nil {
			return EvaluationResult{}, false, fmt.Errorf("mutator: full shadow trial for variant %s: %w", s.variant.VariantID, err)
		}
		lcb := statistics.LowerConfidenceBound(fullScores, cfg.LCBLambda)
		mw := statistics.MannWhitneyUTest(fullScores, baselineScores)
		candidates = append(candidates, EvaluationResult{
			Variant:    s.variant,
			FastScores: s.scores,
			FullScores: fullScores,
			LCB:        lcb,
			PValue:     mw.PValue,
		})
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].LCB > candidates[j].LCB })
	best := candidates[0]

	if best.LCB <= baselineMean+cfg.ImprovementMargin {
		best.RejectReason = fmt.Sprintf("LCB %.3f does not clear baseline mean %.3f + margin %.3f", best.LCB, baselineMean, cfg.ImprovementMargin)
		m.incrementPlateau(actorID)
		return best, false, nil
	}
	if best.PValue >= cfg.PValueThreshold {
		best.RejectReason = fmt.Sprintf("Mann-Whitney p=%.4f does not clear threshold %.4f", best.PValue, cfg.PValueThreshold)
		m.incrementPlateau(actorID)
		return best, false, nil
	}

	m.resetPlateau(actorID)
	return best, true, nil
}

// #endregion phase b/c — shadow trials and acceptance
