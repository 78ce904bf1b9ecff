package mutator

import (
	"context"
	"testing"

	"github.com/kibbyd/negotiation-engine/internal/domain"
)

func TestWorstSliceTakesCeilingOfTwentyPercent(t *testing.T) {
	var results []domain.EpochResult
	for i := 0; i < 7; i++ {
		results = append(results, domain.EpochResult{Scores: map[string]int{"A": i}})
	}

	worst := WorstSlice("A", results)
	// ceil(7 * 0.2) = ceil(1.4) = 2
	if len(worst) != 2 {
		t.Fatalf("expected 2 worst episodes, got %d", len(worst))
	}
	if worst[0].Score != 0 || worst[1].Score != 1 {
		t.Fatalf("expected ascending worst scores [0 1], got [%d %d]", worst[0].Score, worst[1].Score)
	}
}

func TestWorstSliceIgnoresAgentsWithoutScore(t *testing.T) {
	results := []domain.EpochResult{
		{Scores: map[string]int{"B": 5}},
	}
	if got := WorstSlice("A", results); got != nil {
		t.Fatalf("expected nil for actor with no scores, got %#v", got)
	}
}

func TestEvaluateRejectsWhenLCBDoesNotClearMargin(t *testing.T) {
	m := New(nil, 0.5)
	variants := []domain.MutationVariant{{VariantID: "v1"}, {VariantID: "v2"}}
	baseline := []float64{3, 3, 3, 3, 3}

	runner := func(_ context.Context, v domain.MutationVariant, episodes, maxTurns int) ([]float64, error) {
		// both variants perform identically to baseline: no real improvement
		out := make([]float64, episodes)
		for i := range out {
			out[i] = 3
		}
		return out, nil
	}

	cfg := AcceptanceConfig{
		FastPruneEpisodes: 3,
		FastPruneMaxTurns: 3,
		FullTrialMaxTurns: 10,
		ShadowTrialCount:  5,
		ImprovementMargin: 0.5,
		LCBLambda:         1.0,
		PValueThreshold:   0.05,
	}

	result, accepted, err := m.Evaluate(context.Background(), "A", variants, baseline, runner, cfg)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if accepted {
		t.Fatal("expected rejection when variant does not clear improvement margin")
	}
	if result.RejectReason == "" {
		t.Fatal("expected a reject reason")
	}
	if m.PlateauCount("A") != 1 {
		t.Fatalf("expected plateau counter incremented to 1, got %d", m.PlateauCount("A"))
	}
}

func TestEvaluateAcceptsClearImprovement(t *testing.T) {
	m := New(nil, 0.5)
	variants := []domain.MutationVariant{{VariantID: "v1"}}
	baseline := []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1}

	runner := func(_ context.Context, v domain.MutationVariant, episodes, maxTurns int) ([]float64, error) {
		out := make([]float64, episodes)
		for i := range out {
			out[i] = 5
		}
		return out, nil
	}

	cfg := AcceptanceConfig{
		FastPruneEpisodes: 3,
		FastPruneMaxTurns: 3,
		FullTrialMaxTurns: 10,
		ShadowTrialCount:  10,
		ImprovementMargin: 0.5,
		LCBLambda:         1.0,
		PValueThreshold:   0.05,
	}

	result, accepted, err := m.Evaluate(context.Background(), "A", variants, baseline, runner, cfg)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !accepted {
		t.Fatalf("expected acceptance, got rejection: %s", result.RejectReason)
	}
	if m.PlateauCount("A") != 0 {
		t.Fatalf("expected plateau counter reset to 0, got %d", m.PlateauCount("A"))
	}
	if m.IsPlateaued("A", 1) {
		t.Fatal("expected not plateaued immediately after acceptance")
	}
}

func TestIsPlateauedReachesPatience(t *testing.T) {
	m := New(nil, 0.5)
	variants := []domain.MutationVariant{{VariantID: "v1"}}
	baseline := []float64{3, 3, 3}

	runner := func(_ context.Context, v domain.MutationVariant, episodes, maxTurns int) ([]float64, error) {
		out := make([]float64, episodes)
		for i := range out {
			out[i] = 3
		}
		return out, nil
	}
	cfg := AcceptanceConfig{
		FastPruneEpisodes: 2, FastPruneMaxTurns: 2, FullTrialMaxTurns: 5,
		ShadowTrialCount: 3, ImprovementMargin: 0.5, LCBLambda: 1.0, PValueThreshold: 0.05,
	}

	for i := 0; i < 2; i++ {
		if _, accepted, err := m.Evaluate(context.Background(), "A", variants, baseline, runner, cfg); err != nil || accepted {
			t.Fatalf("iteration %d: expected rejection, err=%v accepted=%v", i, err, accepted)
		}
	}
	if !m.IsPlateaued("A", 2) {
		t.Fatalf("expected plateaued at patience 2, counter=%d", m.PlateauCount("A"))
	}
}
