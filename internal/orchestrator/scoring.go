package orchestrator

import "github.com/kibbyd/negotiation-engine/internal/domain"

// #region scoring helpers

// allAgreement reports whether every episode result this epoch ended in
// agreement — the Execution-phase short-circuit (spec.md §4.9 step 1).
func allAgreement(results []domain.EpochResult) bool {
	if len(results) == 0 {
		return false
	}
	for _, r := range results {
		if r.TerminationReason != domain.ReasonAgreement {
			return false
		}
	}
	return true
}

// actorScores extracts one episode's worth of scores per entry for a
// single actor, skipping episodes where that actor has no recorded score.
func actorScores(results []domain.EpochResult, actorID string) []float64 {
	var out []float64
	for _, r := range results {
		if s, ok := r.Scores[actorID]; ok {
			out = append(out, float64(s))
		}
	}
	return out
}

// jointScores averages, per episode, the scores of every id in ids —
// the Creation-phase metric: the whole primary-actor roster's outcome,
// not any single actor's.
func jointScores(results []domain.EpochResult, ids []string) []float64 {
	out := make([]float64, 0, len(results))
	for _, r := range results {
		sum, count := 0.0, 0
		for _, id := range ids {
			if s, ok := r.Scores[id]; ok {
				sum += float64(s)
				count++
			}
		}
		if count > 0 {
			out = append(out, sum/float64(count))
		}
	}
	return out
}

// #endregion scoring helpers
