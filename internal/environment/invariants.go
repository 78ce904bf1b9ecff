package environment

import "fmt"

// #region invariant-checker

// InvariantMetric is one named pass/fail check against a StateObject.
type InvariantMetric struct {
	Name  string
	Value int
	Pass  bool
}

// InvariantResult is the aggregate outcome of a post-step check.
type InvariantResult struct {
	Passed  bool
	Metrics []InvariantMetric
	Reason  string
}

// checkInvariants runs lightweight post-step validation: turn_number must
// be exactly previousTurn+1 (spec.md testable property 1), and every
// Critic score, when present, must lie in [-5, 5].
func checkInvariants(previousTurn, newTurn int, scores map[string]int) InvariantResult {
	var metrics []InvariantMetric
	passed := true
	var failReasons []string

	turnPass := newTurn == previousTurn+1
	metrics = append(metrics, InvariantMetric{Name: "turn_monotonic", Value: newTurn, Pass: turnPass})
	if !turnPass {
		passed = false
		failReasons = append(failReasons, fmt.Sprintf("turn_number moved from %d to %d, expected %d", previousTurn, newTurn, previousTurn+1))
	}

	for agentID, score := range scores {
		scorePass := score >= -5 && score <= 5
		metrics = append(metrics, InvariantMetric{Name: "score_bounds_" + agentID, Value: score, Pass: scorePass})
		if !scorePass {
			passed = false
			failReasons = append(failReasons, fmt.Sprintf("%s score %d outside [-5, 5]", agentID, score))
		}
	}

	reason := "all checks passed"
	if !passed {
		reason = fmt.Sprintf("invariant failed: %s", failReasons[0])
		if len(failReasons) > 1 {
			reason = fmt.Sprintf("invariant failed: %d checks: %s", len(failReasons), failReasons[0])
		}
	}

	return InvariantResult{Passed: passed, Metrics: metrics, Reason: reason}
}

// #endregion invariant-checker
