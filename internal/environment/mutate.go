package environment

import (
	"strings"

	"github.com/kibbyd/negotiation-engine/internal/domain"
)

// #region decision

// Decision reports what applyMutations did to a StateObject's variables.
type Decision struct {
	Action string // "commit" | "no_op"
	Reason string
}

// MutationMetrics reports how many paths were actually touched.
type MutationMetrics struct {
	PathsHit      []string
	MutationCount int
}

// #endregion decision

// #region apply

// applyMutations is a pure function: given the current variables and an
// ordered mutation list, it returns the new variables (never mutating the
// input) plus a Decision/MutationMetrics bundle. For "add", intermediate
// mapping nodes are created as needed. For "modify", a missing
// intermediate node makes the mutation a silent no-op (spec.md §4.1
// step 7, and DESIGN NOTES: this may mask actor bugs but is the contract
// as specified). Every value is deep-copied in.
func applyMutations(variables map[string]interface{}, mutations []domain.StateMutation) (map[string]interface{}, Decision, MutationMetrics) {
	next := domain.DeepCopyMap(variables)
	if next == nil {
		next = map[string]interface{}{}
	}

	var hit []string
	for _, m := range mutations {
		applied := applyOne(next, m)
		if applied {
			hit = append(hit, m.Path)
		}
	}

	if len(hit) == 0 {
		return next, Decision{Action: "no_op", Reason: "no mutation applied"}, MutationMetrics{PathsHit: hit, MutationCount: len(mutations)}
	}
	return next, Decision{Action: "commit", Reason: "applied " + strings.Join(hit, ", ")}, MutationMetrics{PathsHit: hit, MutationCount: len(mutations)}
}

// applyOne applies a single mutation to vars in place, returning whether
// it actually changed anything.
func applyOne(vars map[string]interface{}, m domain.StateMutation) bool {
	segments := strings.Split(m.Path, ".")
	if len(segments) == 0 || m.Path == "" {
		return false
	}

	node := vars
	for i := 0; i < len(segments)-1; i++ {
		key := segments[i]
		next, ok := node[key]
		if !ok {
			if m.Action == domain.MutationAdd {
				created := map[string]interface{}{}
				node[key] = created
				node = created
				continue
			}
			return false // modify through a missing intermediate node: silent no-op
		}
		nextMap, ok := next.(map[string]interface{})
		if !ok {
			if m.Action == domain.MutationAdd {
				created := map[string]interface{}{}
				node[key] = created
				node = created
				continue
			}
			return false
		}
		node = nextMap
	}

	leaf := segments[len(segments)-1]
	node[leaf] = domain.DeepCopyValue(m.Value)
	return true
}

// #endregion apply
