package orchestrator

import (
	"fmt"

	"github.com/kibbyd/negotiation-engine/internal/actor"
	"github.com/kibbyd/negotiation-engine/internal/domain"
)

// #region ingredients

// buildIngredients turns the current roster and this generation's
// outcomes into the Explorer's in-memory ingredient graph: one
// ingredient per primary actor (tagged with its archetype and current
// termination-reason history) and one per mounted created agent.
func buildIngredients(actors map[string]*actor.Actor, archetypes map[string]string, created []createdAgentRecord, results []domain.EpochResult) []domain.Ingredient {
	reasonCounts := map[string]int{}
	for _, r := range results {
		reasonCounts[r.TerminationReason]++
	}

	var out []domain.Ingredient
	for id := range actors {
		tags := []string{archetypes[id]}
		for reason, count := range reasonCounts {
			if count > 0 {
				tags = append(tags, reason)
			}
		}
		out = append(out, domain.Ingredient{
			ID:          id,
			Name:        id,
			Description: fmt.Sprintf("primary actor %q, archetype %s, %d episodes this generation", id, archetypes[id], len(results)),
			Tags:        tags,
		})
	}

	for _, ca := range created {
		out = append(out, domain.Ingredient{
			ID:          ca.provisioning.AgentID,
			Name:        ca.provisioning.AgentID,
			Description: ca.provisioning.DesignRationale,
			Tags:        append([]string{ca.provisioning.Archetype}, ca.provisioning.CoreGoals...),
		})
	}

	return out
}

// #endregion ingredients
