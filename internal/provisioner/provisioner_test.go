package provisioner

import (
	"testing"

	"github.com/kibbyd/negotiation-engine/internal/domain"
)

func basePermissions() domain.AgentPermissions {
	return domain.AgentPermissions{
		CanModifyFields:          []string{"offer_price"},
		CannotModifyFields:       []string{"deadline"},
		CanAbortEpisode:          false,
		CanProposeResolution:     false,
		MaxStateMutationsPerTurn: 2,
	}
}

func TestApplyGuardrailsAllowsCompliantProvisioning(t *testing.T) {
	p := domain.NewAgentProvisioning{
		AgentID:     "mediator-1",
		Archetype:   "neutral mediator",
		Permissions: basePermissions(),
	}
	if err := ApplyGuardrails(p); err != nil {
		t.Fatalf("expected compliant provisioning to pass, got %v", err)
	}
}

func TestApplyGuardrailsRejectsAbortPower(t *testing.T) {
	perms := basePermissions()
	perms.CanAbortEpisode = true
	p := domain.NewAgentProvisioning{Permissions: perms}
	if err := ApplyGuardrails(p); err == nil {
		t.Fatal("expected rejection for can_abort_episode=true")
	}
}

func TestApplyGuardrailsRejectsProposeResolutionPower(t *testing.T) {
	perms := basePermissions()
	perms.CanProposeResolution = true
	p := domain.NewAgentProvisioning{Permissions: perms}
	if err := ApplyGuardrails(p); err == nil {
		t.Fatal("expected rejection for can_propose_resolution=true")
	}
}

func TestApplyGuardrailsRejectsExcessiveMutationBudget(t *testing.T) {
	perms := basePermissions()
	perms.MaxStateMutationsPerTurn = 4
	p := domain.NewAgentProvisioning{Permissions: perms}
	if err := ApplyGuardrails(p); err == nil {
		t.Fatal("expected rejection for max_state_mutations_per_turn > 3")
	}
}

func TestApplyGuardrailsAllowsMutationBudgetAtCap(t *testing.T) {
	perms := basePermissions()
	perms.MaxStateMutationsPerTurn = 3
	p := domain.NewAgentProvisioning{Permissions: perms}
	if err := ApplyGuardrails(p); err != nil {
		t.Fatalf("expected 3 mutations per turn to be allowed, got %v", err)
	}
}
