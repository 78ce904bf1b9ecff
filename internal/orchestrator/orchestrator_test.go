package orchestrator

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/kibbyd/negotiation-engine/internal/config"
	"github.com/kibbyd/negotiation-engine/internal/domain"
	"github.com/kibbyd/negotiation-engine/internal/mutator"
	"github.com/kibbyd/negotiation-engine/internal/provisioner"
)

func TestAllAgreementTrueOnlyWhenEveryEpisodeAgreed(t *testing.T) {
	agreed := []domain.EpochResult{
		{TerminationReason: domain.ReasonAgreement},
		{TerminationReason: domain.ReasonAgreement},
	}
	if !allAgreement(agreed) {
		t.Fatalf("expected all-agreement true")
	}

	mixed := []domain.EpochResult{
		{TerminationReason: domain.ReasonAgreement},
		{TerminationReason: domain.ReasonTimeout},
	}
	if allAgreement(mixed) {
		t.Fatalf("expected all-agreement false for mixed reasons")
	}

	if allAgreement(nil) {
		t.Fatalf("expected all-agreement false for empty epoch")
	}
}

func TestActorScoresSkipsEpisodesWithoutThatActor(t *testing.T) {
	results := []domain.EpochResult{
		{Scores: map[string]int{"A": 3}},
		{Scores: map[string]int{"B": 1}},
		{Scores: map[string]int{"A": -2}},
	}
	got := actorScores(results, "A")
	if len(got) != 2 || got[0] != 3 || got[1] != -2 {
		t.Fatalf("expected [3 -2], got %#v", got)
	}
}

func TestJointScoresAveragesPresentIDsOnly(t *testing.T) {
	results := []domain.EpochResult{
		{Scores: map[string]int{"A": 4, "B": 2}},
		{Scores: map[string]int{"A": 1}},
		{Scores: map[string]int{}},
	}
	got := jointScores(results, []string{"A", "B"})
	if len(got) != 2 {
		t.Fatalf("expected 2 episodes with at least one scored id, got %d", len(got))
	}
	if got[0] != 3 {
		t.Fatalf("expected episode 1 joint score 3, got %v", got[0])
	}
	if got[1] != 1 {
		t.Fatalf("expected episode 2 joint score 1, got %v", got[1])
	}
}

func TestRunBoundedRunsEveryTaskAtMostLimitConcurrently(t *testing.T) {
	var (
		inFlight  int32
		maxSeen   int32
		completed int32
		mu        sync.Mutex
	)
	tasks := make([]func(), 0, 20)
	for i := 0; i < 20; i++ {
		tasks = append(tasks, func() {
			cur := atomic.AddInt32(&inFlight, 1)
			mu.Lock()
			if cur > maxSeen {
				maxSeen = cur
			}
			mu.Unlock()
			atomic.AddInt32(&completed, 1)
			atomic.AddInt32(&inFlight, -1)
		})
	}
	runBounded(3, tasks)

	if completed != 20 {
		t.Fatalf("expected all 20 tasks to run, got %d", completed)
	}
	if maxSeen > 3 {
		t.Fatalf("expected at most 3 tasks in flight, saw %d", maxSeen)
	}
}

func TestRunBoundedZeroLimitStillRunsSerially(t *testing.T) {
	var completed int32
	tasks := []func(){
		func() { atomic.AddInt32(&completed, 1) },
		func() { atomic.AddInt32(&completed, 1) },
	}
	runBounded(0, tasks)
	if completed != 2 {
		t.Fatalf("expected both tasks to run, got %d", completed)
	}
}

func TestBuildIngredientsCoversCreatedAgents(t *testing.T) {
	created := []createdAgentRecord{{provisioning: domain.NewAgentProvisioning{
		AgentID:         "mediator-1",
		Archetype:       "mediator",
		DesignRationale: "breaks a two-way standoff",
		CoreGoals:       []string{"find middle ground"},
	}}}

	ingredients := buildIngredients(nil, nil, created, nil)

	if len(ingredients) != 1 {
		t.Fatalf("expected 1 ingredient from the created agent, got %d", len(ingredients))
	}
	ing := ingredients[0]
	if ing.ID != "mediator-1" || ing.Description != "breaks a two-way standoff" {
		t.Fatalf("unexpected ingredient: %#v", ing)
	}
	if len(ing.Tags) != 2 || ing.Tags[0] != "mediator" || ing.Tags[1] != "find middle ground" {
		t.Fatalf("unexpected tags: %#v", ing.Tags)
	}
}

func TestShouldAttemptCreationRequiresProvisionerAndPlateau(t *testing.T) {
	o := &Orchestrator{
		cfg:                    config.Config{CreationPatience: 2, MaxActiveCreatedAgents: 3, CreationCooldownGenerations: 1},
		mutators:               map[string]*mutator.Mutator{"A": mutator.New(nil, 0)},
		lastCreationGeneration: -1,
	}
	if o.shouldAttemptCreation() {
		t.Fatalf("expected false with no provisioner wired")
	}

	o.provisioner = provisioner.New(nil, 0)
	if o.shouldAttemptCreation() {
		t.Fatalf("expected false before any plateau")
	}
}

func TestShouldAttemptCreationRespectsCooldown(t *testing.T) {
	o := &Orchestrator{
		cfg:                    config.Config{CreationPatience: 0, MaxActiveCreatedAgents: 3, CreationCooldownGenerations: 2},
		mutators:               map[string]*mutator.Mutator{"A": mutator.New(nil, 0)},
		provisioner:            provisioner.New(nil, 0),
		generation:             3,
		lastCreationGeneration: 2,
	}
	if o.shouldAttemptCreation() {
		t.Fatalf("expected cooldown to block creation one generation after the last attempt")
	}

	o.generation = 4
	if !o.shouldAttemptCreation() {
		t.Fatalf("expected creation to be allowed once cooldown has elapsed, patience 0 always plateaued")
	}
}

func TestShouldAttemptCreationRespectsSpawnCap(t *testing.T) {
	o := &Orchestrator{
		cfg:                    config.Config{CreationPatience: 0, MaxActiveCreatedAgents: 1, CreationCooldownGenerations: 0},
		mutators:               map[string]*mutator.Mutator{"A": mutator.New(nil, 0)},
		provisioner:            provisioner.New(nil, 0),
		lastCreationGeneration: -1,
		createdAgents:          []createdAgentRecord{{}},
	}
	if o.shouldAttemptCreation() {
		t.Fatalf("expected spawn cap to block further creation")
	}
}
