package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kibbyd/negotiation-engine/internal/actor"
	"github.com/kibbyd/negotiation-engine/internal/approval"
	"github.com/kibbyd/negotiation-engine/internal/concession"
	"github.com/kibbyd/negotiation-engine/internal/critic"
	"github.com/kibbyd/negotiation-engine/internal/domain"
	"github.com/kibbyd/negotiation-engine/internal/environment"
	"github.com/kibbyd/negotiation-engine/internal/logging"
	"github.com/kibbyd/negotiation-engine/internal/memory"
	"github.com/kibbyd/negotiation-engine/internal/mutator"
	"github.com/kibbyd/negotiation-engine/internal/statistics"
)

// #region run

// Run drives the generation loop up to cfg.MaxGenerations, or until ctx
// is cancelled. It returns one GenerationSummary per completed
// generation.
func (o *Orchestrator) Run(ctx context.Context) ([]GenerationSummary, error) {
	var summaries []GenerationSummary
	for o.generation < o.cfg.MaxGenerations {
		if err := ctx.Err(); err != nil {
			return summaries, err
		}
		summary, err := o.runGeneration(ctx)
		if err != nil {
			return summaries, fmt.Errorf("orchestrator: generation %d: %w", o.generation, err)
		}
		summaries = append(summaries, summary)
		o.generation++
	}
	return summaries, nil
}

// #endregion run

// #region execution

// runGeneration executes all four phases for the current generation.
func (o *Orchestrator) runGeneration(ctx context.Context) (GenerationSummary, error) {
	generationID, err := o.store.StartGeneration(o.generation)
	if err != nil {
		return GenerationSummary{}, fmt.Errorf("start generation: %w", err)
	}

	epochResults, tokensUsed := o.runEpoch(ctx, generationID)
	summary := GenerationSummary{
		GenerationID:     generationID,
		GenerationNum:    o.generation,
		EpochResults:     epochResults,
		AllAgreement:     allAgreement(epochResults),
		MutationAccepted: map[string]bool{},
		TokensUsed:       tokensUsed,
	}

	accepted, rejected := 0, 0

	if !summary.AllAgreement {
		anyMutationAccepted := o.runMutationPhase(ctx, generationID, epochResults, summary.MutationAccepted)
		for _, ok := range summary.MutationAccepted {
			if ok {
				accepted++
			} else {
				rejected++
			}
		}

		if !anyMutationAccepted && o.shouldAttemptCreation() {
			summary.CreationAttempted = true
			summary.CreationAccepted = o.runCreationPhase(ctx, generationID, epochResults)
			if summary.CreationAccepted {
				accepted++
			} else {
				rejected++
			}
		}
	}

	if o.explorer != nil && o.cfg.ScoutSweepIntervalGenerations > 0 && o.generation%o.cfg.ScoutSweepIntervalGenerations == 0 {
		o.runExplorerSweep(ctx, generationID, epochResults)
		summary.ExplorerRan = true
	}

	if err := o.store.FinishGeneration(generationID, accepted, rejected); err != nil {
		log.Printf("[ORCH] finish generation %s: %v", generationID, err)
	}

	return summary, nil
}

// #endregion execution

// #region phase 1 — execution

// runEpoch runs epoch_size episodes concurrently, bounded by
// max_concurrency, scoring and persisting each as it finishes.
func (o *Orchestrator) runEpoch(ctx context.Context, generationID string) ([]domain.EpochResult, int) {
	var (
		mu      sync.Mutex
		results []domain.EpochResult
		tokens  int
	)

	roster := o.actorsSnapshot()
	tasks := make([]func(), 0, o.cfg.EpochSize)
	for i := 0; i < o.cfg.EpochSize; i++ {
		tasks = append(tasks, func() {
			result, used := o.runEpisode(ctx, generationID, false, o.cfg.MaxTurnsPerEpisode, roster)
			mu.Lock()
			defer mu.Unlock()
			tokens += used
			if result != nil {
				results = append(results, *result)
			}
		})
	}
	runBounded(o.cfg.MaxConcurrency, tasks)
	return results, tokens
}

// actorsSnapshot returns a shallow copy of the primary-actor roster,
// safe to hand to a concurrently-running episode without racing against
// a mutation phase's goroutines, each of which may be swapping in a
// shadow variant for a different actorID at the same time.
func (o *Orchestrator) actorsSnapshot() map[string]*actor.Actor {
	o.actorsMu.Lock()
	defer o.actorsMu.Unlock()
	snapshot := make(map[string]*actor.Actor, len(o.actors))
	for id, a := range o.actors {
		snapshot[id] = a
	}
	return snapshot
}

// setActor installs a mutated strategy for actorID under actorsMu.
func (o *Orchestrator) setActor(actorID string, a *actor.Actor) {
	o.actorsMu.Lock()
	o.actors[actorID] = a
	o.actorsMu.Unlock()
}

// getActor reads one actor under actorsMu.
func (o *Orchestrator) getActor(actorID string) *actor.Actor {
	o.actorsMu.Lock()
	defer o.actorsMu.Unlock()
	return o.actors[actorID]
}

// hardcodedCorruptionScores gives every primary actor the −5 penalty
// spec.md §7 requires for EpisodeCorrupted/PermissionViolation; created
// agents mounted mid-run are not part of the primary roster and are not
// scored here.
func hardcodedCorruptionScores(actors map[string]*actor.Actor) map[string]int {
	scores := make(map[string]int, len(actors))
	for id := range actors {
		scores[id] = -5
	}
	return scores
}

// runEpisode builds a fresh Environment from the current roster, runs it
// to completion, and persists the outcome. A corrupted run (forced
// concessions reaching threshold, or a permission violation) bypasses
// the Critic and hardcodes every primary actor's score to −5 rather
// than being dropped or scored as if nothing happened (spec.md §7).
// maxTurns lets shadow trials run shorter fast-prune episodes than a
// full epoch. roster is the primary-actor set to register into this
// specific episode's Environment — callers running concurrently against
// a mutation phase pass a local snapshot (actorsSnapshot, optionally
// with one actor's entry swapped for a shadow variant) rather than the
// shared o.actors map, so a shadow trial's opponents stay frozen at
// their baseline strategy for the whole trial (spec.md:115) instead of
// observing another actor's in-flight mutation. Returns nil only when a
// model/network error propagates out of the Environment or the Critic
// call itself fails: these are logged and the caller moves on rather
// than aborting the whole epoch/shadow batch.
func (o *Orchestrator) runEpisode(ctx context.Context, generationID string, isShadowTrial bool, maxTurns int, roster map[string]*actor.Actor) (*domain.EpochResult, int) {
	cfg := o.cfg
	cfg.MaxTurnsPerEpisode = maxTurns

	env := environment.New(cfg, o.initialState, o.turnOrder)
	for _, a := range roster {
		env.RegisterActor(a, nil)
	}
	for _, ca := range o.createdAgents {
		if err := env.MountAgent(ca.actor, ca.perms, ca.turnInjectionLogic); err != nil {
			log.Printf("[ORCH] mount created agent %s: %v", ca.actor.ID(), err)
		}
	}
	if o.capitalizer != nil {
		env.WireCapitalizer(o.capitalizer)
	}
	if o.infoDisruptor != nil {
		env.WireInfoDisruptor(o.infoDisruptor)
	}
	if o.tensionDisruptor != nil {
		env.WireTensionDisruptor(o.tensionDisruptor)
	}

	final, entries, err := env.RunEpisode(ctx)
	tokens := 0

	var permViolation *environment.PermissionViolation
	corrupted := env.TerminationReason() == domain.ReasonCorrupted || errors.As(err, &permViolation)

	if err != nil && !corrupted {
		// Model/network errors propagate out of RunEpisode uncaught
		// (spec.md §5, §7); treat the episode as corrupted and continue.
		log.Printf("[ORCH] episode corrupted: %v", err)
		return nil, tokens
	}

	var result domain.EpochResult
	if corrupted {
		// spec.md §7 EpisodeCorrupted/PermissionViolation: the Critic is
		// bypassed entirely and every primary actor takes a hardcoded −5,
		// not a missing data point and not a normally-scored one.
		if permViolation != nil {
			log.Printf("[ORCH] episode corrupted (permission violation): %v", permViolation)
		} else {
			log.Printf("[ORCH] episode corrupted (forced concession threshold reached)")
		}
		result = domain.EpochResult{
			FinalState:        final,
			Scores:            hardcodedCorruptionScores(roster),
			TerminationReason: domain.ReasonCorrupted,
		}
	} else {
		verdict, critTokens, scoreErr := o.critic.Score(ctx, o.initialState, final, entries)
		tokens += critTokens
		if scoreErr != nil {
			log.Printf("[ORCH] critic scoring failed, dropping episode: %v", scoreErr)
			return nil, tokens
		}
		result = domain.EpochResult{
			FinalState:        final,
			Scores:            critic.ScoresByAgent(verdict),
			TerminationReason: env.TerminationReason(),
		}
	}

	episodeID := uuid.New().String()
	if err := o.store.RecordEpisode(generationID, episodeID, isShadowTrial, result, entries, tokens); err != nil {
		log.Printf("[ORCH] record episode: %v", err)
	}
	if !isShadowTrial && o.monologues != nil {
		for _, entry := range entries {
			if entry.InternalMonologue == "" {
				continue
			}
			if err := o.monologues.Save(episodeID, entry.Turn, entry.SpeakerID, entry.InternalMonologue); err != nil {
				log.Printf("[ORCH] save monologue for %s turn %d: %v", entry.SpeakerID, entry.Turn, err)
			}
		}
	}
	if !isShadowTrial && o.concessions != nil {
		for _, entry := range entries {
			if entry.PublicDialogue == "" {
				continue
			}
			isFinal := concession.DetectFinalOffer(entry.PublicDialogue)
			phrase, conceded := concession.DetectConcession(entry.PublicDialogue)
			if !conceded && !isFinal {
				continue
			}
			rec := concession.Record{EpisodeID: episodeID, Turn: entry.Turn, SpeakerID: entry.SpeakerID, Phrase: phrase, IsFinal: isFinal}
			if err := o.concessions.Record(rec); err != nil {
				log.Printf("[ORCH] record concession for %s turn %d: %v", entry.SpeakerID, entry.Turn, err)
			}
		}
	}
	if !isShadowTrial {
		for id, score := range result.Scores {
			archetype := o.archetypes[id]
			if archetype == "" {
				archetype = "created"
			}
			if err := o.outcomes.RecordOutcome(id, archetype, score); err != nil {
				log.Printf("[ORCH] record outcome for %s: %v", id, err)
			}
		}
	}

	return &result, tokens
}

// #endregion phase 1 — execution

// #region phase 2 — mutation

// runMutationPhase calls the Mutator for every primary actor in
// parallel, bounded by the same concurrency limiter; accepted[actorID]
// records each actor's outcome. It returns whether any actor's mutation
// was accepted (spec.md §4.9 step 2 — any acceptance skips Creation).
func (o *Orchestrator) runMutationPhase(ctx context.Context, generationID string, epochResults []domain.EpochResult, accepted map[string]bool) bool {
	var (
		mu          sync.Mutex
		anyAccepted bool
	)

	acceptCfg := mutator.AcceptanceConfig{
		// spec.md:115 hardcodes the fast-prune shape — 3 episodes capped
		// at 3 turns each — as a cheap pre-filter ahead of the expensive
		// full shadow trial; it is not derived from the run's own
		// ShadowTrialCount/MaxTurnsPerEpisode.
		FastPruneEpisodes: 3,
		FastPruneMaxTurns: 3,
		FullTrialMaxTurns: o.cfg.MaxTurnsPerEpisode,
		ShadowTrialCount:  o.cfg.ShadowTrialCount,
		ImprovementMargin: o.cfg.ImprovementMargin,
		LCBLambda:         o.cfg.AcceptanceLCBLambda,
		PValueThreshold:   o.cfg.AcceptancePValueThreshold,
	}

	tasks := make([]func(), 0, len(o.actors))
	for actorID := range o.actors {
		actorID := actorID
		tasks = append(tasks, func() {
			ok := o.mutateActor(ctx, generationID, actorID, epochResults, acceptCfg)
			mu.Lock()
			defer mu.Unlock()
			accepted[actorID] = ok
			if ok {
				anyAccepted = true
			}
		})
	}
	runBounded(o.cfg.MaxConcurrency, tasks)
	return anyAccepted
}

// failureRetrievalLimit bounds how many recent non-agreement episodes
// (across all actors) the Mutator's failure retriever considers per
// Propose call; the keyword-overlap gates are cheap but there is no
// reason to scan the whole episode table every generation.
const failureRetrievalLimit = 200

// failureDescription joins an actor's current worst-slice episodes into
// the free-text query the FailureRetriever's confidence/similarity gates
// run against.
func failureDescription(actorID string, failing []mutator.FailingEpisode) string {
	var words []string
	words = append(words, "actor", actorID, "failing")
	for _, f := range failing {
		words = append(words, fmt.Sprintf("turn%d", f.FinalState.TurnNumber), fmt.Sprintf("score%d", f.Score))
		for k := range f.FinalState.Variables {
			words = append(words, k)
		}
	}
	return strings.Join(words, " ")
}

// priorFailures asks the FailureRetriever for past episodes similar to
// actorID's current worst-slice, for the Mutator's Phase A prompt.
func (o *Orchestrator) priorFailures(actorID string, failing []mutator.FailingEpisode) []memory.FailureRecord {
	if o.store == nil {
		return nil
	}
	recent, err := o.store.RecentFailingEpisodes(failureRetrievalLimit)
	if err != nil {
		log.Printf("[ORCH] recent failing episodes for %s: %v", actorID, err)
		return nil
	}
	records := make([]memory.FailureRecord, 0, len(recent))
	for _, ep := range recent {
		records = append(records, memory.FailureRecord{
			EpisodeID:         ep.EpisodeID,
			TerminationReason: ep.TerminationReason,
			Summary:           fmt.Sprintf("episode %s ended %s scores %v", ep.EpisodeID, ep.TerminationReason, ep.Scores),
		})
	}
	retriever := memory.NewFailureRetriever(records, 500, 2)
	gate := retriever.Retrieve(failureDescription(actorID, failing), false)
	return gate.Retrieved
}

// mutateActor runs Propose+Evaluate for one actor and applies or logs
// the outcome. It returns whether the mutation was accepted.
func (o *Orchestrator) mutateActor(ctx context.Context, generationID, actorID string, epochResults []domain.EpochResult, acceptCfg mutator.AcceptanceConfig) bool {
	m, ok := o.mutators[actorID]
	if !ok {
		return false
	}
	failing := mutator.WorstSlice(actorID, epochResults)
	if len(failing) == 0 {
		return false
	}

	current := o.getActor(actorID)
	proposal, _, err := m.Propose(ctx, actorID, current.Strategy(), current.Hyperparameters(), failing, o.priorFailures(actorID, failing), o.cfg.MutationVariants)
	if err != nil {
		log.Printf("[ORCH] mutator propose for %s: %v", actorID, err)
		return false
	}

	baseline := actorScores(epochResults, actorID)
	runner := o.shadowTrialRunner(generationID, actorID)

	result, accepted, err := m.Evaluate(ctx, actorID, proposal.Variants, baseline, runner, acceptCfg)
	if err != nil {
		log.Printf("[ORCH] mutator evaluate for %s: %v", actorID, err)
		return false
	}

	metrics, _ := json.Marshal(map[string]interface{}{"lcb": result.LCB, "p_value": result.PValue})
	decision := "reject"
	reason := result.RejectReason
	if accepted {
		decision = "accept"
		reason = fmt.Sprintf("lcb=%.3f p=%.4f clears baseline", result.LCB, result.PValue)
		o.setActor(actorID, current.WithMutatedStrategy(result.Variant.StrategyText, result.Variant.Hyperparameters))
		if err := o.store.UpsertAgentProfile(actorID, o.archetypes[actorID], result.Variant.StrategyText, result.Variant.Hyperparameters); err != nil {
			log.Printf("[ORCH] upsert agent profile for %s: %v", actorID, err)
		}
		if o.lineage != nil {
			if err := o.lineage.RecordDescent(actorID, result.Variant.VariantID, "mutation"); err != nil {
				log.Printf("[ORCH] record mutation descent for %s: %v", actorID, err)
			}
		}
	}
	o.logDecision(generationID, actorID, "mutation", string(metrics), decision, reason)
	return accepted
}

// shadowTrialRunner returns a ShadowTrialRunner that substitutes variant
// for actorID, runs it through episodes, and returns one score per
// episode for that actor — the closure the Mutator needs but never
// constructs itself (spec.md §4.6).
func (o *Orchestrator) shadowTrialRunner(generationID, actorID string) mutator.ShadowTrialRunner {
	return func(ctx context.Context, variant domain.MutationVariant, episodes, maxTurns int) ([]float64, error) {
		// A local roster copy, not a mutation of the shared o.actors map:
		// other primary actors' shadow trials run concurrently with this
		// one (runMutationPhase fans out one goroutine per actor), each
		// substituting its own variant into its own copy, so every
		// trial's opponents stay frozen at their real baseline strategy
		// for its whole run (spec.md:115) instead of observing whichever
		// variant another actor's goroutine happened to have swapped in.
		roster := o.actorsSnapshot()
		original := roster[actorID]
		roster[actorID] = original.WithMutatedStrategy(variant.StrategyText, variant.Hyperparameters)

		var (
			mu     sync.Mutex
			scores []float64
		)
		tasks := make([]func(), 0, episodes)
		for i := 0; i < episodes; i++ {
			tasks = append(tasks, func() {
				result, _ := o.runEpisode(ctx, generationID, true, maxTurns, roster)
				if result == nil {
					return
				}
				if s, ok := result.Scores[actorID]; ok {
					mu.Lock()
					scores = append(scores, float64(s))
					mu.Unlock()
				}
			})
		}
		runBounded(o.cfg.MaxConcurrency, tasks)
		return scores, nil
	}
}

// #endregion phase 2 — mutation

// #region phase 3 — creation

// shouldAttemptCreation reports whether at least one primary actor has
// plateaued past its patience, creation isn't still in cooldown, and a
// Provisioner is wired, and the roster isn't already at its spawn cap.
func (o *Orchestrator) shouldAttemptCreation() bool {
	if o.provisioner == nil {
		return false
	}
	if len(o.createdAgents) >= o.cfg.MaxActiveCreatedAgents {
		return false
	}
	if o.lastCreationGeneration >= 0 && o.generation-o.lastCreationGeneration < o.cfg.CreationCooldownGenerations {
		return false
	}
	for actorID, m := range o.mutators {
		if m.IsPlateaued(actorID, o.cfg.CreationPatience) {
			return true
		}
	}
	return false
}

// runCreationPhase asks the Provisioner to design a new participant,
// gates on human approval if configured, shadow-tests it against the
// joint primary-actor outcome, and mounts it on acceptance.
func (o *Orchestrator) runCreationPhase(ctx context.Context, generationID string, epochResults []domain.EpochResult) bool {
	o.lastCreationGeneration = o.generation

	diagnosis, _, err := o.provisioner.Diagnose(ctx, o.initialState, epochResults, o.failedArchetypes)
	if err != nil {
		log.Printf("[ORCH] provisioner diagnose: %v", err)
		return false
	}

	provisioning, _, err := o.provisioner.Design(ctx, diagnosis, o.failedArchetypes)
	if err != nil {
		reason := err.Error()
		if provisioning.Archetype != "" {
			o.failedArchetypes = append(o.failedArchetypes, provisioning.Archetype)
		}
		o.logDecision(generationID, provisioning.AgentID, "creation", "", "reject", reason)
		if err := o.store.RecordCreatedAgent(generationID, provisioning, false); err != nil {
			log.Printf("[ORCH] record rejected creation: %v", err)
		}
		return false
	}

	if o.cfg.RequireHumanApprovalForCreation {
		approved, ok := o.pollApproval(generationID, provisioning, diagnosis)
		if !ok {
			log.Printf("[ORCH] creation %s still pending human review; retrying next plateau", provisioning.AgentID)
			return false
		}
		if !approved {
			o.failedArchetypes = append(o.failedArchetypes, provisioning.Archetype)
			o.logDecision(generationID, provisioning.AgentID, "creation", "", "reject", "rejected by human reviewer")
			_ = o.store.RecordCreatedAgent(generationID, provisioning, false)
			return false
		}
	}

	candidateActor := actor.New(provisioning.AgentID, provisioning.SystemPrompt, "", domain.Hyperparameters{Temperature: 0.7}, o.gw)
	candidate := createdAgentRecord{
		actor:              candidateActor,
		perms:              provisioning.Permissions,
		turnInjectionLogic: provisioning.TurnInjectionLogic,
		provisioning:       provisioning,
	}

	baselineMean := statistics.Mean(jointScores(epochResults, o.turnOrder))
	candidateScores := o.shadowTestCreation(ctx, generationID, candidate)

	accept := false
	metrics := map[string]interface{}{"baseline_mean": baselineMean, "candidate_samples": len(candidateScores)}
	if len(candidateScores) > 0 {
		lcb := statistics.LowerConfidenceBound(candidateScores, o.cfg.AcceptanceLCBLambda)
		pValue := statistics.MannWhitneyUTest(candidateScores, jointScores(epochResults, o.turnOrder)).PValue
		metrics["lcb"] = lcb
		metrics["p_value"] = pValue
		accept = lcb > baselineMean+o.cfg.ImprovementMargin && pValue < o.cfg.AcceptancePValueThreshold
	}
	metricsJSON, _ := json.Marshal(metrics)

	if accept {
		o.createdAgents = append(o.createdAgents, candidate)
		for actorID, m := range o.mutators {
			m.Reset(actorID)
		}
		if o.lineage != nil {
			_ = o.lineage.RecordDescent(generationID, provisioning.AgentID, "creation")
		}
		o.logDecision(generationID, provisioning.AgentID, "creation", string(metricsJSON), "accept", "cleared LCB and Mann-Whitney gate against joint baseline")
	} else {
		o.failedArchetypes = append(o.failedArchetypes, provisioning.Archetype)
		o.logDecision(generationID, provisioning.AgentID, "creation", string(metricsJSON), "reject", "did not clear LCB/p-value gate against joint baseline")
	}

	if err := o.store.RecordCreatedAgent(generationID, provisioning, accept); err != nil {
		log.Printf("[ORCH] record created agent: %v", err)
	}
	return accept
}

// shadowTestCreation mounts candidate into shadow_trial_count episodes
// alongside the current roster and returns the joint primary-actor score
// per episode.
func (o *Orchestrator) shadowTestCreation(ctx context.Context, generationID string, candidate createdAgentRecord) []float64 {
	o.createdAgents = append(o.createdAgents, candidate)
	defer func() { o.createdAgents = o.createdAgents[:len(o.createdAgents)-1] }()

	roster := o.actorsSnapshot()
	var (
		mu     sync.Mutex
		scores []float64
	)
	tasks := make([]func(), 0, o.cfg.ShadowTrialCount)
	for i := 0; i < o.cfg.ShadowTrialCount; i++ {
		tasks = append(tasks, func() {
			result, _ := o.runEpisode(ctx, generationID, true, o.cfg.MaxTurnsPerEpisode, roster)
			if result == nil {
				return
			}
			joint := jointScores([]domain.EpochResult{*result}, o.turnOrder)
			if len(joint) == 1 {
				mu.Lock()
				scores = append(scores, joint[0])
				mu.Unlock()
			}
		})
	}
	runBounded(o.cfg.MaxConcurrency, tasks)
	return scores
}

// pollApproval submits a pending Request and polls the inbox a bounded
// number of times. ok is false if no decision arrived in time.
func (o *Orchestrator) pollApproval(generationID string, provisioning domain.NewAgentProvisioning, rationale string) (approved bool, ok bool) {
	if err := approval.Submit(approval.Request{GenerationID: generationID, Provisioning: provisioning, Rationale: rationale}); err != nil {
		log.Printf("[ORCH] submit approval request: %v", err)
		return false, false
	}
	for attempt := 0; attempt < o.approvalPollAttempts; attempt++ {
		decision, found, err := approval.Poll(provisioning.AgentID)
		if err != nil {
			log.Printf("[ORCH] poll approval: %v", err)
			return false, false
		}
		if found {
			approval.Clear(provisioning.AgentID)
			return decision.Approved, true
		}
		time.Sleep(time.Second)
	}
	return false, false
}

// #endregion phase 3 — creation

// #region phase 4 — explorer sweep

// runExplorerSweep scans the current ingredient graph and overwrites the
// initial state's scout_hypotheses for subsequent generations.
func (o *Orchestrator) runExplorerSweep(ctx context.Context, generationID string, epochResults []domain.EpochResult) {
	ingredients := buildIngredients(o.actors, o.archetypes, o.createdAgents, epochResults)
	hypotheses, _, _ := o.explorer.Scan(ctx, ingredients)

	hints := make([]domain.ScoutHypothesis, 0, len(hypotheses))
	for _, h := range hypotheses {
		hints = append(hints, domain.ScoutHypothesis{
			Title:            h.Title,
			FeasibilityScore: h.FeasibilityScore,
			DisruptionTarget: h.DisruptionTarget,
		})
	}
	o.initialState.ScoutHypotheses = hints

	metrics, _ := json.Marshal(map[string]interface{}{"hypothesis_count": len(hints)})
	o.logDecision(generationID, "explorer", "explorer_sweep", string(metrics), "accept", "scout_hypotheses refreshed")
}

// #endregion phase 4 — explorer sweep

// #region provenance logging

// logDecision writes a ProvenanceEntry, swallowing errors to a log line
// since a failed audit write should never abort the generation loop.
func (o *Orchestrator) logDecision(generationID, subjectID, decisionType, metricsJSON, decision, reason string) {
	if o.provenanceDB == nil {
		return
	}
	entry := logging.ProvenanceEntry{
		GenerationID: generationID,
		SubjectID:    subjectID,
		DecisionType: decisionType,
		MetricsJSON:  metricsJSON,
		Decision:     decision,
		Reason:       reason,
	}
	if err := logging.LogDecision(o.provenanceDB, entry); err != nil {
		log.Printf("[ORCH] log decision: %v", err)
	}
}

// #endregion provenance logging
