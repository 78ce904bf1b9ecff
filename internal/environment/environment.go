// Package environment implements the execution-loop state machine: turn
// sequencing, retry/penalty, permission checks, mutation application,
// termination, disruptor cadence, and context pruning.
package environment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"time"

	"github.com/kibbyd/negotiation-engine/internal/config"
	"github.com/kibbyd/negotiation-engine/internal/domain"
	"github.com/kibbyd/negotiation-engine/internal/schemas"
)

// #region environment-struct

// Environment owns exactly one episode's StateObject and action log. It
// is never shared across episodes or goroutines.
type Environment struct {
	cfg config.Config

	state     domain.StateObject
	turnOrder []string
	agents    map[string]*registeredAgent

	log                  []domain.ActionLogEntry
	fullLog              []domain.ActionLogEntry
	penaltyCount         map[string]int
	lastProposalWasFinal bool
	tokensUsed           int
	events               []domain.Event
	terminationReason    string

	capitalizer      Capitalizer
	infoDisruptor    InformationDisruptor
	tensionDisruptor TensionDisruptor

	createdAgentCount int
}

// New constructs an Environment that owns a deep copy of initial. The
// caller is never allowed to observe or mutate the copy Environment holds.
func New(cfg config.Config, initial domain.StateObject, turnOrder []string) *Environment {
	return &Environment{
		cfg:          cfg,
		state:        initial.Clone(),
		turnOrder:    append([]string(nil), turnOrder...),
		agents:       map[string]*registeredAgent{},
		penaltyCount: map[string]int{},
	}
}

// RegisterActor mounts an actor into the roster without touching
// turnOrder — the caller is expected to have already placed its id there.
// perms == nil marks a primary, unrestricted actor; non-nil perms mark a
// created agent, which counts toward max_active_created_agents.
func (e *Environment) RegisterActor(a Actor, perms *domain.AgentPermissions) {
	e.agents[a.ID()] = &registeredAgent{actor: a, perms: perms, isCreated: perms != nil}
	if perms != nil {
		e.createdAgentCount++
	}
}

// WireCapitalizer attaches the Capitalizer meta-agent, if any.
func (e *Environment) WireCapitalizer(c Capitalizer) { e.capitalizer = c }

// WireInfoDisruptor attaches the information disruptor, if any.
func (e *Environment) WireInfoDisruptor(d InformationDisruptor) { e.infoDisruptor = d }

// WireTensionDisruptor attaches the tension disruptor, if any.
func (e *Environment) WireTensionDisruptor(d TensionDisruptor) { e.tensionDisruptor = d }

// State returns the Environment's current StateObject (read-only use is
// expected; callers must not mutate the returned maps).
func (e *Environment) State() domain.StateObject { return e.state }

// Log returns the full, unpruned action log — the Critic always receives
// this view (spec.md §4.1 context pruning note).
func (e *Environment) Log() []domain.ActionLogEntry { return e.fullLog }

// Events returns every event emitted so far.
func (e *Environment) Events() []domain.Event { return e.events }

// TerminationReason returns the episode's reason once it has ended.
func (e *Environment) TerminationReason() string {
	return e.terminationReason
}

// #endregion environment-struct

// #region run-episode

// RunEpisode repeatedly calls step until is_terminal, turn_number reaches
// max_turns_per_episode, or the token budget is exceeded. It returns the
// final state and the full action log.
func (e *Environment) RunEpisode(ctx context.Context) (domain.StateObject, []domain.ActionLogEntry, error) {
	e.emit(domain.EventEpisodeStart, nil)

	for {
		if e.state.IsTerminal {
			break
		}
		if e.state.TurnNumber >= e.cfg.MaxTurnsPerEpisode {
			e.terminate(domain.ReasonTimeout)
			break
		}
		if e.tokensUsed > e.cfg.MaxEpisodeTokens {
			e.terminate(domain.ReasonTokenLimit)
			break
		}

		if err := e.step(ctx); err != nil {
			return e.state, e.fullLog, err
		}

		if e.state.TurnNumber%e.cfg.SummarizationFrequency == 0 {
			e.pruneContext()
		}
	}

	e.emit(domain.EventEpisodeComplete, map[string]interface{}{
		"reason": e.terminationReason,
	})
	return e.state, e.fullLog, nil
}

// terminate marks the episode terminal with reason, unless it already is.
func (e *Environment) terminate(reason string) {
	if e.state.IsTerminal {
		return
	}
	e.state.IsTerminal = true
	e.terminationReason = reason
}

// #endregion run-episode

// #region step

// step executes a single tick for the agent whose turn it is.
func (e *Environment) step(ctx context.Context) error {
	// 1. Resolve speaker
	previousTurn := e.state.TurnNumber
	speakerID := e.turnOrder[e.state.TurnNumber%len(e.turnOrder)]
	e.state.CurrentSpeakerID = speakerID
	agent, ok := e.agents[speakerID]
	if !ok {
		return fmt.Errorf("environment: no agent registered for speaker %q", speakerID)
	}

	// 2. Capitalizer hint, privacy-redacted
	if e.capitalizer != nil {
		recent := lastN(e.log, 4)
		hint, tokens, err := e.capitalizer.Analyze(ctx, recent, e.state)
		e.tokensUsed += tokens
		if err == nil {
			redacted := redactLeaks(hint.StrategicHint, recent)
			if e.state.Injections == nil {
				e.state.Injections = map[string]interface{}{}
			}
			e.state.Injections["capitalizer_hint"] = redacted
		} else {
			log.Printf("[ENV] capitalizer error, continuing without hint: %v", err)
		}
	}

	// 3. Build payload
	payload := e.buildPayload(speakerID)

	// 4. Call the actor, retrying on validation failure only
	proposal, tokens, retries, err := e.callWithRetry(ctx, agent.actor, payload)
	e.tokensUsed += tokens
	if err != nil {
		var exhausted *retryBudgetExhausted
		if errors.As(err, &exhausted) {
			// 5. Retry budget exhausted on validation failures alone.
			return e.handleForcedConcession(speakerID, exhausted)
		}
		// Model/network errors are not caught here; they propagate out of
		// the episode (spec.md §5, §7).
		return err
	}
	if retries > 0 {
		e.emit(domain.EventTurnPenalty, map[string]interface{}{"speakerId": speakerID, "retries": retries})
	}

	// 6. Permission enforcement
	if permErr := checkTurnPermissions(speakerID, proposal.StateMutations, agent.perms); permErr != nil {
		return permErr
	}

	// 7. Apply mutations
	newVars, _, _ := applyMutations(e.state.Variables, proposal.StateMutations)
	e.state.Variables = newVars

	// 8. Termination checks
	if proposal.AbortEpisode {
		e.terminate(domain.ReasonAbort)
	} else if proposal.ProposeResolution && e.lastProposalWasFinal {
		e.terminate(domain.ReasonAgreement)
	}
	e.lastProposalWasFinal = proposal.ProposeResolution

	// 9. Append log entry
	entry := domain.ActionLogEntry{
		Turn:              e.state.TurnNumber,
		SpeakerID:         speakerID,
		InternalMonologue: proposal.InternalMonologue,
		PublicDialogue:    proposal.PublicDialogue,
		StateMutations:    proposal.StateMutations,
		ProposeResolution: proposal.ProposeResolution,
		AbortEpisode:      proposal.AbortEpisode,
	}
	e.log = append(e.log, entry)
	e.fullLog = append(e.fullLog, entry)
	e.emit(domain.EventTurnComplete, map[string]interface{}{"speakerId": speakerID})

	// 10. Disruptor cadence
	if e.tensionDisruptor != nil {
		reading, tokens, err := e.tensionDisruptor.Read(ctx, e.log, e.state)
		e.tokensUsed += tokens
		if err == nil {
			if e.state.Variables == nil {
				e.state.Variables = map[string]interface{}{}
			}
			e.state.Variables["global_tension_level"] = reading.NewTensionLevel
		} else {
			log.Printf("[ENV] tension disruptor error: %v", err)
		}
	}
	if e.infoDisruptor != nil && e.cfg.InfoDisruptorFrequency > 0 && e.state.TurnNumber%e.cfg.InfoDisruptorFrequency == 0 {
		recent := lastN(e.log, 4)
		disruption, tokens, err := e.infoDisruptor.Observe(ctx, recent)
		e.tokensUsed += tokens
		if err == nil {
			infoEntry := domain.ActionLogEntry{
				Turn:      e.state.TurnNumber,
				SpeakerID: "disruptor_info",
				Headline:  disruption.Headline,
				Severity:  disruption.Severity,
			}
			e.log = append(e.log, infoEntry)
			e.fullLog = append(e.fullLog, infoEntry)
		} else {
			log.Printf("[ENV] info disruptor error: %v", err)
		}
	}

	// 11. Advance turn
	e.state.TurnNumber++
	if res := checkInvariants(previousTurn, e.state.TurnNumber, nil); !res.Passed {
		log.Printf("[ENV] invariant check failed: %s", res.Reason)
	}
	return nil
}

// retryBudgetExhausted reports that every attempt within the validation
// retry budget failed schema validation.
type retryBudgetExhausted struct {
	lastErr string
}

func (r *retryBudgetExhausted) Error() string {
	return fmt.Sprintf("environment: validation retry budget exhausted: %s", r.lastErr)
}

// callWithRetry calls the actor up to cfg.MaxValidationRetries times,
// feeding the validator's error message back on each failure. Only
// validation failures are retried; any other error propagates.
func (e *Environment) callWithRetry(ctx context.Context, a Actor, payload TurnPayload) (domain.ActionProposal, int, int, error) {
	var lastValidationErr string
	totalTokens := 0

	for attempt := 0; attempt < e.cfg.MaxValidationRetries; attempt++ {
		proposal, tokens, err := a.Propose(ctx, payload, lastValidationErr)
		totalTokens += tokens
		if err == nil {
			return proposal, totalTokens, attempt, nil
		}
		if !isValidationFailure(err) {
			return domain.ActionProposal{}, totalTokens, attempt, err
		}
		lastValidationErr = err.Error()
	}
	return domain.ActionProposal{}, totalTokens, e.cfg.MaxValidationRetries, &retryBudgetExhausted{lastErr: lastValidationErr}
}

// isValidationFailure reports whether err is a schema validation failure
// — the only error kind the retry loop is allowed to catch (spec.md §5,
// §7). Model/network errors propagate unchanged.
func isValidationFailure(err error) bool {
	var verr *schemas.ValidationError
	return errors.As(err, &verr)
}

// handleForcedConcession increments the speaker's penalty count; if it
// reaches the threshold the episode is marked corrupted, otherwise the
// turn is skipped with a penalty event and the turn advances.
func (e *Environment) handleForcedConcession(speakerID string, cause error) error {
	e.penaltyCount[speakerID]++
	e.emit(domain.EventTurnPenalty, map[string]interface{}{"speakerId": speakerID, "cause": cause.Error()})

	if e.penaltyCount[speakerID] >= e.cfg.ForcedConcessionThreshold {
		e.terminate(domain.ReasonCorrupted)
		e.state.TurnNumber++
		return nil
	}

	e.state.TurnNumber++
	return nil
}

// buildPayload assembles the layer-3 view an actor sees this turn.
func (e *Environment) buildPayload(speakerID string) TurnPayload {
	transcript := make([]TranscriptEntry, 0, len(e.log))
	for _, entry := range e.log {
		if entry.SpeakerID == "disruptor_info" {
			transcript = append(transcript, TranscriptEntry{SpeakerID: entry.SpeakerID, Text: entry.Headline})
		} else {
			transcript = append(transcript, TranscriptEntry{SpeakerID: entry.SpeakerID, Text: entry.PublicDialogue})
		}
	}

	envVars := map[string]interface{}{}
	if tension, ok := e.state.Variables["global_tension_level"]; ok {
		envVars["global_tension_level"] = tension
	}

	return TurnPayload{
		TurnNumber:       e.state.TurnNumber,
		MaxTurns:         e.cfg.MaxTurnsPerEpisode,
		CurrentSpeakerID: speakerID,
		Transcript:       transcript,
		Variables:        e.state.Variables,
		EnvironmentVars:  envVars,
		Injections:       e.state.Injections,
	}
}

func lastN(entries []domain.ActionLogEntry, n int) []domain.ActionLogEntry {
	if len(entries) <= n {
		return entries
	}
	return entries[len(entries)-n:]
}

func (e *Environment) emit(name string, payload map[string]interface{}) {
	e.events = append(e.events, domain.Event{Name: name, Payload: payload, Timestamp: time.Now().UTC()})
}

// #endregion step

// #region pruning

// pruneContext drops all but the most recent 2*summarization_frequency
// log entries once the log outgrows that window. fullLog is never
// pruned, and it is what Log and RunEpisode hand to the Critic, so
// pruning only affects the live view subsequent actors build transcripts
// from (spec.md §4.1 context pruning note).
func (e *Environment) pruneContext() {
	window := 2 * e.cfg.SummarizationFrequency
	if len(e.log) <= window {
		return
	}
	e.log = append([]domain.ActionLogEntry(nil), e.log[len(e.log)-window:]...)
}

// #endregion pruning

// #region mount

// MaxAgentsExceeded reports that the creation cap would be exceeded.
type MaxAgentsExceeded struct {
	Limit int
}

func (e *MaxAgentsExceeded) Error() string {
	return fmt.Sprintf("max active created agents (%d) reached", e.Limit)
}

var injectionLogicPattern = regexp.MustCompile(`^speak_every_(\d+)_turns$`)

// MountAgent validates and registers a created agent, inserting its id
// into turnOrder per its turn_injection_logic, and enforces the spawn
// cap. perms must already have passed the Provisioner's safety
// guardrails (internal/provisioner).
func (e *Environment) MountAgent(a Actor, perms domain.AgentPermissions, turnInjectionLogic string) error {
	if e.createdAgentCount >= e.cfg.MaxActiveCreatedAgents {
		return &MaxAgentsExceeded{Limit: e.cfg.MaxActiveCreatedAgents}
	}

	n := parseSpeakEveryN(turnInjectionLogic)
	e.RegisterActor(a, &perms)
	e.turnOrder = insertEveryNth(e.turnOrder, a.ID(), n)

	e.emit(domain.EventAgentCreated, map[string]interface{}{"agentId": a.ID()})
	return nil
}

// parseSpeakEveryN parses "speak_every_N_turns"; on parse failure it
// defaults to N=1 (spec.md §4.1 mounting contract).
func parseSpeakEveryN(logic string) int {
	m := injectionLogicPattern.FindStringSubmatch(logic)
	if m == nil {
		return 1
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 1
	}
	return n
}

// insertEveryNth returns a new turn order with id inserted after every
// n-th existing slot.
func insertEveryNth(order []string, id string, n int) []string {
	if n <= 0 {
		n = 1
	}
	out := make([]string, 0, len(order)+len(order)/n+1)
	for i, existing := range order {
		out = append(out, existing)
		if (i+1)%n == 0 {
			out = append(out, id)
		}
	}
	if len(out) == len(order) {
		out = append(out, id)
	}
	return out
}

// #endregion mount
