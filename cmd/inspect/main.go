// Command inspect is a read-only viewer over a negotiation engine
// database: generations and their episodes, the provenance log behind
// each Mutator/Provisioner decision, an agent's lineage and
// decay-weighted outcome history, and one episode's private
// internal_monologue entries.
package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	_ "modernc.org/sqlite"

	"github.com/kibbyd/negotiation-engine/internal/concession"
	"github.com/kibbyd/negotiation-engine/internal/memory"
	"github.com/kibbyd/negotiation-engine/internal/monologue"
	"github.com/kibbyd/negotiation-engine/internal/persistence"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to negotiation_engine.db")
	last := flag.Int("last", 20, "show N most recent generations")
	generationID := flag.String("generation", "", "show episodes and decisions for one generation")
	agentID := flag.String("agent", "", "show lineage and decay-weighted score for one agent")
	episodeID := flag.String("episode", "", "show private internal_monologue entries recorded for one episode")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/db [--last N] [--generation id] [--agent id] [--episode id] [--json]")
		os.Exit(2)
	}

	store, err := persistence.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	var runErr error
	switch {
	case *episodeID != "":
		runErr = runMonologueMode(store, *episodeID, *jsonOut)
	case *agentID != "":
		runErr = runAgentMode(store, *agentID, *jsonOut)
	case *generationID != "":
		runErr = runGenerationMode(store, *generationID, *jsonOut)
	default:
		runErr = runListMode(store, *last, *jsonOut)
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", runErr)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type generationRow struct {
	GenerationID  string `json:"generation_id"`
	GenerationNum int    `json:"generation_num"`
	StartedAt     string `json:"started_at"`
	FinishedAt    string `json:"finished_at"`
	Accepted      int    `json:"accepted_count"`
	Rejected      int    `json:"rejected_count"`
	EpisodeCount  int    `json:"episode_count"`
}

func runListMode(store *persistence.Store, last int, jsonOut bool) error {
	rows, err := store.DB().Query(
		`SELECT g.generation_id, g.generation_num, g.started_at, COALESCE(g.finished_at, ''),
		        g.accepted_count, g.rejected_count,
		        (SELECT COUNT(*) FROM episodes e WHERE e.generation_id = g.generation_id)
		 FROM generations g ORDER BY g.generation_num DESC LIMIT ?`, last,
	)
	if err != nil {
		return fmt.Errorf("query generations: %w", err)
	}
	defer rows.Close()

	var out []generationRow
	for rows.Next() {
		var r generationRow
		if err := rows.Scan(&r.GenerationID, &r.GenerationNum, &r.StartedAt, &r.FinishedAt, &r.Accepted, &r.Rejected, &r.EpisodeCount); err != nil {
			return fmt.Errorf("scan generation: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(out) == 0 {
		fmt.Fprintln(os.Stderr, "no generations found")
		return nil
	}

	// reverse to chronological order for display
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}

	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("%-8s  %-12s  %-10s  %8s  %8s  %s\n", "Gen", "ID", "Episodes", "Accepted", "Rejected", "Started")
	fmt.Printf("%-8s  %-12s  %-10s  %8s  %8s  %s\n", "--------", "------------", "----------", "--------", "--------", "--------------------")
	for _, r := range out {
		fmt.Printf("%-8d  %-12s  %-10d  %8d  %8d  %s\n", r.GenerationNum, shortID(r.GenerationID), r.EpisodeCount, r.Accepted, r.Rejected, r.StartedAt)
	}
	return nil
}

// #endregion list-mode

// #region generation-mode

type decisionRow struct {
	SubjectID    string `json:"subject_id"`
	DecisionType string `json:"decision_type"`
	Decision     string `json:"decision"`
	Reason       string `json:"reason"`
	CreatedAt    string `json:"created_at"`
}

type generationDetail struct {
	Episodes  []persistence.EpisodeRecord `json:"episodes"`
	Decisions []decisionRow               `json:"decisions"`
}

func runGenerationMode(store *persistence.Store, generationID string, jsonOut bool) error {
	episodes, err := store.EpisodesForGeneration(generationID)
	if err != nil {
		return fmt.Errorf("episodes for generation: %w", err)
	}
	decisions, err := queryDecisions(store.DB(), generationID)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(generationDetail{Episodes: episodes, Decisions: decisions})
	}

	fmt.Printf("Episodes (%d):\n", len(episodes))
	fmt.Printf("%-12s  %-16s  %6s  %8s  %s\n", "Episode", "Termination", "Tokens", "Shadow", "Scores")
	for _, e := range episodes {
		fmt.Printf("%-12s  %-16s  %6d  %8v  %v\n", shortID(e.EpisodeID), e.TerminationReason, e.TokenCount, e.IsShadowTrial, e.Scores)
	}

	fmt.Printf("\nDecisions (%d):\n", len(decisions))
	for _, d := range decisions {
		fmt.Printf("  [%s] %s -> %s: %s (%s)\n", d.DecisionType, d.SubjectID, d.Decision, d.Reason, d.CreatedAt)
	}
	return nil
}

func queryDecisions(db *sql.DB, generationID string) ([]decisionRow, error) {
	rows, err := db.Query(
		`SELECT subject_id, decision_type, decision, COALESCE(reason, ''), created_at
		 FROM provenance_log WHERE generation_id = ? ORDER BY created_at ASC`, generationID,
	)
	if err != nil {
		return nil, fmt.Errorf("query provenance log: %w", err)
	}
	defer rows.Close()

	var out []decisionRow
	for rows.Next() {
		var d decisionRow
		if err := rows.Scan(&d.SubjectID, &d.DecisionType, &d.Decision, &d.Reason, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// #endregion generation-mode

// #region agent-mode

type agentDetail struct {
	AgentID            string   `json:"agent_id"`
	Ancestors          []string `json:"ancestors"`
	DecayWeightedScore *float64 `json:"decay_weighted_score,omitempty"`
}

func runAgentMode(store *persistence.Store, agentID string, jsonOut bool) error {
	lineage, err := memory.NewLineageGraph(store.DB())
	if err != nil {
		return fmt.Errorf("init lineage graph: %w", err)
	}
	outcomes, err := memory.NewOutcomeStore(store.DB())
	if err != nil {
		return fmt.Errorf("init outcome store: %w", err)
	}

	ancestors, err := lineage.Ancestors(agentID, 20)
	if err != nil {
		return fmt.Errorf("ancestors: %w", err)
	}
	score, err := outcomes.DecayWeightedScore(agentID, 72.0, 3)
	if err != nil {
		return fmt.Errorf("decay weighted score: %w", err)
	}

	detail := agentDetail{AgentID: agentID, Ancestors: ancestors, DecayWeightedScore: score}
	if jsonOut {
		return printJSON(detail)
	}

	fmt.Printf("Agent:     %s\n", agentID)
	fmt.Printf("Ancestors: %v\n", ancestors)
	if score != nil {
		fmt.Printf("Decay-weighted score (72h half-life): %.3f\n", *score)
	} else {
		fmt.Println("Decay-weighted score: insufficient samples")
	}
	return nil
}

// #endregion agent-mode

// #region monologue-mode

type episodePrivateDetail struct {
	Monologue   []monologue.Entry   `json:"monologue"`
	Concessions []concession.Record `json:"concessions"`
}

func runMonologueMode(store *persistence.Store, episodeID string, jsonOut bool) error {
	monologues, err := monologue.NewStore(store.DB())
	if err != nil {
		return fmt.Errorf("init monologue store: %w", err)
	}
	concessions, err := concession.NewStore(store.DB())
	if err != nil {
		return fmt.Errorf("init concession store: %w", err)
	}

	entries, err := monologues.ForEpisode(episodeID)
	if err != nil {
		return fmt.Errorf("monologues for episode: %w", err)
	}
	concessionEntries, err := concessions.ForEpisode(episodeID)
	if err != nil {
		return fmt.Errorf("concessions for episode: %w", err)
	}

	if jsonOut {
		return printJSON(episodePrivateDetail{Monologue: entries, Concessions: concessionEntries})
	}

	if len(entries) == 0 && len(concessionEntries) == 0 {
		fmt.Fprintln(os.Stderr, "no private reasoning or concessions recorded for this episode")
		return nil
	}

	fmt.Printf("Internal monologue for episode %s (%d turns):\n", shortID(episodeID), len(entries))
	for _, e := range entries {
		fmt.Printf("[turn %d] %s: %s\n", e.Turn, e.SpeakerID, e.Text)
	}

	fmt.Printf("\nConcessions and final offers (%d):\n", len(concessionEntries))
	for _, c := range concessionEntries {
		kind := "concession"
		if c.IsFinal {
			kind = "final offer"
		}
		fmt.Printf("[turn %d] %s %s: %q\n", c.Turn, c.SpeakerID, kind, c.Phrase)
	}
	return nil
}

// #endregion monologue-mode

// #region output

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
