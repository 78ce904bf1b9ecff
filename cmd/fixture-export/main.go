package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	_ "modernc.org/sqlite"

	"github.com/kibbyd/negotiation-engine/internal/config"
	"github.com/kibbyd/negotiation-engine/internal/domain"
	"github.com/kibbyd/negotiation-engine/internal/persistence"
	"github.com/kibbyd/negotiation-engine/internal/replay"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to negotiation_engine.db")
	episodeID := flag.String("episode", "", "episode_id to export")
	outPath := flag.String("out", "", "output fixture JSON path")
	flag.Parse()

	if *dbPath == "" || *episodeID == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fixture-export --db path/to/db --episode <episode_id> --out path/to/fixture.json")
		os.Exit(2)
	}

	if err := run(*dbPath, *episodeID, *outPath); err != nil {
		fmt.Fprintf(os.Stderr, "fixture-export: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region extract

// episodeRow is the full row from the episodes table, including the
// final_state_json column EpisodesForGeneration doesn't project.
type episodeRow struct {
	GenerationID      string
	TerminationReason string
	FinalStateJSON    string
	TokenCount        int
}

func queryEpisode(db *sql.DB, episodeID string) (episodeRow, error) {
	var r episodeRow
	err := db.QueryRow(
		`SELECT generation_id, termination_reason, final_state_json, token_count FROM episodes WHERE episode_id = ?`,
		episodeID,
	).Scan(&r.GenerationID, &r.TerminationReason, &r.FinalStateJSON, &r.TokenCount)
	return r, err
}

func queryLogEntries(db *sql.DB, episodeID string) ([]domain.ActionLogEntry, error) {
	rows, err := db.Query(
		`SELECT entry_json FROM action_log_entries WHERE episode_id = ? ORDER BY turn ASC`,
		episodeID,
	)
	if err != nil {
		return nil, fmt.Errorf("query log entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.ActionLogEntry
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan log entry: %w", err)
		}
		var entry domain.ActionLogEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, fmt.Errorf("decode log entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// toScripts groups a recorded action log into one ordered proposal slice
// per speaker, the shape replay.Fixture.Scripts replays deterministically
// (information-disruptor entries, which carry Headline/Severity instead of
// a proposal, are skipped — they are not actor turns the harness scripts).
func toScripts(entries []domain.ActionLogEntry) map[string][]domain.ActionProposal {
	scripts := make(map[string][]domain.ActionProposal)
	for _, e := range entries {
		if e.Headline != "" {
			continue
		}
		scripts[e.SpeakerID] = append(scripts[e.SpeakerID], domain.ActionProposal{
			InternalMonologue: e.InternalMonologue,
			PublicDialogue:    e.PublicDialogue,
			StateMutations:    e.StateMutations,
			ProposeResolution: e.ProposeResolution,
			AbortEpisode:      e.AbortEpisode,
		})
	}
	return scripts
}

func turnOrderFrom(entries []domain.ActionLogEntry) []string {
	seen := make(map[string]bool)
	var order []string
	for _, e := range entries {
		if e.Headline != "" || seen[e.SpeakerID] {
			continue
		}
		seen[e.SpeakerID] = true
		order = append(order, e.SpeakerID)
	}
	return order
}

func run(dbPath, episodeID, outPath string) error {
	store, err := persistence.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	row, err := queryEpisode(store.DB(), episodeID)
	if err != nil {
		return fmt.Errorf("query episode %s: %w", episodeID, err)
	}

	var finalState domain.StateObject
	if err := json.Unmarshal([]byte(row.FinalStateJSON), &finalState); err != nil {
		return fmt.Errorf("decode final state: %w", err)
	}

	entries, err := queryLogEntries(store.DB(), episodeID)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("episode %s has no action log entries", episodeID)
	}

	startState := domain.StateObject{
		CurrentSpeakerID: entries[0].SpeakerID,
		Variables:        map[string]interface{}{},
	}

	f := replay.Fixture{
		Description: fmt.Sprintf("exported from episode %s (generation %s)", episodeID, row.GenerationID),
		Config:      config.Default(),
		StartState:  startState,
		TurnOrder:   turnOrderFrom(entries),
		Scripts:     toScripts(entries),
		Expected: replay.ExpectedResult{
			TerminationReason: row.TerminationReason,
			TurnNumber:        finalState.TurnNumber,
			LogLength:         len(entries),
		},
	}

	if err := replay.SaveFixture(outPath, f); err != nil {
		return fmt.Errorf("save fixture: %w", err)
	}
	fmt.Printf("exported episode %s to %s (%d turns, %d scripted speakers)\n", episodeID, outPath, len(entries), len(f.Scripts))
	return nil
}

// #endregion extract
