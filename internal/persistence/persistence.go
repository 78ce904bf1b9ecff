// Package persistence is the relational log of the engine's run: every
// generation, episode, action-log entry, and created agent, recorded for
// replay and for the Memory package's decay-weighted queries.
package persistence

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/kibbyd/negotiation-engine/internal/domain"
)

// #region schema

const schema = `
CREATE TABLE IF NOT EXISTS schema_versions (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	version    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS generations (
	generation_id   TEXT PRIMARY KEY,
	generation_num  INTEGER NOT NULL,
	started_at      TEXT NOT NULL,
	finished_at     TEXT,
	accepted_count  INTEGER NOT NULL DEFAULT 0,
	rejected_count  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS episodes (
	episode_id        TEXT PRIMARY KEY,
	generation_id     TEXT NOT NULL,
	started_at        TEXT NOT NULL,
	finished_at       TEXT,
	termination_reason TEXT,
	scores_json       TEXT,
	final_state_json  TEXT,
	token_count       INTEGER NOT NULL DEFAULT 0,
	is_shadow_trial   INTEGER NOT NULL DEFAULT 0,
	FOREIGN KEY (generation_id) REFERENCES generations(generation_id)
);

CREATE TABLE IF NOT EXISTS action_log_entries (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	episode_id        TEXT NOT NULL,
	turn              INTEGER NOT NULL,
	speaker_id        TEXT NOT NULL,
	entry_json        TEXT NOT NULL,
	FOREIGN KEY (episode_id) REFERENCES episodes(episode_id)
);

CREATE TABLE IF NOT EXISTS agent_profiles (
	agent_id          TEXT PRIMARY KEY,
	archetype         TEXT NOT NULL,
	strategy_text     TEXT NOT NULL,
	hyperparams_json  TEXT NOT NULL,
	updated_at        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS created_agents (
	agent_id           TEXT PRIMARY KEY,
	generation_id      TEXT NOT NULL,
	provisioning_json  TEXT NOT NULL,
	approved           INTEGER NOT NULL DEFAULT 0,
	created_at         TEXT NOT NULL,
	FOREIGN KEY (generation_id) REFERENCES generations(generation_id)
);

CREATE INDEX IF NOT EXISTS idx_episodes_generation ON episodes(generation_id);
CREATE INDEX IF NOT EXISTS idx_action_log_episode ON action_log_entries(episode_id);
`

const currentSchemaVersion = 1

// #endregion schema

// #region store

// Store owns the engine's SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and runs
// forward-only migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("persistence: open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("persistence: pragma journal_mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("persistence: pragma foreign_keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("persistence: migrate: %w", err)
	}
	if err := migrate(db); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// migrate records (and, in the future, upgrades) the schema version.
// Forward-only: it never downgrades or rewrites an existing row.
func migrate(db *sql.DB) error {
	var version int
	err := db.QueryRow(`SELECT version FROM schema_versions WHERE id = 1`).Scan(&version)
	if err == sql.ErrNoRows {
		_, err = db.Exec(`INSERT INTO schema_versions (id, version) VALUES (1, ?)`, currentSchemaVersion)
		return err
	}
	if err != nil {
		return fmt.Errorf("persistence: read schema version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("persistence: database schema version %d is newer than this binary supports (%d)", version, currentSchemaVersion)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

// DB returns the underlying *sql.DB, for packages (e.g. memory) that need
// direct query access against the same file.
func (s *Store) DB() *sql.DB { return s.db }

// #endregion store

// #region generations

// StartGeneration inserts a new generation row and returns its id.
func (s *Store) StartGeneration(generationNum int) (string, error) {
	id := uuid.New().String()
	_, err := s.db.Exec(
		`INSERT INTO generations (generation_id, generation_num, started_at) VALUES (?, ?, ?)`,
		id, generationNum, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("persistence: start generation: %w", err)
	}
	return id, nil
}

// FinishGeneration records a generation's outcome counts.
func (s *Store) FinishGeneration(generationID string, accepted, rejected int) error {
	_, err := s.db.Exec(
		`UPDATE generations SET finished_at = ?, accepted_count = ?, rejected_count = ? WHERE generation_id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), accepted, rejected, generationID,
	)
	if err != nil {
		return fmt.Errorf("persistence: finish generation: %w", err)
	}
	return nil
}

// #endregion generations

// #region episodes

// RecordEpisode persists one finished episode's outcome and its full
// action log in a single transaction.
func (s *Store) RecordEpisode(generationID string, episodeID string, isShadowTrial bool, result domain.EpochResult, log []domain.ActionLogEntry, tokenCount int) error {
	scoresJSON, err := json.Marshal(result.Scores)
	if err != nil {
		return fmt.Errorf("persistence: marshal scores: %w", err)
	}
	finalStateJSON, err := json.Marshal(result.FinalState)
	if err != nil {
		return fmt.Errorf("persistence: marshal final state: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("persistence: begin tx: %w", err)
	}
	defer tx.Rollback()

	shadow := 0
	if isShadowTrial {
		shadow = 1
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = tx.Exec(
		`INSERT INTO episodes (episode_id, generation_id, started_at, finished_at, termination_reason, scores_json, final_state_json, token_count, is_shadow_trial)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		episodeID, generationID, now, now, result.TerminationReason, string(scoresJSON), string(finalStateJSON), tokenCount, shadow,
	)
	if err != nil {
		return fmt.Errorf("persistence: insert episode: %w", err)
	}

	for _, entry := range log {
		entryJSON, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("persistence: marshal log entry: %w", err)
		}
		_, err = tx.Exec(
			`INSERT INTO action_log_entries (episode_id, turn, speaker_id, entry_json) VALUES (?, ?, ?, ?)`,
			episodeID, entry.Turn, entry.SpeakerID, string(entryJSON),
		)
		if err != nil {
			return fmt.Errorf("persistence: insert log entry: %w", err)
		}
	}

	return tx.Commit()
}

// EpisodeRecord is one row read back from the episodes table.
type EpisodeRecord struct {
	EpisodeID         string
	GenerationID      string
	TerminationReason string
	Scores            map[string]int
	TokenCount        int
	IsShadowTrial     bool
}

// EpisodesForGeneration returns every episode recorded for a generation.
func (s *Store) EpisodesForGeneration(generationID string) ([]EpisodeRecord, error) {
	rows, err := s.db.Query(
		`SELECT episode_id, generation_id, termination_reason, scores_json, token_count, is_shadow_trial
		 FROM episodes WHERE generation_id = ?`, generationID)
	if err != nil {
		return nil, fmt.Errorf("persistence: query episodes: %w", err)
	}
	defer rows.Close()

	var out []EpisodeRecord
	for rows.Next() {
		var rec EpisodeRecord
		var scoresJSON string
		var shadow int
		if err := rows.Scan(&rec.EpisodeID, &rec.GenerationID, &rec.TerminationReason, &scoresJSON, &rec.TokenCount, &shadow); err != nil {
			return nil, fmt.Errorf("persistence: scan episode: %w", err)
		}
		rec.IsShadowTrial = shadow != 0
		if scoresJSON != "" {
			if err := json.Unmarshal([]byte(scoresJSON), &rec.Scores); err != nil {
				return nil, fmt.Errorf("persistence: unmarshal scores: %w", err)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RecentFailingEpisodes returns up to limit non-agreement episodes
// (across every generation, most recent first), for the Mutator's
// failure-retrieval pass (internal/memory.FailureRetriever).
func (s *Store) RecentFailingEpisodes(limit int) ([]EpisodeRecord, error) {
	rows, err := s.db.Query(
		`SELECT episode_id, generation_id, termination_reason, scores_json, token_count, is_shadow_trial
		 FROM episodes WHERE termination_reason != ? AND is_shadow_trial = 0
		 ORDER BY started_at DESC LIMIT ?`, domain.ReasonAgreement, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("persistence: query recent failing episodes: %w", err)
	}
	defer rows.Close()

	var out []EpisodeRecord
	for rows.Next() {
		var rec EpisodeRecord
		var scoresJSON string
		var shadow int
		if err := rows.Scan(&rec.EpisodeID, &rec.GenerationID, &rec.TerminationReason, &scoresJSON, &rec.TokenCount, &shadow); err != nil {
			return nil, fmt.Errorf("persistence: scan episode: %w", err)
		}
		rec.IsShadowTrial = shadow != 0
		if scoresJSON != "" {
			if err := json.Unmarshal([]byte(scoresJSON), &rec.Scores); err != nil {
				return nil, fmt.Errorf("persistence: unmarshal scores: %w", err)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// #endregion episodes

// #region agent profiles

// UpsertAgentProfile persists (or replaces) a Primary Actor's current
// strategy and hyperparameters, so a restarted run can resume exactly.
func (s *Store) UpsertAgentProfile(agentID, archetype, strategyText string, hp domain.Hyperparameters) error {
	hpJSON, err := json.Marshal(hp)
	if err != nil {
		return fmt.Errorf("persistence: marshal hyperparameters: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO agent_profiles (agent_id, archetype, strategy_text, hyperparams_json, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(agent_id) DO UPDATE SET
		   strategy_text = excluded.strategy_text,
		   hyperparams_json = excluded.hyperparams_json,
		   updated_at = excluded.updated_at`,
		agentID, archetype, strategyText, string(hpJSON), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("persistence: upsert agent profile: %w", err)
	}
	return nil
}

// #endregion agent profiles

// #region created agents

// RecordCreatedAgent persists a Provisioner output, pending or approved.
func (s *Store) RecordCreatedAgent(generationID string, provisioning domain.NewAgentProvisioning, approved bool) error {
	provJSON, err := json.Marshal(provisioning)
	if err != nil {
		return fmt.Errorf("persistence: marshal provisioning: %w", err)
	}
	approvedInt := 0
	if approved {
		approvedInt = 1
	}
	_, err = s.db.Exec(
		`INSERT INTO created_agents (agent_id, generation_id, provisioning_json, approved, created_at) VALUES (?, ?, ?, ?, ?)`,
		provisioning.AgentID, generationID, string(provJSON), approvedInt, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("persistence: record created agent: %w", err)
	}
	return nil
}

// #endregion created agents
