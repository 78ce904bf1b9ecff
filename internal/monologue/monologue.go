// Package monologue persists each actor's private internal_monologue
// per turn — the reasoning the Environment never surfaces to other
// participants, kept only for post-hoc inspection and Critic review.
package monologue

import (
	"database/sql"
	"time"
)

// #region store

const schema = `
CREATE TABLE IF NOT EXISTS monologues (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	episode_id         TEXT NOT NULL,
	turn               INTEGER NOT NULL,
	speaker_id         TEXT NOT NULL,
	monologue_text     TEXT NOT NULL,
	created_at         TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_monologues_episode ON monologues(episode_id);
`

// Entry is one turn's private reasoning.
type Entry struct {
	EpisodeID string
	Turn      int
	SpeakerID string
	Text      string
	CreatedAt time.Time
}

// Store persists private monologues in SQLite, never exposed to other
// actors; only post-hoc tooling (cmd/inspect) reads it back.
type Store struct {
	db *sql.DB
}

// NewStore creates the monologues table if needed and returns a Store.
func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Save stores one turn's monologue.
func (s *Store) Save(episodeID string, turn int, speakerID, text string) error {
	_, err := s.db.Exec(
		`INSERT INTO monologues (episode_id, turn, speaker_id, monologue_text, created_at) VALUES (?, ?, ?, ?, ?)`,
		episodeID, turn, speakerID, text, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// ForEpisode returns every monologue recorded for an episode, in turn
// order.
func (s *Store) ForEpisode(episodeID string) ([]Entry, error) {
	rows, err := s.db.Query(
		`SELECT turn, speaker_id, monologue_text, created_at FROM monologues WHERE episode_id = ? ORDER BY turn ASC`,
		episodeID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var createdAt string
		if err := rows.Scan(&e.Turn, &e.SpeakerID, &e.Text, &createdAt); err != nil {
			return nil, err
		}
		e.EpisodeID = episodeID
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// #endregion store
