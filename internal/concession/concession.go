// Package concession tracks commitment language across a negotiation:
// phrase-detected concessions and final offers, persisted per episode
// and speaker for post-hoc inspection (cmd/inspect). Neither the Mutator
// nor the Critic reads these records.
package concession

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// #region detect

// concessionPatterns are phrases that signal a participant has backed
// off a position.
var concessionPatterns = []string{
	"i can accept",
	"i'm willing to",
	"i am willing to",
	"i'll agree to",
	"i will agree to",
	"we can compromise",
	"i'll lower",
	"i will lower",
	"i'll raise",
	"i will raise",
	"fine, i'll",
	"okay, i'll",
	"my final offer",
	"this is my final",
	"i concede",
}

// DetectConcession reports whether dialogue contains concession
// language, returning the matched phrase for logging.
func DetectConcession(dialogue string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(dialogue))
	if lower == "" {
		return "", false
	}
	for _, pat := range concessionPatterns {
		if strings.Contains(lower, pat) {
			return pat, true
		}
	}
	return "", false
}

// finalOfferPatterns are phrases that signal a hard commitment, distinct
// from a soft concession.
var finalOfferPatterns = []string{
	"final offer",
	"take it or leave it",
	"non-negotiable",
	"this is as far as i",
	"my last and final",
}

// DetectFinalOffer reports whether dialogue states a hard commitment.
func DetectFinalOffer(dialogue string) bool {
	lower := strings.ToLower(strings.TrimSpace(dialogue))
	for _, pat := range finalOfferPatterns {
		if strings.Contains(lower, pat) {
			return true
		}
	}
	return false
}

// #endregion detect

// #region store

const schema = `
CREATE TABLE IF NOT EXISTS concessions (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	episode_id  TEXT NOT NULL,
	turn        INTEGER NOT NULL,
	speaker_id  TEXT NOT NULL,
	phrase      TEXT NOT NULL,
	is_final    INTEGER NOT NULL DEFAULT 0,
	created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_concessions_episode ON concessions(episode_id);
`

// Record is one detected concession or final offer.
type Record struct {
	EpisodeID string
	Turn      int
	SpeakerID string
	Phrase    string
	IsFinal   bool
}

// Store persists detected concessions for later strategy analysis.
type Store struct {
	db *sql.DB
}

// NewStore creates the concessions table if needed and returns a Store.
func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("concession: schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Record persists one detected concession.
func (s *Store) Record(rec Record) error {
	isFinal := 0
	if rec.IsFinal {
		isFinal = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO concessions (episode_id, turn, speaker_id, phrase, is_final, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.EpisodeID, rec.Turn, rec.SpeakerID, rec.Phrase, isFinal, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// CountForSpeaker returns how many concessions a speaker made within an
// episode. No other package calls it.
func (s *Store) CountForSpeaker(episodeID, speakerID string) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM concessions WHERE episode_id = ? AND speaker_id = ?`,
		episodeID, speakerID,
	).Scan(&count)
	return count, err
}

// ForEpisode returns every concession or final offer detected within an
// episode, in turn order, for post-hoc inspection.
func (s *Store) ForEpisode(episodeID string) ([]Record, error) {
	rows, err := s.db.Query(
		`SELECT turn, speaker_id, phrase, is_final FROM concessions WHERE episode_id = ? ORDER BY turn ASC`,
		episodeID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var isFinal int
		if err := rows.Scan(&r.Turn, &r.SpeakerID, &r.Phrase, &isFinal); err != nil {
			return nil, err
		}
		r.EpisodeID = episodeID
		r.IsFinal = isFinal != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// #endregion store
