// Package logging persists why the Orchestrator's acceptance gates
// decided the way they did — every Mutator/Provisioner accept or reject,
// with the metrics that drove it — for post-hoc audit independent of the
// episode-level persistence log.
package logging

import (
	"database/sql"
	"fmt"
	"time"
)

// #region schema

const schema = `
CREATE TABLE IF NOT EXISTS provenance_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	generation_id TEXT NOT NULL,
	subject_id    TEXT NOT NULL,
	decision_type TEXT NOT NULL,
	metrics_json  TEXT,
	decision      TEXT NOT NULL,
	reason        TEXT,
	created_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_provenance_generation ON provenance_log(generation_id);
`

// #endregion schema

// #region log-decision

// EnsureSchema creates the provenance_log table if it does not exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

// LogDecision writes a provenance entry to the provenance_log table.
func LogDecision(db *sql.DB, entry ProvenanceEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO provenance_log (generation_id, subject_id, decision_type, metrics_json, decision, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.GenerationID,
		entry.SubjectID,
		entry.DecisionType,
		nullIfEmpty(entry.MetricsJSON),
		entry.Decision,
		nullIfEmpty(entry.Reason),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("logging: log decision: %w", err)
	}
	return nil
}

// #endregion log-decision

// #region helpers

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
