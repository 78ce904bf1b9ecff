package logging

import "time"

// #region provenance-entry

// ProvenanceEntry is a single row in the provenance_log table: one
// accept/reject decision made by the Mutator's or Provisioner's
// acceptance gate, kept for post-hoc audit of why a generation went the
// way it did.
type ProvenanceEntry struct {
	GenerationID string
	SubjectID    string // actor id or candidate agent id
	DecisionType string // "mutation" | "creation" | "explorer_sweep"
	MetricsJSON  string // LCB/p-value/scores, serialized
	Decision     string // "accept" | "reject"
	Reason       string
	CreatedAt    time.Time
}

// #endregion provenance-entry
