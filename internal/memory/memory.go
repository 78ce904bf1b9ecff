// Package memory is the Orchestrator's long-horizon store: a
// decay-weighted outcome log per actor, a lineage graph over created
// agents, and a three-gate failure-retrieval pipeline the Mutator
// consults during Phase A, before asking the model to summarize an
// actor's failure causes.
package memory

import (
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"
)

// #region outcome log

const outcomeSchema = `
CREATE TABLE IF NOT EXISTS agent_outcomes (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	agent_id     TEXT NOT NULL,
	archetype    TEXT NOT NULL,
	score        INTEGER NOT NULL,
	created_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_agent_outcomes_lookup ON agent_outcomes(agent_id, archetype);
`

// OutcomeStore persists Critic scores per agent and answers
// decay-weighted "how has this agent/archetype been doing" queries,
// grounded on the teacher's strategy-outcome half-life weighting.
type OutcomeStore struct {
	db *sql.DB
}

// NewOutcomeStore initializes the agent_outcomes table.
func NewOutcomeStore(db *sql.DB) (*OutcomeStore, error) {
	if _, err := db.Exec(outcomeSchema); err != nil {
		return nil, fmt.Errorf("memory: outcome schema: %w", err)
	}
	return &OutcomeStore{db: db}, nil
}

// RecordOutcome appends one agent's score from a finished episode.
func (o *OutcomeStore) RecordOutcome(agentID, archetype string, score int) error {
	_, err := o.db.Exec(
		`INSERT INTO agent_outcomes (agent_id, archetype, score, created_at) VALUES (?, ?, ?, ?)`,
		agentID, archetype, score, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("memory: record outcome: %w", err)
	}
	return nil
}

// DecayWeightedScore returns the half-life-weighted average score for an
// agent, nil if fewer than minSamples rows exist.
func (o *OutcomeStore) DecayWeightedScore(agentID string, halfLifeHours float64, minSamples int) (*float64, error) {
	rows, err := o.db.Query(`SELECT score, created_at FROM agent_outcomes WHERE agent_id = ?`, agentID)
	if err != nil {
		return nil, fmt.Errorf("memory: query outcomes: %w", err)
	}
	defer rows.Close()

	now := time.Now().UTC()
	var weightedSum, totalWeight float64
	count := 0

	for rows.Next() {
		var score int
		var createdAtStr string
		if err := rows.Scan(&score, &createdAtStr); err != nil {
			return nil, fmt.Errorf("memory: scan outcome: %w", err)
		}
		createdAt, err := time.Parse(time.RFC3339, createdAtStr)
		if err != nil {
			continue
		}
		ageHours := now.Sub(createdAt).Hours()
		weight := math.Exp(-ageHours * math.Ln2 / halfLifeHours)
		weightedSum += float64(score) * weight
		totalWeight += weight
		count++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if count < minSamples || totalWeight == 0 {
		return nil, nil
	}
	avg := weightedSum / totalWeight
	return &avg, nil
}

// #endregion outcome log

// #region lineage graph

const lineageSchema = `
CREATE TABLE IF NOT EXISTS lineage_edges (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	parent_id   TEXT NOT NULL,
	child_id    TEXT NOT NULL,
	edge_type   TEXT NOT NULL,
	weight      REAL NOT NULL DEFAULT 1.0,
	created_at  TEXT NOT NULL,
	UNIQUE(parent_id, child_id, edge_type)
);
CREATE INDEX IF NOT EXISTS idx_lineage_parent ON lineage_edges(parent_id);
`

// LineageGraph records which actor or generation a created agent, or a
// mutated strategy, descended from. Adapted from the teacher's
// evidence-edge graph: same weighted-edge/BFS/decay shape, repurposed
// from retrieval provenance to agent ancestry.
type LineageGraph struct {
	db *sql.DB
}

// NewLineageGraph initializes the lineage_edges table.
func NewLineageGraph(db *sql.DB) (*LineageGraph, error) {
	if _, err := db.Exec(lineageSchema); err != nil {
		return nil, fmt.Errorf("memory: lineage schema: %w", err)
	}
	return &LineageGraph{db: db}, nil
}

// RecordDescent links a new agent or strategy variant to its origin
// (the generation that created it, or the actor it was mutated from),
// with a fixed weight of 1.0.
func (l *LineageGraph) RecordDescent(parentID, childID, edgeType string) error {
	_, err := l.db.Exec(
		`INSERT OR IGNORE INTO lineage_edges (parent_id, child_id, edge_type, weight, created_at) VALUES (?, ?, ?, 1.0, ?)`,
		parentID, childID, edgeType, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("memory: record descent: %w", err)
	}
	return nil
}

// Ancestors walks backward from id up to maxDepth hops, returning every
// ancestor id reached.
func (l *LineageGraph) Ancestors(id string, maxDepth int) ([]string, error) {
	if maxDepth <= 0 {
		maxDepth = 5
	}
	visited := map[string]bool{id: true}
	frontier := []string{id}
	var out []string

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, node := range frontier {
			rows, err := l.db.Query(`SELECT parent_id FROM lineage_edges WHERE child_id = ?`, node)
			if err != nil {
				return nil, fmt.Errorf("memory: query ancestors: %w", err)
			}
			for rows.Next() {
				var parent string
				if err := rows.Scan(&parent); err != nil {
					rows.Close()
					return nil, err
				}
				if !visited[parent] {
					visited[parent] = true
					out = append(out, parent)
					next = append(next, parent)
				}
			}
			rows.Close()
		}
		frontier = next
	}
	return out, nil
}

// #endregion lineage graph

// #region failure retrieval

// FailureRecord is one past episode that ended badly, kept for the
// Mutator's Phase A deadlock-pattern recall.
type FailureRecord struct {
	EpisodeID         string
	TerminationReason string
	Summary           string
}

// GateResult mirrors the teacher's three-gate retrieval outcome shape,
// repurposed from prompt-evidence retrieval to deadlock-pattern recall.
type GateResult struct {
	Gate1Passed bool
	Gate2Count  int
	Gate3Count  int
	Retrieved   []FailureRecord
	Reason      string
}

// FailureRetriever answers "have we seen a deadlock like this before".
type FailureRetriever struct {
	records           []FailureRecord
	maxEvidenceLen    int
	minKeywordOverlap int
}

// NewFailureRetriever wraps an in-memory slice of past failures (loaded
// from persistence.Store before each Mutator proposal) with the teacher's
// confidence/similarity/consistency gate sequence.
func NewFailureRetriever(records []FailureRecord, maxEvidenceLen, minKeywordOverlap int) *FailureRetriever {
	return &FailureRetriever{records: records, maxEvidenceLen: maxEvidenceLen, minKeywordOverlap: minKeywordOverlap}
}

// Retrieve runs the three gates against a deadlock description:
//  1. Confidence — skip entirely if alwaysRetrieve is false and the
//     description is too short to search meaningfully.
//  2. Similarity — keyword-overlap search, standing in for the teacher's
//     vector-similarity search against a vector store this engine does
//     not otherwise need.
//  3. Consistency — drop empty or duplicate results.
func (f *FailureRetriever) Retrieve(description string, alwaysRetrieve bool) GateResult {
	result := GateResult{}

	words := strings.Fields(strings.ToLower(description))
	if !alwaysRetrieve && len(words) < 4 {
		result.Gate1Passed = false
		result.Reason = fmt.Sprintf("gate1: description has only %d words, below minimum", len(words))
		return result
	}
	result.Gate1Passed = true

	keywords := make(map[string]bool, len(words))
	for _, w := range words {
		if len(w) > 3 {
			keywords[w] = true
		}
	}

	var gate2 []FailureRecord
	for _, rec := range f.records {
		overlap := 0
		for _, w := range strings.Fields(strings.ToLower(rec.Summary)) {
			if keywords[w] {
				overlap++
			}
		}
		if overlap >= f.minKeywordOverlap {
			gate2 = append(gate2, rec)
		}
	}
	result.Gate2Count = len(gate2)
	if result.Gate2Count == 0 {
		result.Reason = "gate2: no past failures share enough keywords"
		return result
	}

	seen := map[string]bool{}
	var gate3 []FailureRecord
	for _, rec := range gate2 {
		if rec.Summary == "" || seen[rec.EpisodeID] {
			continue
		}
		if f.maxEvidenceLen > 0 && len(rec.Summary) > f.maxEvidenceLen {
			continue
		}
		seen[rec.EpisodeID] = true
		gate3 = append(gate3, rec)
	}
	result.Gate3Count = len(gate3)
	result.Retrieved = gate3
	if result.Gate3Count == 0 {
		result.Reason = "gate3: all candidates failed consistency check"
	} else {
		result.Reason = fmt.Sprintf("retrieved %d prior failures (gate2=%d, gate3=%d)", result.Gate3Count, result.Gate2Count, result.Gate3Count)
	}
	return result
}

// #endregion failure retrieval
