// Package approval is the human-in-the-loop gate for agent creation
// (spec.md §4.7, §4.9): the Provisioner drops a pending NewAgentProvisioning
// into an outbox file for a human reviewer, and polls an inbox file for
// their decision. Adapted from the teacher's file-based inbox/outbox
// exchange; see DESIGN.md for what was dropped and why.
package approval

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kibbyd/negotiation-engine/internal/domain"
)

// #region config

// WorkspaceDir is the root directory for pending/decided approval files.
var WorkspaceDir = filepath.Join(os.TempDir(), "negotiation-engine", "approvals")

// #endregion config

// #region request

// Request is one pending creation decision, written to the outbox for a
// human to review.
type Request struct {
	GenerationID string                      `json:"generation_id"`
	Provisioning domain.NewAgentProvisioning `json:"provisioning"`
	Rationale    string                      `json:"rationale"`
}

// Decision is a human reviewer's verdict on one Request.
type Decision struct {
	AgentID  string `json:"agent_id"`
	Approved bool   `json:"approved"`
	Note     string `json:"note"`
}

func outboxPath(agentID string) string {
	return filepath.Join(WorkspaceDir, fmt.Sprintf("pending_%s.json", agentID))
}

func inboxPath(agentID string) string {
	return filepath.Join(WorkspaceDir, fmt.Sprintf("decision_%s.json", agentID))
}

// #endregion request

// #region outbox

// Submit writes a pending Request to the outbox for human review.
func Submit(req Request) error {
	if err := os.MkdirAll(WorkspaceDir, 0o755); err != nil {
		return fmt.Errorf("approval: create workspace: %w", err)
	}
	data, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return fmt.Errorf("approval: marshal request: %w", err)
	}
	if err := os.WriteFile(outboxPath(req.Provisioning.AgentID), data, 0o644); err != nil {
		return fmt.Errorf("approval: write outbox: %w", err)
	}
	return nil
}

// #endregion outbox

// #region inbox

// Poll checks whether a human has decided on agentID yet. ok is false
// when no decision file is present — the caller should try again later.
func Poll(agentID string) (Decision, bool, error) {
	data, err := os.ReadFile(inboxPath(agentID))
	if err != nil {
		if os.IsNotExist(err) {
			return Decision{}, false, nil
		}
		return Decision{}, false, fmt.Errorf("approval: read inbox: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return Decision{}, false, nil
	}

	var decision Decision
	if err := json.Unmarshal(data, &decision); err != nil {
		return Decision{}, false, fmt.Errorf("approval: decode decision: %w", err)
	}
	return decision, true, nil
}

// Clear removes a decision file and its matching outbox entry once the
// Orchestrator has acted on it, so a stale decision is never replayed.
func Clear(agentID string) {
	os.Remove(inboxPath(agentID))
	os.Remove(outboxPath(agentID))
}

// #endregion inbox
