package approval

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kibbyd/negotiation-engine/internal/domain"
)

// #region helpers

func useTempWorkspace(t *testing.T) {
	t.Helper()
	original := WorkspaceDir
	WorkspaceDir = t.TempDir()
	t.Cleanup(func() { WorkspaceDir = original })
}

// #endregion helpers

// #region outbox

func TestSubmitWritesOutboxFile(t *testing.T) {
	useTempWorkspace(t)

	req := Request{
		GenerationID: "gen-1",
		Provisioning: domain.NewAgentProvisioning{AgentID: "mediator-1", Archetype: "mediator"},
		Rationale:    "two-way standoff",
	}
	if err := Submit(req); err != nil {
		t.Fatalf("submit: %v", err)
	}

	path := filepath.Join(WorkspaceDir, "pending_mediator-1.json")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected outbox file at %s: %v", path, err)
	}
}

// #endregion outbox

// #region inbox

func TestPollReturnsNotFoundWhenNoDecisionYet(t *testing.T) {
	useTempWorkspace(t)

	_, found, err := Poll("nobody")
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if found {
		t.Fatal("expected found=false with no decision file present")
	}
}

func TestPollReadsBackASubmittedDecision(t *testing.T) {
	useTempWorkspace(t)

	if err := os.MkdirAll(WorkspaceDir, 0o755); err != nil {
		t.Fatalf("mkdir workspace: %v", err)
	}
	data := `{"agent_id":"mediator-1","approved":true,"note":"looks safe"}`
	if err := os.WriteFile(filepath.Join(WorkspaceDir, "decision_mediator-1.json"), []byte(data), 0o644); err != nil {
		t.Fatalf("write decision file: %v", err)
	}

	decision, found, err := Poll("mediator-1")
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if !found {
		t.Fatal("expected found=true")
	}
	if !decision.Approved || decision.Note != "looks safe" {
		t.Fatalf("unexpected decision: %#v", decision)
	}
}

func TestPollTreatsBlankFileAsNotFound(t *testing.T) {
	useTempWorkspace(t)

	if err := os.MkdirAll(WorkspaceDir, 0o755); err != nil {
		t.Fatalf("mkdir workspace: %v", err)
	}
	if err := os.WriteFile(filepath.Join(WorkspaceDir, "decision_mediator-1.json"), []byte("   \n"), 0o644); err != nil {
		t.Fatalf("write blank decision file: %v", err)
	}

	_, found, err := Poll("mediator-1")
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if found {
		t.Fatal("expected a blank decision file to be treated as not-yet-decided")
	}
}

func TestClearRemovesBothFiles(t *testing.T) {
	useTempWorkspace(t)

	req := Request{Provisioning: domain.NewAgentProvisioning{AgentID: "mediator-1"}}
	if err := Submit(req); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := os.WriteFile(filepath.Join(WorkspaceDir, "decision_mediator-1.json"), []byte(`{"agent_id":"mediator-1","approved":true}`), 0o644); err != nil {
		t.Fatalf("write decision file: %v", err)
	}

	Clear("mediator-1")

	if _, err := os.Stat(filepath.Join(WorkspaceDir, "pending_mediator-1.json")); !os.IsNotExist(err) {
		t.Fatal("expected outbox file to be removed")
	}
	if _, err := os.Stat(filepath.Join(WorkspaceDir, "decision_mediator-1.json")); !os.IsNotExist(err) {
		t.Fatal("expected inbox file to be removed")
	}
}

// #endregion inbox
