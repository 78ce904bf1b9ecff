package environment

import (
	"fmt"
	"strings"

	"github.com/kibbyd/negotiation-engine/internal/domain"
)

// #region permission-gate

// PermissionViolation reports a mutation whose path an agent is not
// authorized to touch. Fatal to the current turn (spec.md §7).
type PermissionViolation struct {
	SpeakerID string
	Path      string
	Reason    string
}

func (e *PermissionViolation) Error() string {
	return fmt.Sprintf("permission violation: speaker %s path %q: %s", e.SpeakerID, e.Path, e.Reason)
}

// checkPermission enforces a single mutation against an agent's
// AgentPermissions. A nil perms pointer means the speaker is a primary
// actor and is unrestricted. Denied prefixes are checked before allowed
// prefixes, mirroring a hard-veto-then-soft-check gate.
func checkPermission(speakerID, path string, perms *domain.AgentPermissions) error {
	if perms == nil {
		return nil
	}

	for _, denied := range perms.CannotModifyFields {
		if hasPathPrefix(path, denied) {
			return &PermissionViolation{SpeakerID: speakerID, Path: path, Reason: fmt.Sprintf("denied prefix %q", denied)}
		}
	}

	for _, allowed := range perms.CanModifyFields {
		if hasPathPrefix(path, allowed) {
			return nil
		}
	}

	return &PermissionViolation{SpeakerID: speakerID, Path: path, Reason: "not under any allowed prefix"}
}

// hasPathPrefix reports whether path is prefix or a dotted descendant of
// prefix ("concessions" matches "concessions" and "concessions.y").
func hasPathPrefix(path, prefix string) bool {
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+".")
}

// checkTurnPermissions enforces every mutation in a proposal and the
// per-turn mutation count cap.
func checkTurnPermissions(speakerID string, mutations []domain.StateMutation, perms *domain.AgentPermissions) error {
	if perms != nil && perms.MaxStateMutationsPerTurn > 0 && len(mutations) > perms.MaxStateMutationsPerTurn {
		return &PermissionViolation{
			SpeakerID: speakerID,
			Path:      "",
			Reason:    fmt.Sprintf("%d mutations exceeds cap %d", len(mutations), perms.MaxStateMutationsPerTurn),
		}
	}
	for _, m := range mutations {
		if err := checkPermission(speakerID, m.Path, perms); err != nil {
			return err
		}
	}
	return nil
}

// #endregion permission-gate
