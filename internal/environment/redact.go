package environment

import (
	"regexp"
	"strings"

	"github.com/kibbyd/negotiation-engine/internal/domain"
)

// #region redaction

var sentenceSplit = regexp.MustCompile(`[.!?]+`)

// redactLeaks enforces the Capitalizer privacy rule (spec.md §4.1 step 2,
// testable property 8): the hint must never contain a verbatim fragment
// longer than 20 characters drawn from any other actor's monologue. The
// detection unit is a sentence, split on sentence punctuation.
func redactLeaks(hint string, recent []domain.ActionLogEntry) string {
	for _, entry := range recent {
		if entry.InternalMonologue == "" {
			continue
		}
		for _, fragment := range sentenceSplit.Split(entry.InternalMonologue, -1) {
			fragment = strings.TrimSpace(fragment)
			if len(fragment) <= 20 {
				continue
			}
			if strings.Contains(hint, fragment) {
				hint = strings.ReplaceAll(hint, fragment, "[redacted]")
			}
		}
	}
	return hint
}

// #endregion redaction
