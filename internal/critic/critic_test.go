package critic

import (
	"testing"

	"github.com/kibbyd/negotiation-engine/internal/domain"
)

func TestScoresByAgent(t *testing.T) {
	verdict := domain.CriticVerdict{Scores: []domain.CriticScore{
		{AgentID: "A", Score: 3, Rationale: "held firm"},
		{AgentID: "B", Score: -2, Rationale: "conceded too early"},
	}}

	scores := ScoresByAgent(verdict)
	if scores["A"] != 3 || scores["B"] != -2 {
		t.Fatalf("unexpected scores: %#v", scores)
	}
}

func TestSummaryIncludesEveryAgent(t *testing.T) {
	verdict := domain.CriticVerdict{Scores: []domain.CriticScore{
		{AgentID: "A", Score: 3, Rationale: "held firm"},
		{AgentID: "B", Score: -2, Rationale: "conceded too early"},
	}}

	summary := Summary(verdict)
	if summary == "" {
		t.Fatal("expected non-empty summary")
	}
	for _, want := range []string{"A=3", "B=-2"} {
		if !contains(summary, want) {
			t.Errorf("expected summary to contain %q, got %q", want, summary)
		}
	}
}

func contains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}
