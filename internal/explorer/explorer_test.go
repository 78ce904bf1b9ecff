package explorer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kibbyd/negotiation-engine/internal/domain"
	"github.com/kibbyd/negotiation-engine/internal/gateway"
	"github.com/kibbyd/negotiation-engine/internal/websearch"
)

func TestFallbackOnEmptyGraphReturnsSingleHypothesis(t *testing.T) {
	hyps := Fallback(nil)
	if len(hyps) != 1 {
		t.Fatalf("expected exactly one fallback hypothesis for an empty graph, got %d", len(hyps))
	}
	if hyps[0].FeasibilityScore < 1 || hyps[0].FeasibilityScore > 10 {
		t.Fatalf("feasibility score out of [1,10]: %d", hyps[0].FeasibilityScore)
	}
}

func TestFallbackPrefersHighestTagCoOccurrence(t *testing.T) {
	ingredients := []domain.Ingredient{
		{ID: "i1", Name: "price anchor", Description: "a short one", Tags: []string{"pricing"}},
		{ID: "i2", Name: "deadline pressure", Description: "a longer description that should weigh more heavily in the score", Tags: []string{"pricing", "timing"}},
		{ID: "i3", Name: "timing squeeze", Description: "also pricing related", Tags: []string{"timing"}},
	}

	hyps := Fallback(ingredients)
	if len(hyps) != 1 {
		t.Fatalf("expected exactly one fallback hypothesis, got %d", len(hyps))
	}
	if hyps[0].Title != "lean on deadline pressure" {
		t.Fatalf("expected fallback to favor the highest-scoring ingredient, got %q", hyps[0].Title)
	}
}

func TestFallbackClampsFeasibilityScoreToTen(t *testing.T) {
	var tags []string
	for i := 0; i < 20; i++ {
		tags = append(tags, "shared")
	}
	ingredients := []domain.Ingredient{
		{ID: "i1", Name: "overloaded", Description: "x", Tags: tags},
	}
	hyps := Fallback(ingredients)
	if hyps[0].FeasibilityScore > 10 {
		t.Fatalf("expected feasibility score clamped to 10, got %d", hyps[0].FeasibilityScore)
	}
}

func TestScanWithResearchAppendsSourceAttribution(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		text := `{"hypotheses":[{"title":"lean on price anchor","feasibility_score":7,"disruption_target":"pricing","rationale":"co-occurs with past concessions"}]}`
		resp := map[string]interface{}{
			"candidates": []map[string]interface{}{
				{"content": map[string]interface{}{"parts": []map[string]interface{}{{"text": text}}}},
			},
			"usageMetadata": map[string]interface{}{"promptTokenCount": 1, "candidatesTokenCount": 1, "totalTokenCount": 2},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	gw := gateway.New("test-key", "test-model", srv.URL)
	e := New(gw, 0.5, websearch.Config{Enabled: true})

	ingredients := []domain.Ingredient{{ID: "i1", Name: "price anchor", Tags: []string{"pricing"}}}
	research := []websearch.Result{{Title: "pricing norms", URL: "https://example.com/pricing"}}

	hyps, _, err := e.ScanWithResearch(context.Background(), ingredients, research)
	if err != nil {
		t.Fatalf("ScanWithResearch: %v", err)
	}
	if calls == 0 {
		t.Fatal("expected the gateway to have been called")
	}
	if len(hyps) != 1 {
		t.Fatalf("expected one hypothesis, got %d", len(hyps))
	}
	if !containsSubstring(hyps[0].Rationale, "https://example.com/pricing") {
		t.Fatalf("expected research attribution in rationale, got %q", hyps[0].Rationale)
	}
}

func containsSubstring(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
