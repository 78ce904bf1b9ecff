package websearch

import (
	"testing"
)

// #region format_tests

func TestFormatAsEvidence_MultipleResults(t *testing.T) {
	results := []Result{
		{Title: "Title A", Snippet: "Snippet A", URL: "https://a.com"},
		{Title: "Title B", Snippet: "Snippet B", URL: "https://b.com"},
	}
	out := FormatAsEvidence(results, 0)
	if out == "" {
		t.Fatal("expected non-empty output")
	}
	if !contains(out, "[Ingredient Research]") {
		t.Error("missing header")
	}
	if !contains(out, "1. Title A") {
		t.Error("missing result 1")
	}
	if !contains(out, "2. Title B") {
		t.Error("missing result 2")
	}
	if !contains(out, "Source: https://a.com") {
		t.Error("missing source URL")
	}
}

func TestFormatAsEvidence_Empty(t *testing.T) {
	out := FormatAsEvidence(nil, 0)
	if out != "" {
		t.Errorf("expected empty string for nil results, got %q", out)
	}
}

func TestFormatAsEvidence_NoURL(t *testing.T) {
	results := []Result{{Title: "a varied descriptive title", Snippet: "with a distinct snippet too", URL: ""}}
	out := FormatAsEvidence(results, 0)
	if contains(out, "Source:") {
		t.Error("should not include Source line when URL is empty")
	}
}

func TestFormatAsEvidence_DropsLowEntropyResults(t *testing.T) {
	results := []Result{
		{Title: "same same same same", Snippet: "same same same", URL: "https://a.com"},
	}
	if out := FormatAsEvidence(results, 0.5); out != "" {
		t.Errorf("expected a repetitive, low-entropy result to be dropped, got %q", out)
	}
}

func TestFormatAsEvidence_KeepsHighEntropyResults(t *testing.T) {
	results := []Result{
		{Title: "deadline pressure breaks pricing deadlock", Snippet: "operators report faster convergence under time scarcity", URL: "https://a.com"},
	}
	out := FormatAsEvidence(results, 0.5)
	if out == "" {
		t.Fatal("expected a varied, high-entropy result to survive the gate")
	}
	if !contains(out, "deadline pressure breaks pricing deadlock") {
		t.Error("expected the surviving result's title in the output")
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && searchString(s, substr)
}

func searchString(s, sub string) bool {
	for i := 0; i <= len(s)-len(sub); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

func TestAttribution_JoinsUpToThreeURLs(t *testing.T) {
	results := []Result{
		{Title: "A", URL: "https://a.com"},
		{Title: "B", URL: ""},
		{Title: "C", URL: "https://c.com"},
		{Title: "D", URL: "https://d.com"},
		{Title: "E", URL: "https://e.com"},
	}
	out := Attribution(results)
	if !contains(out, "https://a.com") || !contains(out, "https://c.com") || !contains(out, "https://d.com") {
		t.Errorf("expected the first three URLs, got %q", out)
	}
	if contains(out, "https://e.com") {
		t.Errorf("expected attribution capped at three URLs, got %q", out)
	}
}

func TestAttribution_NoURLsYieldsEmptyString(t *testing.T) {
	if out := Attribution([]Result{{Title: "T"}}); out != "" {
		t.Errorf("expected empty string when no result has a URL, got %q", out)
	}
	if out := Attribution(nil); out != "" {
		t.Errorf("expected empty string for nil results, got %q", out)
	}
}

// #endregion format_tests

// #region config_tests

func TestDefaultConfig_Values(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.MaxResults != 3 {
		t.Errorf("expected MaxResults=3, got %d", cfg.MaxResults)
	}
	if !cfg.Enabled {
		t.Error("expected Enabled=true by default")
	}
	if cfg.EntropyThreshold != 0.3 {
		t.Errorf("expected EntropyThreshold=0.3, got %f", cfg.EntropyThreshold)
	}
}

// #endregion config_tests
