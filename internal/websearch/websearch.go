// Package websearch fetches and formats supplementary evidence for the
// Explorer meta-agent's ingredient-graph scans (spec.md §4.8): a handful
// of web-search results get folded into the scan request, and a source
// attribution is appended to the Rationale of every returned hypothesis.
package websearch

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// #region types

// Result holds a single search result.
type Result struct {
	Title   string
	Snippet string
	URL     string
}

// Config holds web search parameters. EntropyThreshold is the minimum
// word entropy a result's title+snippet needs for FormatAsEvidence to
// keep it.
type Config struct {
	MaxResults       int
	Timeout          time.Duration
	Enabled          bool
	EntropyThreshold float64
}

// #endregion types

// #region config

// DefaultConfig returns default web search configuration.
// Reads from env vars: WEB_SEARCH_ENABLED, WEB_SEARCH_MAX_RESULTS,
// WEB_SEARCH_TIMEOUT, WEB_SEARCH_ENTROPY_THRESHOLD.
func DefaultConfig() Config {
	cfg := Config{
		MaxResults:       3,
		Timeout:          10 * time.Second,
		Enabled:          true,
		EntropyThreshold: 0.3,
	}
	if v := os.Getenv("WEB_SEARCH_ENABLED"); v != "" {
		cfg.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("WEB_SEARCH_MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxResults = n
		}
	}
	if v := os.Getenv("WEB_SEARCH_TIMEOUT"); v != "" {
		if sec, err := strconv.Atoi(v); err == nil && sec > 0 {
			cfg.Timeout = time.Duration(sec) * time.Second
		}
	}
	if v := os.Getenv("WEB_SEARCH_ENTROPY_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.EntropyThreshold = f
		}
	}
	return cfg
}

// #endregion config

// #region format

// wordEntropy returns the normalized Shannon entropy (0-1) of s's
// lowercased word distribution: 0 for empty or single-repeated-word
// text, approaching 1 as words grow more varied. Used to drop results
// whose snippet is too repetitive to be worth a model's attention.
func wordEntropy(s string) float64 {
	words := strings.Fields(strings.ToLower(s))
	if len(words) < 2 {
		return 0
	}
	counts := make(map[string]int, len(words))
	for _, w := range words {
		counts[w]++
	}
	if len(counts) == 1 {
		return 0
	}
	total := float64(len(words))
	var entropy float64
	for _, c := range counts {
		p := float64(c) / total
		entropy -= p * math.Log2(p)
	}
	return entropy / math.Log2(float64(len(counts)))
}

// FormatAsEvidence converts search results into the research_note the
// Explorer folds into its scan request, alongside the ingredient graph.
// A result whose title+snippet entropy falls below entropyThreshold is
// dropped: a snippet that is mostly one word repeated adds noise to the
// prompt, not signal, regardless of how many results came back.
func FormatAsEvidence(results []Result, entropyThreshold float64) string {
	var kept []Result
	for _, r := range results {
		if wordEntropy(r.Title+" "+r.Snippet) < entropyThreshold {
			continue
		}
		kept = append(kept, r)
	}
	if len(kept) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("[Ingredient Research]\n")
	for i, r := range kept {
		fmt.Fprintf(&b, "%d. %s\n", i+1, r.Title)
		if r.Snippet != "" {
			fmt.Fprintf(&b, "   %s\n", r.Snippet)
		}
		if r.URL != "" {
			fmt.Fprintf(&b, "   Source: %s\n", r.URL)
		}
	}
	return b.String()
}

// Attribution returns a short "(sources: ...)" suffix naming up to
// three result URLs, for appending to a ConvergenceHypothesis's
// Rationale when the hypothesis was generated with research folded in.
// Results without a URL are skipped; an empty slice or an all-URL-less
// slice yields "".
func Attribution(results []Result) string {
	var urls []string
	for _, r := range results {
		if r.URL == "" {
			continue
		}
		urls = append(urls, r.URL)
		if len(urls) == 3 {
			break
		}
	}
	if len(urls) == 0 {
		return ""
	}
	return fmt.Sprintf(" (sources: %s)", strings.Join(urls, ", "))
}

// #endregion format
