package categorization

import (
	"sort"
	"strings"
	"sync"

	"github.com/cloudflare/ahocorasick"
)

// PatternGroup is one row of the rule table: every pattern in the group maps
// to the user category whose name resolves to CategoryName.
type PatternGroup struct {
	CategoryName string
	Confidence   float64
	Patterns     []string
}

// MatchResult is a single pattern hit.
type MatchResult struct {
	Pattern      string  // lowercase pattern that matched
	CategoryName string  // group the pattern belongs to
	Confidence   float64 // group confidence
	Order        int     // position in the flattened table
}

// Engine matches every pattern of the rule table in a single pass using the
// Aho-Corasick algorithm. Hits are reported in table order, so the first
// hit is the one a sequential scan of the table would have found first.
type Engine struct {
	matcher *ahocorasick.Matcher
	entries []MatchResult
	// The cloudflare matcher keeps per-call state in its trie, so Match
	// holds the exclusive lock.
	mu sync.Mutex
}

// NewEngine creates an engine from the rule table.
func NewEngine(groups []PatternGroup) *Engine {
	e := &Engine{}
	e.Build(groups)
	return e
}

// Build rebuilds the matcher from the rule table. Empty patterns are skipped;
// a pattern repeated later in the table keeps its first position.
func (e *Engine) Build(groups []PatternGroup) {
	e.mu.Lock()
	defer e.mu.Unlock()

	seen := make(map[string]bool)
	entries := make([]MatchResult, 0)
	for _, g := range groups {
		for _, p := range g.Patterns {
			clean := strings.ToLower(strings.TrimSpace(p))
			if clean == "" || seen[clean] {
				continue
			}
			seen[clean] = true
			entries = append(entries, MatchResult{
				Pattern:      clean,
				CategoryName: strings.ToLower(g.CategoryName),
				Confidence:   g.Confidence,
				Order:        len(entries),
			})
		}
	}

	e.entries = entries
	if len(entries) == 0 {
		e.matcher = nil
		return
	}

	dictionary := make([][]byte, len(entries))
	for i, entry := range entries {
		dictionary[i] = []byte(entry.Pattern)
	}
	e.matcher = ahocorasick.NewMatcher(dictionary)
}

// MatchAll returns every pattern found in any of the texts, in table order.
// Texts are lowercased before matching.
func (e *Engine) MatchAll(texts ...string) []MatchResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.matcher == nil {
		return nil
	}

	hit := make(map[int]bool)
	for _, text := range texts {
		if text == "" {
			continue
		}
		for _, idx := range e.matcher.Match([]byte(strings.ToLower(text))) {
			if idx >= 0 && idx < len(e.entries) {
				hit[idx] = true
			}
		}
	}
	if len(hit) == 0 {
		return nil
	}

	indexes := make([]int, 0, len(hit))
	for idx := range hit {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	results := make([]MatchResult, len(indexes))
	for i, idx := range indexes {
		results[i] = e.entries[idx]
	}
	return results
}

// Match returns the first hit in table order, or nil.
func (e *Engine) Match(texts ...string) *MatchResult {
	all := e.MatchAll(texts...)
	if len(all) == 0 {
		return nil
	}
	return &all[0]
}

// PatternCount returns the number of patterns loaded in the engine.
func (e *Engine) PatternCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.entries)
}

// IsEmpty returns true if the engine has no patterns loaded.
func (e *Engine) IsEmpty() bool {
	return e.PatternCount() == 0
}
