// Package categorization suggests a spending category for parsed statement
// transactions. Suggestions are advisory; callers decide what to do with them
// through the confidence thresholds.
package categorization

import (
	"fmt"
	"strings"

	"github.com/FACorreiaa/statement-ingest/internal/domain/ledger"
)

const (
	incomeConfidence   = 0.7
	fallbackConfidence = 0.1

	reasonIncome    = "Positive amount categorized as income"
	reasonNoMatch   = "No matching category found"
	reasonRuleMatch = "Matched pattern: %s"
)

// Classifier suggests a category for one candidate.
type Classifier interface {
	Classify(candidate ledger.CandidateTransaction, categories []ledger.Category) ledger.CategorizationVerdict
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(ledger.CandidateTransaction, []ledger.Category) ledger.CategorizationVerdict

func (f ClassifierFunc) Classify(c ledger.CandidateTransaction, categories []ledger.Category) ledger.CategorizationVerdict {
	return f(c, categories)
}

// ClassifyBatch classifies every candidate, preserving order.
func ClassifyBatch(c Classifier, candidates []ledger.CandidateTransaction, categories []ledger.Category) []ledger.CategorizationVerdict {
	verdicts := make([]ledger.CategorizationVerdict, len(candidates))
	for i, candidate := range candidates {
		verdicts[i] = c.Classify(candidate, categories)
	}
	return verdicts
}

// RuleClassifier applies the ordered pattern table.
type RuleClassifier struct {
	engine *Engine
}

// NewRuleClassifier builds a classifier over groups, or over the default
// table when none are given.
func NewRuleClassifier(groups ...PatternGroup) *RuleClassifier {
	if len(groups) == 0 {
		groups = DefaultPatternGroups()
	}
	return &RuleClassifier{engine: NewEngine(groups)}
}

// Classify returns the first pattern hit whose group resolves to one of the
// user's categories, then the income fallback, then an empty verdict.
func (r *RuleClassifier) Classify(candidate ledger.CandidateTransaction, categories []ledger.Category) ledger.CategorizationVerdict {
	for _, hit := range r.engine.MatchAll(candidate.Merchant, candidate.Description) {
		if category, ok := findCategory(categories, hit.CategoryName); ok {
			return ledger.CategorizationVerdict{
				CategoryID: category.ID,
				Confidence: hit.Confidence,
				Reasoning:  fmt.Sprintf(reasonRuleMatch, hit.Pattern),
			}
		}
	}

	if candidate.Amount.IsPositive() {
		if category, ok := findIncomeCategory(categories); ok {
			return ledger.CategorizationVerdict{
				CategoryID: category.ID,
				Confidence: incomeConfidence,
				Reasoning:  reasonIncome,
			}
		}
	}

	return noMatch()
}

func noMatch() ledger.CategorizationVerdict {
	return ledger.CategorizationVerdict{Confidence: fallbackConfidence, Reasoning: reasonNoMatch}
}

// findCategory resolves a group name loosely: either name may contain the
// other, case-insensitively. Categories with blank names never resolve.
func findCategory(categories []ledger.Category, groupName string) (ledger.Category, bool) {
	group := strings.ToLower(groupName)
	for _, c := range categories {
		name := strings.ToLower(strings.TrimSpace(c.Name))
		if name == "" {
			continue
		}
		if strings.Contains(name, group) || strings.Contains(group, name) {
			return c, true
		}
	}
	return ledger.Category{}, false
}

func findIncomeCategory(categories []ledger.Category) (ledger.Category, bool) {
	for _, c := range categories {
		name := strings.ToLower(c.Name)
		if strings.Contains(name, "income") || strings.Contains(name, "salary") {
			return c, true
		}
	}
	return ledger.Category{}, false
}

func categoryByID(categories []ledger.Category, id string) (ledger.Category, bool) {
	for _, c := range categories {
		if c.ID == id {
			return c, true
		}
	}
	return ledger.Category{}, false
}

// Chain consults classifiers in order. The first verdict naming a category
// wins; when none does, the most confident empty verdict is returned.
type Chain []Classifier

func (ch Chain) Classify(candidate ledger.CandidateTransaction, categories []ledger.Category) ledger.CategorizationVerdict {
	var best *ledger.CategorizationVerdict
	for _, c := range ch {
		if c == nil {
			continue
		}
		v := c.Classify(candidate, categories)
		if v.HasCategory() {
			return v
		}
		if best == nil || v.Confidence > best.Confidence {
			best = &v
		}
	}
	if best == nil {
		return noMatch()
	}
	return *best
}
