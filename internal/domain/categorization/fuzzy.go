package categorization

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/FACorreiaa/statement-ingest/internal/domain/import/normalizer"
	"github.com/FACorreiaa/statement-ingest/internal/domain/ledger"
)

const (
	overrideConfidence      = 0.95
	fuzzyOverrideConfidence = 0.85

	// DefaultFuzzyThreshold is the minimum similarity score (0-100) a fuzzy
	// override needs before it is applied.
	DefaultFuzzyThreshold = 80
)

// OverrideLister is the read side of the override store.
type OverrideLister interface {
	ListOverrides(ctx context.Context) ([]normalizer.MerchantOverride, error)
}

// OverrideClassifier applies the user's merchant corrections. Exact and
// contains overrides are tried first, in store order; fuzzy overrides are
// scored against the sanitized merchant key and the best one above the
// threshold wins.
type OverrideClassifier struct {
	sanitizer *normalizer.MerchantSanitizer
	threshold int

	mu        sync.RWMutex
	overrides []normalizer.MerchantOverride
}

// NewOverrideClassifier creates a classifier with an empty snapshot.
func NewOverrideClassifier(sanitizer *normalizer.MerchantSanitizer, threshold int) *OverrideClassifier {
	if sanitizer == nil {
		sanitizer = normalizer.NewMerchantSanitizer()
	}
	if threshold <= 0 {
		threshold = DefaultFuzzyThreshold
	}
	return &OverrideClassifier{sanitizer: sanitizer, threshold: threshold}
}

// Load replaces the override snapshot from the store.
func (o *OverrideClassifier) Load(ctx context.Context, store OverrideLister) error {
	overrides, err := store.ListOverrides(ctx)
	if err != nil {
		return fmt.Errorf("failed to load merchant overrides: %w", err)
	}
	o.Set(overrides)
	return nil
}

// Set replaces the override snapshot.
func (o *OverrideClassifier) Set(overrides []normalizer.MerchantOverride) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.overrides = append([]normalizer.MerchantOverride(nil), overrides...)
}

// Len returns the number of overrides in the snapshot.
func (o *OverrideClassifier) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.overrides)
}

func (o *OverrideClassifier) Classify(candidate ledger.CandidateTransaction, categories []ledger.Category) ledger.CategorizationVerdict {
	o.mu.RLock()
	defer o.mu.RUnlock()

	key := o.sanitizer.Key(candidate.Merchant)

	for _, ov := range o.overrides {
		if ov.CategoryID == nil || ov.MatchType == normalizer.MatchFuzzy {
			continue
		}
		if !ov.Matches(candidate.Merchant) && !ov.Matches(key) {
			continue
		}
		if category, ok := categoryByID(categories, *ov.CategoryID); ok {
			return ledger.CategorizationVerdict{
				CategoryID: category.ID,
				Confidence: overrideConfidence,
				Reasoning:  fmt.Sprintf("Matched override: %s", ov.MatchPattern),
			}
		}
	}

	var (
		best      *normalizer.MerchantOverride
		bestScore = o.threshold - 1
	)
	for i := range o.overrides {
		ov := &o.overrides[i]
		if ov.CategoryID == nil || ov.MatchType != normalizer.MatchFuzzy {
			continue
		}
		if _, ok := categoryByID(categories, *ov.CategoryID); !ok {
			continue
		}
		score := fuzzyScore(strings.ToUpper(key), o.sanitizer.Key(ov.MatchPattern))
		if score > bestScore {
			best, bestScore = ov, score
		}
	}
	if best != nil {
		return ledger.CategorizationVerdict{
			CategoryID: *best.CategoryID,
			Confidence: fuzzyOverrideConfidence,
			Reasoning:  fmt.Sprintf("Fuzzy override: %s (score %d)", best.MatchPattern, bestScore),
		}
	}

	return noMatch()
}

// fuzzyScore calculates a similarity score between two strings (0-100).
// Containment scores by length ratio; otherwise the better of the
// Levenshtein ratio and a subsequence rank is used.
func fuzzyScore(s1, s2 string) int {
	if s1 == "" || s2 == "" {
		return 0
	}
	if s1 == s2 {
		return 100
	}

	if strings.Contains(s1, s2) {
		return 75 + (25 * len(s2) / len(s1))
	}
	if strings.Contains(s2, s1) {
		return 75 + (25 * len(s1) / len(s2))
	}

	distance := fuzzy.LevenshteinDistance(s1, s2)
	maxLen := max(len([]rune(s1)), len([]rune(s2)))
	levenshteinScore := 100 * (maxLen - distance) / maxLen
	if levenshteinScore < 0 {
		levenshteinScore = 0
	}

	subsequenceScore := 0
	if rank := fuzzy.RankMatchNormalizedFold(s2, s1); rank >= 0 && rank < len(s1) {
		subsequenceScore = 60 - (rank * 40 / len(s1))
	}

	return max(levenshteinScore, subsequenceScore)
}

// upsert replaces the override with the same pattern or appends it.
func (o *OverrideClassifier) upsert(ov normalizer.MerchantOverride) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := range o.overrides {
		if strings.EqualFold(o.overrides[i].MatchPattern, ov.MatchPattern) {
			o.overrides[i] = ov
			return
		}
	}
	o.overrides = append(o.overrides, ov)
}
