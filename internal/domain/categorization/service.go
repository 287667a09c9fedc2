package categorization

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/FACorreiaa/statement-ingest/internal/domain/import/normalizer"
	"github.com/FACorreiaa/statement-ingest/internal/domain/ledger"
)

var ErrInvalidCorrection = errors.New("invalid categorization correction")

// OverrideStore persists merchant corrections.
type OverrideStore interface {
	OverrideLister
	SaveOverride(ctx context.Context, override normalizer.MerchantOverride) (*normalizer.MerchantOverride, error)
}

// Correction is a user re-filing a merchant under another category.
type Correction struct {
	Merchant            string `json:"merchant"`
	OriginalCategoryID  string `json:"originalCategoryId,omitempty"`
	CorrectedCategoryID string `json:"correctedCategoryId"`
	MatchType           string `json:"matchType,omitempty"` // defaults to contains
}

// Service wires the classifiers together: user overrides first, then the
// rule table, then ledger history.
type Service struct {
	store      OverrideStore
	sanitizer  *normalizer.MerchantSanitizer
	rules      *RuleClassifier
	overrides  *OverrideClassifier
	history    *HistoryIndex
	thresholds Thresholds
	logger     *slog.Logger
}

// NewService creates a categorization service. store may be nil, in which
// case corrections only live in memory.
func NewService(store OverrideStore, logger *slog.Logger) (*Service, error) {
	sanitizer := normalizer.NewMerchantSanitizer()
	history, err := NewHistoryIndex(sanitizer)
	if err != nil {
		return nil, err
	}
	return &Service{
		store:      store,
		sanitizer:  sanitizer,
		rules:      NewRuleClassifier(),
		overrides:  NewOverrideClassifier(sanitizer, DefaultFuzzyThreshold),
		history:    history,
		thresholds: DefaultThresholds(),
		logger:     logger,
	}, nil
}

// WithFuzzyThreshold sets the minimum score for fuzzy overrides. It must be
// called before the first Refresh.
func (s *Service) WithFuzzyThreshold(threshold int) *Service {
	s.overrides = NewOverrideClassifier(s.sanitizer, threshold)
	return s
}

// Refresh reloads overrides from the store and reindexes the ledger history.
func (s *Service) Refresh(ctx context.Context, history []ledger.Transaction) error {
	if s.store != nil {
		if err := s.overrides.Load(ctx, s.store); err != nil {
			return err
		}
	}
	if err := s.history.Rebuild(history); err != nil {
		return err
	}
	s.logger.Debug("categorization refreshed",
		slog.Int("overrides", s.overrides.Len()),
		slog.Int("history", len(history)))
	return nil
}

func (s *Service) chain() Chain {
	return Chain{s.overrides, s.rules, NewHistoryClassifier(s.history)}
}

// Classify implements Classifier.
func (s *Service) Classify(candidate ledger.CandidateTransaction, categories []ledger.Category) ledger.CategorizationVerdict {
	return s.chain().Classify(candidate, categories)
}

// ClassifyBatch classifies candidates in order.
func (s *Service) ClassifyBatch(candidates []ledger.CandidateTransaction, categories []ledger.Category) []ledger.CategorizationVerdict {
	return ClassifyBatch(s.chain(), candidates, categories)
}

// Thresholds returns the confidence cut-offs in use.
func (s *Service) Thresholds() Thresholds {
	return s.thresholds
}

// Learn records a correction so future statements from the same merchant
// are filed under the corrected category.
func (s *Service) Learn(ctx context.Context, c Correction) (*normalizer.MerchantOverride, error) {
	if strings.TrimSpace(c.Merchant) == "" {
		return nil, fmt.Errorf("%w: merchant is required", ErrInvalidCorrection)
	}
	if c.CorrectedCategoryID == "" {
		return nil, fmt.Errorf("%w: corrected category is required", ErrInvalidCorrection)
	}
	if c.MatchType == "" {
		c.MatchType = normalizer.MatchContains
	}
	if !normalizer.ValidMatchType(c.MatchType) {
		return nil, fmt.Errorf("%w: %w %q", ErrInvalidCorrection, normalizer.ErrInvalidMatchType, c.MatchType)
	}

	info := s.sanitizer.Sanitize(c.Merchant)
	pattern := info.Key
	if pattern == "" {
		pattern = strings.ToUpper(strings.TrimSpace(c.Merchant))
	}
	categoryID := c.CorrectedCategoryID

	override := normalizer.MerchantOverride{
		MatchPattern: pattern,
		MatchType:    c.MatchType,
		MerchantName: info.NormalizedName,
		CategoryID:   &categoryID,
	}

	saved := &override
	if s.store != nil {
		var err error
		saved, err = s.store.SaveOverride(ctx, override)
		if err != nil {
			return nil, fmt.Errorf("failed to learn correction: %w", err)
		}
	} else if saved.ID == "" {
		saved.ID = uuid.NewString()
	}
	s.overrides.upsert(*saved)

	s.logger.Info("learned categorization correction",
		slog.String("merchant", c.Merchant),
		slog.String("pattern", saved.MatchPattern),
		slog.String("original_category", c.OriginalCategoryID),
		slog.String("corrected_category", c.CorrectedCategoryID))
	return saved, nil
}
