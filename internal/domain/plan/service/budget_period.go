// Package service provides business logic for budget periods
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/statement-ingest/internal/domain/ledger"
	"github.com/FACorreiaa/statement-ingest/internal/domain/plan/repository"
)

var ErrInvalidMonth = errors.New("invalid budget month")

// BudgetPeriodService handles budget period business logic
type BudgetPeriodService struct {
	repo   repository.BudgetPeriodRepository
	logger *slog.Logger
}

// NewBudgetPeriodService creates a new budget period service
func NewBudgetPeriodService(repo repository.BudgetPeriodRepository, logger *slog.Logger) *BudgetPeriodService {
	return &BudgetPeriodService{repo: repo, logger: logger}
}

// CreatePeriod returns the period for month, creating it with allocations
// when the month has none yet. Creating a period that already exists
// returns the stored one unchanged.
func (s *BudgetPeriodService) CreatePeriod(ctx context.Context, month string, allocations map[string]decimal.Decimal) (*ledger.BudgetPeriod, error) {
	if _, err := ledger.ParseMonth(month); err != nil {
		return nil, fmt.Errorf("%w %q", ErrInvalidMonth, month)
	}

	period, created, err := s.repo.GetOrCreatePeriod(ctx, month, allocations)
	if err != nil {
		return nil, err
	}

	if created {
		s.logger.Info("budget period created",
			slog.String("month", month),
			slog.String("period_id", period.ID),
			slog.Int("allocations", len(period.Allocations)))
	}
	return period, nil
}

// ListPeriods lists every period
func (s *BudgetPeriodService) ListPeriods(ctx context.Context) ([]ledger.BudgetPeriod, error) {
	return s.repo.ListPeriods(ctx)
}
