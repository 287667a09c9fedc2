// Package repository provides data access for budget periods
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/statement-ingest/internal/domain/ledger"
	"github.com/FACorreiaa/statement-ingest/pkg/db"
)

// BudgetPeriodRepository defines the interface for budget period operations
type BudgetPeriodRepository interface {
	// GetOrCreatePeriod returns the period for month (YYYY-MM), creating it
	// with allocations when none exists. The bool reports creation.
	GetOrCreatePeriod(ctx context.Context, month string, allocations map[string]decimal.Decimal) (*ledger.BudgetPeriod, bool, error)

	// ListPeriods lists every budget period, oldest month first
	ListPeriods(ctx context.Context) ([]ledger.BudgetPeriod, error)
}

// PostgresBudgetPeriodRepository implements BudgetPeriodRepository with PostgreSQL
type PostgresBudgetPeriodRepository struct {
	db db.DBTX
}

// NewPostgresBudgetPeriodRepository creates a new repository instance
func NewPostgresBudgetPeriodRepository(conn db.DBTX) *PostgresBudgetPeriodRepository {
	return &PostgresBudgetPeriodRepository{db: conn}
}

const periodColumns = `id::text, month, allocations, available_to_budget, created_at, updated_at`

// GetOrCreatePeriod inserts the period unless the month already has one.
// The unique index on month makes concurrent creators converge on one row.
func (r *PostgresBudgetPeriodRepository) GetOrCreatePeriod(ctx context.Context, month string, allocations map[string]decimal.Decimal) (*ledger.BudgetPeriod, bool, error) {
	if allocations == nil {
		allocations = map[string]decimal.Decimal{}
	}
	payload, err := json.Marshal(allocations)
	if err != nil {
		return nil, false, fmt.Errorf("failed to encode allocations: %w", err)
	}

	period, err := scanPeriod(r.db.QueryRow(ctx, `
		INSERT INTO budget_periods (id, month, allocations, available_to_budget)
		VALUES ($1, $2, $3, 0)
		ON CONFLICT (month) DO NOTHING
		RETURNING `+periodColumns,
		uuid.NewString(), month, payload,
	))
	if err == nil {
		return period, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to create budget period %s: %w", month, err)
	}

	period, err = scanPeriod(r.db.QueryRow(ctx, `
		SELECT `+periodColumns+`
		FROM budget_periods
		WHERE month = $1`, month))
	if err != nil {
		return nil, false, fmt.Errorf("failed to get budget period %s: %w", month, err)
	}
	return period, false, nil
}

// ListPeriods lists all periods
func (r *PostgresBudgetPeriodRepository) ListPeriods(ctx context.Context) ([]ledger.BudgetPeriod, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+periodColumns+`
		FROM budget_periods
		ORDER BY month`)
	if err != nil {
		return nil, fmt.Errorf("failed to list budget periods: %w", err)
	}
	defer rows.Close()

	var periods []ledger.BudgetPeriod
	for rows.Next() {
		period, err := scanPeriod(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan budget period: %w", err)
		}
		periods = append(periods, *period)
	}
	return periods, rows.Err()
}

func scanPeriod(row pgx.Row) (*ledger.BudgetPeriod, error) {
	var (
		period ledger.BudgetPeriod
		raw    []byte
	)
	err := row.Scan(
		&period.ID, &period.Month, &raw, &period.AvailableToBudget,
		&period.CreatedAt, &period.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	period.Allocations = map[string]decimal.Decimal{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &period.Allocations); err != nil {
			return nil, fmt.Errorf("failed to decode allocations: %w", err)
		}
	}
	return &period, nil
}
