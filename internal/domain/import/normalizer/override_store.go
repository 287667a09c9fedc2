package normalizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/FACorreiaa/statement-ingest/pkg/db"
)

// Match types accepted by merchant_overrides.match_type.
const (
	MatchExact    = "exact"
	MatchContains = "contains"
	MatchFuzzy    = "fuzzy"
)

var ErrInvalidMatchType = errors.New("invalid match type")

// MerchantOverride is a user correction: statements whose merchant matches
// MatchPattern are shown as MerchantName and filed under CategoryID.
type MerchantOverride struct {
	ID            string     `json:"id"`
	MatchPattern  string     `json:"match_pattern"`
	MatchType     string     `json:"match_type"`
	MerchantName  string     `json:"merchant_name"`
	CategoryID    *string    `json:"category_id,omitempty"`
	MatchCount    int        `json:"match_count"`
	LastMatchedAt *time.Time `json:"last_matched_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Matches reports whether raw satisfies an exact or contains override.
// Fuzzy overrides are scored by the categorization layer and never match here.
func (o MerchantOverride) Matches(raw string) bool {
	raw = strings.TrimSpace(raw)
	pattern := strings.TrimSpace(o.MatchPattern)
	if raw == "" || pattern == "" {
		return false
	}

	switch o.MatchType {
	case MatchExact:
		return strings.EqualFold(raw, pattern)
	case MatchContains:
		return strings.Contains(strings.ToUpper(raw), strings.ToUpper(pattern))
	}
	return false
}

// ValidMatchType reports whether t is one of the supported match types.
func ValidMatchType(t string) bool {
	switch t {
	case MatchExact, MatchContains, MatchFuzzy:
		return true
	}
	return false
}

const overrideColumns = `id, match_pattern, match_type, merchant_name, category_id,
			match_count, last_matched_at, created_at, updated_at`

// OverrideStore manages merchant overrides in the database
type OverrideStore struct {
	db     db.DBTX
	logger *slog.Logger
}

// NewOverrideStore creates a new override store
func NewOverrideStore(conn db.DBTX, logger *slog.Logger) *OverrideStore {
	return &OverrideStore{db: conn, logger: logger}
}

// SaveOverride creates or updates the override for a match pattern
func (s *OverrideStore) SaveOverride(ctx context.Context, override MerchantOverride) (*MerchantOverride, error) {
	if override.MatchType == "" {
		override.MatchType = MatchExact
	}
	if !ValidMatchType(override.MatchType) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMatchType, override.MatchType)
	}
	if override.ID == "" {
		override.ID = uuid.NewString()
	}

	query := `
		INSERT INTO merchant_overrides (
			id, match_pattern, match_type, merchant_name, category_id
		) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (match_pattern) DO UPDATE SET
			match_type = EXCLUDED.match_type,
			merchant_name = EXCLUDED.merchant_name,
			category_id = EXCLUDED.category_id,
			updated_at = now()
		RETURNING ` + overrideColumns

	row := s.db.QueryRow(ctx, query,
		override.ID,
		override.MatchPattern,
		override.MatchType,
		override.MerchantName,
		override.CategoryID,
	)

	result, err := scanOverride(row)
	if err != nil {
		return nil, fmt.Errorf("failed to save override %q: %w", override.MatchPattern, err)
	}

	s.logger.Info("merchant override saved",
		slog.String("pattern", result.MatchPattern),
		slog.String("match_type", result.MatchType))
	return result, nil
}

// ListOverrides returns every override, most used first
func (s *OverrideStore) ListOverrides(ctx context.Context) ([]MerchantOverride, error) {
	query := `
		SELECT ` + overrideColumns + `
		FROM merchant_overrides
		ORDER BY match_count DESC, updated_at DESC
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list overrides: %w", err)
	}
	defer rows.Close()

	var overrides []MerchantOverride
	for rows.Next() {
		o, err := scanOverride(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan override: %w", err)
		}
		overrides = append(overrides, *o)
	}
	return overrides, rows.Err()
}

// FindMatchingOverride returns the first exact or contains override matching
// rawMerchant, or nil when none does.
func (s *OverrideStore) FindMatchingOverride(ctx context.Context, rawMerchant string) (*MerchantOverride, error) {
	overrides, err := s.ListOverrides(ctx)
	if err != nil {
		return nil, err
	}

	for i := range overrides {
		if overrides[i].Matches(rawMerchant) {
			return &overrides[i], nil
		}
	}
	return nil, nil
}

// RecordMatch bumps the usage counter of an override
func (s *OverrideStore) RecordMatch(ctx context.Context, id string) error {
	query := `
		UPDATE merchant_overrides
		SET match_count = match_count + 1, last_matched_at = now()
		WHERE id = $1
	`
	if _, err := s.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to record override match: %w", err)
	}
	return nil
}

// DeleteOverride removes an override
func (s *OverrideStore) DeleteOverride(ctx context.Context, id string) error {
	result, err := s.db.Exec(ctx, `DELETE FROM merchant_overrides WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete override: %w", err)
	}
	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanOverride(row pgx.Row) (*MerchantOverride, error) {
	var o MerchantOverride
	err := row.Scan(
		&o.ID, &o.MatchPattern, &o.MatchType, &o.MerchantName, &o.CategoryID,
		&o.MatchCount, &o.LastMatchedAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}
