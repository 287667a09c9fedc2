package normalizer

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var overrideRowColumns = []string{
	"id", "match_pattern", "match_type", "merchant_name", "category_id",
	"match_count", "last_matched_at", "created_at", "updated_at",
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func TestMerchantOverride_Matches(t *testing.T) {
	tests := []struct {
		name        string
		pattern     string
		matchType   string
		rawMerchant string
		shouldMatch bool
	}{
		{"exact match lowercase", "starbucks", MatchExact, "Starbucks", true},
		{"exact match uppercase", "STARBUCKS", MatchExact, "starbucks", true},
		{"exact trims spaces", "STARBUCKS", MatchExact, "  starbucks ", true},
		{"exact no match", "starbucks", MatchExact, "tim hortons", false},
		{"exact partial no match", "star", MatchExact, "starbucks", false},
		{"contains start", "SHELL", MatchContains, "SHELL GAS #112", true},
		{"contains middle", "GAS", MatchContains, "SHELL GAS #112", true},
		{"contains case insensitive", "loblaws", MatchContains, "LOBLAWS #1021 TORONTO", true},
		{"contains no match", "SOBEYS", MatchContains, "LOBLAWS #1021", false},
		{"fuzzy never matches here", "STARBUCKS", MatchFuzzy, "STARBUCKS", false},
		{"empty raw", "STARBUCKS", MatchExact, "", false},
		{"empty pattern", "", MatchContains, "STARBUCKS", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := MerchantOverride{MatchPattern: tt.pattern, MatchType: tt.matchType}
			assert.Equal(t, tt.shouldMatch, o.Matches(tt.rawMerchant))
		})
	}
}

func TestOverrideStore_SaveOverride(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewOverrideStore(mock, testLogger())
	now := time.Now()
	categoryID := "c0ffee00-0000-4000-8000-000000000001"

	mock.ExpectQuery(`INSERT INTO merchant_overrides`).
		WithArgs("ov-1", "COMPRA CAFE", MatchContains, "Corner Cafe", &categoryID).
		WillReturnRows(pgxmock.NewRows(overrideRowColumns).AddRow(
			"ov-1", "COMPRA CAFE", MatchContains, "Corner Cafe", &categoryID,
			0, (*time.Time)(nil), now, now,
		))

	saved, err := store.SaveOverride(context.Background(), MerchantOverride{
		ID:           "ov-1",
		MatchPattern: "COMPRA CAFE",
		MatchType:    MatchContains,
		MerchantName: "Corner Cafe",
		CategoryID:   &categoryID,
	})
	require.NoError(t, err)
	assert.Equal(t, "ov-1", saved.ID)
	assert.Equal(t, "Corner Cafe", saved.MerchantName)
	require.NotNil(t, saved.CategoryID)
	assert.Equal(t, categoryID, *saved.CategoryID)
	assert.Nil(t, saved.LastMatchedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOverrideStore_SaveOverride_DefaultsToExact(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewOverrideStore(mock, testLogger())
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO merchant_overrides`).
		WithArgs(pgxmock.AnyArg(), "TIM HORTONS #88", MatchExact, "Tim Hortons", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(overrideRowColumns).AddRow(
			"generated", "TIM HORTONS #88", MatchExact, "Tim Hortons", (*string)(nil),
			0, (*time.Time)(nil), now, now,
		))

	saved, err := store.SaveOverride(context.Background(), MerchantOverride{
		MatchPattern: "TIM HORTONS #88",
		MerchantName: "Tim Hortons",
	})
	require.NoError(t, err)
	assert.Equal(t, MatchExact, saved.MatchType)
	assert.Nil(t, saved.CategoryID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOverrideStore_SaveOverride_InvalidMatchType(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewOverrideStore(mock, testLogger())

	_, err = store.SaveOverride(context.Background(), MerchantOverride{
		MatchPattern: "UBER",
		MatchType:    "regex",
		MerchantName: "Uber",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidMatchType))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOverrideStore_ListOverrides(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewOverrideStore(mock, testLogger())
	now := time.Now()
	groceries := "cat-groceries"

	mock.ExpectQuery(`SELECT id, match_pattern`).
		WillReturnRows(pgxmock.NewRows(overrideRowColumns).
			AddRow("ov-1", "NO FRILLS", MatchContains, "No Frills", &groceries, 5, &now, now, now).
			AddRow("ov-2", "FRESHCO", MatchExact, "FreshCo", &groceries, 3, &now, now, now))

	overrides, err := store.ListOverrides(context.Background())
	require.NoError(t, err)
	require.Len(t, overrides, 2)
	assert.Equal(t, "No Frills", overrides[0].MerchantName)
	assert.Equal(t, 5, overrides[0].MatchCount)
	assert.Equal(t, "FRESHCO", overrides[1].MatchPattern)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOverrideStore_FindMatchingOverride(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewOverrideStore(mock, testLogger())
	now := time.Now()

	rows := func() *pgxmock.Rows {
		return pgxmock.NewRows(overrideRowColumns).
			AddRow("ov-1", "CAFE", MatchContains, "Generic Coffee", (*string)(nil), 9, &now, now, now).
			AddRow("ov-2", "STARBUCKS", MatchContains, "Starbucks", (*string)(nil), 1, &now, now, now)
	}

	t.Run("first match wins", func(t *testing.T) {
		mock.ExpectQuery(`SELECT id, match_pattern`).WillReturnRows(rows())

		match, err := store.FindMatchingOverride(context.Background(), "STARBUCKS CAFE")
		require.NoError(t, err)
		require.NotNil(t, match)
		assert.Equal(t, "Generic Coffee", match.MerchantName)
	})

	t.Run("no match", func(t *testing.T) {
		mock.ExpectQuery(`SELECT id, match_pattern`).WillReturnRows(rows())

		match, err := store.FindMatchingOverride(context.Background(), "COSTCO WHOLESALE")
		require.NoError(t, err)
		assert.Nil(t, match)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOverrideStore_ListOverrides_QueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewOverrideStore(mock, testLogger())
	mock.ExpectQuery(`SELECT id, match_pattern`).WillReturnError(errors.New("connection reset"))

	_, err = store.ListOverrides(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestOverrideStore_RecordMatch(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewOverrideStore(mock, testLogger())
	mock.ExpectExec(`UPDATE merchant_overrides`).
		WithArgs("ov-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.RecordMatch(context.Background(), "ov-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOverrideStore_DeleteOverride(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewOverrideStore(mock, testLogger())
	mock.ExpectExec(`DELETE FROM merchant_overrides`).
		WithArgs("ov-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, store.DeleteOverride(context.Background(), "ov-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOverrideStore_DeleteOverride_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewOverrideStore(mock, testLogger())
	mock.ExpectExec(`DELETE FROM merchant_overrides`).
		WithArgs("missing").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err = store.DeleteOverride(context.Background(), "missing")
	assert.ErrorIs(t, err, pgx.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func BenchmarkOverrideMatches_10Overrides(b *testing.B) {
	overrides := make([]MerchantOverride, 10)
	for i := range overrides {
		overrides[i] = MerchantOverride{
			MatchPattern: "PATTERN" + string(rune('A'+i)),
			MatchType:    MatchContains,
		}
	}
	raw := "PURCHASE PATTERNJ TORONTO ON"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for j := range overrides {
			if overrides[j].Matches(raw) {
				break
			}
		}
	}
}
