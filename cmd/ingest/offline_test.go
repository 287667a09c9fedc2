package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/statement-ingest/internal/domain/ledger"
)

func testTransaction(id, date, merchant, amount string) ledger.Transaction {
	amt := decimal.RequireFromString(amount)
	return ledger.Transaction{
		ID:              id,
		Date:            date,
		Merchant:        merchant,
		Description:     merchant,
		Amount:          amt,
		AccountType:     "credit",
		BudgetID:        "budget-" + ledger.MonthOf(date),
		TransactionHash: ledger.TransactionHash(date, merchant, amt, merchant),
	}
}

func TestCSVLedger(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "ledger.csv")
	l := newCSVLedger(path)

	t.Run("missing file is an empty ledger", func(t *testing.T) {
		txs, err := l.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, txs)
	})

	feb := testTransaction("tx-2", "2025-02-03", "SOBEYS", "-42.10")
	jan := testTransaction("tx-1", "2025-01-15", "TIM HORTONS", "-4.25")

	t.Run("insert appends and sorts by date", func(t *testing.T) {
		n, err := l.Insert(ctx, []ledger.Transaction{feb, jan})
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		txs, err := l.List(ctx)
		require.NoError(t, err)
		require.Len(t, txs, 2)
		assert.Equal(t, "tx-1", txs[0].ID)
		assert.True(t, jan.Amount.Equal(txs[0].Amount))
		assert.Equal(t, jan.TransactionHash, txs[0].TransactionHash)
	})

	t.Run("known hashes are skipped", func(t *testing.T) {
		n, err := l.Insert(ctx, []ledger.Transaction{jan})
		require.NoError(t, err)
		assert.Zero(t, n)

		ok, err := l.HashExists(ctx, feb.TransactionHash)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = l.HashExists(ctx, "0")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestDefaultCategories(t *testing.T) {
	categories, err := defaultCategories{}.List(context.Background())
	require.NoError(t, err)

	ids := make([]string, 0, len(categories))
	for _, c := range categories {
		ids = append(ids, c.ID)
	}
	assert.Contains(t, ids, "groceries")
	assert.Contains(t, ids, "dining-out")
	assert.Equal(t, "income", ids[len(ids)-1])
}

func TestMemoryPeriods(t *testing.T) {
	ctx := context.Background()
	m := newMemoryPeriods()

	p, created, err := m.GetOrCreatePeriod(ctx, "2025-02", nil)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "budget-2025-02", p.ID)
	assert.NotNil(t, p.Allocations)

	_, created, err = m.GetOrCreatePeriod(ctx, "2025-02", nil)
	require.NoError(t, err)
	assert.False(t, created)

	_, _, err = m.GetOrCreatePeriod(ctx, "2025-01", nil)
	require.NoError(t, err)

	periods, err := m.ListPeriods(ctx)
	require.NoError(t, err)
	require.Len(t, periods, 2)
	assert.Equal(t, "2025-01", periods[0].Month)
}
