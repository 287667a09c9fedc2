package categorization

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/statement-ingest/internal/domain/ledger"
)

func historyLedger() []ledger.Transaction {
	return []ledger.Transaction{
		{ID: "t1", Merchant: "FRESHCO #221", CategoryID: "cat-groceries"},
		{ID: "t2", Merchant: "FRESHCO #305", CategoryID: "cat-groceries"},
		{ID: "t3", Merchant: "PETRO-CANADA 1234", CategoryID: "cat-transport"},
		{ID: "t4", Merchant: "BLUE DOOR BAKERY", CategoryID: ""},
		{ID: "t5", Merchant: "   ", CategoryID: "cat-groceries"},
	}
}

func TestHistoryIndex_Rebuild(t *testing.T) {
	index, err := NewHistoryIndex(nil)
	require.NoError(t, err)
	defer index.Close()

	require.NoError(t, index.Rebuild(historyLedger()))

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)

	t.Run("search by sanitized key", func(t *testing.T) {
		hits, err := index.Search("FRESHCO #999", 10)
		require.NoError(t, err)
		require.Len(t, hits, 2)
		for _, hit := range hits {
			assert.Equal(t, "cat-groceries", hit.CategoryID)
			assert.Contains(t, hit.Merchant, "FRESHCO")
		}
	})

	t.Run("tolerates one typo", func(t *testing.T) {
		hits, err := index.Search("FRESCO", 10)
		require.NoError(t, err)
		assert.Len(t, hits, 2)
	})

	t.Run("blank merchant", func(t *testing.T) {
		hits, err := index.Search("   ", 10)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("rebuild replaces contents", func(t *testing.T) {
		require.NoError(t, index.Rebuild(nil))
		count, err := index.DocumentCount()
		require.NoError(t, err)
		assert.Equal(t, uint64(0), count)
	})
}

func TestHistoryClassifier_Classify(t *testing.T) {
	index, err := NewHistoryIndex(nil)
	require.NoError(t, err)
	defer index.Close()
	require.NoError(t, index.Rebuild(historyLedger()))

	classifier := NewHistoryClassifier(index)
	categories := testCategories()

	t.Run("inherits category of similar merchant", func(t *testing.T) {
		v := classifier.Classify(candidate("FRESHCO #999", "", "-42.10"), categories)
		assert.Equal(t, "cat-groceries", v.CategoryID)
		assert.InDelta(t, 0.75, v.Confidence, 1e-9)
		assert.Contains(t, v.Reasoning, "Similar to past merchant: FRESHCO")
		assert.Equal(t, ActionSuggest, Policy(v.Confidence))
	})

	t.Run("unknown merchant", func(t *testing.T) {
		v := classifier.Classify(candidate("LOCAL HARDWARE", "", "-10.00"), categories)
		assert.False(t, v.HasCategory())
		assert.Equal(t, 0.1, v.Confidence)
	})

	t.Run("category no longer exists", func(t *testing.T) {
		v := classifier.Classify(candidate("FRESHCO #999", "", "-42.10"), []ledger.Category{{ID: "other", Name: "Other"}})
		assert.False(t, v.HasCategory())
	})

	t.Run("nil index", func(t *testing.T) {
		v := NewHistoryClassifier(nil).Classify(candidate("FRESHCO", "", "-1.00"), categories)
		assert.False(t, v.HasCategory())
	})
}

func BenchmarkHistorySearch(b *testing.B) {
	index, err := NewHistoryIndex(nil)
	require.NoError(b, err)
	defer index.Close()

	txs := make([]ledger.Transaction, 500)
	for i := range txs {
		txs[i] = ledger.Transaction{
			ID:         fmt.Sprintf("t%d", i),
			Merchant:   fmt.Sprintf("MERCHANT %c%c", 'A'+i%26, 'A'+(i/26)%26),
			CategoryID: "cat-groceries",
		}
	}
	require.NoError(b, index.Rebuild(txs))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = index.Search("MERCHANT QX", 5)
	}
}
