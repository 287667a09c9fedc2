package dedup

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/statement-ingest/internal/domain/ledger"
	"github.com/FACorreiaa/statement-ingest/pkg/money"
)

func amt(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestEngine_Check(t *testing.T) {
	e := New(DefaultConfig())

	t.Run("exact match", func(t *testing.T) {
		existing := []ledger.Transaction{
			{ID: "tx-1", Date: "2025-01-15", Merchant: "Starbucks", Amount: amt("-5.67"), AccountType: "amex"},
		}
		c := ledger.CandidateTransaction{Date: "2025-01-15", Merchant: "Starbucks", Amount: amt("-5.67"), AccountType: "amex"}

		v := e.Check(c, existing)
		assert.True(t, v.IsLikelyDuplicate)
		assert.Equal(t, 0.95, v.Confidence)
		assert.Equal(t, "tx-1", v.DuplicateOf)
		assert.Contains(t, strings.ToLower(v.Reason), "exact")
	})

	t.Run("exact match tolerates sub-cent drift", func(t *testing.T) {
		existing := []ledger.Transaction{{ID: "tx-1", Date: "2025-01-15", Merchant: "Starbucks", Amount: amt("-5.675")}}
		c := ledger.CandidateTransaction{Date: "2025-01-15", Merchant: "Starbucks", Amount: amt("-5.67")}

		assert.Equal(t, 0.95, e.Check(c, existing).Confidence)
	})

	t.Run("merchant comparison is case sensitive for exact", func(t *testing.T) {
		existing := []ledger.Transaction{{ID: "tx-1", Date: "2025-01-15", Merchant: "STARBUCKS", Amount: amt("-5.67"), AccountType: "cibc"}}
		c := ledger.CandidateTransaction{Date: "2025-01-15", Merchant: "Starbucks", Amount: amt("-5.67"), AccountType: "amex"}

		assert.False(t, e.Check(c, existing).IsLikelyDuplicate)
	})

	t.Run("credit card payment", func(t *testing.T) {
		existing := []ledger.Transaction{
			{ID: "card-1", Date: "2025-01-20", Merchant: "LOBLAWS", Amount: amt("-100.00"), AccountType: "amex"},
			{ID: "card-2", Date: "2025-02-01", Merchant: "METRO", Amount: amt("-50.50"), AccountType: "amex"},
			{ID: "card-3", Date: "2025-02-02", Merchant: "REFUND", Amount: amt("25.00"), AccountType: "amex"},
		}
		c := ledger.CandidateTransaction{Date: "2025-02-10", Merchant: "AMEX BILL PYMT", Amount: amt("-150.00"), AccountType: "chequing"}

		v := e.Check(c, existing)
		assert.True(t, v.IsLikelyDuplicate)
		assert.Equal(t, 0.9, v.Confidence)
		assert.Equal(t, "card-1", v.DuplicateOf)
		assert.Equal(t, "Credit card payment duplicate", v.Reason)
	})

	t.Run("payment outside the window is not matched", func(t *testing.T) {
		existing := []ledger.Transaction{
			{ID: "card-1", Date: "2024-11-01", Merchant: "LOBLAWS", Amount: amt("-150.00"), AccountType: "amex"},
		}
		c := ledger.CandidateTransaction{Date: "2025-02-10", Merchant: "AMEX BILL PYMT", Amount: amt("-150.00"), AccountType: "chequing"}

		assert.False(t, e.Check(c, existing).IsLikelyDuplicate)
	})

	t.Run("payment needs at least one contributing expense", func(t *testing.T) {
		c := ledger.CandidateTransaction{Date: "2025-02-10", Merchant: "PAYMENT THANK YOU", Amount: amt("-0.50"), AccountType: "chequing"}

		v := e.Check(c, nil)
		assert.False(t, v.IsLikelyDuplicate)
		assert.Equal(t, 0.1, v.Confidence)
	})

	t.Run("minimum contributors is configurable", func(t *testing.T) {
		strict := New(Config{MinTransferContributors: 2})
		existing := []ledger.Transaction{
			{ID: "card-1", Date: "2025-02-01", Merchant: "LOBLAWS", Amount: amt("-150.00"), AccountType: "amex"},
		}
		c := ledger.CandidateTransaction{Date: "2025-02-10", Merchant: "VISA PAYMENT", Amount: amt("-150.00"), AccountType: "chequing"}

		assert.True(t, e.Check(c, existing).IsLikelyDuplicate)
		assert.False(t, strict.Check(c, existing).IsLikelyDuplicate)
	})

	t.Run("similar transaction", func(t *testing.T) {
		existing := []ledger.Transaction{
			{ID: "tx-9", Date: "2025-01-15", Merchant: "TIM HORTONS 2231 TORONTO ON CA", Amount: amt("-3.15"), AccountType: "cibc"},
		}
		c := ledger.CandidateTransaction{Date: "2025-01-16", Merchant: "TIM HORTONS 2231 TORONTO ON", Amount: amt("-3.15"), AccountType: "cibc"}

		v := e.Check(c, existing)
		assert.True(t, v.IsLikelyDuplicate)
		assert.Equal(t, 0.85, v.Confidence)
		assert.Equal(t, "tx-9", v.DuplicateOf)
		assert.Equal(t, "Similar transaction: 0.83 merchant similarity, same amount, 1 day(s) apart", v.Reason)
	})

	t.Run("possible duplicate", func(t *testing.T) {
		existing := []ledger.Transaction{
			{ID: "tx-3", Date: "2025-01-15", Merchant: "STARBUCKS COFFEE #4521", Amount: amt("-5.67"), AccountType: "amex"},
		}
		c := ledger.CandidateTransaction{Date: "2025-01-18", Merchant: "STARBUCKS COFFEE #4521 TORONTO", Amount: amt("-5.67"), AccountType: "amex"}

		v := e.Check(c, existing)
		assert.True(t, v.IsLikelyDuplicate)
		assert.Equal(t, 0.7, v.Confidence)
		assert.Equal(t, "Possible duplicate: 0.75 merchant similarity, same amount, 3 day(s) apart", v.Reason)
	})

	t.Run("similar requires same account type", func(t *testing.T) {
		existing := []ledger.Transaction{
			{ID: "tx-3", Date: "2025-01-15", Merchant: "STARBUCKS COFFEE #4521", Amount: amt("-5.67"), AccountType: "cibc"},
		}
		c := ledger.CandidateTransaction{Date: "2025-01-16", Merchant: "STARBUCKS COFFEE #4521 TORONTO", Amount: amt("-5.67"), AccountType: "amex"}

		assert.False(t, e.Check(c, existing).IsLikelyDuplicate)
	})

	t.Run("exact wins over transfer", func(t *testing.T) {
		existing := []ledger.Transaction{
			{ID: "card-1", Date: "2025-02-01", Merchant: "LOBLAWS", Amount: amt("-20.00"), AccountType: "amex"},
			{ID: "bank-1", Date: "2025-02-10", Merchant: "AMEX PAYMENT", Amount: amt("-20.00"), AccountType: "chequing"},
		}
		c := ledger.CandidateTransaction{Date: "2025-02-10", Merchant: "AMEX PAYMENT", Amount: amt("-20.00"), AccountType: "chequing"}

		v := e.Check(c, existing)
		assert.Equal(t, "bank-1", v.DuplicateOf)
		assert.Equal(t, 0.95, v.Confidence)
	})

	t.Run("exact wins over an earlier similar record", func(t *testing.T) {
		existing := []ledger.Transaction{
			{ID: "tx-near", Date: "2025-01-15", Merchant: "TIM HORTONS 2231 TORONTO ON CA", Amount: amt("-3.15"), AccountType: "cibc"},
			{ID: "tx-same", Date: "2025-01-16", Merchant: "TIM HORTONS 2231 TORONTO ON", Amount: amt("-3.15"), AccountType: "cibc"},
		}
		c := ledger.CandidateTransaction{Date: "2025-01-16", Merchant: "TIM HORTONS 2231 TORONTO ON", Amount: amt("-3.15"), AccountType: "cibc"}

		v := e.Check(c, existing)
		assert.True(t, v.IsLikelyDuplicate)
		assert.Equal(t, 0.95, v.Confidence)
		assert.Equal(t, existing[1].ID, v.DuplicateOf)
	})

	t.Run("novel", func(t *testing.T) {
		v := e.Check(ledger.CandidateTransaction{Date: "2025-01-15", Merchant: "NEW PLACE", Amount: amt("-1.00")}, nil)
		assert.False(t, v.IsLikelyDuplicate)
		assert.Equal(t, 0.1, v.Confidence)
		assert.Empty(t, v.DuplicateOf)
	})

	t.Run("unparseable dates never match on distance", func(t *testing.T) {
		existing := []ledger.Transaction{{ID: "x", Date: "not-a-date", Merchant: "A B", Amount: amt("-1"), AccountType: "amex"}}
		c := ledger.CandidateTransaction{Date: "2025-01-15", Merchant: "A B", Amount: amt("-1"), AccountType: "amex"}

		assert.False(t, e.Check(c, existing).IsLikelyDuplicate)
	})
}

func TestEngine_BatchCheck(t *testing.T) {
	e := New(Config{})
	gen := money.NewTestDataGeneratorWithSeed(42)

	lines := gen.Purchases(2025, time.March, 20)
	candidates := make([]ledger.CandidateTransaction, len(lines))
	for i, l := range lines {
		candidates[i] = ledger.CandidateTransaction{
			Date:        l.Date.Format(ledger.DateLayout),
			Merchant:    l.Merchant,
			Description: l.Description,
			Amount:      l.Amount,
			AccountType: "amex",
		}
	}
	// Identical lines within one batch must not flag each other.
	candidates = append(candidates, candidates[0])

	existing := []ledger.Transaction{{
		ID: "known", Date: candidates[5].Date, Merchant: candidates[5].Merchant,
		Amount: candidates[5].Amount, AccountType: "amex",
	}}

	results := e.BatchCheck(candidates, existing)
	require.Len(t, results, len(candidates))
	for i, r := range results {
		assert.Equal(t, candidates[i], r.Candidate)
	}
	assert.True(t, results[5].Verdict.IsLikelyDuplicate)
	assert.Equal(t, "known", results[5].Verdict.DuplicateOf)
	assert.Equal(t, results[0].Verdict, results[len(results)-1].Verdict)
}

func TestFilterDuplicates(t *testing.T) {
	results := []Result{
		{Candidate: ledger.CandidateTransaction{Merchant: "novel"}, Verdict: ledger.DeduplicationVerdict{Confidence: 0.1}},
		{Candidate: ledger.CandidateTransaction{Merchant: "exact"}, Verdict: ledger.DeduplicationVerdict{IsLikelyDuplicate: true, Confidence: 0.95}},
		{Candidate: ledger.CandidateTransaction{Merchant: "possible"}, Verdict: ledger.DeduplicationVerdict{IsLikelyDuplicate: true, Confidence: 0.7}},
		{Candidate: ledger.CandidateTransaction{Merchant: "boundary"}, Verdict: ledger.DeduplicationVerdict{IsLikelyDuplicate: true, Confidence: 0.8}},
	}

	kept := FilterDuplicates(results, DefaultThreshold)
	require.Len(t, kept, 2)
	assert.Equal(t, "novel", kept[0].Merchant)
	assert.Equal(t, "possible", kept[1].Merchant)
}

func TestJaccard(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"Starbucks", "STARBUCKS", 1},
		{"tim hortons", "tim hortons toronto", 2.0 / 3.0},
		{"a b", "c d", 0},
		{"", "", 0},
		{"  spaced   out ", "spaced out", 1},
	}

	for _, tt := range tests {
		t.Run(tt.a+"|"+tt.b, func(t *testing.T) {
			assert.InDelta(t, tt.want, Jaccard(tt.a, tt.b), 1e-9)
		})
	}
}

func BenchmarkBatchCheck(b *testing.B) {
	gen := money.NewTestDataGeneratorWithSeed(7)
	lines := gen.Purchases(2025, time.January, 200)

	existing := make([]ledger.Transaction, len(lines))
	candidates := make([]ledger.CandidateTransaction, len(lines))
	for i, l := range lines {
		c := ledger.CandidateTransaction{
			Date: l.Date.Format(ledger.DateLayout), Merchant: l.Merchant,
			Amount: l.Amount, AccountType: "amex",
		}
		candidates[i] = c
		existing[i] = ledger.Transaction{ID: l.ID.String(), Date: c.Date, Merchant: c.Merchant, Amount: c.Amount, AccountType: "cibc"}
	}

	e := New(DefaultConfig())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.BatchCheck(candidates, existing)
	}
}
