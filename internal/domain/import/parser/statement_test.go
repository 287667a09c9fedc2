package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/statement-ingest/internal/domain/ledger"
)

type stubParser struct {
	name string
	fps  []string
	res  *StatementResult
}

func (s stubParser) Name() string                  { return s.name }
func (s stubParser) Fingerprints() []string        { return s.fps }
func (s stubParser) Parse(string) *StatementResult { return s.res }

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()
	assert.Equal(t, []string{"amex", "cibc"}, r.Names())

	p, ok := r.Detect("Canadian Imperial Bank of Commerce")
	require.True(t, ok)
	assert.Equal(t, "cibc", p.Name())

	_, ok = r.Detect("Bank of Montreal")
	assert.False(t, ok)
}

func TestRegistry_FirstRegisteredWins(t *testing.T) {
	generic := stubParser{name: "generic", fps: []string{"statement"}}
	specific := stubParser{name: "specific", fps: []string{"visa statement"}}

	r, err := NewRegistry(generic, specific)
	require.NoError(t, err)

	p, ok := r.Detect("Your VISA STATEMENT for January")
	require.True(t, ok)
	assert.Equal(t, "generic", p.Name())
}

func TestRegistry_RejectsDuplicateNames(t *testing.T) {
	_, err := NewRegistry(NewAmexParser(), NewAmexParser())
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	t.Run("warns when a detected format yields nothing", func(t *testing.T) {
		res := Run(NewAmexParser(), "AMERICAN EXPRESS with no transaction table")
		assert.Empty(t, res.Transactions)
		assert.Equal(t, []string{"no transactions found in amex statement"}, res.Errors)
	})

	t.Run("no warning when fragments failed", func(t *testing.T) {
		p := stubParser{name: "x", fps: []string{"x"}, res: &StatementResult{Errors: []string{"bad fragment"}}}
		assert.Equal(t, []string{"bad fragment"}, Run(p, "x").Errors)
	})

	t.Run("nil result is tolerated", func(t *testing.T) {
		p := stubParser{name: "x", fps: []string{"x"}}
		res := Run(p, "x")
		assert.Equal(t, "x", res.AccountInfo.AccountType)
		assert.Len(t, res.Errors, 1)
	})

	t.Run("successful parse is untouched", func(t *testing.T) {
		p := stubParser{name: "x", fps: []string{"x"}, res: &StatementResult{
			Transactions: []ledger.CandidateTransaction{{Date: "2025-01-01"}},
		}}
		res := Run(p, "x")
		assert.Len(t, res.Transactions, 1)
		assert.Empty(t, res.Errors)
	})
}

func TestSplitFields(t *testing.T) {
	assert.Equal(t, []string{"15 Jan. 2025", "STARBUCKS #4521", "$5.67"}, splitFields("  15 Jan. 2025   STARBUCKS #4521     $5.67 "))
	assert.Empty(t, splitFields("   "))
}

func TestSplitFragments(t *testing.T) {
	t.Run("every date on a field boundary starts a record", func(t *testing.T) {
		region := " 15 Jan. 2025   A   16 Jan. 2025   B   $1.00 17 Jan. 2025   C   $2.00"
		assert.Equal(t, []string{
			"15 Jan. 2025   A",
			"16 Jan. 2025   B   $1.00",
			"17 Jan. 2025   C   $2.00",
		}, splitFragments(region, amexRecordStart, nil))
	})

	t.Run("dates inside a token are ignored", func(t *testing.T) {
		region := "header 15 Jan. 2025   REF#115 Jan. 2025   $3.00"
		assert.Equal(t, []string{"15 Jan. 2025   REF#115 Jan. 2025   $3.00"}, splitFragments(region, amexRecordStart, nil))
	})

	t.Run("continues keeps a match in the current record", func(t *testing.T) {
		region := "9 Jan. 2025   HOTEL   Date Processed:   10 Jan. 2025   $149.00"
		assert.Len(t, splitFragments(region, amexRecordStart, amexProcessedDate), 1)
		assert.Len(t, splitFragments(region, amexRecordStart, nil), 2)
	})

	t.Run("no record", func(t *testing.T) {
		assert.Empty(t, splitFragments("nothing here", amexRecordStart, nil))
	})
}

func BenchmarkAmexParse(b *testing.B) {
	text := amexStatement(
		"15 Jan. 2025   STARBUCKS #4521   $5.67",
		"16 Jan. 2025   METRO 554   $42.10",
		"17 Jan. 2025   SHELL GAS #112   $60.00",
	)
	p := NewAmexParser()
	b.SetBytes(int64(len(text)))
	for i := 0; i < b.N; i++ {
		p.Parse(text)
	}
}
