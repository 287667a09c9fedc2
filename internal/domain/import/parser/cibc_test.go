package parser

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cibcStatement(period string, rows ...string) string {
	return "CIBC Dividend Visa Infinite Card Statement period " + period + " " +
		"Your new charges and credits   " + cibcHeader + "   Spend Categories   Amount($) " +
		strings.Join(rows, " ") +
		" Total for 4500 XXXX XXXX 1234 Card number 4500 XXXX XXXX 1234\n"
}

func TestCIBCParser_Parse(t *testing.T) {
	p := NewCIBCParser()

	t.Run("rows with and without spend category", func(t *testing.T) {
		res := p.Parse(cibcStatement("January 16, 2025 to February 15, 2025",
			"Jan 18   Jan 20   TIM HORTONS #1234 TORONTO ON   Restaurants   4.50",
			"Feb 2   Feb 3   AMAZON.CA*RT5TY   1,299.99",
		))

		require.Empty(t, res.Errors)
		require.Len(t, res.Transactions, 2)

		tim := res.Transactions[0]
		assert.Equal(t, "2025-01-18", tim.Date)
		assert.Equal(t, "TIM HORTONS #1234 TORONTO ON", tim.Merchant)
		assert.True(t, decimal.RequireFromString("-4.50").Equal(tim.Amount))
		assert.Equal(t, 0.85, tim.Confidence)
		assert.Equal(t, "cibc", tim.AccountType)

		amazon := res.Transactions[1]
		assert.Equal(t, "2025-02-02", amazon.Date)
		assert.True(t, decimal.RequireFromString("-1299.99").Equal(amazon.Amount))
		assert.Equal(t, 0.8, amazon.Confidence)
	})

	t.Run("year rolls back across january", func(t *testing.T) {
		res := p.Parse(cibcStatement("December 16, 2024 to January 15, 2025",
			"Dec 20   Dec 21   LOBLAWS 1012   Groceries   88.12",
			"Jan 3   Jan 4   SHELL GAS #112   Transportation   60.00",
		))

		require.Empty(t, res.Errors)
		require.Len(t, res.Transactions, 2)
		assert.Equal(t, "2024-12-20", res.Transactions[0].Date)
		assert.Equal(t, "2025-01-03", res.Transactions[1].Date)
	})

	t.Run("credits become positive and payments are excluded", func(t *testing.T) {
		res := p.Parse(cibcStatement("January 16, 2025 to February 15, 2025",
			"Jan 20   Jan 21   PAYMENT THANK YOU/PAIEMENT MERCI   -500.00",
			"Jan 22   Jan 23   REFUND BEST BUY #77   Retail and Grocery   -49.99",
		))

		require.Empty(t, res.Errors)
		require.Len(t, res.Transactions, 1)
		assert.True(t, decimal.RequireFromString("49.99").Equal(res.Transactions[0].Amount))
	})

	t.Run("account info", func(t *testing.T) {
		res := p.Parse(cibcStatement("January 16, 2025 to February 15, 2025",
			"Jan 18   Jan 20   TIM HORTONS #1234   4.50",
		))

		assert.Equal(t, "January 16, 2025 to February 15, 2025", res.AccountInfo.StatementPeriod)
		assert.Equal(t, "1234", res.AccountInfo.LastFour)
	})

	t.Run("invalid day is reported", func(t *testing.T) {
		res := p.Parse(cibcStatement("January 16, 2025 to February 15, 2025",
			"Feb 30   Feb 30   NOT A DAY   9.99",
			"Feb 1   Feb 2   METRO 554   Groceries   12.00",
		))

		require.Len(t, res.Transactions, 1)
		require.Len(t, res.Errors, 1)
		assert.Contains(t, res.Errors[0], "invalid date")
	})

	t.Run("rows without an amount are reported on their own", func(t *testing.T) {
		res := p.Parse(cibcStatement("December 16, 2024 to January 15, 2025",
			"Jan 2   Jan 3   TIM HORTONS #1234   Restaurants   4.50",
			"Jan 4   Jan 5   BROKEN ROW   Retail",
			"Jan 6   Jan 7   SHELL GAS #112   Transportation   40.00",
			"Jan 8   Jan 9   ALSO BROKEN",
			"Jan 10   Jan 11   METRO 554   Groceries   12.00",
		))

		require.Len(t, res.Transactions, 3)
		assert.Equal(t, "TIM HORTONS #1234", res.Transactions[0].Merchant)
		assert.Equal(t, "2025-01-06", res.Transactions[1].Date)
		assert.Equal(t, "SHELL GAS #112", res.Transactions[1].Merchant)
		assert.True(t, decimal.RequireFromString("-40").Equal(res.Transactions[1].Amount))
		assert.Equal(t, "METRO 554", res.Transactions[2].Merchant)

		require.Len(t, res.Errors, 2)
		assert.Contains(t, res.Errors[0], "BROKEN ROW")
		assert.NotContains(t, res.Errors[0], "SHELL")
		assert.Contains(t, res.Errors[1], "ALSO BROKEN")
		assert.NotContains(t, res.Errors[1], "METRO")
	})

	t.Run("missing period", func(t *testing.T) {
		text := "CIBC Aventura " + cibcHeader + "   Amount($) Jan 18   Jan 20   TIM HORTONS   4.50 Total for"
		res := p.Parse(text)

		assert.Empty(t, res.Transactions)
		require.Len(t, res.Errors, 1)
		assert.Contains(t, res.Errors[0], "statement period not found")
	})
}

func TestResolveYear(t *testing.T) {
	closing := time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"Jan 3", "2025-01-03", false},
		{"Dec 28", "2024-12-28", false},
		{"Nov 1", "2024-11-01", false},
		{"Feb 30", "", true},
		{"Foo 1", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := resolveYear(tt.in, closing)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCIBCStatementPeriod_DottedFallback(t *testing.T) {
	period, closing, ok := cibcStatementPeriod("CIBC 28 Aug. 2025 - 22 Sep. 2025")
	require.True(t, ok)
	assert.Equal(t, "28 Aug. 2025 - 22 Sep. 2025", period)
	assert.Equal(t, time.September, closing.Month())
}
