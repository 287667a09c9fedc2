package ledger

import (
	"strconv"
	"unicode/utf16"

	"github.com/shopspring/decimal"
)

// TransactionHash returns the idempotency key for a transaction: a 32-bit
// polynomial string hash (h = h*31 + unit) over "date-merchant-amount-description",
// rendered as a signed decimal. Previously stored hashes depend on this exact
// output, so neither the concatenation nor the number rendering may change.
func TransactionHash(date, merchant string, amount decimal.Decimal, description string) string {
	key := date + "-" + merchant + "-" + FormatAmount(amount) + "-" + description
	return strconv.FormatInt(int64(stringHash(key)), 10)
}

// Hash is TransactionHash over a candidate's fields.
func (c CandidateTransaction) Hash() string {
	return TransactionHash(c.Date, c.Merchant, c.Amount, c.Description)
}

// stringHash iterates code points and folds in the first UTF-16 unit of each,
// wrapping at 32 bits on every step.
func stringHash(s string) int32 {
	var h int32
	for _, r := range s {
		unit := r
		if r >= 0x10000 {
			hi, _ := utf16.EncodeRune(r)
			unit = hi
		}
		h = h*31 + int32(unit)
	}
	return h
}

// FormatAmount renders an amount the way the ledger has always keyed it:
// shortest round-trip form, no trailing zeros, no exponent, "0" for zero.
func FormatAmount(amount decimal.Decimal) string {
	f := amount.InexactFloat64()
	if f == 0 {
		return "0"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
