// Package money parses and formats statement amounts. Arithmetic stays in
// shopspring/decimal; go-money is used for currency-aware display.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Common currency codes (ISO-4217)
const (
	CAD = "CAD" // Canadian Dollar
	USD = "USD" // US Dollar
	EUR = "EUR" // Euro
	GBP = "GBP" // British Pound
)

// ErrEmptyAmount is returned when there is nothing left to parse after cleaning.
var ErrEmptyAmount = errors.New("empty amount")

var currencySymbols = []string{"CA$", "C$", "US$", "R$", "$", "€", "£", "¥", "₹", "CAD", "USD", "EUR", "GBP"}

// Money represents a monetary value with currency.
type Money struct {
	m *money.Money
}

// New creates a Money value from minor units.
func New(amountCents int64, currencyCode string) *Money {
	return &Money{m: money.New(amountCents, currencyCode)}
}

// NewFromDecimal creates Money from a decimal amount, rounding to the currency's minor unit.
func NewFromDecimal(amount decimal.Decimal, currencyCode string) *Money {
	currency := money.GetCurrency(currencyCode)
	if currency == nil {
		currency = money.GetCurrency(CAD)
		currencyCode = CAD
	}

	multiplier := decimal.New(1, int32(currency.Fraction))
	cents := amount.Mul(multiplier).Round(0).IntPart()

	return New(cents, currencyCode)
}

// NewFromString parses a printed amount and wraps it as Money.
func NewFromString(amount string, currencyCode string) (*Money, error) {
	d, err := ParseAmount(amount)
	if err != nil {
		return nil, err
	}
	return NewFromDecimal(d, currencyCode), nil
}

// ParseAmount parses an amount as printed on a statement. It accepts currency
// symbols and codes, comma thousands separators, leading or trailing minus
// signs, accounting parentheses and a trailing CR (credit) marker. The sign of
// the returned value is the sign printed; callers apply account conventions.
func ParseAmount(s string) (decimal.Decimal, error) {
	raw := s
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrEmptyAmount
	}

	negative := false
	upper := strings.ToUpper(s)
	if strings.HasSuffix(upper, "CR") {
		negative = true
		s = strings.TrimSpace(s[:len(s)-2])
	}
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = !negative
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	for _, sym := range currencySymbols {
		s = strings.ReplaceAll(s, sym, "")
	}
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "\u00a0", "")

	switch {
	case strings.HasPrefix(s, "-"):
		negative = !negative
		s = s[1:]
	case strings.HasSuffix(s, "-"):
		negative = !negative
		s = s[:len(s)-1]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}

	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return decimal.Zero, ErrEmptyAmount
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// Amount returns the amount in minor units (cents)
func (m *Money) Amount() int64 {
	if m == nil || m.m == nil {
		return 0
	}
	return m.m.Amount()
}

// Currency returns the ISO currency code
func (m *Money) Currency() string {
	if m == nil || m.m == nil {
		return CAD
	}
	return m.m.Currency().Code
}

// IsNegative returns true if the amount is negative
func (m *Money) IsNegative() bool {
	return m.Amount() < 0
}

// Abs returns the absolute value
func (m *Money) Abs() *Money {
	if m == nil || m.m == nil {
		return New(0, CAD)
	}
	return &Money{m: m.m.Absolute()}
}

// Negate returns the value with the opposite sign
func (m *Money) Negate() *Money {
	if m == nil || m.m == nil {
		return New(0, CAD)
	}
	return New(-m.m.Amount(), m.Currency())
}

// Display returns a formatted string for display (e.g., "$1,234.56")
func (m *Money) Display() string {
	if m == nil || m.m == nil {
		return "$0.00"
	}
	return m.m.Display()
}

// ToDecimal converts to decimal.Decimal for precise calculations
func (m *Money) ToDecimal() decimal.Decimal {
	if m == nil || m.m == nil {
		return decimal.Zero
	}
	currency := m.m.Currency()
	d := decimal.NewFromInt(m.m.Amount())
	divisor := decimal.New(1, int32(currency.Fraction))
	return d.Div(divisor)
}

// Display formats a decimal amount in the given currency.
func Display(amount decimal.Decimal, currencyCode string) string {
	return NewFromDecimal(amount, currencyCode).Display()
}

// Sum adds amounts exactly.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
