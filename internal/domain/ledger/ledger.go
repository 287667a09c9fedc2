// Package ledger defines the records that flow through statement ingestion:
// parsed candidates, the verdicts attached to them, and the persisted shapes
// (ledger transactions, categories, budget periods) the pipeline produces.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the ISO date format every candidate date is normalized to.
const DateLayout = "2006-01-02"

// MonthLayout is the budget period key format.
const MonthLayout = "2006-01"

// Document is one uploaded statement file. It only lives for the duration of
// an extraction call.
type Document struct {
	Name string
	Data []byte
}

// CandidateTransaction is a parsed, not-yet-trusted transaction.
type CandidateTransaction struct {
	Date        string          `json:"date"` // YYYY-MM-DD
	Merchant    string          `json:"merchant"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"` // negative = money out
	AccountType string          `json:"accountType"`
	Confidence  float64         `json:"confidence"`
}

// Month returns the YYYY-MM budget key for the candidate.
func (c CandidateTransaction) Month() string {
	return MonthOf(c.Date)
}

// DeduplicationVerdict is the advisory duplicate assessment for one candidate.
type DeduplicationVerdict struct {
	IsLikelyDuplicate bool    `json:"isLikelyDuplicate"`
	DuplicateOf       string  `json:"duplicateOf,omitempty"`
	Confidence        float64 `json:"confidence"`
	Reason            string  `json:"reason,omitempty"`
}

// CategorizationVerdict is the category suggestion for one candidate.
type CategorizationVerdict struct {
	CategoryID string  `json:"categoryId,omitempty"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// HasCategory reports whether the verdict names a category.
func (v CategorizationVerdict) HasCategory() bool {
	return v.CategoryID != ""
}

// Transaction is a persisted ledger entry.
type Transaction struct {
	ID                  string          `json:"id"`
	Date                string          `json:"date"`
	Merchant            string          `json:"merchant"`
	Description         string          `json:"description"`
	OriginalDescription string          `json:"originalDescription,omitempty"`
	Amount              decimal.Decimal `json:"amount"`
	AccountType         string          `json:"accountType"`
	Confidence          float64         `json:"confidence"`
	BudgetID            string          `json:"budgetId"`
	CategoryID          string          `json:"categoryId,omitempty"`
	TransactionHash     string          `json:"transactionHash"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
}

// Candidate returns the candidate fields of a ledger transaction.
func (t Transaction) Candidate() CandidateTransaction {
	return CandidateTransaction{
		Date:        t.Date,
		Merchant:    t.Merchant,
		Description: t.Description,
		Amount:      t.Amount,
		AccountType: t.AccountType,
		Confidence:  t.Confidence,
	}
}

// Category is a user spending category.
type Category struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	MonthlyBudget *decimal.Decimal `json:"monthlyBudget,omitempty"`
	Color         string           `json:"color,omitempty"`
}

// DefaultAllocation returns the category's monthly budget, or zero when unset.
func (c Category) DefaultAllocation() decimal.Decimal {
	if c.MonthlyBudget == nil {
		return decimal.Zero
	}
	return *c.MonthlyBudget
}

// BudgetPeriod is the monthly allocation record transactions are billed against.
type BudgetPeriod struct {
	ID                string                     `json:"id"`
	Month             string                     `json:"month"` // YYYY-MM
	Allocations       map[string]decimal.Decimal `json:"allocations"`
	AvailableToBudget decimal.Decimal            `json:"availableToBudget"`
	CreatedAt         time.Time                  `json:"createdAt"`
	UpdatedAt         time.Time                  `json:"updatedAt"`
}

// DefaultAllocations builds the allocation map a new period starts with.
func DefaultAllocations(categories []Category) map[string]decimal.Decimal {
	allocations := make(map[string]decimal.Decimal, len(categories))
	for _, c := range categories {
		allocations[c.ID] = c.DefaultAllocation()
	}
	return allocations
}

// MonthOf returns the YYYY-MM prefix of an ISO date. Short input is returned as is.
func MonthOf(date string) string {
	if len(date) < len(MonthLayout) {
		return date
	}
	return date[:len(MonthLayout)]
}

// ParseDate parses a normalized candidate date.
func ParseDate(date string) (time.Time, error) {
	return time.Parse(DateLayout, date)
}

// ParseMonth parses a YYYY-MM budget key.
func ParseMonth(month string) (time.Time, error) {
	return time.Parse(MonthLayout, month)
}
