package money

import (
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TestDataGenerator generates realistic statement test data using gofakeit.
type TestDataGenerator struct {
	faker *gofakeit.Faker
}

// NewTestDataGenerator creates a new test data generator with a random seed.
func NewTestDataGenerator() *TestDataGenerator {
	return &TestDataGenerator{
		faker: gofakeit.New(0), // Random seed
	}
}

// NewTestDataGeneratorWithSeed creates a generator with a specific seed for reproducibility.
func NewTestDataGeneratorWithSeed(seed int64) *TestDataGenerator {
	return &TestDataGenerator{
		faker: gofakeit.New(seed),
	}
}

// ============================================================================
// Statement Line Generation
// ============================================================================

// TestLine is one generated statement line.
type TestLine struct {
	ID          uuid.UUID
	Date        time.Time
	Merchant    string
	Description string
	Amount      decimal.Decimal // negative = purchase
}

// Purchase generates a card purchase dated within the given month.
func (g *TestDataGenerator) Purchase(year int, month time.Month) TestLine {
	merchant := g.Merchant()
	return TestLine{
		ID:          uuid.New(),
		Date:        g.DateIn(year, month),
		Merchant:    merchant,
		Description: merchant + " " + g.faker.City(),
		Amount:      g.RandomAmount(100, 50000).Neg(),
	}
}

// Purchases generates n purchases within the given month.
func (g *TestDataGenerator) Purchases(year int, month time.Month, n int) []TestLine {
	lines := make([]TestLine, n)
	for i := 0; i < n; i++ {
		lines[i] = g.Purchase(year, month)
	}
	return lines
}

// Refund generates a credit to the card.
func (g *TestDataGenerator) Refund(year int, month time.Month) TestLine {
	line := g.Purchase(year, month)
	line.Amount = line.Amount.Abs()
	line.Description = "REFUND " + line.Description
	return line
}

// DateIn returns a random date inside the month.
func (g *TestDataGenerator) DateIn(year int, month time.Month) time.Time {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)
	d := g.faker.DateRange(start, end)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

// ============================================================================
// Amount Generation
// ============================================================================

// RandomAmount returns a positive amount between minCents and maxCents.
func (g *TestDataGenerator) RandomAmount(minCents, maxCents int64) decimal.Decimal {
	if minCents > maxCents {
		minCents, maxCents = maxCents, minCents
	}
	cents := g.faker.Int64() % (maxCents - minCents + 1)
	if cents < 0 {
		cents = -cents
	}
	return decimal.New(minCents+cents, -2)
}

// SmallPurchase generates a typical small purchase amount ($1-$50).
func (g *TestDataGenerator) SmallPurchase() decimal.Decimal {
	return g.RandomAmount(100, 5000)
}

// Bill generates a realistic bill amount ($20-$500).
func (g *TestDataGenerator) Bill() decimal.Decimal {
	return g.RandomAmount(2000, 50000)
}

// ============================================================================
// Merchant and Category Generation
// ============================================================================

var merchants = []string{
	"STARBUCKS", "TIM HORTONS", "LOBLAWS", "SOBEYS", "METRO",
	"NO FRILLS", "COSTCO WHOLESALE", "SHELL", "PETRO-CANADA", "ESSO",
	"UBER TRIP", "NETFLIX.COM", "SPOTIFY", "ROGERS", "TELUS MOBILITY",
	"SHOPPERS DRUG MART", "CINEPLEX", "AMAZON.CA", "IKEA", "CANADIAN TIRE",
}

var categoryNames = []string{
	"Groceries", "Dining Out", "Transportation", "Entertainment",
	"Utilities", "Healthcare", "Shopping", "Income",
}

// Merchant returns a random merchant name as printed on Canadian statements.
func (g *TestDataGenerator) Merchant() string {
	return merchants[g.faker.Number(0, len(merchants)-1)] + " #" + g.faker.DigitN(4)
}

// CategoryName returns a random category name.
func (g *TestDataGenerator) CategoryName() string {
	return categoryNames[g.faker.Number(0, len(categoryNames)-1)]
}

// CategoryNames returns every category name the generator knows.
func (g *TestDataGenerator) CategoryNames() []string {
	out := make([]string, len(categoryNames))
	copy(out, categoryNames)
	return out
}
