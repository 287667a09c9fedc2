// Package dedup flags candidate transactions that are probably already in the
// ledger. Verdicts are advisory: nothing here removes a record, callers decide
// what to do with a verdict. The content hash gate in the import service is
// the authoritative idempotency check.
package dedup

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/statement-ingest/internal/domain/ledger"
)

// DefaultThreshold is the confidence at or above which FilterDuplicates drops a duplicate.
const DefaultThreshold = 0.8

const (
	exactConfidence    = 0.95
	transferConfidence = 0.9
	similarConfidence  = 0.85
	possibleConfidence = 0.7
	noMatchConfidence  = 0.1
)

var (
	amountTolerance   = decimal.New(1, -2) // 0.01
	transferTolerance = decimal.NewFromInt(1)
)

// paymentPhrases mark a merchant as a credit card payment seen from the paying account.
var paymentPhrases = []string{
	"american express",
	"amex",
	"visa payment",
	"mastercard payment",
	"credit card payment",
	"cc payment",
	"payment thank you",
	"payment received",
}

// Config tunes the heuristics.
type Config struct {
	// TransferWindowDays bounds how far card expenses may be from the payment.
	TransferWindowDays int
	// MinTransferContributors is the fewest card expenses that may explain a payment.
	MinTransferContributors int
}

// DefaultConfig returns the standard cascade settings.
func DefaultConfig() Config {
	return Config{
		TransferWindowDays:      30,
		MinTransferContributors: 1,
	}
}

// Engine runs the duplicate cascade. It holds no state between calls and is
// safe for concurrent use.
type Engine struct {
	cfg Config
}

// New creates an engine. Zero config values fall back to the defaults.
func New(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.TransferWindowDays <= 0 {
		cfg.TransferWindowDays = def.TransferWindowDays
	}
	if cfg.MinTransferContributors <= 0 {
		cfg.MinTransferContributors = def.MinTransferContributors
	}
	return &Engine{cfg: cfg}
}

// Result pairs a candidate with its verdict.
type Result struct {
	Candidate ledger.CandidateTransaction
	Verdict   ledger.DeduplicationVerdict
}

// Check evaluates the cascade exact, transfer, similar; the first hit wins.
func (e *Engine) Check(c ledger.CandidateTransaction, existing []ledger.Transaction) ledger.DeduplicationVerdict {
	if m := findExact(c, existing); m != nil {
		return ledger.DeduplicationVerdict{
			IsLikelyDuplicate: true,
			DuplicateOf:       m.ID,
			Confidence:        exactConfidence,
			Reason:            "Exact match found",
		}
	}

	if m := e.findTransfer(c, existing); m != nil {
		return ledger.DeduplicationVerdict{
			IsLikelyDuplicate: true,
			DuplicateOf:       m.ID,
			Confidence:        transferConfidence,
			Reason:            "Credit card payment duplicate",
		}
	}

	if v, ok := findSimilar(c, existing); ok {
		return v
	}

	return ledger.DeduplicationVerdict{Confidence: noMatchConfidence}
}

// BatchCheck checks each candidate against existing only. Candidates are never
// compared with each other, so two identical lines in one statement both pass.
func (e *Engine) BatchCheck(candidates []ledger.CandidateTransaction, existing []ledger.Transaction) []Result {
	results := make([]Result, len(candidates))
	for i, c := range candidates {
		results[i] = Result{Candidate: c, Verdict: e.Check(c, existing)}
	}
	return results
}

// FilterDuplicates keeps candidates that are not duplicates or whose verdict
// confidence is below threshold.
func FilterDuplicates(results []Result, threshold float64) []ledger.CandidateTransaction {
	kept := make([]ledger.CandidateTransaction, 0, len(results))
	for _, r := range results {
		if !r.Verdict.IsLikelyDuplicate || r.Verdict.Confidence < threshold {
			kept = append(kept, r.Candidate)
		}
	}
	return kept
}

func findExact(c ledger.CandidateTransaction, existing []ledger.Transaction) *ledger.Transaction {
	for i := range existing {
		t := &existing[i]
		if t.Date == c.Date && t.Merchant == c.Merchant && sameAmount(t.Amount, c.Amount) {
			return t
		}
	}
	return nil
}

func (e *Engine) findTransfer(c ledger.CandidateTransaction, existing []ledger.Transaction) *ledger.Transaction {
	if !c.Amount.IsNegative() || !isCardPayment(c.Merchant) {
		return nil
	}

	var (
		contributors []*ledger.Transaction
		total        decimal.Decimal
	)
	for i := range existing {
		t := &existing[i]
		if t.AccountType == c.AccountType || !t.Amount.IsNegative() {
			continue
		}
		if !withinDays(t.Date, c.Date, e.cfg.TransferWindowDays) {
			continue
		}
		contributors = append(contributors, t)
		total = total.Add(t.Amount.Abs())
	}

	if len(contributors) < e.cfg.MinTransferContributors {
		return nil
	}
	if total.Sub(c.Amount.Abs()).Abs().LessThan(transferTolerance) {
		return contributors[0]
	}
	return nil
}

func findSimilar(c ledger.CandidateTransaction, existing []ledger.Transaction) (ledger.DeduplicationVerdict, bool) {
	for i := range existing {
		t := &existing[i]
		if t.AccountType != c.AccountType || !sameAmount(t.Amount, c.Amount) {
			continue
		}
		days, ok := dayDistance(t.Date, c.Date)
		if !ok {
			continue
		}
		sim := Jaccard(t.Merchant, c.Merchant)

		switch {
		case sim > 0.8 && days <= 1:
			return ledger.DeduplicationVerdict{
				IsLikelyDuplicate: true,
				DuplicateOf:       t.ID,
				Confidence:        similarConfidence,
				Reason:            fmt.Sprintf("Similar transaction: %.2f merchant similarity, same amount, %d day(s) apart", sim, days),
			}, true
		case sim > 0.6 && days <= 3:
			return ledger.DeduplicationVerdict{
				IsLikelyDuplicate: true,
				DuplicateOf:       t.ID,
				Confidence:        possibleConfidence,
				Reason:            fmt.Sprintf("Possible duplicate: %.2f merchant similarity, same amount, %d day(s) apart", sim, days),
			}, true
		}
	}
	return ledger.DeduplicationVerdict{}, false
}

// Jaccard is the token-set similarity of two merchant names, lowercased and
// split on whitespace. Two blank names score 0.
func Jaccard(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)

	union := make(map[string]struct{}, len(setA)+len(setB))
	inter := 0
	for tok := range setA {
		union[tok] = struct{}{}
		if _, ok := setB[tok]; ok {
			inter++
		}
	}
	for tok := range setB {
		union[tok] = struct{}{}
	}
	if len(union) == 0 {
		return 0
	}
	return float64(inter) / float64(len(union))
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func isCardPayment(merchant string) bool {
	lower := strings.ToLower(merchant)
	for _, p := range paymentPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func sameAmount(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThan(amountTolerance)
}

// dayDistance is the absolute number of days between two ISO dates.
// ok is false when either date does not parse.
func dayDistance(a, b string) (int, bool) {
	ta, err := ledger.ParseDate(a)
	if err != nil {
		return 0, false
	}
	tb, err := ledger.ParseDate(b)
	if err != nil {
		return 0, false
	}
	hours := math.Abs(ta.Sub(tb).Hours())
	return int(math.Round(hours / 24)), true
}

func withinDays(a, b string, days int) bool {
	d, ok := dayDistance(a, b)
	return ok && d <= days
}
