package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/FACorreiaa/statement-ingest/internal/domain/ledger"
)

const cibcHeader = "Trans date   Post date   Description"

var (
	cibcTerminators = []string{"Total for", "Card number"}
	cibcRecordStart = regexp.MustCompile(`[A-Z][a-z]{2}\s\d{1,2}\s{3,}[A-Z][a-z]{2}\s\d{1,2}`)
	cibcDate        = regexp.MustCompile(`^[A-Z][a-z]{2}\s\d{1,2}$`)
	cibcAmount      = regexp.MustCompile(`^-?\$?[\d,]*\d\.\d{2}$`)
	cibcPeriod      = regexp.MustCompile(`([A-Z][a-z]+\.?\s\d{1,2},\s\d{4})\s+to\s+([A-Z][a-z]+\.?\s\d{1,2},\s\d{4})`)
	cibcCardTail    = regexp.MustCompile(`Card number\s+(?:[X\d*]{4}\s+){3}(\d{4})`)
	cibcExcluded    = []string{"PAYMENT THANK YOU", "PAIEMENT MERCI"}

	periodLayouts = []string{"January 2, 2006", "Jan 2, 2006"}

	errNoPeriod = errors.New("statement period not found, transaction years cannot be resolved")
)

// CIBCParser reads CIBC credit card statements. Transaction dates are printed
// without a year, so the statement period anchors them.
type CIBCParser struct{}

func NewCIBCParser() *CIBCParser { return &CIBCParser{} }

func (p *CIBCParser) Name() string { return "cibc" }

func (p *CIBCParser) Fingerprints() []string {
	return []string{"cibc", "canadian imperial bank", "cibc advisor", "cibc online banking"}
}

func (p *CIBCParser) Parse(fullText string) *StatementResult {
	period, closing, ok := cibcStatementPeriod(fullText)
	res := &StatementResult{
		AccountInfo: AccountInfo{
			AccountType:     p.Name(),
			StatementPeriod: period,
		},
	}
	if m := cibcCardTail.FindStringSubmatch(fullText); m != nil {
		res.AccountInfo.LastFour = m[1]
	}

	var frags []string
	for _, region := range regions(fullText, cibcHeader, cibcTerminators...) {
		frags = append(frags, splitFragments(region, cibcRecordStart, nil)...)
	}
	if len(frags) > 0 && !ok {
		res.addError(fmt.Errorf("%s: %w", p.Name(), errNoPeriod))
		return res
	}

	for _, frag := range frags {
		tx, excluded, err := p.parseFragment(frag, closing)
		if err != nil {
			res.addError(err)
			continue
		}
		if !excluded {
			res.Transactions = append(res.Transactions, tx)
		}
	}
	return res
}

func (p *CIBCParser) parseFragment(frag string, closing time.Time) (ledger.CandidateTransaction, bool, error) {
	fail := func(msg string) (ledger.CandidateTransaction, bool, error) {
		return ledger.CandidateTransaction{}, false, ledger.FragmentParseError{Parser: p.Name(), Fragment: frag, Message: msg}
	}

	fields := splitFields(frag)
	if len(fields) < 4 {
		return fail("expected transaction date, posting date, description and amount")
	}

	last := fields[len(fields)-1]
	if !cibcAmount.MatchString(last) {
		return fail("no trailing amount")
	}
	amount, err := statementAmount(last)
	if err != nil {
		return fail(err.Error())
	}

	transDate := collapseSpaces(fields[0])
	if !cibcDate.MatchString(transDate) {
		return fail("no transaction date")
	}
	date, err := resolveYear(transDate, closing)
	if err != nil {
		return fail(err.Error())
	}

	description := fields[2]
	confidence := 0.8
	if len(fields) >= 5 {
		// Spend category column present.
		confidence = 0.85
	}

	for _, ex := range cibcExcluded {
		if containsFold(description, ex) {
			return ledger.CandidateTransaction{}, true, nil
		}
	}

	return ledger.CandidateTransaction{
		Date:        date,
		Merchant:    description,
		Description: description,
		Amount:      amount,
		AccountType: p.Name(),
		Confidence:  confidence,
	}, false, nil
}

// resolveYear dates a "Mon D" transaction inside the statement ending at
// closing. Months after the closing month belong to the previous year.
func resolveYear(monthDay string, closing time.Time) (string, error) {
	md, err := time.Parse("Jan 2", monthDay)
	if err != nil {
		return "", ledger.InvalidDateError{Raw: monthDay, Err: err}
	}
	year := closing.Year()
	if md.Month() > closing.Month() {
		year--
	}
	return normalizeDate("Jan 2 2006", fmt.Sprintf("%s %d", monthDay, year))
}

// cibcStatementPeriod finds "Month D, YYYY to Month D, YYYY", falling back to
// the dotted "D Mon. YYYY - D Mon. YYYY" form.
func cibcStatementPeriod(text string) (period string, closing time.Time, ok bool) {
	if m := cibcPeriod.FindStringSubmatch(text); m != nil {
		end := strings.Replace(m[2], ".", "", 1)
		for _, layout := range periodLayouts {
			if t, err := time.Parse(layout, end); err == nil {
				return m[1] + " to " + m[2], t, true
			}
		}
	}
	if m := amexPeriod.FindStringSubmatch(text); m != nil {
		end := collapseSpaces(m[2])
		if t, err := time.Parse(amexDateLayout, end); err == nil {
			return m[1] + " - " + m[2], t, true
		}
	}
	return "", time.Time{}, false
}
