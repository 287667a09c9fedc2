package parser

import (
	"regexp"
	"strings"

	"github.com/FACorreiaa/statement-ingest/internal/domain/ledger"
)

const (
	amexHeader     = "Date   Description   Amount"
	amexTerminator = "This is not a billing Statement."
	amexDateLayout = "2 Jan. 2006"
)

var (
	amexRecordStart = regexp.MustCompile(`\d{1,2}\s[A-Z][a-z]{2}\.\s\d{4}`)
	amexLeadDate    = regexp.MustCompile(`^\d{1,2}\s[A-Z][a-z]{2}\.\s\d{4}`)
	amexAmount      = regexp.MustCompile(`(-?\$[\d,]*\d\.\d{2})$`)
	amexPeriod      = regexp.MustCompile(`(\d{1,2}\s+\w{3}\.\s+\d{4})\s*-\s*(\d{1,2}\s+\w{3}\.\s+\d{4})`)
	amexCardTail    = regexp.MustCompile(`(?i)ending in\s+(\d{4,5})`)
	amexExcluded    = []string{"PAYMENT RECEIVED"}
	amexMerchant    = "Merchant:"
	amexProcessed   = "Date Processed:"
	amexNoiseKeys   = []string{amexProcessed, "Foreign Spend Amount:"}
)

// AmexParser reads American Express Canada statements.
type AmexParser struct{}

func NewAmexParser() *AmexParser { return &AmexParser{} }

func (p *AmexParser) Name() string { return "amex" }

func (p *AmexParser) Fingerprints() []string {
	return []string{"american express", "amex"}
}

// Parse reads every transaction table in the statement.
func (p *AmexParser) Parse(fullText string) *StatementResult {
	res := &StatementResult{
		AccountInfo: AccountInfo{
			AccountType:     p.Name(),
			StatementPeriod: amexStatementPeriod(fullText),
		},
	}
	if m := amexCardTail.FindStringSubmatch(fullText); m != nil {
		res.AccountInfo.LastFour = m[1]
	}

	for _, region := range regions(fullText, amexHeader, amexTerminator) {
		for _, frag := range splitFragments(region, amexRecordStart, amexProcessedDate) {
			tx, excluded, err := p.parseFragment(frag)
			if err != nil {
				res.addError(err)
				continue
			}
			if excluded {
				continue
			}
			res.Transactions = append(res.Transactions, tx)
		}
	}

	return res
}

func (p *AmexParser) parseFragment(frag string) (ledger.CandidateTransaction, bool, error) {
	fail := func(msg string) (ledger.CandidateTransaction, bool, error) {
		return ledger.CandidateTransaction{}, false, ledger.FragmentParseError{Parser: p.Name(), Fragment: frag, Message: msg}
	}

	loc := amexAmount.FindStringSubmatchIndex(frag)
	if loc == nil {
		return fail("no trailing amount")
	}
	amount, err := statementAmount(frag[loc[2]:loc[3]])
	if err != nil {
		return fail(err.Error())
	}

	fields := splitFields(frag[:loc[2]])
	if len(fields) == 0 {
		return fail("missing date and description")
	}

	confidence := 0.85
	rawDate := amexLeadDate.FindString(fields[0])
	if rawDate == "" {
		return fail("no transaction date")
	}
	var rest []string
	if extra := strings.TrimSpace(fields[0][len(rawDate):]); extra != "" {
		// Date and description were not column-separated.
		rest = append(rest, extra)
		confidence = 0.8
	}

	merchant := ""
	for i := 1; i < len(fields); i++ {
		f := fields[i]
		switch {
		case strings.HasPrefix(f, amexMerchant):
			merchant = strings.TrimSpace(strings.TrimPrefix(f, amexMerchant))
			if merchant == "" && i+1 < len(fields) {
				i++
				merchant = fields[i]
			}
		case hasAnyPrefix(f, amexNoiseKeys):
			if strings.HasSuffix(f, ":") && i+1 < len(fields) {
				i++
			}
		case strings.Contains(f, "Commission") && strings.Contains(f, "Exchange Rate"):
		default:
			rest = append(rest, f)
		}
	}
	if len(rest) == 0 {
		return fail("missing description")
	}

	date, err := normalizeDate(amexDateLayout, rawDate)
	if err != nil {
		return fail(err.Error())
	}

	description := rest[0]
	for _, ex := range amexExcluded {
		if containsFold(description, ex) {
			return ledger.CandidateTransaction{}, true, nil
		}
	}

	if merchant != "" {
		confidence = 0.9
	} else {
		merchant = description
	}

	return ledger.CandidateTransaction{
		Date:        date,
		Merchant:    merchant,
		Description: description,
		Amount:      amount,
		AccountType: p.Name(),
		Confidence:  confidence,
	}, false, nil
}

func amexStatementPeriod(text string) string {
	m := amexPeriod.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1] + " - " + m[2]
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// amexProcessedDate reports whether a date is the value of a "Date Processed:"
// field rather than the start of the next record.
func amexProcessedDate(before string) bool {
	return strings.HasSuffix(strings.TrimSpace(before), amexProcessed)
}
