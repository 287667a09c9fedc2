package parser

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/statement-ingest/internal/domain/ledger"
	"github.com/FACorreiaa/statement-ingest/pkg/money"
)

var fieldSeparator = regexp.MustCompile(`\s{3,}`)

// regions returns the text between each occurrence of header and the
// nearest following terminator.
func regions(text, header string, terminators ...string) []string {
	parts := strings.Split(text, header)
	if len(parts) < 2 {
		return nil
	}

	out := make([]string, 0, len(parts)-1)
	for _, part := range parts[1:] {
		end := len(part)
		for _, term := range terminators {
			if i := strings.Index(part, term); i >= 0 && i < end {
				end = i
			}
		}
		out = append(out, part[:end])
	}
	return out
}

// splitFragments cuts region into records. A record begins at every match of
// start that sits on a field boundary, unless continues reports that the match
// belongs to the record before it; continues sees the text preceding the match
// and may be nil. Text before the first record is discarded.
func splitFragments(region string, start *regexp.Regexp, continues func(before string) bool) []string {
	var cuts []int
	for _, loc := range start.FindAllStringIndex(region, -1) {
		i := loc[0]
		if i > 0 && !unicode.IsSpace(rune(region[i-1])) {
			continue
		}
		if len(cuts) > 0 && continues != nil && continues(region[:i]) {
			continue
		}
		cuts = append(cuts, i)
	}

	out := make([]string, 0, len(cuts))
	for n, cut := range cuts {
		end := len(region)
		if n+1 < len(cuts) {
			end = cuts[n+1]
		}
		if frag := strings.TrimSpace(region[cut:end]); frag != "" {
			out = append(out, frag)
		}
	}
	return out
}

// splitFields splits a fragment on runs of three or more spaces.
func splitFields(fragment string) []string {
	raw := fieldSeparator.Split(strings.TrimSpace(fragment), -1)
	fields := raw[:0]
	for _, f := range raw {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

// statementAmount converts a printed card-statement amount to the ledger sign
// convention: charges are printed positive and become money out.
func statementAmount(printed string) (decimal.Decimal, error) {
	d, err := money.ParseAmount(printed)
	if err != nil {
		return decimal.Zero, err
	}
	return d.Neg(), nil
}

// normalizeDate parses value with layout and renders it as YYYY-MM-DD.
func normalizeDate(layout, value string) (string, error) {
	t, err := time.Parse(layout, value)
	if err != nil {
		return "", ledger.InvalidDateError{Raw: value, Err: err}
	}
	return t.Format(ledger.DateLayout), nil
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToUpper(s), strings.ToUpper(substr))
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
