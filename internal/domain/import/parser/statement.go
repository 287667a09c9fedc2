// Package parser turns the text layer of a bank statement into candidate
// transactions. Each institution has its own StatementParser; parsers are
// looked up through a Registry whose registration order is detection priority.
package parser

import (
	"fmt"

	"github.com/FACorreiaa/statement-ingest/internal/domain/import/sniffer"
	"github.com/FACorreiaa/statement-ingest/internal/domain/ledger"
)

// AccountInfo describes the account a statement belongs to.
type AccountInfo struct {
	AccountType     string `json:"accountType" csv:"account_type"`
	LastFour        string `json:"lastFour,omitempty" csv:"last_four"`
	StatementPeriod string `json:"statementPeriod,omitempty" csv:"statement_period"`
}

// StatementResult is what a parser recovered from one statement. Errors hold
// one entry per fragment that could not be decomposed.
type StatementResult struct {
	Transactions []ledger.CandidateTransaction
	Errors       []string
	AccountInfo  AccountInfo
}

func (r *StatementResult) addError(err error) {
	r.Errors = append(r.Errors, err.Error())
}

// StatementParser decomposes the full text of one institution's statements.
type StatementParser interface {
	Name() string
	Fingerprints() []string
	Parse(fullText string) *StatementResult
}

// Registry maps detected formats to their parsers.
type Registry struct {
	formats *sniffer.Registry
	parsers map[string]StatementParser
}

// NewRegistry registers parsers in priority order.
func NewRegistry(parsers ...StatementParser) (*Registry, error) {
	r := &Registry{
		formats: &sniffer.Registry{},
		parsers: make(map[string]StatementParser, len(parsers)),
	}
	for _, p := range parsers {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// DefaultRegistry holds the built-in parsers: amex first, then cibc.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(NewAmexParser(), NewCIBCParser())
	if err != nil {
		panic(fmt.Sprintf("parser: default registry: %v", err))
	}
	return r
}

// Register adds a parser at the lowest priority.
func (r *Registry) Register(p StatementParser) error {
	if err := r.formats.Register(sniffer.Format{Name: p.Name(), Fingerprints: p.Fingerprints()}); err != nil {
		return fmt.Errorf("register parser: %w", err)
	}
	r.parsers[p.Name()] = p
	return nil
}

// Detect returns the parser for the first registered format found in text.
func (r *Registry) Detect(fullText string) (StatementParser, bool) {
	name, ok := sniffer.Detect(fullText, r.formats)
	if !ok {
		return nil, false
	}
	return r.parsers[name], true
}

// Names lists registered parsers in priority order.
func (r *Registry) Names() []string {
	formats := r.formats.Formats()
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = f.Name
	}
	return names
}

// Run parses text with p and adds a warning when a detected format yields
// nothing at all, which usually means the statement layout changed.
func Run(p StatementParser, fullText string) *StatementResult {
	res := p.Parse(fullText)
	if res == nil {
		res = &StatementResult{AccountInfo: AccountInfo{AccountType: p.Name()}}
	}
	if len(res.Transactions) == 0 && len(res.Errors) == 0 {
		res.Errors = append(res.Errors, fmt.Sprintf("no transactions found in %s statement", p.Name()))
	}
	return res
}
