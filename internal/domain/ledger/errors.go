package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrNoDocument is returned when ingestion is handed a nil or empty document.
	ErrNoDocument = errors.New("no document provided")

	// ErrUnsupportedFormat indicates no registered parser recognised the statement.
	ErrUnsupportedFormat = errors.New("unsupported statement format")
)

// PageExtractionError records a single page that failed to yield text.
type PageExtractionError struct {
	Page int
	Err  error
}

func (e PageExtractionError) Error() string {
	return fmt.Sprintf("failed to parse page %d: %v", e.Page, e.Err)
}

func (e PageExtractionError) Unwrap() error { return e.Err }

// DocumentExtractionError means the whole file could not be opened.
type DocumentExtractionError struct {
	Document string
	Err      error
}

func (e DocumentExtractionError) Error() string {
	if e.Document == "" {
		return fmt.Sprintf("failed to parse PDF: %v", e.Err)
	}
	return fmt.Sprintf("failed to parse PDF %s: %v", e.Document, e.Err)
}

func (e DocumentExtractionError) Unwrap() error { return e.Err }

// UnsupportedFormatError is reported when format detection finds no parser.
type UnsupportedFormatError struct {
	Document string
}

func (e UnsupportedFormatError) Error() string {
	return fmt.Sprintf("%s: %s: unable to detect supported bank type from PDF content", e.Document, ErrUnsupportedFormat)
}

func (e UnsupportedFormatError) Is(target error) bool {
	return target == ErrUnsupportedFormat
}

// FragmentParseError describes one transaction fragment that could not be decomposed.
type FragmentParseError struct {
	Parser   string
	Fragment string
	Message  string
}

func (e FragmentParseError) Error() string {
	return fmt.Sprintf("%s: %s: %q", e.Parser, e.Message, snippet(e.Fragment))
}

// InvalidDateError means a parsed date could not be normalized; the record is dropped.
type InvalidDateError struct {
	Raw string
	Err error
}

func (e InvalidDateError) Error() string {
	return fmt.Sprintf("invalid date %q: %v", e.Raw, e.Err)
}

func (e InvalidDateError) Unwrap() error { return e.Err }

const snippetLen = 80

func snippet(s string) string {
	r := []rune(s)
	if len(r) <= snippetLen {
		return s
	}
	return string(r[:snippetLen]) + "..."
}
