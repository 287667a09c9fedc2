// Package extractor turns a PDF statement into per-page text. It never fails
// past its own boundary: every problem is recorded in the result so callers can
// still use whatever pages were recovered.
package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/dslipak/pdf"

	"github.com/FACorreiaa/statement-ingest/internal/domain/ledger"
)

// ExtractedText is the text layer of one document.
type ExtractedText struct {
	Pages      []string
	PageErrors []string
	PageCount  int // as reported by the document, including failed pages
}

// FullText joins page text with a newline after every page.
func (t *ExtractedText) FullText() string {
	var b strings.Builder
	for _, p := range t.Pages {
		b.WriteString(p)
		b.WriteString("\n")
	}
	return b.String()
}

// HasText reports whether any page produced non-blank text.
func (t *ExtractedText) HasText() bool {
	for _, p := range t.Pages {
		if strings.TrimSpace(p) != "" {
			return true
		}
	}
	return false
}

// PageReader abstracts the PDF text layer so extraction can be tested without
// real PDF fixtures.
type PageReader interface {
	NumPage() int
	PageText(i int) (string, error) // 1-indexed
}

// OpenFunc opens a document for page-by-page reading.
type OpenFunc func(data []byte) (PageReader, error)

// Preflight inspects the raw document before text extraction.
type Preflight interface {
	PageCount(data []byte) (int, error)
}

// Extractor reads the text layer of PDF documents.
type Extractor struct {
	open      OpenFunc
	preflight Preflight
	logger    *slog.Logger
}

// New creates an extractor backed by the dslipak/pdf text reader.
func New(logger *slog.Logger) *Extractor {
	return &Extractor{
		open:   OpenPDF,
		logger: logger,
	}
}

// WithOpener replaces the document reader.
func (e *Extractor) WithOpener(open OpenFunc) *Extractor {
	e.open = open
	return e
}

// WithPreflight enables a structural check before extraction.
func (e *Extractor) WithPreflight(p Preflight) *Extractor {
	e.preflight = p
	return e
}

// Extract reads every page independently. A failing page is recorded and
// skipped; an unreadable document yields zero pages and one error.
func (e *Extractor) Extract(ctx context.Context, doc ledger.Document) *ExtractedText {
	result := &ExtractedText{}

	if len(doc.Data) == 0 {
		result.PageErrors = append(result.PageErrors,
			ledger.DocumentExtractionError{Document: doc.Name, Err: ledger.ErrNoDocument}.Error())
		return result
	}

	if e.preflight != nil {
		if n, err := e.preflight.PageCount(doc.Data); err != nil {
			e.logger.Warn("pdf preflight failed, continuing with text extraction",
				slog.String("file", doc.Name),
				slog.Any("error", err),
			)
		} else {
			result.PageCount = n
		}
	}

	reader, err := e.safeOpen(doc.Data)
	if err != nil {
		result.PageErrors = append(result.PageErrors,
			ledger.DocumentExtractionError{Document: doc.Name, Err: err}.Error())
		return result
	}

	numPages := reader.NumPage()
	if result.PageCount != 0 && result.PageCount != numPages {
		e.logger.Warn("page count mismatch between preflight and text reader",
			slog.String("file", doc.Name),
			slog.Int("preflight_pages", result.PageCount),
			slog.Int("reader_pages", numPages),
		)
	}
	result.PageCount = numPages

	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			result.PageErrors = append(result.PageErrors,
				ledger.PageExtractionError{Page: i, Err: err}.Error())
			break
		}

		text, err := safePageText(reader, i)
		if err != nil {
			result.PageErrors = append(result.PageErrors,
				ledger.PageExtractionError{Page: i, Err: err}.Error())
			continue
		}
		result.Pages = append(result.Pages, text)
	}

	e.logger.Debug("extracted pdf text",
		slog.String("file", doc.Name),
		slog.Int("pages", numPages),
		slog.Int("page_errors", len(result.PageErrors)),
	)

	return result
}

func (e *Extractor) safeOpen(data []byte) (r PageReader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r = nil
			err = fmt.Errorf("pdf reader panic: %v", rec)
		}
	}()
	return e.open(data)
}

func safePageText(r PageReader, i int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			text = ""
			err = fmt.Errorf("pdf reader panic: %v", rec)
		}
	}()
	return r.PageText(i)
}

// pdfReader adapts dslipak/pdf to PageReader.
type pdfReader struct {
	r *pdf.Reader
}

// OpenPDF opens an in-memory PDF with the dslipak/pdf reader.
func OpenPDF(data []byte) (PageReader, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	return &pdfReader{r: r}, nil
}

func (p *pdfReader) NumPage() int {
	return p.r.NumPage()
}

// PageText rebuilds the page's text runs from positioned glyphs. Runs in
// separate columns are joined with three spaces and everything else with one,
// the layout the statement grammars are written against.
func (p *pdfReader) PageText(i int) (string, error) {
	page := p.r.Page(i)
	if page.V.IsNull() {
		return "", errors.New("page not found")
	}
	return joinRuns(page.Content().Text), nil
}

const (
	// runGap is the horizontal distance, in text space units, past which two
	// glyphs on the same baseline belong to different runs.
	runGap = 1.5
	// columnGap is the distance past which two runs sit in different columns.
	columnGap = 8.0

	columnSeparator = "   "
)

func joinRuns(glyphs []pdf.Text) string {
	var (
		out  strings.Builder
		last *pdf.Text
	)

	for i := range glyphs {
		g := &glyphs[i]
		if last != nil {
			gap := g.X - (last.X + last.W)
			switch {
			case math.Abs(g.Y-last.Y) >= 0.5:
				out.WriteByte(' ')
			case gap > columnGap:
				out.WriteString(columnSeparator)
			case math.Abs(gap) > runGap:
				out.WriteByte(' ')
			}
		}
		out.WriteString(g.S)
		last = g
	}

	return out.String()
}
