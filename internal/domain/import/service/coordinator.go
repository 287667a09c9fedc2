// Package service orchestrates statement ingestion: per-file extraction,
// parsing, deduplication and categorization, followed by a serialized
// commit phase that binds budget periods and applies the hash gate.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/statement-ingest/internal/domain/categorization"
	"github.com/FACorreiaa/statement-ingest/internal/domain/dedup"
	"github.com/FACorreiaa/statement-ingest/internal/domain/import/extractor"
	"github.com/FACorreiaa/statement-ingest/internal/domain/import/parser"
	"github.com/FACorreiaa/statement-ingest/internal/domain/ledger"
)

const tracerName = "github.com/FACorreiaa/statement-ingest/internal/domain/import/service"

// duplicateSummaryThreshold is the confidence above which a heuristic verdict
// counts towards a file's DuplicatesFound.
const duplicateSummaryThreshold = 0.8

// TextExtractor reads the text layer of a document.
type TextExtractor interface {
	Extract(ctx context.Context, doc ledger.Document) *extractor.ExtractedText
}

// BudgetPeriodCreator creates the budget period for a month, or returns the
// existing one when another writer got there first.
type BudgetPeriodCreator interface {
	CreatePeriod(ctx context.Context, month string, allocations map[string]decimal.Decimal) (*ledger.BudgetPeriod, error)
}

// Snapshot is the read-only state an ingest runs against.
type Snapshot struct {
	Ledger        []ledger.Transaction
	Categories    []ledger.Category
	BudgetPeriods []ledger.BudgetPeriod
}

// Review pairs a candidate with both advisory verdicts.
type Review struct {
	File           string                       `json:"file"`
	Candidate      ledger.CandidateTransaction  `json:"candidate"`
	Duplicate      ledger.DeduplicationVerdict  `json:"duplicate"`
	Categorization ledger.CategorizationVerdict `json:"categorization"`
	Action         categorization.Action        `json:"action"`
	TransactionID  string                       `json:"transactionId,omitempty"` // empty when not accepted
}

// FileSummary reports what happened to one input document.
type FileSummary struct {
	FileName        string             `json:"fileName"`
	TotalParsed     int                `json:"totalParsed"`
	DuplicatesFound int                `json:"duplicatesFound"`
	NewTransactions int                `json:"newTransactions"`
	Errors          []string           `json:"errors"`
	AccountInfo     parser.AccountInfo `json:"accountInfo"`
}

// Result is the outcome of one Ingest call.
type Result struct {
	Accepted            []ledger.Transaction          `json:"accepted"`
	RejectedAsDuplicate []ledger.CandidateTransaction `json:"rejectedAsDuplicate"`
	Reviews             []Review                      `json:"reviews"`
	Files               []FileSummary                 `json:"files"`
	CreatedPeriods      []ledger.BudgetPeriod         `json:"createdPeriods"`
	Errors              []string                      `json:"errors"`
}

// fileOutcome is the per-file product of the concurrent phase.
type fileOutcome struct {
	summary    FileSummary
	candidates []ledger.CandidateTransaction
	duplicates []ledger.DeduplicationVerdict
	categories []ledger.CategorizationVerdict
}

// Coordinator runs the ingestion pipeline.
type Coordinator struct {
	extractor  TextExtractor
	parsers    *parser.Registry
	dedup      *dedup.Engine
	classifier categorization.Classifier
	periods    BudgetPeriodCreator
	thresholds categorization.Thresholds
	metrics    *Metrics
	tracer     trace.Tracer
	logger     *slog.Logger

	workers     int
	fileTimeout time.Duration
	now         func() time.Time
	newID       func() string

	mu sync.Mutex // serializes the commit phase
}

// NewCoordinator wires the pipeline stages. classifier and periods are required.
func NewCoordinator(
	ext TextExtractor,
	parsers *parser.Registry,
	engine *dedup.Engine,
	classifier categorization.Classifier,
	periods BudgetPeriodCreator,
	logger *slog.Logger,
) *Coordinator {
	if parsers == nil {
		parsers = parser.DefaultRegistry()
	}
	if engine == nil {
		engine = dedup.New(dedup.DefaultConfig())
	}
	return &Coordinator{
		extractor:  ext,
		parsers:    parsers,
		dedup:      engine,
		classifier: classifier,
		periods:    periods,
		thresholds: categorization.DefaultThresholds(),
		tracer:     otel.Tracer(tracerName),
		logger:     logger,
		workers:    runtime.GOMAXPROCS(0),
		now:        time.Now,
		newID:      func() string { return uuid.NewString() },
	}
}

// WithWorkers bounds how many files are processed concurrently.
func (c *Coordinator) WithWorkers(n int) *Coordinator {
	if n > 0 {
		c.workers = n
	}
	return c
}

// WithFileTimeout bounds extraction of a single file.
func (c *Coordinator) WithFileTimeout(d time.Duration) *Coordinator {
	c.fileTimeout = d
	return c
}

// WithMetrics enables Prometheus instrumentation.
func (c *Coordinator) WithMetrics(m *Metrics) *Coordinator {
	c.metrics = m
	return c
}

// WithThresholds changes the confidence at which categories are auto-assigned.
func (c *Coordinator) WithThresholds(t categorization.Thresholds) *Coordinator {
	c.thresholds = t
	return c
}

// WithClock overrides the ingest timestamp and ID sources.
func (c *Coordinator) WithClock(now func() time.Time, newID func() string) *Coordinator {
	if now != nil {
		c.now = now
	}
	if newID != nil {
		c.newID = newID
	}
	return c
}

// Ingest runs every file through the pipeline and commits the survivors
// against snap. Only a nil or empty batch is an error; everything else is
// reported on the result.
func (c *Coordinator) Ingest(ctx context.Context, files []ledger.Document, snap Snapshot) (*Result, error) {
	if len(files) == 0 {
		return nil, ledger.ErrNoDocument
	}

	ctx, span := c.tracer.Start(ctx, "import.Ingest",
		trace.WithAttributes(attribute.Int("files", len(files))))
	defer span.End()

	outcomes := make([]fileOutcome, len(files))

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(c.workers)
	for i, doc := range files {
		eg.Go(func() error {
			outcomes[i] = c.processFile(gctx, doc, snap)
			return nil
		})
	}
	_ = eg.Wait()

	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ingest cancelled")
		return nil, fmt.Errorf("ingest cancelled: %w", err)
	}

	result := c.commit(ctx, outcomes, snap)

	span.SetAttributes(
		attribute.Int("accepted", len(result.Accepted)),
		attribute.Int("rejected", len(result.RejectedAsDuplicate)),
		attribute.Int("errors", len(result.Errors)),
	)

	c.logger.Info("ingest completed",
		slog.Int("files", len(files)),
		slog.Int("accepted", len(result.Accepted)),
		slog.Int("rejected_as_duplicate", len(result.RejectedAsDuplicate)),
		slog.Int("created_periods", len(result.CreatedPeriods)),
		slog.Int("errors", len(result.Errors)),
	)

	return result, nil
}

// processFile extracts, detects, parses, deduplicates and categorizes one
// document. Failures are recorded on the summary; it never returns early
// with a panic or error.
func (c *Coordinator) processFile(ctx context.Context, doc ledger.Document, snap Snapshot) fileOutcome {
	start := time.Now()
	out := fileOutcome{summary: FileSummary{FileName: doc.Name, Errors: []string{}}}

	ctx, span := c.tracer.Start(ctx, "import.file",
		trace.WithAttributes(attribute.String("file", doc.Name)))
	defer span.End()

	extractCtx := ctx
	if c.fileTimeout > 0 {
		var cancel context.CancelFunc
		extractCtx, cancel = context.WithTimeout(ctx, c.fileTimeout)
		defer cancel()
	}

	text := c.extractor.Extract(extractCtx, doc)
	out.summary.Errors = append(out.summary.Errors, text.PageErrors...)

	if len(text.Pages) == 0 && len(text.PageErrors) > 0 {
		// The extraction errors already say why; there is nothing to detect.
		span.SetStatus(codes.Error, text.PageErrors[0])
		c.metrics.fileProcessed("", outcomeUnreadable, time.Since(start).Seconds(), len(out.summary.Errors))
		return out
	}

	full := text.FullText()
	p, ok := c.parsers.Detect(full)
	if !ok {
		err := ledger.UnsupportedFormatError{Document: doc.Name}
		out.summary.Errors = append(out.summary.Errors, err.Error())
		span.SetStatus(codes.Error, err.Error())
		c.metrics.fileProcessed("", outcomeUnsupported, time.Since(start).Seconds(), len(out.summary.Errors))
		return out
	}
	span.SetAttributes(attribute.String("bank", p.Name()))

	parsed := parser.Run(p, full)
	out.summary.AccountInfo = parsed.AccountInfo
	out.summary.Errors = append(out.summary.Errors, parsed.Errors...)
	out.summary.TotalParsed = len(parsed.Transactions)
	out.candidates = parsed.Transactions

	results := c.dedup.BatchCheck(parsed.Transactions, snap.Ledger)
	out.duplicates = make([]ledger.DeduplicationVerdict, len(results))
	for i, r := range results {
		out.duplicates[i] = r.Verdict
		if r.Verdict.IsLikelyDuplicate && r.Verdict.Confidence > duplicateSummaryThreshold {
			out.summary.DuplicatesFound++
		}
	}

	out.categories = categorization.ClassifyBatch(c.classifier, parsed.Transactions, snap.Categories)

	c.metrics.fileProcessed(p.Name(), outcomeParsed, time.Since(start).Seconds(), len(out.summary.Errors))

	c.logger.Debug("statement processed",
		slog.String("file", doc.Name),
		slog.String("bank", p.Name()),
		slog.Int("parsed", out.summary.TotalParsed),
		slog.Int("duplicates", out.summary.DuplicatesFound),
		slog.Int("errors", len(out.summary.Errors)),
	)

	return out
}

// commit binds candidates to budget periods and applies the hash gate in
// input order. It is the only place that touches shared state.
func (c *Coordinator) commit(ctx context.Context, outcomes []fileOutcome, snap Snapshot) *Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, span := c.tracer.Start(ctx, "import.commit")
	defer span.End()

	result := &Result{
		Accepted:            []ledger.Transaction{},
		RejectedAsDuplicate: []ledger.CandidateTransaction{},
		Reviews:             []Review{},
		Files:               make([]FileSummary, 0, len(outcomes)),
		CreatedPeriods:      []ledger.BudgetPeriod{},
		Errors:              []string{},
	}

	periods := make(map[string]ledger.BudgetPeriod, len(snap.BudgetPeriods))
	for _, p := range snap.BudgetPeriods {
		periods[p.Month] = p
	}
	failedMonths := make(map[string]struct{})

	known := make(map[string]struct{}, len(snap.Ledger))
	for _, tx := range snap.Ledger {
		hash := tx.TransactionHash
		if hash == "" {
			hash = ledger.TransactionHash(tx.Date, tx.Merchant, tx.Amount, tx.Description)
		}
		known[hash] = struct{}{}
	}

	now := c.now()

	for _, out := range outcomes {
		summary := out.summary

		for i, candidate := range out.candidates {
			dup := out.duplicates[i]
			cat := out.categories[i]
			review := Review{
				File:           summary.FileName,
				Candidate:      candidate,
				Duplicate:      dup,
				Categorization: cat,
				Action:         c.thresholds.Policy(cat.Confidence),
			}
			if dup.IsLikelyDuplicate {
				c.metrics.transaction(outcomeFlagged)
			}

			period, ok := c.periodFor(ctx, candidate.Month(), periods, failedMonths, snap.Categories, result)
			if !ok {
				summary.Errors = append(summary.Errors,
					fmt.Sprintf("no budget period for %s: transaction on %s skipped", candidate.Month(), candidate.Date))
				c.metrics.transaction(outcomeUnbound)
				result.Reviews = append(result.Reviews, review)
				continue
			}

			hash := candidate.Hash()
			if _, seen := known[hash]; seen {
				result.RejectedAsDuplicate = append(result.RejectedAsDuplicate, candidate)
				c.metrics.transaction(outcomeDuplicate)
				result.Reviews = append(result.Reviews, review)
				continue
			}
			known[hash] = struct{}{}

			tx := ledger.Transaction{
				ID:                  c.newID(),
				Date:                candidate.Date,
				Merchant:            candidate.Merchant,
				Description:         candidate.Description,
				OriginalDescription: candidate.Description,
				Amount:              candidate.Amount,
				AccountType:         candidate.AccountType,
				Confidence:          candidate.Confidence,
				BudgetID:            period.ID,
				TransactionHash:     hash,
				CreatedAt:           now,
				UpdatedAt:           now,
			}
			if cat.HasCategory() && cat.Confidence >= c.thresholds.High {
				tx.CategoryID = cat.CategoryID
			}

			review.TransactionID = tx.ID
			result.Accepted = append(result.Accepted, tx)
			result.Reviews = append(result.Reviews, review)
			summary.NewTransactions++
			c.metrics.transaction(outcomeAccepted)
		}

		for _, e := range summary.Errors {
			result.Errors = append(result.Errors, fileError(summary.FileName, e))
		}
		result.Files = append(result.Files, summary)
	}

	span.SetAttributes(attribute.Int("created_periods", len(result.CreatedPeriods)))
	return result
}

// fileError prefixes e with the file name unless it already names it.
func fileError(file, e string) string {
	if file == "" || strings.HasPrefix(e, file+":") {
		return e
	}
	return file + ": " + e
}

// periodFor returns the period for month, creating it on first use. A month
// whose creation failed is not retried within the same batch.
func (c *Coordinator) periodFor(
	ctx context.Context,
	month string,
	periods map[string]ledger.BudgetPeriod,
	failed map[string]struct{},
	categories []ledger.Category,
	result *Result,
) (ledger.BudgetPeriod, bool) {
	if p, ok := periods[month]; ok {
		return p, true
	}
	if _, ok := failed[month]; ok {
		return ledger.BudgetPeriod{}, false
	}
	if c.periods == nil {
		failed[month] = struct{}{}
		result.Errors = append(result.Errors, fmt.Sprintf("budget period %s is missing and no creator is configured", month))
		return ledger.BudgetPeriod{}, false
	}

	created, err := c.periods.CreatePeriod(ctx, month, ledger.DefaultAllocations(categories))
	if err != nil {
		failed[month] = struct{}{}
		result.Errors = append(result.Errors, fmt.Sprintf("failed to create budget period %s: %v", month, err))
		c.logger.Warn("failed to create budget period", "month", month, "error", err)
		return ledger.BudgetPeriod{}, false
	}

	periods[month] = *created
	result.CreatedPeriods = append(result.CreatedPeriods, *created)
	c.metrics.periodCreated()
	return *created, true
}
