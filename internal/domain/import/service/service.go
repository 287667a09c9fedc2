package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/statement-ingest/internal/domain/ledger"
	"github.com/FACorreiaa/statement-ingest/internal/domain/ledger/repository"
	"github.com/FACorreiaa/statement-ingest/pkg/storage"
)

// PeriodLister reads the existing budget periods.
type PeriodLister interface {
	ListPeriods(ctx context.Context) ([]ledger.BudgetPeriod, error)
}

// Categorizer is refreshed with the current ledger before each import so
// history-based suggestions see the latest data.
type Categorizer interface {
	Refresh(ctx context.Context, history []ledger.Transaction) error
}

// ImportResult is an ingest result plus what was persisted.
type ImportResult struct {
	JobID    uuid.UUID     `json:"jobId"`
	Inserted int           `json:"inserted"`
	Archived int           `json:"archived"`
	Duration time.Duration `json:"duration"`
	*Result
}

// ImportService loads the ledger snapshot, runs the coordinator and persists
// accepted transactions.
type ImportService struct {
	coordinator  *Coordinator
	transactions repository.TransactionRepository
	categories   repository.CategoryRepository
	periods      PeriodLister
	categorizer  Categorizer     // Optional: nil if history refresh not needed
	archive      storage.Storage // Optional: nil if raw statements are not kept
	logger       *slog.Logger
}

// NewImportService creates an import service.
func NewImportService(
	coordinator *Coordinator,
	transactions repository.TransactionRepository,
	categories repository.CategoryRepository,
	periods PeriodLister,
	logger *slog.Logger,
) *ImportService {
	return &ImportService{
		coordinator:  coordinator,
		transactions: transactions,
		categories:   categories,
		periods:      periods,
		logger:       logger,
	}
}

// WithCategorizer refreshes categorization state before every import.
func (s *ImportService) WithCategorizer(c Categorizer) *ImportService {
	s.categorizer = c
	return s
}

// WithArchive keeps a copy of every uploaded statement.
func (s *ImportService) WithArchive(store storage.Storage) *ImportService {
	s.archive = store
	return s
}

// Snapshot reads the ledger, categories and budget periods.
func (s *ImportService) Snapshot(ctx context.Context) (Snapshot, error) {
	txs, err := s.transactions.List(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to load ledger: %w", err)
	}
	categories, err := s.categories.List(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to load categories: %w", err)
	}
	periods, err := s.periods.ListPeriods(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to load budget periods: %w", err)
	}
	return Snapshot{Ledger: txs, Categories: categories, BudgetPeriods: periods}, nil
}

// ImportStatements ingests files against the stored ledger and appends the
// accepted transactions.
func (s *ImportService) ImportStatements(ctx context.Context, files []ledger.Document) (*ImportResult, error) {
	if len(files) == 0 {
		return nil, ledger.ErrNoDocument
	}

	start := time.Now()
	job := &ImportResult{JobID: uuid.New()}

	job.Archived = s.archiveFiles(ctx, job.JobID, files)

	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	if s.categorizer != nil {
		if err := s.categorizer.Refresh(ctx, snap.Ledger); err != nil {
			s.logger.Warn("failed to refresh categorization, using rules only", "error", err)
		}
	}

	result, err := s.coordinator.Ingest(ctx, files, snap)
	if err != nil {
		return nil, err
	}
	job.Result = result

	if len(result.Accepted) > 0 {
		inserted, err := s.transactions.Insert(ctx, result.Accepted)
		if err != nil {
			return nil, fmt.Errorf("failed to persist %d transactions: %w", len(result.Accepted), err)
		}
		job.Inserted = inserted
		if inserted < len(result.Accepted) {
			s.logger.Warn("some accepted transactions were already stored",
				"jobID", job.JobID,
				"accepted", len(result.Accepted),
				"inserted", inserted,
			)
		}
	}

	job.Duration = time.Since(start)

	s.logger.Info("statements imported",
		slog.String("job_id", job.JobID.String()),
		slog.Int("files", len(files)),
		slog.Int("inserted", job.Inserted),
		slog.Int("archived", job.Archived),
		slog.Duration("duration", job.Duration),
	)

	return job, nil
}

// archiveFiles stores raw statements under the job ID. Failures only warn.
func (s *ImportService) archiveFiles(ctx context.Context, jobID uuid.UUID, files []ledger.Document) int {
	if s.archive == nil {
		return 0
	}
	archived := 0
	for _, f := range files {
		if len(f.Data) == 0 {
			continue
		}
		if _, err := s.archive.Upload(ctx, jobID.String(), f.Name, "application/pdf", bytes.NewReader(f.Data)); err != nil {
			s.logger.Warn("failed to archive statement", "file", f.Name, "error", err)
			continue
		}
		archived++
	}
	return archived
}
