// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	importservice "github.com/FACorreiaa/statement-ingest/internal/domain/import/service"
	"github.com/FACorreiaa/statement-ingest/internal/domain/ledger"
)

const (
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

// Importer ingests a batch of statements.
type Importer interface {
	ImportStatements(ctx context.Context, files []ledger.Document) (*importservice.ImportResult, error)
}

// SweepResult describes one pass over the inbox.
type SweepResult struct {
	Files     []string
	Processed []string
	Failed    []string
	Import    *importservice.ImportResult
}

// Scheduler periodically ingests every statement dropped into an inbox directory.
type Scheduler struct {
	cron     *cron.Cron
	importer Importer
	inbox    string
	schedule string
	timeout  time.Duration
	logger   *slog.Logger
}

// NewScheduler creates a new inbox scheduler.
func NewScheduler(importer Importer, inbox, schedule string, timeout time.Duration, logger *slog.Logger) *Scheduler {
	cronLogger := cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))
	// Create cron with seconds disabled (standard 5-field format)
	c := cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	if timeout <= 0 {
		timeout = 30 * time.Minute
	}

	return &Scheduler{
		cron:     c,
		importer: importer,
		inbox:    inbox,
		schedule: schedule,
		timeout:  timeout,
		logger:   logger,
	}
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	if err := os.MkdirAll(s.inbox, 0755); err != nil {
		return fmt.Errorf("failed to create inbox: %w", err)
	}

	if _, err := s.cron.AddFunc(s.schedule, s.sweepJob); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.String("inbox", s.inbox),
		slog.String("schedule", s.schedule),
		slog.Int("jobs", len(s.cron.Entries())),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow manually triggers an inbox sweep.
func (s *Scheduler) RunNow() {
	go s.sweepJob()
}

func (s *Scheduler) sweepJob() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.Sweep(ctx); err != nil {
		s.logger.Error("inbox sweep failed", slog.Any("error", err))
	}
}

// Sweep ingests every PDF in the inbox as one batch. Files that yielded
// transactions or were recognised move to processed/, files that produced
// nothing but errors move to failed/. When the import itself fails the
// files stay in place for the next run.
func (s *Scheduler) Sweep(ctx context.Context) (*SweepResult, error) {
	entries, err := os.ReadDir(s.inbox)
	if err != nil {
		return nil, fmt.Errorf("failed to read inbox: %w", err)
	}

	result := &SweepResult{}
	var docs []ledger.Document
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.inbox, entry.Name()))
		if err != nil {
			s.logger.Warn("failed to read statement", slog.String("file", entry.Name()), slog.Any("error", err))
			continue
		}
		docs = append(docs, ledger.Document{Name: entry.Name(), Data: data})
		result.Files = append(result.Files, entry.Name())
	}

	if len(docs) == 0 {
		s.logger.Debug("inbox empty", slog.String("inbox", s.inbox))
		return result, nil
	}

	s.logger.Info("starting inbox sweep", slog.Int("files", len(docs)))

	imported, err := s.importer.ImportStatements(ctx, docs)
	if err != nil {
		return result, err
	}
	result.Import = imported

	failed := make(map[string]bool)
	for _, f := range imported.Files {
		if f.TotalParsed == 0 && len(f.Errors) > 0 {
			failed[f.FileName] = true
		}
	}

	for _, name := range result.Files {
		dir := ProcessedDir
		if failed[name] {
			dir = FailedDir
		}
		if err := s.move(name, dir); err != nil {
			s.logger.Warn("failed to move statement", slog.String("file", name), slog.Any("error", err))
			continue
		}
		if failed[name] {
			result.Failed = append(result.Failed, name)
		} else {
			result.Processed = append(result.Processed, name)
		}
	}

	s.logger.Info("inbox sweep completed",
		slog.Int("processed", len(result.Processed)),
		slog.Int("failed", len(result.Failed)),
		slog.Int("inserted", imported.Inserted),
	)
	return result, nil
}

func (s *Scheduler) move(name, dir string) error {
	target := filepath.Join(s.inbox, dir)
	if err := os.MkdirAll(target, 0755); err != nil {
		return err
	}
	return os.Rename(filepath.Join(s.inbox, name), filepath.Join(target, name))
}
