// Command ingest reads bank statement PDFs into the budget ledger.
//
//	ingest run [-ledger ledger.csv] [-csv out.csv] [-xlsx review.xlsx] statement.pdf...
//	ingest serve
//	ingest watch
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/FACorreiaa/statement-ingest/internal/domain/export"
	importhandler "github.com/FACorreiaa/statement-ingest/internal/domain/import/handler"
	"github.com/FACorreiaa/statement-ingest/internal/domain/ledger"
	"github.com/FACorreiaa/statement-ingest/pkg/config"
)

const usage = `usage: ingest <command> [flags]

commands:
  run     ingest the given PDF statements and print the result as JSON
  serve   start the HTTP API
  watch   sweep the inbox directory on a cron schedule
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch os.Args[1] {
	case "run":
		err = runCommand(ctx, cfg, logger, os.Args[2:])
	case "serve":
		err = serveCommand(ctx, cfg, logger)
	case "watch":
		err = watchCommand(ctx, cfg, logger)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil {
		logger.Error("command failed", slog.String("command", os.Args[1]), slog.Any("error", err))
		os.Exit(1)
	}
}

func runCommand(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	ledgerPath := fs.String("ledger", "", "CSV ledger to use instead of Postgres")
	csvOut := fs.String("csv", "", "write accepted transactions to this CSV file")
	xlsxOut := fs.String("xlsx", "", "write the review workbook to this file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("at least one statement PDF is required")
	}

	docs, err := readDocuments(fs.Args())
	if err != nil {
		return err
	}

	deps, err := InitDependencies(ctx, cfg, logger, *ledgerPath)
	if err != nil {
		return err
	}
	defer deps.Cleanup()

	result, err := deps.ImportService.ImportStatements(ctx, docs)
	if err != nil {
		return err
	}

	if *csvOut != "" {
		if err := writeFile(*csvOut, func(w io.Writer) error {
			return export.WriteCSV(w, result.Accepted)
		}); err != nil {
			return err
		}
	}
	if *xlsxOut != "" {
		if err := writeFile(*xlsxOut, func(w io.Writer) error {
			return export.WriteReviewWorkbook(w, result.Result)
		}); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func readDocuments(paths []string) ([]ledger.Document, error) {
	docs := make([]ledger.Document, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		docs = append(docs, ledger.Document{Name: filepath.Base(path), Data: data})
	}
	return docs, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func serveCommand(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	deps, err := InitDependencies(ctx, cfg, logger, "")
	if err != nil {
		return err
	}
	defer deps.Cleanup()

	// Prime overrides and history so /v1/corrections works before the first import.
	if history, err := deps.TransactionRepo.List(ctx); err != nil {
		logger.Warn("failed to load ledger history", slog.Any("error", err))
	} else if err := deps.CategorizationService.Refresh(ctx, history); err != nil {
		logger.Warn("failed to refresh categorization", slog.Any("error", err))
	}

	mux := http.NewServeMux()
	deps.ImportHandler.RegisterRoutes(mux)
	deps.BudgetPeriodHandler.RegisterRoutes(mux)
	if cfg.Observability.MetricsEnabled {
		mux.Handle("GET /metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	handler := importhandler.Chain(mux,
		importhandler.Recovery(logger),
		importhandler.RequestID,
		importhandler.Logger(logger),
		importhandler.CORS(cfg.Server.AllowedOrigins),
		importhandler.RateLimit(cfg.Server.RateLimitPerSecond, cfg.Server.RateLimitBurst),
	)

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	return listen(ctx, server, logger)
}

func watchCommand(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	deps, err := InitDependencies(ctx, cfg, logger, "")
	if err != nil {
		return err
	}
	defer deps.Cleanup()

	if err := deps.Scheduler.Start(); err != nil {
		return err
	}
	deps.Scheduler.RunNow()

	if cfg.Observability.MetricsEnabled {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
		metrics := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Observability.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := listen(ctx, metrics, logger); err != nil {
				logger.Error("metrics server stopped", slog.Any("error", err))
			}
		}()
	}

	logger.Info("watching inbox",
		slog.String("inbox", cfg.Ingest.InboxDir),
		slog.String("schedule", cfg.Ingest.Schedule))

	<-ctx.Done()
	logger.Info("shutting down scheduler")
	<-deps.Scheduler.Stop().Done()
	return nil
}

// listen serves until ctx is cancelled, then shuts down gracefully.
func listen(ctx context.Context, server *http.Server, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down http server", slog.String("addr", server.Addr))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
