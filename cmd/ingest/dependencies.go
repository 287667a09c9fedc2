package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/FACorreiaa/statement-ingest/internal/domain/categorization"
	"github.com/FACorreiaa/statement-ingest/internal/domain/dedup"
	"github.com/FACorreiaa/statement-ingest/internal/domain/import/extractor"
	importhandler "github.com/FACorreiaa/statement-ingest/internal/domain/import/handler"
	"github.com/FACorreiaa/statement-ingest/internal/domain/import/normalizer"
	"github.com/FACorreiaa/statement-ingest/internal/domain/import/parser"
	importservice "github.com/FACorreiaa/statement-ingest/internal/domain/import/service"
	"github.com/FACorreiaa/statement-ingest/internal/domain/ledger/repository"
	planhandler "github.com/FACorreiaa/statement-ingest/internal/domain/plan/handler"
	planrepo "github.com/FACorreiaa/statement-ingest/internal/domain/plan/repository"
	planservice "github.com/FACorreiaa/statement-ingest/internal/domain/plan/service"
	"github.com/FACorreiaa/statement-ingest/pkg/config"
	"github.com/FACorreiaa/statement-ingest/pkg/cron"
	"github.com/FACorreiaa/statement-ingest/pkg/db"
	"github.com/FACorreiaa/statement-ingest/pkg/storage"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config   *config.Config
	DB       *db.DB
	Logger   *slog.Logger
	Registry *prometheus.Registry

	// offlineLedger, when set, replaces Postgres with a CSV ledger.
	offlineLedger string

	// Repositories
	TransactionRepo repository.TransactionRepository
	CategoryRepo    repository.CategoryRepository
	PeriodRepo      planrepo.BudgetPeriodRepository
	OverrideStore   categorization.OverrideStore

	// Services
	PeriodService         *planservice.BudgetPeriodService
	CategorizationService *categorization.Service
	Coordinator           *importservice.Coordinator
	ImportService         *importservice.ImportService
	FileStorage           storage.Storage
	Scheduler             *cron.Scheduler

	// Handlers
	ImportHandler       *importhandler.ImportHandler
	BudgetPeriodHandler *planhandler.BudgetPeriodHandler
}

// InitDependencies initializes all application dependencies. offlineLedger
// selects the CSV-backed ledger instead of Postgres.
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger, offlineLedger string) (*Dependencies, error) {
	deps := &Dependencies{
		Config:        cfg,
		Logger:        logger,
		Registry:      prometheus.NewRegistry(),
		offlineLedger: offlineLedger,
	}

	deps.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Initialize database
	if offlineLedger == "" {
		if err := deps.initDatabase(ctx); err != nil {
			return nil, fmt.Errorf("failed to init database: %w", err)
		}
	}

	// Initialize repositories
	if err := deps.initRepositories(); err != nil {
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}

	// Initialize services
	if err := deps.initServices(); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	// Initialize handlers
	if err := deps.initHandlers(); err != nil {
		return nil, fmt.Errorf("failed to init handlers: %w", err)
	}

	logger.Info("all dependencies initialized successfully",
		slog.Bool("offline", offlineLedger != ""))

	return deps, nil
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase(ctx context.Context) error {
	dbCfg := d.Config.Database
	database, err := db.New(ctx, db.Config{
		DSN:             dbCfg.DSN(),
		MaxConns:        int32(dbCfg.MaxConns),
		MinConns:        1,
		MaxConnLifetime: dbCfg.MaxConnLifetime,
		MaxConnIdleTime: dbCfg.MaxConnIdleTime,
		DialTimeout:     dbCfg.DialTimeout,
	}, d.Logger)
	if err != nil {
		return err
	}

	d.DB = database

	// Run migrations
	if err := d.DB.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// initRepositories initializes all repository layer dependencies
func (d *Dependencies) initRepositories() error {
	if d.offlineLedger != "" {
		d.TransactionRepo = newCSVLedger(d.offlineLedger)
		d.CategoryRepo = defaultCategories{}
		d.PeriodRepo = newMemoryPeriods()
		d.Logger.Info("offline repositories initialized", slog.String("ledger", d.offlineLedger))
		return nil
	}

	d.TransactionRepo = repository.NewPostgresTransactionRepository(d.DB.Pool, d.Logger)
	d.CategoryRepo = repository.NewPostgresCategoryRepository(d.DB.Pool)
	d.PeriodRepo = planrepo.NewPostgresBudgetPeriodRepository(d.DB.Pool)
	d.OverrideStore = normalizer.NewOverrideStore(d.DB.Pool, d.Logger)

	d.Logger.Info("repositories initialized")
	return nil
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices() error {
	d.PeriodService = planservice.NewBudgetPeriodService(d.PeriodRepo, d.Logger)

	catService, err := categorization.NewService(d.OverrideStore, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to init categorization: %w", err)
	}
	d.CategorizationService = catService.WithFuzzyThreshold(d.Config.Ingest.FuzzyThreshold)

	ext := extractor.New(d.Logger).WithPreflight(extractor.NewPDFCPUPreflight())
	engine := dedup.New(dedup.Config{MinTransferContributors: d.Config.Ingest.MinTransferContributors})

	d.Coordinator = importservice.NewCoordinator(
		ext,
		parser.DefaultRegistry(),
		engine,
		d.CategorizationService,
		d.PeriodService,
		d.Logger,
	).
		WithWorkers(d.Config.Ingest.Workers).
		WithFileTimeout(d.Config.Ingest.ExtractTimeout).
		WithThresholds(d.CategorizationService.Thresholds()).
		WithMetrics(importservice.NewMetrics(d.Registry))

	// File storage for raw statements (nil when archiving is off)
	fileStorage, err := storage.New(storage.Config{
		Enabled:   d.Config.Storage.ArchiveEnabled,
		LocalPath: d.Config.Storage.LocalPath,
	})
	if err != nil {
		return fmt.Errorf("failed to init file storage: %w", err)
	}
	d.FileStorage = fileStorage

	d.ImportService = importservice.NewImportService(
		d.Coordinator,
		d.TransactionRepo,
		d.CategoryRepo,
		d.PeriodService,
		d.Logger,
	).WithCategorizer(d.CategorizationService)
	if d.FileStorage != nil {
		d.ImportService.WithArchive(d.FileStorage)
	}

	d.Scheduler = cron.NewScheduler(
		d.ImportService,
		d.Config.Ingest.InboxDir,
		d.Config.Ingest.Schedule,
		0,
		d.Logger,
	)

	d.Logger.Info("services initialized")
	return nil
}

// initHandlers initializes all handler dependencies
func (d *Dependencies) initHandlers() error {
	d.ImportHandler = importhandler.NewImportHandler(d.ImportService, d.Logger).
		WithLearner(d.CategorizationService).
		WithMaxUpload(d.Config.Server.MaxUploadBytes)
	d.BudgetPeriodHandler = planhandler.NewBudgetPeriodHandler(d.PeriodService, d.Logger)

	d.Logger.Info("handlers initialized")
	return nil
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}
