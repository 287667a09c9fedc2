package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/statement-ingest/internal/domain/ledger"
	"github.com/FACorreiaa/statement-ingest/pkg/db"
)

// PostgresTransactionRepository implements TransactionRepository using PostgreSQL
type PostgresTransactionRepository struct {
	db     db.DBTX
	logger *slog.Logger
}

// NewPostgresTransactionRepository creates a new PostgreSQL transaction repository
func NewPostgresTransactionRepository(conn db.DBTX, logger *slog.Logger) *PostgresTransactionRepository {
	return &PostgresTransactionRepository{db: conn, logger: logger}
}

const transactionColumns = `id::text, to_char(date, 'YYYY-MM-DD'), merchant, description,
			original_description, amount, account_type, confidence, budget_id::text,
			category_id::text, transaction_hash, created_at, updated_at`

// List returns every stored transaction
func (r *PostgresTransactionRepository) List(ctx context.Context) ([]ledger.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		ORDER BY date, created_at`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txs []ledger.Transaction
	for rows.Next() {
		var (
			tx         ledger.Transaction
			categoryID *string
		)
		err := rows.Scan(
			&tx.ID,
			&tx.Date,
			&tx.Merchant,
			&tx.Description,
			&tx.OriginalDescription,
			&tx.Amount,
			&tx.AccountType,
			&tx.Confidence,
			&tx.BudgetID,
			&categoryID,
			&tx.TransactionHash,
			&tx.CreatedAt,
			&tx.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		if categoryID != nil {
			tx.CategoryID = *categoryID
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// Insert writes the transactions in one batch
func (r *PostgresTransactionRepository) Insert(ctx context.Context, txs []ledger.Transaction) (int, error) {
	if len(txs) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO transactions (
			id, date, merchant, description, original_description, amount, account_type,
			confidence, budget_id, category_id, transaction_hash, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (transaction_hash) DO NOTHING`

	batch := &pgx.Batch{}
	for _, tx := range txs {
		date, err := ledger.ParseDate(tx.Date)
		if err != nil {
			return 0, fmt.Errorf("transaction %s: %w", tx.ID, err)
		}
		batch.Queue(query,
			tx.ID,
			date,
			tx.Merchant,
			tx.Description,
			tx.OriginalDescription,
			tx.Amount,
			tx.AccountType,
			tx.Confidence,
			tx.BudgetID,
			nullString(tx.CategoryID),
			tx.TransactionHash,
			tx.CreatedAt,
			tx.UpdatedAt,
		)
	}

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()

	inserted := 0
	for range txs {
		tag, err := br.Exec()
		if err != nil {
			return inserted, fmt.Errorf("failed to insert transaction: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}

	if skipped := len(txs) - inserted; skipped > 0 {
		r.logger.Warn("transactions already stored were skipped", slog.Int("skipped", skipped))
	}
	return inserted, nil
}

// HashExists checks the unique hash index
func (r *PostgresTransactionRepository) HashExists(ctx context.Context, hash string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM transactions WHERE transaction_hash = $1)`, hash,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check transaction hash: %w", err)
	}
	return exists, nil
}

// PostgresCategoryRepository implements CategoryRepository using PostgreSQL
type PostgresCategoryRepository struct {
	db db.DBTX
}

// NewPostgresCategoryRepository creates a new PostgreSQL category repository
func NewPostgresCategoryRepository(conn db.DBTX) *PostgresCategoryRepository {
	return &PostgresCategoryRepository{db: conn}
}

// List returns the user's categories by name
func (r *PostgresCategoryRepository) List(ctx context.Context) ([]ledger.Category, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id::text, name, monthly_budget, color
		FROM categories
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []ledger.Category
	for rows.Next() {
		var (
			c      ledger.Category
			budget decimal.NullDecimal
		)
		if err := rows.Scan(&c.ID, &c.Name, &budget, &c.Color); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		if budget.Valid {
			amount := budget.Decimal
			c.MonthlyBudget = &amount
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
