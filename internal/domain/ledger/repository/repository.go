// Package repository provides database operations for ledger transactions
// and the user's categories.
package repository

import (
	"context"

	"github.com/FACorreiaa/statement-ingest/internal/domain/ledger"
)

// TransactionRepository reads and appends ledger transactions.
type TransactionRepository interface {
	// List returns the whole ledger, oldest first.
	List(ctx context.Context) ([]ledger.Transaction, error)

	// Insert appends transactions. Rows whose hash is already stored are
	// skipped; the number actually written is returned.
	Insert(ctx context.Context, txs []ledger.Transaction) (int, error)

	// HashExists reports whether a transaction with the hash is stored.
	HashExists(ctx context.Context, hash string) (bool, error)
}

// CategoryRepository reads the user's categories.
type CategoryRepository interface {
	List(ctx context.Context) ([]ledger.Category, error)
}
