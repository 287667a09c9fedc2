package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/statement-ingest/internal/domain/categorization"
	"github.com/FACorreiaa/statement-ingest/internal/domain/export"
	"github.com/FACorreiaa/statement-ingest/internal/domain/ledger"
)

// csvLedger keeps the ledger in a single CSV file so statements can be
// ingested without a database.
type csvLedger struct {
	path string
	mu   sync.Mutex
}

func newCSVLedger(path string) *csvLedger {
	return &csvLedger{path: path}
}

func (l *csvLedger) List(_ context.Context) ([]ledger.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read()
}

func (l *csvLedger) read() ([]ledger.Transaction, error) {
	f, err := os.Open(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	defer f.Close()

	txs, err := export.ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger %s: %w", l.path, err)
	}
	sort.SliceStable(txs, func(i, j int) bool { return txs[i].Date < txs[j].Date })
	return txs, nil
}

// Insert appends txs whose hash is not in the file yet and rewrites it.
func (l *csvLedger) Insert(_ context.Context, txs []ledger.Transaction) (int, error) {
	if len(txs) == 0 {
		return 0, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	existing, err := l.read()
	if err != nil {
		return 0, err
	}
	seen := make(map[string]bool, len(existing))
	for _, tx := range existing {
		seen[tx.TransactionHash] = true
	}

	inserted := 0
	for _, tx := range txs {
		if seen[tx.TransactionHash] {
			continue
		}
		seen[tx.TransactionHash] = true
		existing = append(existing, tx)
		inserted++
	}
	if inserted == 0 {
		return 0, nil
	}
	if err := l.write(existing); err != nil {
		return 0, err
	}
	return inserted, nil
}

func (l *csvLedger) write(txs []ledger.Transaction) error {
	if dir := filepath.Dir(l.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(l.path), ".ledger-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create ledger: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := export.WriteCSV(tmp, txs); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	return os.Rename(tmp.Name(), l.path)
}

func (l *csvLedger) HashExists(ctx context.Context, hash string) (bool, error) {
	txs, err := l.List(ctx)
	if err != nil {
		return false, err
	}
	for _, tx := range txs {
		if tx.TransactionHash == hash {
			return true, nil
		}
	}
	return false, nil
}

// defaultCategories serves one category per built-in rule group plus income.
type defaultCategories struct{}

func (defaultCategories) List(_ context.Context) ([]ledger.Category, error) {
	groups := categorization.DefaultPatternGroups()
	categories := make([]ledger.Category, 0, len(groups)+1)
	for _, g := range groups {
		categories = append(categories, ledger.Category{ID: categorySlug(g.CategoryName), Name: g.CategoryName})
	}
	return append(categories, ledger.Category{ID: "income", Name: "income"}), nil
}

func categorySlug(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
}

// memoryPeriods keeps budget periods for the lifetime of the process.
type memoryPeriods struct {
	mu      sync.Mutex
	periods map[string]ledger.BudgetPeriod
	now     func() time.Time
}

func newMemoryPeriods() *memoryPeriods {
	return &memoryPeriods{periods: map[string]ledger.BudgetPeriod{}, now: time.Now}
}

func (m *memoryPeriods) GetOrCreatePeriod(_ context.Context, month string, allocations map[string]decimal.Decimal) (*ledger.BudgetPeriod, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, ok := m.periods[month]; ok {
		return &p, false, nil
	}
	if allocations == nil {
		allocations = map[string]decimal.Decimal{}
	}
	now := m.now().UTC()
	p := ledger.BudgetPeriod{
		ID:          "budget-" + month,
		Month:       month,
		Allocations: allocations,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.periods[month] = p
	return &p, true, nil
}

func (m *memoryPeriods) ListPeriods(_ context.Context) ([]ledger.BudgetPeriod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	periods := make([]ledger.BudgetPeriod, 0, len(m.periods))
	for _, p := range m.periods {
		periods = append(periods, p)
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].Month < periods[j].Month })
	return periods, nil
}
