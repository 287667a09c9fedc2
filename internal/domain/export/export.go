// Package export writes ingestion output as CSV for ledger interchange and
// as an XLSX workbook for manual review.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/statement-ingest/internal/domain/import/service"
	"github.com/FACorreiaa/statement-ingest/internal/domain/ledger"
	"github.com/FACorreiaa/statement-ingest/pkg/money"
)

// DisplayCurrency is used for the formatted amount column of the workbook.
const DisplayCurrency = "CAD"

// TransactionRow is the CSV shape of a ledger record.
type TransactionRow struct {
	ID              string `csv:"id"`
	Date            string `csv:"date"`
	Merchant        string `csv:"merchant"`
	Description     string `csv:"description"`
	Amount          string `csv:"amount"`
	AccountType     string `csv:"account_type"`
	CategoryID      string `csv:"category_id"`
	BudgetID        string `csv:"budget_id"`
	TransactionHash string `csv:"transaction_hash"`
}

func toRow(tx ledger.Transaction) TransactionRow {
	return TransactionRow{
		ID:              tx.ID,
		Date:            tx.Date,
		Merchant:        tx.Merchant,
		Description:     tx.Description,
		Amount:          tx.Amount.StringFixed(2),
		AccountType:     tx.AccountType,
		CategoryID:      tx.CategoryID,
		BudgetID:        tx.BudgetID,
		TransactionHash: tx.TransactionHash,
	}
}

// WriteCSV writes records with a header row.
func WriteCSV(w io.Writer, records []ledger.Transaction) error {
	rows := make([]*TransactionRow, 0, len(records))
	for _, tx := range records {
		row := toRow(tx)
		rows = append(rows, &row)
	}
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}

// ReadCSV reads records written by WriteCSV. A missing hash is recomputed so
// hand-edited ledgers still take part in the idempotency check.
func ReadCSV(r io.Reader) ([]ledger.Transaction, error) {
	var rows []*TransactionRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}

	txs := make([]ledger.Transaction, 0, len(rows))
	for i, row := range rows {
		amount, err := decimal.NewFromString(strings.TrimSpace(row.Amount))
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid amount %q: %w", i+2, row.Amount, err)
		}
		if _, err := ledger.ParseDate(row.Date); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, ledger.InvalidDateError{Raw: row.Date, Err: err})
		}
		tx := ledger.Transaction{
			ID:              row.ID,
			Date:            row.Date,
			Merchant:        row.Merchant,
			Description:     row.Description,
			Amount:          amount,
			AccountType:     row.AccountType,
			CategoryID:      row.CategoryID,
			BudgetID:        row.BudgetID,
			TransactionHash: row.TransactionHash,
		}
		if tx.TransactionHash == "" {
			tx.TransactionHash = ledger.TransactionHash(tx.Date, tx.Merchant, tx.Amount, tx.Description)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

const (
	SheetAccepted = "Accepted"
	SheetReview   = "Review"
	SheetFiles    = "Files"
)

// WriteReviewWorkbook writes accepted records, every review verdict and the
// per-file summaries to separate sheets.
func WriteReviewWorkbook(w io.Writer, result *service.Result) error {
	if result == nil {
		result = &service.Result{}
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetAccepted); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}
	for _, sheet := range []string{SheetReview, SheetFiles} {
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("xlsx sheet: %w", err)
		}
	}

	if err := writeAccepted(f, result.Accepted); err != nil {
		return err
	}
	if err := writeReviews(f, result.Reviews); err != nil {
		return err
	}
	if err := writeFiles(f, result.Files); err != nil {
		return err
	}

	idx, _ := f.GetSheetIndex(SheetReview)
	f.SetActiveSheet(idx)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

func writeAccepted(f *excelize.File, txs []ledger.Transaction) error {
	header := []any{"Date", "Merchant", "Description", "Amount", "Display", "Account", "Category ID", "Budget ID", "Hash"}
	if err := f.SetSheetRow(SheetAccepted, "A1", &header); err != nil {
		return fmt.Errorf("xlsx header: %w", err)
	}
	for i, tx := range txs {
		row := []any{
			tx.Date,
			tx.Merchant,
			tx.Description,
			tx.Amount.InexactFloat64(),
			money.Display(tx.Amount, DisplayCurrency),
			tx.AccountType,
			tx.CategoryID,
			tx.BudgetID,
			tx.TransactionHash,
		}
		if err := setRow(f, SheetAccepted, i+2, row); err != nil {
			return err
		}
	}
	_ = f.SetColWidth(SheetAccepted, "A", "A", 12)
	_ = f.SetColWidth(SheetAccepted, "B", "C", 32)
	_ = f.SetColWidth(SheetAccepted, "D", "E", 14)
	return nil
}

func writeReviews(f *excelize.File, reviews []service.Review) error {
	header := []any{
		"File", "Date", "Merchant", "Amount",
		"Duplicate", "Duplicate Of", "Duplicate Confidence", "Duplicate Reason",
		"Category ID", "Category Confidence", "Category Reasoning", "Action", "Transaction ID",
	}
	if err := f.SetSheetRow(SheetReview, "A1", &header); err != nil {
		return fmt.Errorf("xlsx header: %w", err)
	}
	for i, r := range reviews {
		row := []any{
			r.File,
			r.Candidate.Date,
			r.Candidate.Merchant,
			r.Candidate.Amount.InexactFloat64(),
			r.Duplicate.IsLikelyDuplicate,
			r.Duplicate.DuplicateOf,
			r.Duplicate.Confidence,
			r.Duplicate.Reason,
			r.Categorization.CategoryID,
			r.Categorization.Confidence,
			r.Categorization.Reasoning,
			string(r.Action),
			r.TransactionID,
		}
		if err := setRow(f, SheetReview, i+2, row); err != nil {
			return err
		}
	}
	_ = f.SetColWidth(SheetReview, "A", "A", 20)
	_ = f.SetColWidth(SheetReview, "C", "C", 32)
	_ = f.SetColWidth(SheetReview, "H", "H", 48)
	_ = f.SetColWidth(SheetReview, "K", "K", 40)
	return nil
}

func writeFiles(f *excelize.File, files []service.FileSummary) error {
	header := []any{"File", "Account", "Last Four", "Statement Period", "Parsed", "Duplicates", "New", "Errors"}
	if err := f.SetSheetRow(SheetFiles, "A1", &header); err != nil {
		return fmt.Errorf("xlsx header: %w", err)
	}
	for i, s := range files {
		row := []any{
			s.FileName,
			s.AccountInfo.AccountType,
			s.AccountInfo.LastFour,
			s.AccountInfo.StatementPeriod,
			s.TotalParsed,
			s.DuplicatesFound,
			s.NewTransactions,
			strings.Join(s.Errors, "\n"),
		}
		if err := setRow(f, SheetFiles, i+2, row); err != nil {
			return err
		}
	}
	_ = f.SetColWidth(SheetFiles, "A", "A", 24)
	_ = f.SetColWidth(SheetFiles, "H", "H", 80)
	return nil
}

func setRow(f *excelize.File, sheet string, rowNum int, row []any) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &row); err != nil {
		return fmt.Errorf("xlsx row %d: %w", rowNum, err)
	}
	return nil
}
