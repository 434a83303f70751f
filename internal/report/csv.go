package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/cleared-dev/recon/internal/model"
)

// TransactionsHeader is the CSV header for <project>_transactions.csv.
const TransactionsHeader = "date,source,description,reference,amount,status,id"

// SummaryHeader is the CSV header for <project>_summary.csv.
const SummaryHeader = "source,status,count,amount"

const (
	txnNumFields = 7
	colDate      = 0
	colSource    = 1
	colDesc      = 2
	colRef       = 3
	colAmount    = 4
	colStatus    = 5
	colID        = 6

	sumNumFields = 4
	colSumSource = 0
	colSumStatus = 1
	colSumCount  = 2
	colSumAmount = 3
)

// exportDir is the workspace subdirectory exports are written to.
const exportDir = "exports"

// MarshalTransaction converts a Transaction to an export row.
func MarshalTransaction(t model.Transaction) []string {
	row := make([]string, txnNumFields)
	row[colDate] = t.Date.Format(dateFormat)
	row[colSource] = t.Source.Label()
	row[colDesc] = t.Description
	row[colRef] = t.Reference
	row[colAmount] = t.Amount.StringFixed(2)
	row[colStatus] = t.Status()
	row[colID] = t.ID
	return row
}

// MarshalSummary converts a SummaryRow to an export row.
func MarshalSummary(s SummaryRow) []string {
	row := make([]string, sumNumFields)
	row[colSumSource] = s.Source
	row[colSumStatus] = s.Status
	row[colSumCount] = strconv.Itoa(s.Count)
	row[colSumAmount] = s.Amount.StringFixed(2)
	return row
}

// WriteTransactions writes every transaction in date order, header first.
func WriteTransactions(w io.Writer, txns []model.Transaction) error {
	sorted := slices.Clone(txns)
	slices.SortStableFunc(sorted, func(a, b model.Transaction) int {
		return a.Date.Compare(b.Date)
	})

	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(TransactionsHeader, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, t := range sorted {
		if err := cw.Write(MarshalTransaction(t)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSummary writes the Source x Status pivot, header first.
func WriteSummary(w io.Writer, rows []SummaryRow) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(SummaryHeader, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, r := range rows {
		if err := cw.Write(MarshalSummary(r)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportPaths returns where Export writes files for project name.
func ExportPaths(root, name string) (transactions, summary string) {
	base := filepath.Join(root, exportDir, slug(name))
	return base + "_transactions.csv", base + "_summary.csv"
}

// Export writes the transactions and summary CSVs under <root>/exports/ and
// returns their paths.
func Export(root string, p model.Project, txns []model.Transaction) ([]string, error) {
	if err := os.MkdirAll(filepath.Join(root, exportDir), 0o755); err != nil {
		return nil, fmt.Errorf("creating exports dir: %w", err)
	}

	txnPath, sumPath := ExportPaths(root, p.Name)
	if err := writeFile(txnPath, func(w io.Writer) error { return WriteTransactions(w, txns) }); err != nil {
		return nil, err
	}
	if err := writeFile(sumPath, func(w io.Writer) error { return WriteSummary(w, Summarize(txns)) }); err != nil {
		return nil, err
	}
	return []string{txnPath, sumPath}, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Base(path), err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", filepath.Base(path), err)
	}
	return nil
}

// slug makes a project name safe for a file name.
func slug(name string) string {
	s := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '_'
		}
	}, strings.TrimSpace(name))
	s = strings.Trim(s, "_")
	if s == "" {
		return "project"
	}
	return s
}
