// Package report builds the reconciliation views of a project: open breaks
// on each side, reconciled rows, and the CSV exports.
package report

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/recon/internal/model"
)

const dateFormat = "2006-01-02"

// Report is the state of one project at a point in time.
type Report struct {
	Project      model.Project
	BankBreaks   []model.Transaction
	LedgerBreaks []model.Transaction
	Reconciled   []model.Transaction // newest first
}

// Build splits txns into breaks and reconciled rows. Breaks keep the order
// of txns.
func Build(p model.Project, txns []model.Transaction) Report {
	r := Report{Project: p}
	for _, t := range txns {
		switch {
		case t.Reconciled:
			r.Reconciled = append(r.Reconciled, t)
		case t.Source == model.SourceBank:
			r.BankBreaks = append(r.BankBreaks, t)
		case t.Source == model.SourceLedger:
			r.LedgerBreaks = append(r.LedgerBreaks, t)
		}
	}
	slices.SortStableFunc(r.Reconciled, func(a, b model.Transaction) int {
		return b.Date.Compare(a.Date)
	})
	return r
}

// Totals returns the summed amount of each section.
func (r Report) Totals() (bank, ledger, reconciled decimal.Decimal) {
	return model.SumAmounts(r.BankBreaks), model.SumAmounts(r.LedgerBreaks), model.SumAmounts(r.Reconciled)
}

// Balanced reports whether nothing is left open.
func (r Report) Balanced() bool {
	return len(r.BankBreaks) == 0 && len(r.LedgerBreaks) == 0
}

// WriteText renders the report as aligned plain-text tables.
func WriteText(w io.Writer, r Report) error {
	bank, ledger, reconciled := r.Totals()

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Project: %s\n", r.Project.Name)

	sections := []struct {
		title string
		rows  []model.Transaction
		total decimal.Decimal
	}{
		{"Bank breaks", r.BankBreaks, bank},
		{"Ledger breaks", r.LedgerBreaks, ledger},
		{"Reconciled", r.Reconciled, reconciled},
	}
	for _, s := range sections {
		fmt.Fprintf(tw, "\n%s (%d, total %s)\n", s.title, len(s.rows), s.total.StringFixed(2))
		if len(s.rows) == 0 {
			fmt.Fprintln(tw, "  none")
			continue
		}
		fmt.Fprintln(tw, "  ID\tDate\tSource\tDescription\tReference\tAmount\tStatus")
		for _, t := range s.rows {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				t.ID, t.Date.Format(dateFormat), t.Source, t.Description, t.Reference,
				t.Amount.StringFixed(2), t.Status())
		}
	}
	return tw.Flush()
}

// SummaryRow is one Source x Status cell of the summary pivot.
type SummaryRow struct {
	Source string
	Status string
	Count  int
	Amount decimal.Decimal
}

// Summarize groups txns by source label and status, ordered by both keys.
// Only groups that have rows appear.
func Summarize(txns []model.Transaction) []SummaryRow {
	type key struct{ source, status string }
	groups := make(map[key]*SummaryRow)
	for _, t := range txns {
		k := key{t.Source.Label(), t.Status()}
		g, ok := groups[k]
		if !ok {
			g = &SummaryRow{Source: k.source, Status: k.status}
			groups[k] = g
		}
		g.Count++
		g.Amount = g.Amount.Add(t.Amount)
	}

	rows := make([]SummaryRow, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, *g)
	}
	slices.SortFunc(rows, func(a, b SummaryRow) int {
		return cmp.Or(cmp.Compare(a.Source, b.Source), cmp.Compare(a.Status, b.Status))
	})
	return rows
}
