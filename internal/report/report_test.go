package report

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/recon/internal/model"
)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func fixture() (model.Project, []model.Transaction) {
	p := model.Project{ID: "p1", Name: "December Audit"}
	txns := []model.Transaction{
		{ID: "b1", Source: model.SourceBank, Date: date(2025, 1, 3), Description: "GITHUB", Amount: dec("-4.00"), Reconciled: true, Method: model.MethodAuto},
		{ID: "l1", Source: model.SourceLedger, Date: date(2025, 1, 3), Description: "GitHub Pro", Reference: "INV-1", Amount: dec("-4"), Reconciled: true, Method: model.MethodAuto},
		{ID: "b2", Source: model.SourceBank, Date: date(2025, 1, 9), Description: "RENT", Amount: dec("-1500.00"), Method: model.MethodNone},
		{ID: "l2", Source: model.SourceLedger, Date: date(2025, 1, 15), Description: "Acme, invoice", Amount: dec("3500.00"), Reconciled: true, Method: model.MethodManual},
		{ID: "b3", Source: model.SourceBank, Date: date(2025, 1, 15), Description: "ACME", Amount: dec("3500.00"), Reconciled: true, Method: model.MethodManual},
		{ID: "l3", Source: model.SourceLedger, Date: date(2025, 1, 31), Description: "Interest", Amount: dec("12.34"), Method: model.MethodNone},
	}
	return p, txns
}

func ids(txns []model.Transaction) []string {
	out := make([]string, len(txns))
	for i, t := range txns {
		out[i] = t.ID
	}
	return out
}

func TestBuild(t *testing.T) {
	p, txns := fixture()
	r := Build(p, txns)

	assert.Equal(t, []string{"b2"}, ids(r.BankBreaks))
	assert.Equal(t, []string{"l3"}, ids(r.LedgerBreaks))
	// Newest first; equal dates keep input order.
	assert.Equal(t, []string{"l2", "b3", "b1", "l1"}, ids(r.Reconciled))
	assert.False(t, r.Balanced())

	bank, ledger, reconciled := r.Totals()
	assert.Equal(t, "-1500.00", bank.StringFixed(2))
	assert.Equal(t, "12.34", ledger.StringFixed(2))
	assert.Equal(t, "6992.00", reconciled.StringFixed(2))
}

func TestBuild_Empty(t *testing.T) {
	r := Build(model.Project{Name: "x"}, nil)
	assert.True(t, r.Balanced())
	assert.Empty(t, r.Reconciled)
}

func TestWriteText(t *testing.T) {
	p, txns := fixture()
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, Build(p, txns)))

	out := buf.String()
	assert.Contains(t, out, "Project: December Audit")
	assert.Contains(t, out, "Bank breaks (1, total -1500.00)")
	assert.Contains(t, out, "Ledger breaks (1, total 12.34)")
	assert.Contains(t, out, "Reconciled (4, total 6992.00)")
	assert.Contains(t, out, "Manually Reconciled")
}

func TestWriteText_NoRows(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, Build(model.Project{Name: "Empty"}, nil)))
	assert.Equal(t, 3, strings.Count(buf.String(), "none"))
}

func TestSummarize(t *testing.T) {
	_, txns := fixture()
	rows := Summarize(txns)

	require.Len(t, rows, 6)
	assert.Equal(t, "Bank Statement", rows[0].Source)
	assert.Equal(t, model.StatusAuto, rows[0].Status)
	assert.Equal(t, 1, rows[0].Count)
	assert.Equal(t, "-4.00", rows[0].Amount.StringFixed(2))
	assert.Equal(t, model.StatusManual, rows[1].Status)
	assert.Equal(t, model.StatusUnmatched, rows[2].Status)
	assert.Equal(t, "Internal Ledger", rows[3].Source)
	assert.Equal(t, model.StatusAuto, rows[3].Status)
	assert.Equal(t, model.StatusManual, rows[4].Status)
	assert.Equal(t, "3500.00", rows[4].Amount.StringFixed(2))
	assert.Equal(t, model.StatusUnmatched, rows[5].Status)
	assert.Equal(t, "12.34", rows[5].Amount.StringFixed(2))
}

func TestSummarize_SumsExactly(t *testing.T) {
	txns := []model.Transaction{
		{Source: model.SourceBank, Amount: dec("0.10"), Method: model.MethodNone},
		{Source: model.SourceBank, Amount: dec("0.20"), Method: model.MethodNone},
	}
	rows := Summarize(txns)
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].Count)
	assert.True(t, rows[0].Amount.Equal(dec("0.3")))
}

func TestWriteTransactions(t *testing.T) {
	_, txns := fixture()
	var buf bytes.Buffer
	require.NoError(t, WriteTransactions(&buf, []model.Transaction{txns[5], txns[0], txns[3]}))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, strings.Split(TransactionsHeader, ","), records[0])
	assert.Equal(t, []string{"2025-01-03", "Bank Statement", "GITHUB", "", "-4.00", "Auto Reconciled", "b1"}, records[1])
	assert.Equal(t, []string{"2025-01-15", "Internal Ledger", "Acme, invoice", "", "3500.00", "Manually Reconciled", "l2"}, records[2])
	assert.Equal(t, "Unreconciled", records[3][colStatus])
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	rows := []SummaryRow{{Source: "Bank Statement", Status: "Unreconciled", Count: 2, Amount: dec("10.5")}}
	require.NoError(t, WriteSummary(&buf, rows))
	assert.Equal(t, "source,status,count,amount\nBank Statement,Unreconciled,2,10.50\n", buf.String())
}

func TestExport(t *testing.T) {
	dir := t.TempDir()
	p, txns := fixture()

	paths, err := Export(dir, p, txns)
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, filepath.Join(dir, "exports", "december_audit_transactions.csv"), paths[0])
	assert.Equal(t, filepath.Join(dir, "exports", "december_audit_summary.csv"), paths[1])

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, len(txns)+1)

	data, err = os.ReadFile(paths[1])
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), SummaryHeader+"\n"))
}

func TestExport_NoTransactions(t *testing.T) {
	dir := t.TempDir()
	paths, err := Export(dir, model.Project{Name: "Empty"}, nil)
	require.NoError(t, err)

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, TransactionsHeader+"\n", string(data))
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "q4_close_2025", slug(" Q4 Close 2025 "))
	assert.Equal(t, "a_b", slug("a/b"))
	assert.Equal(t, "project", slug("***"))
}
