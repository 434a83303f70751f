// Package storetest holds behavior tests every store.Store implementation
// must pass.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/recon/internal/model"
	"github.com/cleared-dev/recon/internal/store"
)

// Factory returns a fresh, empty store.
type Factory func(t *testing.T) store.Store

// Run executes the suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"Projects", testProjects},
		{"AddStatementAndList", testAddStatementAndList},
		{"QueryUnreconciledOrderAndFilter", testQueryUnreconciled},
		{"MarkReconciledCommits", testMarkReconciledCommits},
		{"RollbackOnError", testRollbackOnError},
		{"SameProjectPassesSerialize", testSameProjectPassesSerialize},
		{"LookupMissing", testLookupMissing},
		{"MarkInvalidMethod", testMarkInvalidMethod},
		{"UnknownProject", testUnknownProject},
		{"ResetAndDelete", testResetAndDelete},
		{"DecimalExactness", testDecimalExactness},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { s.Close() })
			tt.fn(t, s)
		})
	}
}

// Dec parses a decimal literal for tests.
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Day returns midnight UTC of a date in January 2025.
func Day(d int) time.Time {
	return time.Date(2025, 1, d, 0, 0, 0, 0, time.UTC)
}

// Rows builds one row per amount, dated in order.
func Rows(amounts ...string) []store.Row {
	rows := make([]store.Row, len(amounts))
	for i, a := range amounts {
		rows[i] = store.Row{Date: Day(i + 1), Description: "row " + a, Amount: Dec(a)}
	}
	return rows
}

func testProjects(t *testing.T, s store.Store) {
	ctx := context.Background()

	first, err := s.CreateProject(ctx, "December audit", "alice")
	require.NoError(t, err)
	second, err := s.CreateProject(ctx, "January audit", "alice")
	require.NoError(t, err)
	_, err = s.CreateProject(ctx, "Other", "bob")
	require.NoError(t, err)

	got, err := s.GetProject(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "December audit", got.Name)
	assert.Equal(t, "alice", got.Owner)
	assert.False(t, got.CreatedAt.IsZero())

	list, err := s.ListProjects(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID, "newest first")
	assert.Equal(t, first.ID, list[1].ID)

	all, err := s.ListProjects(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = s.CreateProject(ctx, "", "alice")
	assert.Error(t, err)
}

func testAddStatementAndList(t *testing.T, s store.Store) {
	ctx := context.Background()
	p, err := s.CreateProject(ctx, "p", "alice")
	require.NoError(t, err)

	rows := []store.Row{
		{Date: Day(5), Description: "Late", Reference: "R2", Amount: Dec("20.00")},
		{Date: Day(1), Description: "Early", Reference: "R1", Amount: Dec("-10.50")},
	}
	f, err := s.AddStatement(ctx, p.ID, model.SourceBank, "bank.csv", rows)
	require.NoError(t, err)
	assert.Equal(t, "bank.csv", f.Name)
	assert.Equal(t, model.SourceBank, f.Source)
	assert.NotEmpty(t, f.ID)

	_, err = s.AddStatement(ctx, p.ID, model.SourceLedger, "ledger.csv", Rows("7.00"))
	require.NoError(t, err)

	txns, err := s.ListTransactions(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, txns, 3)

	// Date order, insertion order among equal dates.
	assert.Equal(t, "Early", txns[0].Description)
	assert.Equal(t, model.SourceBank, txns[0].Source)
	assert.Equal(t, "R1", txns[0].Reference)
	assert.True(t, txns[0].Amount.Equal(Dec("-10.50")))
	assert.Equal(t, f.ID, txns[0].FileID)
	assert.Equal(t, p.ID, txns[0].ProjectID)
	assert.True(t, txns[0].Date.Equal(Day(1)))

	assert.Equal(t, model.SourceLedger, txns[1].Source)
	assert.Equal(t, "Late", txns[2].Description)

	for _, txn := range txns {
		assert.False(t, txn.Reconciled)
		assert.Equal(t, model.MethodNone, txn.Method)
		assert.NoError(t, txn.Validate())
	}

	_, err = s.AddStatement(ctx, p.ID, model.SourceKind("cash"), "x.csv", nil)
	assert.Error(t, err)
}

func testQueryUnreconciled(t *testing.T, s store.Store) {
	ctx := context.Background()
	p, err := s.CreateProject(ctx, "p", "alice")
	require.NoError(t, err)
	other, err := s.CreateProject(ctx, "other", "alice")
	require.NoError(t, err)

	_, err = s.AddStatement(ctx, p.ID, model.SourceBank, "b.csv", Rows("3.00", "1.00", "2.00"))
	require.NoError(t, err)
	_, err = s.AddStatement(ctx, p.ID, model.SourceLedger, "l.csv", Rows("9.00"))
	require.NoError(t, err)
	_, err = s.AddStatement(ctx, other.ID, model.SourceBank, "b.csv", Rows("4.00"))
	require.NoError(t, err)

	err = s.WithinProject(ctx, p.ID, func(tx store.Tx) error {
		bank, err := tx.QueryUnreconciled(ctx, p.ID, model.SourceBank)
		require.NoError(t, err)
		require.Len(t, bank, 3)
		assert.True(t, bank[0].Amount.Equal(Dec("3.00")), "insertion order")
		assert.True(t, bank[1].Amount.Equal(Dec("1.00")))
		assert.True(t, bank[2].Amount.Equal(Dec("2.00")))

		ledger, err := tx.QueryUnreconciled(ctx, p.ID, model.SourceLedger)
		require.NoError(t, err)
		assert.Len(t, ledger, 1)

		// Marked rows drop out of later snapshots within the same pass.
		require.NoError(t, tx.MarkReconciled(ctx, []string{bank[1].ID}, model.MethodAuto))
		again, err := tx.QueryUnreconciled(ctx, p.ID, model.SourceBank)
		require.NoError(t, err)
		assert.Len(t, again, 2)
		return nil
	})
	require.NoError(t, err)
}

func testMarkReconciledCommits(t *testing.T, s store.Store) {
	ctx := context.Background()
	p, err := s.CreateProject(ctx, "p", "alice")
	require.NoError(t, err)
	_, err = s.AddStatement(ctx, p.ID, model.SourceBank, "b.csv", Rows("1.00", "2.00"))
	require.NoError(t, err)

	txns, err := s.ListTransactions(ctx, p.ID)
	require.NoError(t, err)

	err = s.WithinProject(ctx, p.ID, func(tx store.Tx) error {
		return tx.MarkReconciled(ctx, []string{txns[0].ID}, model.MethodManual)
	})
	require.NoError(t, err)

	txns, err = s.ListTransactions(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, txns[0].Reconciled)
	assert.Equal(t, model.MethodManual, txns[0].Method)
	assert.False(t, txns[1].Reconciled)
	for _, txn := range txns {
		assert.NoError(t, txn.Validate())
	}

	// Re-marking overwrites the method.
	err = s.WithinProject(ctx, p.ID, func(tx store.Tx) error {
		return tx.MarkReconciled(ctx, []string{txns[0].ID}, model.MethodAuto)
	})
	require.NoError(t, err)
	txns, err = s.ListTransactions(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MethodAuto, txns[0].Method)

	// Empty id set is a no-op.
	err = s.WithinProject(ctx, p.ID, func(tx store.Tx) error {
		return tx.MarkReconciled(ctx, nil, model.MethodAuto)
	})
	assert.NoError(t, err)
}

func testRollbackOnError(t *testing.T, s store.Store) {
	ctx := context.Background()
	p, err := s.CreateProject(ctx, "p", "alice")
	require.NoError(t, err)
	_, err = s.AddStatement(ctx, p.ID, model.SourceBank, "b.csv", Rows("1.00"))
	require.NoError(t, err)
	txns, err := s.ListTransactions(ctx, p.ID)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.WithinProject(ctx, p.ID, func(tx store.Tx) error {
		require.NoError(t, tx.MarkReconciled(ctx, []string{txns[0].ID}, model.MethodAuto))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	txns, err = s.ListTransactions(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, txns[0].Reconciled, "failed pass must not leave marks behind")
	assert.Equal(t, model.MethodNone, txns[0].Method)
}

func testSameProjectPassesSerialize(t *testing.T, s store.Store) {
	ctx := context.Background()
	p, err := s.CreateProject(ctx, "p", "alice")
	require.NoError(t, err)
	_, err = s.AddStatement(ctx, p.ID, model.SourceBank, "b.csv", Rows("100.00"))
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	firstDone := make(chan error, 1)
	go func() {
		firstDone <- s.WithinProject(ctx, p.ID, func(tx store.Tx) error {
			open, err := tx.QueryUnreconciled(ctx, p.ID, model.SourceBank)
			if err != nil {
				return err
			}
			if len(open) != 1 {
				return fmt.Errorf("first pass saw %d open rows", len(open))
			}
			if err := tx.MarkReconciled(ctx, []string{open[0].ID}, model.MethodAuto); err != nil {
				return err
			}
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	var seen atomic.Int32
	seen.Store(-1)
	secondDone := make(chan error, 1)
	go func() {
		secondDone <- s.WithinProject(ctx, p.ID, func(tx store.Tx) error {
			open, err := tx.QueryUnreconciled(ctx, p.ID, model.SourceBank)
			seen.Store(int32(len(open)))
			return err
		})
	}()

	select {
	case err := <-secondDone:
		t.Fatalf("second pass finished while the first was open: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-firstDone)
	require.NoError(t, <-secondDone)
	assert.Equal(t, int32(0), seen.Load(), "second pass must see the first pass's marks")
}

func testLookupMissing(t *testing.T, s store.Store) {
	ctx := context.Background()
	p, err := s.CreateProject(ctx, "p", "alice")
	require.NoError(t, err)
	_, err = s.AddStatement(ctx, p.ID, model.SourceBank, "b.csv", Rows("1.00"))
	require.NoError(t, err)
	txns, err := s.ListTransactions(ctx, p.ID)
	require.NoError(t, err)

	err = s.WithinProject(ctx, p.ID, func(tx store.Tx) error {
		got, err := tx.Lookup(ctx, []string{txns[0].ID})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, txns[0].ID, got[0].ID)

		_, err = tx.Lookup(ctx, []string{txns[0].ID, "missing-1"})
		var nf *store.TransactionNotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, []string{"missing-1"}, nf.IDs)

		err = tx.MarkReconciled(ctx, []string{txns[0].ID, "missing-2"}, model.MethodManual)
		return err
	})
	assert.ErrorIs(t, err, store.ErrTransactionNotFound)

	txns, err = s.ListTransactions(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, txns[0].Reconciled)
}

func testMarkInvalidMethod(t *testing.T, s store.Store) {
	ctx := context.Background()
	p, err := s.CreateProject(ctx, "p", "alice")
	require.NoError(t, err)
	_, err = s.AddStatement(ctx, p.ID, model.SourceBank, "b.csv", Rows("1.00"))
	require.NoError(t, err)
	txns, err := s.ListTransactions(ctx, p.ID)
	require.NoError(t, err)

	err = s.WithinProject(ctx, p.ID, func(tx store.Tx) error {
		return tx.MarkReconciled(ctx, []string{txns[0].ID}, model.MethodNone)
	})
	assert.ErrorIs(t, err, store.ErrInvalidMethod)
}

func testUnknownProject(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.GetProject(ctx, "nope")
	assert.ErrorIs(t, err, store.ErrProjectNotFound)

	called := false
	err = s.WithinProject(ctx, "nope", func(store.Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, store.ErrProjectNotFound)
	assert.False(t, called)

	_, err = s.AddStatement(ctx, "nope", model.SourceBank, "b.csv", Rows("1.00"))
	assert.ErrorIs(t, err, store.ErrProjectNotFound)

	_, err = s.ListTransactions(ctx, "nope")
	assert.ErrorIs(t, err, store.ErrProjectNotFound)

	_, err = s.ResetProject(ctx, "nope")
	assert.ErrorIs(t, err, store.ErrProjectNotFound)

	assert.ErrorIs(t, s.DeleteProject(ctx, "nope"), store.ErrProjectNotFound)
}

func testResetAndDelete(t *testing.T, s store.Store) {
	ctx := context.Background()
	p, err := s.CreateProject(ctx, "p", "alice")
	require.NoError(t, err)
	keep, err := s.CreateProject(ctx, "keep", "alice")
	require.NoError(t, err)

	_, err = s.AddStatement(ctx, p.ID, model.SourceBank, "b.csv", Rows("1.00"))
	require.NoError(t, err)
	_, err = s.AddStatement(ctx, p.ID, model.SourceLedger, "l.csv", Rows("1.00"))
	require.NoError(t, err)
	_, err = s.AddStatement(ctx, keep.ID, model.SourceBank, "b.csv", Rows("5.00"))
	require.NoError(t, err)

	removed, err := s.ResetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	txns, err := s.ListTransactions(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, txns)

	_, err = s.GetProject(ctx, p.ID)
	require.NoError(t, err, "reset keeps the project")

	require.NoError(t, s.DeleteProject(ctx, p.ID))
	_, err = s.GetProject(ctx, p.ID)
	assert.ErrorIs(t, err, store.ErrProjectNotFound)

	kept, err := s.ListTransactions(ctx, keep.ID)
	require.NoError(t, err)
	assert.Len(t, kept, 1, "other projects are untouched")
}

func testDecimalExactness(t *testing.T, s store.Store) {
	ctx := context.Background()
	p, err := s.CreateProject(ctx, "p", "alice")
	require.NoError(t, err)
	_, err = s.AddStatement(ctx, p.ID, model.SourceBank, "b.csv", Rows("0.10", "0.20", "1234567890123.45"))
	require.NoError(t, err)

	txns, err := s.ListTransactions(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, txns, 3)

	sum := txns[0].Amount.Add(txns[1].Amount)
	assert.True(t, sum.Equal(Dec("0.30")), "got %s", sum)
	assert.Equal(t, "1234567890123.45", txns[2].Amount.StringFixed(2))
}
