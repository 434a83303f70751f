package sqlstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/recon/internal/model"
	"github.com/cleared-dev/recon/internal/store"
	"github.com/cleared-dev/recon/internal/store/storetest"
)

func TestStore_SQLiteMemory(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := Open(context.Background(), "sqlite", ":memory:")
		require.NoError(t, err)
		return s
	})
}

func TestStore_SQLiteFile(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "recon.db"))
		require.NoError(t, err)
		return s
	})
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "recon.db")

	s, err := Open(ctx, "sqlite", path)
	require.NoError(t, err)
	p, err := s.CreateProject(ctx, "persisted", "alice")
	require.NoError(t, err)
	_, err = s.AddStatement(ctx, p.ID, model.SourceLedger, "l.csv", storetest.Rows("12.34"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(ctx, "sqlite", path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "persisted", got.Name)
	assert.True(t, got.CreatedAt.Equal(p.CreatedAt))

	txns, err := s.ListTransactions(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "12.34", txns[0].Amount.StringFixed(2))
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "x")
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	q := `SELECT a FROM t WHERE x = ? AND y IN (?, ?)`
	assert.Equal(t, q, sqliteDialect.rebind(q))
	assert.Equal(t, `SELECT a FROM t WHERE x = $1 AND y IN ($2, $3)`, postgresDialect.rebind(q))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", placeholders(0))
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?, ?, ?", placeholders(3))
}

func TestChunks(t *testing.T) {
	ids := make([]string, maxInArgs*2+1)
	got := chunks(ids)
	require.Len(t, got, 3)
	assert.Len(t, got[0], maxInArgs)
	assert.Len(t, got[2], 1)
	assert.Empty(t, chunks(nil))
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, ":memory:?_pragma=busy_timeout(5000)&_txlock=immediate", sqliteDSN(""))
	assert.Equal(t, "a.db?_pragma=busy_timeout(5000)&_txlock=immediate", sqliteDSN("a.db"))
	assert.Equal(t, "a.db?mode=rw&_pragma=busy_timeout(5000)&_txlock=immediate", sqliteDSN("a.db?mode=rw"))
	assert.Equal(t, "a.db?_pragma=foreign_keys(1)&_txlock=immediate", sqliteDSN("a.db?_pragma=foreign_keys(1)"))
	assert.Equal(t, "a.db?_txlock=exclusive&_pragma=busy_timeout(5000)", sqliteDSN("a.db?_txlock=exclusive"))
}

func TestWithinProject_TwoConnectionsShareFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "recon.db")

	first, err := Open(ctx, "sqlite", path)
	require.NoError(t, err)
	defer first.Close()
	second, err := Open(ctx, "sqlite", path)
	require.NoError(t, err)
	defer second.Close()

	p, err := first.CreateProject(ctx, "shared", "alice")
	require.NoError(t, err)
	_, err = first.AddStatement(ctx, p.ID, model.SourceBank, "b.csv", storetest.Rows("100.00"))
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	firstDone := make(chan error, 1)
	go func() {
		firstDone <- first.WithinProject(ctx, p.ID, func(tx store.Tx) error {
			open, err := tx.QueryUnreconciled(ctx, p.ID, model.SourceBank)
			if err != nil {
				return err
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

	seen := -1
	secondDone := make(chan error, 1)
	go func() {
		secondDone <- second.WithinProject(ctx, p.ID, func(tx store.Tx) error {
			open, err := tx.QueryUnreconciled(ctx, p.ID, model.SourceBank)
			seen = len(open)
			return err
		})
	}()

	time.Sleep(50 * time.Millisecond)
	close(release)
	require.NoError(t, <-firstDone)
	require.NoError(t, <-secondDone, "second connection waits instead of failing busy")
	assert.Equal(t, 0, seen)
}

func TestDBTime(t *testing.T) {
	var d dbTime
	require.NoError(t, d.Scan("2025-01-03"))
	assert.Equal(t, 3, d.Time.Day())

	require.NoError(t, d.Scan([]byte("2025-01-03T10:00:00Z")))
	assert.Equal(t, 10, d.Time.Hour())

	assert.Error(t, d.Scan("yesterday"))
	assert.Error(t, d.Scan(42))
}
