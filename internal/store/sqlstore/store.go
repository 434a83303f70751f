// Package sqlstore implements store.Store on database/sql. SQLite
// (modernc.org/sqlite) is the default; Postgres is reached through the pgx
// stdlib driver. Amounts are written as decimal strings and scanned back into
// decimal.Decimal, so no value ever passes through float64.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/recon/internal/id"
	"github.com/cleared-dev/recon/internal/model"
	"github.com/cleared-dev/recon/internal/store"
)

const (
	dateFormat = "2006-01-02"
	// maxInArgs bounds the size of one IN (...) list.
	maxInArgs = 500
)

const txnColumns = `id, project_id, statement_file_id, source, date, description, reference, amount, is_reconciled, reconciliation_method`

// Store is a SQL-backed transaction store.
type Store struct {
	db  *sql.DB
	d   dialect
	now func() time.Time
}

// Open connects to the database and creates the schema if needed.
// driver is "sqlite" or "postgres"; dsn is a file path or a postgres URL.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	if d.name == "sqlite" {
		dsn = sqliteDSN(dsn)
	}

	db, err := sql.Open(d.driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", d.name, err)
	}
	if d.name == "sqlite" {
		// One connection: SQLite has a single writer, and :memory: databases
		// are per connection.
		db.SetMaxOpenConns(1)
	}

	s, err := New(ctx, db, driver)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing connection pool and migrates the schema.
func New(ctx context.Context, db *sql.DB, driver string) (*Store, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db, d: d, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrating %s schema: %w", d.name, err)
	}
	return s, nil
}

// sqliteDSN adds a busy timeout and immediate transactions unless the caller
// set them. Immediate transactions take the write lock at BEGIN, so a second
// process waits on busy_timeout instead of failing to upgrade a read lock.
func sqliteDSN(dsn string) string {
	if dsn == "" {
		dsn = ":memory:"
	}
	var params []string
	if !strings.Contains(dsn, "_pragma=") {
		params = append(params, "_pragma=busy_timeout(5000)")
	}
	if !strings.Contains(dsn, "_txlock=") {
		params = append(params, "_txlock=immediate")
	}
	if len(params) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range s.d.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close implements store.Store.
func (s *Store) Close() error {
	return s.db.Close()
}

// WithinProject implements store.Store. On Postgres the project row is
// locked FOR UPDATE for the lifetime of the transaction.
func (s *Store) WithinProject(ctx context.Context, projectID string, fn func(store.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var found string
	q := s.d.rebind(`SELECT id FROM projects WHERE id = ?` + s.d.lockProject)
	if err := tx.QueryRowContext(ctx, q, projectID).Scan(&found); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", store.ErrProjectNotFound, projectID)
		}
		return fmt.Errorf("locking project %s: %w", projectID, err)
	}

	if err := fn(&sqlTx{tx: tx, d: s.d}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// CreateProject implements store.Store.
func (s *Store) CreateProject(ctx context.Context, name, owner string) (model.Project, error) {
	if name == "" {
		return model.Project{}, fmt.Errorf("project name is required")
	}
	p := model.Project{ID: id.New(), Name: name, Owner: owner, CreatedAt: s.now().UTC()}

	q := s.d.rebind(`INSERT INTO projects (id, name, owner, created_at) VALUES (?, ?, ?, ?)`)
	if _, err := s.db.ExecContext(ctx, q, p.ID, p.Name, p.Owner, s.timeArg(p.CreatedAt)); err != nil {
		return model.Project{}, fmt.Errorf("inserting project: %w", err)
	}
	return p, nil
}

// GetProject implements store.Store.
func (s *Store) GetProject(ctx context.Context, projectID string) (model.Project, error) {
	q := s.d.rebind(`SELECT id, name, owner, created_at FROM projects WHERE id = ?`)
	p, err := scanProject(s.db.QueryRowContext(ctx, q, projectID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Project{}, fmt.Errorf("%w: %s", store.ErrProjectNotFound, projectID)
	}
	if err != nil {
		return model.Project{}, fmt.Errorf("reading project %s: %w", projectID, err)
	}
	return p, nil
}

// ListProjects implements store.Store. Newest first; an empty owner lists all.
func (s *Store) ListProjects(ctx context.Context, owner string) ([]model.Project, error) {
	q := `SELECT id, name, owner, created_at FROM projects`
	var args []any
	if owner != "" {
		q += ` WHERE owner = ?`
		args = append(args, owner)
	}
	q += ` ORDER BY seq DESC`

	rows, err := s.db.QueryContext(ctx, s.d.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	var result []model.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning project: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// DeleteProject implements store.Store.
func (s *Store) DeleteProject(ctx context.Context, projectID string) error {
	return s.WithinProject(ctx, projectID, func(t store.Tx) error {
		tx := t.(*sqlTx).tx
		if _, err := s.dropProjectData(ctx, tx, projectID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.d.rebind(`DELETE FROM projects WHERE id = ?`), projectID); err != nil {
			return fmt.Errorf("deleting project: %w", err)
		}
		return nil
	})
}

// ResetProject implements store.Store.
func (s *Store) ResetProject(ctx context.Context, projectID string) (int, error) {
	var removed int
	err := s.WithinProject(ctx, projectID, func(t store.Tx) error {
		n, err := s.dropProjectData(ctx, t.(*sqlTx).tx, projectID)
		removed = n
		return err
	})
	return removed, err
}

func (s *Store) dropProjectData(ctx context.Context, tx *sql.Tx, projectID string) (int, error) {
	if _, err := tx.ExecContext(ctx, s.d.rebind(`DELETE FROM transactions WHERE project_id = ?`), projectID); err != nil {
		return 0, fmt.Errorf("deleting transactions: %w", err)
	}
	res, err := tx.ExecContext(ctx, s.d.rebind(`DELETE FROM statement_files WHERE project_id = ?`), projectID)
	if err != nil {
		return 0, fmt.Errorf("deleting statement files: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting statement files: %w", err)
	}
	return int(n), nil
}

// AddStatement implements store.Store.
func (s *Store) AddStatement(ctx context.Context, projectID string, source model.SourceKind, fileName string, rows []store.Row) (model.StatementFile, error) {
	if !source.Valid() {
		return model.StatementFile{}, fmt.Errorf("invalid source %q", source)
	}

	f := model.StatementFile{
		ID:         id.New(),
		ProjectID:  projectID,
		Name:       fileName,
		Source:     source,
		UploadedAt: s.now().UTC(),
	}

	err := s.WithinProject(ctx, projectID, func(t store.Tx) error {
		tx := t.(*sqlTx).tx

		q := s.d.rebind(`INSERT INTO statement_files (id, project_id, name, file_type, uploaded_at) VALUES (?, ?, ?, ?, ?)`)
		if _, err := tx.ExecContext(ctx, q, f.ID, f.ProjectID, f.Name, string(f.Source), s.timeArg(f.UploadedAt)); err != nil {
			return fmt.Errorf("inserting statement file: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, s.d.rebind(`INSERT INTO transactions
			(id, project_id, statement_file_id, source, date, description, reference, amount, is_reconciled, reconciliation_method)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`))
		if err != nil {
			return fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()

		for i, r := range rows {
			_, err := stmt.ExecContext(ctx,
				id.New(), projectID, f.ID, string(source),
				r.Date.Format(dateFormat), r.Description, r.Reference, r.Amount.String(),
				false, string(model.MethodNone),
			)
			if err != nil {
				return fmt.Errorf("inserting row %d: %w", i+1, err)
			}
		}
		return nil
	})
	if err != nil {
		return model.StatementFile{}, err
	}
	return f, nil
}

// ListTransactions implements store.Store.
func (s *Store) ListTransactions(ctx context.Context, projectID string) ([]model.Transaction, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	q := s.d.rebind(`SELECT ` + txnColumns + ` FROM transactions WHERE project_id = ? ORDER BY date, seq`)
	rows, err := s.db.QueryContext(ctx, q, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	return collectTransactions(rows)
}

// timeArg formats timestamps for the dialect; SQLite keeps them as RFC 3339 text.
func (s *Store) timeArg(t time.Time) any {
	if s.d.name == "sqlite" {
		return t.UTC().Format(time.RFC3339Nano)
	}
	return t
}

// sqlTx is the store.Tx of one open database transaction.
type sqlTx struct {
	tx *sql.Tx
	d  dialect
}

func (t *sqlTx) QueryUnreconciled(ctx context.Context, projectID string, source model.SourceKind) ([]model.Transaction, error) {
	q := t.d.rebind(`SELECT ` + txnColumns + ` FROM transactions
		WHERE project_id = ? AND source = ? AND is_reconciled = ?
		ORDER BY seq`)
	rows, err := t.tx.QueryContext(ctx, q, projectID, string(source), false)
	if err != nil {
		return nil, fmt.Errorf("querying unreconciled %s transactions: %w", source, err)
	}
	return collectTransactions(rows)
}

func (t *sqlTx) Lookup(ctx context.Context, ids []string) ([]model.Transaction, error) {
	byID := make(map[string]model.Transaction, len(ids))
	for _, chunk := range chunks(ids) {
		q := t.d.rebind(`SELECT ` + txnColumns + ` FROM transactions WHERE id IN (` + placeholders(len(chunk)) + `)`)
		rows, err := t.tx.QueryContext(ctx, q, toArgs(chunk)...)
		if err != nil {
			return nil, fmt.Errorf("looking up transactions: %w", err)
		}
		found, err := collectTransactions(rows)
		if err != nil {
			return nil, err
		}
		for _, txn := range found {
			byID[txn.ID] = txn
		}
	}

	result := make([]model.Transaction, 0, len(ids))
	var missing []string
	for _, txnID := range ids {
		txn, ok := byID[txnID]
		if !ok {
			missing = append(missing, txnID)
			continue
		}
		result = append(result, txn)
	}
	if len(missing) > 0 {
		return nil, &store.TransactionNotFoundError{IDs: missing}
	}
	return result, nil
}

func (t *sqlTx) MarkReconciled(ctx context.Context, ids []string, method model.Method) error {
	if err := store.CheckMethod(method); err != nil {
		return err
	}
	if _, err := t.Lookup(ctx, ids); err != nil {
		return err
	}
	for _, chunk := range chunks(ids) {
		q := t.d.rebind(`UPDATE transactions SET is_reconciled = ?, reconciliation_method = ?
			WHERE id IN (` + placeholders(len(chunk)) + `)`)
		args := append([]any{true, string(method)}, toArgs(chunk)...)
		if _, err := t.tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("marking transactions reconciled: %w", err)
		}
	}
	return nil
}

func chunks(ids []string) [][]string {
	var out [][]string
	for len(ids) > maxInArgs {
		out = append(out, ids[:maxInArgs])
		ids = ids[maxInArgs:]
	}
	if len(ids) > 0 {
		out = append(out, ids)
	}
	return out
}

func toArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, v := range ids {
		args[i] = v
	}
	return args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(r rowScanner) (model.Project, error) {
	var p model.Project
	var created dbTime
	if err := r.Scan(&p.ID, &p.Name, &p.Owner, &created); err != nil {
		return model.Project{}, err
	}
	p.CreatedAt = created.Time
	return p, nil
}

func collectTransactions(rows *sql.Rows) ([]model.Transaction, error) {
	defer rows.Close()

	var result []model.Transaction
	for rows.Next() {
		var (
			txn    model.Transaction
			source string
			date   dbTime
			amount decimal.Decimal
			method string
		)
		err := rows.Scan(&txn.ID, &txn.ProjectID, &txn.FileID, &source, &date,
			&txn.Description, &txn.Reference, &amount, &txn.Reconciled, &method)
		if err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		txn.Source = model.SourceKind(source)
		txn.Date = date.Time
		txn.Amount = amount
		txn.Method = model.Method(method)
		result = append(result, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading transactions: %w", err)
	}
	return result, nil
}

// dbTime scans dates and timestamps stored either natively or as text.
type dbTime struct {
	Time time.Time
}

func (t *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		t.Time = v
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	case nil:
		t.Time = time.Time{}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into time", src)
	}
}

func (t *dbTime) parse(s string) error {
	for _, layout := range []string{time.RFC3339Nano, dateFormat} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("parsing time %q", s)
}

// Ensure Store implements store.Store.
var _ store.Store = (*Store)(nil)
