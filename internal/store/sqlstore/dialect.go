package sqlstore

import (
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "modernc.org/sqlite"             // registers "sqlite"
)

// dialect captures the differences between the supported databases.
type dialect struct {
	name       string
	driverName string
	schema     []string
	// lockProject is appended to the project lookup that opens a pass.
	lockProject string
	numbered    bool // $1 placeholders instead of ?
}

var sqliteDialect = dialect{
	name:       "sqlite",
	driverName: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS projects (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			owner TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS statement_files (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			project_id TEXT NOT NULL REFERENCES projects(id),
			name TEXT NOT NULL,
			file_type TEXT NOT NULL CHECK (file_type IN ('bank', 'ledger')),
			uploaded_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			statement_file_id TEXT NOT NULL REFERENCES statement_files(id),
			project_id TEXT NOT NULL,
			source TEXT NOT NULL,
			date TEXT NOT NULL,
			description TEXT NOT NULL,
			reference TEXT NOT NULL DEFAULT '',
			amount TEXT NOT NULL,
			is_reconciled INTEGER NOT NULL DEFAULT 0,
			reconciliation_method TEXT NOT NULL DEFAULT 'none'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_open
			ON transactions (project_id, source, is_reconciled, seq)`,
	},
}

var postgresDialect = dialect{
	name:       "postgres",
	driverName: "pgx",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS projects (
			seq BIGSERIAL PRIMARY KEY,
			id TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			owner TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS statement_files (
			seq BIGSERIAL PRIMARY KEY,
			id TEXT NOT NULL UNIQUE,
			project_id TEXT NOT NULL REFERENCES projects(id),
			name TEXT NOT NULL,
			file_type TEXT NOT NULL CHECK (file_type IN ('bank', 'ledger')),
			uploaded_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			seq BIGSERIAL PRIMARY KEY,
			id TEXT NOT NULL UNIQUE,
			statement_file_id TEXT NOT NULL REFERENCES statement_files(id),
			project_id TEXT NOT NULL,
			source TEXT NOT NULL,
			date DATE NOT NULL,
			description TEXT NOT NULL,
			reference TEXT NOT NULL DEFAULT '',
			amount NUMERIC(15, 2) NOT NULL,
			is_reconciled BOOLEAN NOT NULL DEFAULT FALSE,
			reconciliation_method TEXT NOT NULL DEFAULT 'none'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_open
			ON transactions (project_id, source, is_reconciled, seq)`,
	},
	lockProject: " FOR UPDATE",
	numbered:    true,
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case "sqlite", "sqlite3":
		return sqliteDialect, nil
	case "postgres", "postgresql", "pgx":
		return postgresDialect, nil
	default:
		return dialect{}, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// rebind rewrites ? placeholders for dialects that number them.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
