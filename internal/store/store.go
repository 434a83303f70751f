// Package store defines the transaction store consumed by the matching engine
// and the errors it reports. Implementations live in the memory and sqlstore
// subpackages.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/recon/internal/model"
)

var (
	// ErrProjectNotFound is returned for unknown projects, and for projects
	// the acting user does not own.
	ErrProjectNotFound = errors.New("project not found")

	// ErrTransactionNotFound is matched by *TransactionNotFoundError.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrInvalidMethod is returned when marking with a method other than auto or manual.
	ErrInvalidMethod = errors.New("invalid reconciliation method")
)

// TransactionNotFoundError lists identifiers that did not resolve.
type TransactionNotFoundError struct {
	IDs []string
}

func (e *TransactionNotFoundError) Error() string {
	return fmt.Sprintf("transaction not found: %s", strings.Join(e.IDs, ", "))
}

// Is makes errors.Is(err, ErrTransactionNotFound) hold.
func (e *TransactionNotFoundError) Is(target error) bool {
	return target == ErrTransactionNotFound
}

// Row is one normalized statement row handed over by the importer.
type Row struct {
	Date        time.Time
	Description string
	Reference   string
	Amount      decimal.Decimal
}

// Tx is the view of one project's transactions for the duration of a pass.
// Nothing written through a Tx is visible outside it until WithinProject commits.
type Tx interface {
	// QueryUnreconciled returns a snapshot of the unreconciled transactions of
	// one source in insertion order.
	QueryUnreconciled(ctx context.Context, projectID string, source model.SourceKind) ([]model.Transaction, error)

	// Lookup resolves identifiers regardless of project or status. Any
	// identifier that does not resolve yields a *TransactionNotFoundError.
	Lookup(ctx context.Context, ids []string) ([]model.Transaction, error)

	// MarkReconciled sets the reconciled flag and method on every id.
	MarkReconciled(ctx context.Context, ids []string, method model.Method) error
}

// Store holds projects, statement files and transactions.
type Store interface {
	// WithinProject runs fn in a single-writer transaction scoped to the
	// project. Changes are committed only when fn returns nil.
	WithinProject(ctx context.Context, projectID string, fn func(Tx) error) error

	CreateProject(ctx context.Context, name, owner string) (model.Project, error)
	GetProject(ctx context.Context, projectID string) (model.Project, error)
	ListProjects(ctx context.Context, owner string) ([]model.Project, error)
	DeleteProject(ctx context.Context, projectID string) error

	// ResetProject removes every statement file and transaction of the
	// project and returns how many files were removed.
	ResetProject(ctx context.Context, projectID string) (int, error)

	// AddStatement records a statement file and bulk-creates its rows as
	// unreconciled transactions. Either all rows are stored or none.
	AddStatement(ctx context.Context, projectID string, source model.SourceKind, fileName string, rows []Row) (model.StatementFile, error)

	// ListTransactions returns every transaction of the project ordered by
	// date, then insertion order.
	ListTransactions(ctx context.Context, projectID string) ([]model.Transaction, error)

	Close() error
}

// CheckMethod validates the method passed to MarkReconciled.
func CheckMethod(m model.Method) error {
	if m != model.MethodAuto && m != model.MethodManual {
		return fmt.Errorf("%w: %q", ErrInvalidMethod, m)
	}
	return nil
}
