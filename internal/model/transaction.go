package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SourceKind identifies which side of a reconciliation a transaction came from.
type SourceKind string

const (
	SourceBank   SourceKind = "bank"
	SourceLedger SourceKind = "ledger"
)

// Valid reports whether s is a known source kind.
func (s SourceKind) Valid() bool {
	return s == SourceBank || s == SourceLedger
}

// Label returns the human-readable name used in reports.
func (s SourceKind) Label() string {
	switch s {
	case SourceBank:
		return "Bank Statement"
	case SourceLedger:
		return "Internal Ledger"
	default:
		return string(s)
	}
}

// ParseSourceKind converts user input into a SourceKind.
func ParseSourceKind(s string) (SourceKind, error) {
	k := SourceKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown source %q (want bank or ledger)", s)
	}
	return k, nil
}

// Method records how a transaction was reconciled.
type Method string

const (
	MethodNone   Method = "none"
	MethodAuto   Method = "auto"
	MethodManual Method = "manual"
)

// Status labels used by reports and exports.
const (
	StatusAuto      = "Auto Reconciled"
	StatusManual    = "Manually Reconciled"
	StatusUnmatched = "Unreconciled"
)

// Transaction is one normalized statement row, bank or ledger side.
type Transaction struct {
	ID          string
	ProjectID   string
	FileID      string
	Source      SourceKind
	Date        time.Time
	Description string
	Reference   string          // optional
	Amount      decimal.Decimal // signed; same sign convention on both sides
	Reconciled  bool
	Method      Method
}

// Validate checks that the reconciled flag and method agree.
func (t Transaction) Validate() error {
	method := t.Method
	if method == "" {
		method = MethodNone
	}
	switch method {
	case MethodNone, MethodAuto, MethodManual:
	default:
		return fmt.Errorf("transaction %s: unknown reconciliation method %q", t.ID, t.Method)
	}
	if t.Reconciled != (method != MethodNone) {
		return fmt.Errorf("transaction %s: reconciled=%t but method=%s", t.ID, t.Reconciled, method)
	}
	return nil
}

// Status returns the report label for the transaction.
func (t Transaction) Status() string {
	if !t.Reconciled {
		return StatusUnmatched
	}
	if t.Method == MethodManual {
		return StatusManual
	}
	return StatusAuto
}

// SumAmounts returns the exact decimal sum of the amounts. An empty slice sums to zero.
func SumAmounts(txns []Transaction) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range txns {
		sum = sum.Add(t.Amount)
	}
	return sum
}
