// Package reconcile matches bank statement transactions against ledger
// transactions within one project.
//
// Two strategies exist. RunAuto pairs transactions with exactly equal amounts
// using a greedy first-fit pass. RunManual marks caller-selected sets as
// reconciled when their totals balance. Every pass runs under a per-project
// lock inside one store transaction, so it either commits completely or
// leaves the project untouched. The engine keeps no state between passes.
package reconcile

import (
	"context"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/recon/internal/keylock"
	"github.com/cleared-dev/recon/internal/logger"
	"github.com/cleared-dev/recon/internal/model"
	"github.com/cleared-dev/recon/internal/store"
)

// Engine runs reconciliation passes against a store.
type Engine struct {
	store store.Store
	locks *keylock.Map
}

// New creates an Engine over s.
func New(s store.Store) *Engine {
	return &Engine{store: s, locks: keylock.New()}
}

// Pair is one bank/ledger match made by RunAuto.
type Pair struct {
	BankID   string
	LedgerID string
	Amount   decimal.Decimal
}

// AutoResult reports the outcome of RunAuto.
type AutoResult struct {
	MatchedPairs int
	Pairs        []Pair
}

// ManualResult reports the outcome of RunManual. A mismatch is a normal
// result with Success false, not an error.
type ManualResult struct {
	Success      bool
	MatchedTotal decimal.NullDecimal // set only on success
	BankSum      decimal.Decimal
	LedgerSum    decimal.Decimal
	Difference   decimal.Decimal // BankSum - LedgerSum
}

// Message describes the result for display.
func (r ManualResult) Message() string {
	if r.Success {
		return fmt.Sprintf("Manual match successful: reconciled %s", r.MatchedTotal.Decimal.StringFixed(2))
	}
	return fmt.Sprintf("Sums do not match: bank %s vs ledger %s (difference %s)",
		r.BankSum.StringFixed(2), r.LedgerSum.StringFixed(2), r.Difference.StringFixed(2))
}

// RunAuto matches unreconciled bank transactions to unreconciled ledger
// transactions of equal amount and marks both sides reconciled with method
// auto.
//
// Bank transactions are visited in store order; each takes the first
// remaining ledger transaction with an equal amount, which then leaves the
// pool. The pass is greedy and never backtracks, so an early choice can
// consume a ledger row that a later bank row would also have matched.
func (e *Engine) RunAuto(ctx context.Context, projectID string) (AutoResult, error) {
	log := logger.FromContext(ctx).With().Str("project_id", projectID).Str("pass", "auto").Logger()

	unlock := e.locks.Lock(projectID)
	defer unlock()

	var result AutoResult
	err := e.store.WithinProject(ctx, projectID, func(tx store.Tx) error {
		bank, err := tx.QueryUnreconciled(ctx, projectID, model.SourceBank)
		if err != nil {
			return err
		}
		ledger, err := tx.QueryUnreconciled(ctx, projectID, model.SourceLedger)
		if err != nil {
			return err
		}
		log.Debug().Int("bank", len(bank)).Int("ledger", len(ledger)).Msg("loaded unreconciled transactions")

		pairs := matchExactAmounts(bank, ledger)
		if len(pairs) == 0 {
			return nil
		}

		ids := make([]string, 0, 2*len(pairs))
		for _, p := range pairs {
			ids = append(ids, p.BankID, p.LedgerID)
		}
		if err := tx.MarkReconciled(ctx, ids, model.MethodAuto); err != nil {
			return err
		}
		result = AutoResult{MatchedPairs: len(pairs), Pairs: pairs}
		return nil
	})
	if err != nil {
		return AutoResult{}, fmt.Errorf("auto reconciliation of project %s: %w", projectID, err)
	}

	if result.MatchedPairs == 0 {
		log.Info().Msg("no new matches found")
	} else {
		log.Info().Int("matched_pairs", result.MatchedPairs).Msg("auto reconciliation complete")
	}
	return result, nil
}

// matchExactAmounts is the greedy first-fit pass. remaining shrinks as ledger
// rows are consumed, before the next bank row is considered.
func matchExactAmounts(bank, ledger []model.Transaction) []Pair {
	remaining := slices.Clone(ledger)
	var pairs []Pair
	for _, b := range bank {
		i := slices.IndexFunc(remaining, func(l model.Transaction) bool {
			return l.Amount.Equal(b.Amount)
		})
		if i < 0 {
			continue
		}
		pairs = append(pairs, Pair{BankID: b.ID, LedgerID: remaining[i].ID, Amount: b.Amount})
		remaining = slices.Delete(remaining, i, i+1)
	}
	return pairs
}

// RunManual reconciles bankIDs against ledgerIDs when the two sets sum to
// exactly the same amount; every named transaction is then marked manual.
//
// Identifiers are not checked against the project, their source kind, or
// their current status: any existing transaction may be included, and one
// already matched automatically is re-marked manual. An identifier that does
// not exist fails the whole request before anything is written.
func (e *Engine) RunManual(ctx context.Context, projectID string, bankIDs, ledgerIDs []string) (ManualResult, error) {
	log := logger.FromContext(ctx).With().Str("project_id", projectID).Str("pass", "manual").Logger()

	unlock := e.locks.Lock(projectID)
	defer unlock()

	bankIDs = dedupe(bankIDs)
	ledgerIDs = dedupe(ledgerIDs)

	var result ManualResult
	err := e.store.WithinProject(ctx, projectID, func(tx store.Tx) error {
		bank, err := tx.Lookup(ctx, bankIDs)
		if err != nil {
			return fmt.Errorf("resolving bank selection: %w", err)
		}
		ledger, err := tx.Lookup(ctx, ledgerIDs)
		if err != nil {
			return fmt.Errorf("resolving ledger selection: %w", err)
		}

		result = balance(bank, ledger)
		if !result.Success {
			return nil
		}
		return tx.MarkReconciled(ctx, append(slices.Clone(bankIDs), ledgerIDs...), model.MethodManual)
	})
	if err != nil {
		return ManualResult{}, fmt.Errorf("manual reconciliation of project %s: %w", projectID, err)
	}

	ev := log.Info()
	if !result.Success {
		ev = log.Warn()
	}
	ev.Bool("success", result.Success).
		Int("bank_count", len(bankIDs)).
		Int("ledger_count", len(ledgerIDs)).
		Str("bank_sum", result.BankSum.String()).
		Str("ledger_sum", result.LedgerSum.String()).
		Str("difference", result.Difference.String()).
		Msg("manual reconciliation")
	return result, nil
}

// balance compares the exact totals of both selections.
func balance(bank, ledger []model.Transaction) ManualResult {
	bankSum := model.SumAmounts(bank)
	ledgerSum := model.SumAmounts(ledger)
	diff := bankSum.Sub(ledgerSum)

	r := ManualResult{
		Success:    diff.IsZero(),
		BankSum:    bankSum,
		LedgerSum:  ledgerSum,
		Difference: diff,
	}
	if r.Success {
		r.MatchedTotal = decimal.NewNullDecimal(bankSum)
	}
	return r
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
