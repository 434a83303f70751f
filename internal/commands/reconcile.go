package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/recon/internal/auditlog"
	"github.com/cleared-dev/recon/internal/id"
	"github.com/cleared-dev/recon/internal/reconcile"
)

func newAutoCommand() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "auto <project>",
		Short: "Match bank and ledger transactions with equal amounts",
		Args:  cobra.ExactArgs(1),
		RunE: withWorkspace(func(cmd *cobra.Command, ws *workspace, args []string) error {
			ctx := ws.context(cmd.Context())
			p, err := ws.resolveProject(ctx, args[0])
			if err != nil {
				return err
			}

			res, err := reconcile.New(ws.store).RunAuto(ctx, p.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if res.MatchedPairs == 0 {
				fmt.Fprintln(out, "No new matches found.")
				return nil
			}
			ws.audit(p.ID, auditlog.ActionAuto, fmt.Sprintf("matched %d pairs", res.MatchedPairs))
			fmt.Fprintf(out, "Reconciliation complete! %d pairs matched.\n", res.MatchedPairs)
			if verbose {
				for _, pair := range res.Pairs {
					fmt.Fprintf(out, "  %s <-> %s  %s\n", id.Short(pair.BankID), id.Short(pair.LedgerID), pair.Amount.StringFixed(2))
				}
			}
			return nil
		}),
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "list the matched pairs")

	return cmd
}

func newMatchCommand() *cobra.Command {
	var bankIDs, ledgerIDs []string

	cmd := &cobra.Command{
		Use:   "match <project>",
		Short: "Manually reconcile bank and ledger transactions whose totals agree",
		Long: `Reconcile a selection of bank transactions against a selection of ledger
transactions. Everything selected is marked reconciled when both sides sum to
exactly the same amount; otherwise nothing changes and the difference is shown.`,
		Args: cobra.ExactArgs(1),
		RunE: withWorkspace(func(cmd *cobra.Command, ws *workspace, args []string) error {
			bank, err := id.ParseSet(bankIDs)
			if err != nil {
				return fmt.Errorf("--bank: %w", err)
			}
			ledger, err := id.ParseSet(ledgerIDs)
			if err != nil {
				return fmt.Errorf("--ledger: %w", err)
			}

			ctx := ws.context(cmd.Context())
			p, err := ws.resolveProject(ctx, args[0])
			if err != nil {
				return err
			}

			res, err := reconcile.New(ws.store).RunManual(ctx, p.ID, bank, ledger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, res.Message())
			fmt.Fprintf(out, "  bank:       %s (%d)\n", res.BankSum.StringFixed(2), len(bank))
			fmt.Fprintf(out, "  ledger:     %s (%d)\n", res.LedgerSum.StringFixed(2), len(ledger))
			fmt.Fprintf(out, "  difference: %s\n", res.Difference.StringFixed(2))
			if res.Success {
				ws.audit(p.ID, auditlog.ActionManual, fmt.Sprintf("%d bank, %d ledger, total %s",
					len(bank), len(ledger), res.MatchedTotal.Decimal.StringFixed(2)))
			}
			return nil
		}),
	}

	cmd.Flags().StringSliceVar(&bankIDs, "bank", nil, "bank transaction ids (repeatable or comma-separated)")
	cmd.Flags().StringSliceVar(&ledgerIDs, "ledger", nil, "ledger transaction ids (repeatable or comma-separated)")

	return cmd
}
