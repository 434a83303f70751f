package commands

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/recon/internal/auditlog"
	"github.com/cleared-dev/recon/internal/report"
)

func newReportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "report <project>",
		Short: "Show bank breaks, ledger breaks and reconciled transactions",
		Args:  cobra.ExactArgs(1),
		RunE: withWorkspace(func(cmd *cobra.Command, ws *workspace, args []string) error {
			ctx := cmd.Context()
			p, err := ws.resolveProject(ctx, args[0])
			if err != nil {
				return err
			}
			txns, err := ws.store.ListTransactions(ctx, p.ID)
			if err != nil {
				return fmt.Errorf("listing transactions: %w", err)
			}
			return report.WriteText(cmd.OutOrStdout(), report.Build(p, txns))
		}),
	}
}

func newExportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "export <project>",
		Short: "Write transaction and summary CSVs to exports/",
		Args:  cobra.ExactArgs(1),
		RunE: withWorkspace(func(cmd *cobra.Command, ws *workspace, args []string) error {
			ctx := cmd.Context()
			p, err := ws.resolveProject(ctx, args[0])
			if err != nil {
				return err
			}
			txns, err := ws.store.ListTransactions(ctx, p.ID)
			if err != nil {
				return fmt.Errorf("listing transactions: %w", err)
			}

			paths, err := report.Export(ws.root, p, txns)
			if err != nil {
				return fmt.Errorf("exporting: %w", err)
			}
			ws.audit(p.ID, auditlog.ActionExport, fmt.Sprintf("%d transactions", len(txns)))

			out := cmd.OutOrStdout()
			for _, path := range paths {
				rel, err := filepath.Rel(ws.root, path)
				if err != nil {
					rel = path
				}
				fmt.Fprintf(out, "Wrote %s\n", rel)
			}

			hash, err := ws.commit("export: "+p.Name, append(paths, auditlog.Path(ws.root))...)
			if err != nil {
				return err
			}
			if hash != "" {
				fmt.Fprintf(out, "Committed %s\n", hash)
			}
			return nil
		}),
	}
}

func newHistoryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "history <project>",
		Short: "Show the audit trail of a project",
		Args:  cobra.ExactArgs(1),
		RunE: withWorkspace(func(cmd *cobra.Command, ws *workspace, args []string) error {
			p, err := ws.resolveProject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			entries, err := auditlog.Read(ws.root)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			entries = auditlog.ForProject(entries, p.ID)
			if len(entries) == 0 {
				fmt.Fprintln(out, "No history.")
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(out, "%s  %-16s  %-8s  %s\n", e.Timestamp.Local().Format(time.DateTime), e.Action, e.Actor, e.Details)
			}
			return nil
		}),
	}
}
