package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/recon/internal/auditlog"
	"github.com/cleared-dev/recon/internal/importer"
	"github.com/cleared-dev/recon/internal/model"
)

func newImportCommand() *cobra.Command {
	var source, format string

	cmd := &cobra.Command{
		Use:   "import <project> [file...]",
		Short: "Load bank or ledger statements into a project",
		Long: `Load statement CSVs into a project as unreconciled transactions.

With no files, every CSV in import/<source>/ is loaded and then moved to
import/processed/.`,
		Args: cobra.MinimumNArgs(1),
		RunE: withWorkspace(func(cmd *cobra.Command, ws *workspace, args []string) error {
			kind, err := model.ParseSourceKind(source)
			if err != nil {
				return err
			}
			parser := importer.DefaultRegistry().Get(format)
			if parser == nil {
				return fmt.Errorf("unknown format %q", format)
			}
			return runImport(cmd, ws, args[0], kind, parser, args[1:])
		}),
	}

	cmd.Flags().StringVar(&source, "source", "", "statement side: bank or ledger (required)")
	_ = cmd.MarkFlagRequired("source")
	cmd.Flags().StringVar(&format, "format", "standard", "CSV layout: standard or chase")

	return cmd
}

func runImport(cmd *cobra.Command, ws *workspace, ref string, source model.SourceKind, parser importer.Parser, files []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	p, err := ws.resolveProject(ctx, ref)
	if err != nil {
		return err
	}

	scanned := len(files) == 0
	if scanned {
		found, err := importer.Scan(ws.root, source)
		if err != nil {
			return err
		}
		for _, f := range found {
			files = append(files, f.Path)
		}
		if len(files) == 0 {
			fmt.Fprintf(out, "No CSV files in %s\n", importer.SourceDir(ws.root, source))
			return nil
		}
	}

	total := 0
	for _, path := range files {
		rows, err := importer.ParseFile(parser, path)
		if err != nil {
			return err
		}
		name := filepath.Base(path)
		sf, err := ws.store.AddStatement(ctx, p.ID, source, name, rows)
		if err != nil {
			return fmt.Errorf("storing %s: %w", name, err)
		}
		if scanned {
			if err := importer.MarkProcessed(ws.root, source, name); err != nil {
				return err
			}
		}

		ws.log.Info().Str("project_id", p.ID).Str("file", name).Str("source", string(source)).
			Int("rows", len(rows)).Msg("statement imported")
		ws.audit(p.ID, auditlog.ActionImport, fmt.Sprintf("%s %s: %d rows (file %s)", source, name, len(rows), sf.ID))
		fmt.Fprintf(out, "Imported %d %s transactions from %s\n", len(rows), source, name)
		total += len(rows)
	}

	if len(files) > 1 {
		fmt.Fprintf(out, "Imported %d transactions from %d files into %q\n", total, len(files), p.Name)
	}
	return nil
}
