package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/recon/internal/buildinfo"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "recon",
		Short:   "Bank statement to ledger reconciliation",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("workspace", ".", "workspace directory")

	rootCmd.AddCommand(
		newInitCommand(),
		newProjectCommand(),
		newImportCommand(),
		newAutoCommand(),
		newMatchCommand(),
		newReportCommand(),
		newExportCommand(),
		newHistoryCommand(),
	)

	return rootCmd
}
