package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/recon/internal/config"
	"github.com/cleared-dev/recon/internal/gitops"
	"github.com/cleared-dev/recon/internal/importer"
	"github.com/cleared-dev/recon/internal/model"
	"github.com/cleared-dev/recon/internal/store/sqlstore"
)

func newInitCommand() *cobra.Command {
	var name, owner string
	var noGit bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new reconciliation workspace",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			return runInit(cmd, absDir, name, owner, !noGit)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "workspace name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().StringVar(&owner, "owner", os.Getenv("USER"), "user who owns projects created here")
	cmd.Flags().BoolVar(&noGit, "no-git", false, "do not create a git repository")

	return cmd
}

func runInit(cmd *cobra.Command, dir, name, owner string, useGit bool) error {
	if _, err := os.Stat(filepath.Join(dir, config.FileName)); err == nil {
		return fmt.Errorf("%s already exists in %s", config.FileName, dir)
	}

	// Create directory structure.
	dirs := []string{
		importer.SourceDir(dir, model.SourceBank),
		importer.SourceDir(dir, model.SourceLedger),
		importer.ProcessedDir(dir),
		filepath.Join(dir, "exports"),
		filepath.Join(dir, "logs"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}
	for _, d := range dirs[:2] {
		if err := os.WriteFile(filepath.Join(d, ".gitkeep"), []byte{}, 0o644); err != nil {
			return fmt.Errorf("writing .gitkeep: %w", err)
		}
	}

	// Write recon.yaml.
	cfg := config.Default(name, owner)
	cfg.Git.AutoCommit = useGit
	if err := config.Save(filepath.Join(dir, config.FileName), cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	// Write .gitignore. Statements and the database stay local.
	gitignore := "recon.db\nrecon.db-*\n.env\nimport/bank/*.csv\nimport/ledger/*.csv\nimport/processed/\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	// Create the database schema up front.
	st, err := sqlstore.Open(cmd.Context(), cfg.Database.Driver, filepath.Join(dir, cfg.Database.DSN))
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	if err := st.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}

	out := cmd.OutOrStdout()
	if !useGit {
		fmt.Fprintf(out, "Initialized recon workspace at %s\n", dir)
		return nil
	}
	return initGit(out, dir, name, cfg)
}

func initGit(out io.Writer, dir, name string, cfg *config.Config) error {
	if err := gitops.Init(dir); err != nil {
		return fmt.Errorf("git init: %w", err)
	}

	sig := gitops.Signature{Name: cfg.Git.AuthorName, Email: cfg.Git.AuthorEmail}
	hash, err := gitops.CommitAll(dir, "init: Initialize "+name, sig)
	if err != nil {
		return fmt.Errorf("initial commit: %w", err)
	}

	fmt.Fprintf(out, "Initialized recon workspace at %s (%s)\n", dir, hash)
	return nil
}
