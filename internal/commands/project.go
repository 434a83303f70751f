package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/recon/internal/auditlog"
	"github.com/cleared-dev/recon/internal/id"
)

func newProjectCommand() *cobra.Command {
	projectCmd := &cobra.Command{
		Use:   "project",
		Short: "Manage reconciliation projects",
	}
	projectCmd.AddCommand(
		newProjectCreateCommand(),
		newProjectListCommand(),
		newProjectResetCommand(),
		newProjectDeleteCommand(),
	)
	return projectCmd
}

func newProjectCreateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create a project",
		Args:  cobra.ExactArgs(1),
		RunE: withWorkspace(func(cmd *cobra.Command, ws *workspace, args []string) error {
			p, err := ws.store.CreateProject(cmd.Context(), args[0], ws.owner())
			if err != nil {
				return fmt.Errorf("creating project: %w", err)
			}
			ws.audit(p.ID, auditlog.ActionCreate, p.Name)
			fmt.Fprintf(cmd.OutOrStdout(), "Created project %q (%s)\n", p.Name, p.ID)
			return nil
		}),
	}
}

func newProjectListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your projects, newest first",
		Args:  cobra.NoArgs,
		RunE: withWorkspace(func(cmd *cobra.Command, ws *workspace, args []string) error {
			projects, err := ws.store.ListProjects(cmd.Context(), ws.owner())
			if err != nil {
				return fmt.Errorf("listing projects: %w", err)
			}
			if len(projects) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No projects.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCREATED")
			for _, p := range projects {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", id.Short(p.ID), p.Name, p.CreatedAt.Local().Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		}),
	}
}

func newProjectResetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <project>",
		Short: "Delete every statement and transaction of a project",
		Args:  cobra.ExactArgs(1),
		RunE: withWorkspace(func(cmd *cobra.Command, ws *workspace, args []string) error {
			ctx := cmd.Context()
			p, err := ws.resolveProject(ctx, args[0])
			if err != nil {
				return err
			}
			n, err := ws.store.ResetProject(ctx, p.ID)
			if err != nil {
				return fmt.Errorf("resetting project: %w", err)
			}
			ws.audit(p.ID, auditlog.ActionReset, fmt.Sprintf("deleted %d files", n))
			fmt.Fprintf(cmd.OutOrStdout(), "Reset project %q. Deleted %d files and all associated transactions.\n", p.Name, n)
			return nil
		}),
	}
}

func newProjectDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <project>",
		Short: "Delete a project and all of its data",
		Args:  cobra.ExactArgs(1),
		RunE: withWorkspace(func(cmd *cobra.Command, ws *workspace, args []string) error {
			ctx := cmd.Context()
			p, err := ws.resolveProject(ctx, args[0])
			if err != nil {
				return err
			}
			if err := ws.store.DeleteProject(ctx, p.ID); err != nil {
				return fmt.Errorf("deleting project: %w", err)
			}
			ws.audit(p.ID, auditlog.ActionDelete, p.Name)
			fmt.Fprintf(cmd.OutOrStdout(), "Project %q has been deleted.\n", p.Name)
			return nil
		}),
	}
}
