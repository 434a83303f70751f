package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/recon/internal/auditlog"
	"github.com/cleared-dev/recon/internal/config"
	"github.com/cleared-dev/recon/internal/gitops"
	"github.com/cleared-dev/recon/internal/id"
	"github.com/cleared-dev/recon/internal/logger"
	"github.com/cleared-dev/recon/internal/model"
	"github.com/cleared-dev/recon/internal/store"
	"github.com/cleared-dev/recon/internal/store/sqlstore"
)

// workspace is an opened recon workspace: its config, store and logger.
type workspace struct {
	root  string
	cfg   *config.Config
	store store.Store
	log   zerolog.Logger
}

// openWorkspace loads recon.yaml from the --workspace directory and opens
// the configured store.
func openWorkspace(cmd *cobra.Command) (*workspace, error) {
	dir, err := cmd.Flags().GetString("workspace")
	if err != nil {
		return nil, err
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	cfg, err := config.LoadWorkspace(root)
	if err != nil {
		return nil, fmt.Errorf("loading workspace %s: %w", root, err)
	}
	log := logger.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format).
		With().Str("workspace", cfg.Workspace.Name).Logger()

	st, err := sqlstore.Open(cmd.Context(), cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	log.Debug().Str("driver", cfg.Database.Driver).Msg("store opened")

	return &workspace{root: root, cfg: cfg, store: st, log: log}, nil
}

func (w *workspace) Close() error {
	return w.store.Close()
}

// context attaches the workspace logger to ctx for the engine.
func (w *workspace) context(ctx context.Context) context.Context {
	return logger.WithContext(ctx, w.log)
}

func (w *workspace) owner() string {
	return w.cfg.Workspace.Owner
}

// resolveProject finds a project owned by the acting user by full id, short
// id prefix, or exact name. Projects of other owners are reported as not found.
func (w *workspace) resolveProject(ctx context.Context, ref string) (model.Project, error) {
	ref = strings.TrimSpace(ref)
	if full, err := id.Parse(ref); err == nil {
		p, err := w.store.GetProject(ctx, full)
		if err != nil {
			return model.Project{}, err
		}
		if !w.owns(p) {
			return model.Project{}, fmt.Errorf("%w: %s", store.ErrProjectNotFound, ref)
		}
		return p, nil
	}

	projects, err := w.store.ListProjects(ctx, w.owner())
	if err != nil {
		return model.Project{}, err
	}
	var matches []model.Project
	for _, p := range projects {
		if p.Name == ref || (len(ref) >= 4 && strings.HasPrefix(p.ID, strings.ToLower(ref))) {
			matches = append(matches, p)
		}
	}
	switch len(matches) {
	case 0:
		return model.Project{}, fmt.Errorf("%w: %s", store.ErrProjectNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return model.Project{}, fmt.Errorf("project %q is ambiguous (%d matches); use its id", ref, len(matches))
	}
}

func (w *workspace) owns(p model.Project) bool {
	return w.owner() == "" || p.Owner == w.owner()
}

// audit appends to the workspace audit log. Failures are logged, not returned:
// the action itself has already been committed.
func (w *workspace) audit(projectID, action, details string) {
	err := auditlog.Append(w.root, auditlog.Entry{
		Timestamp: time.Now(),
		ProjectID: projectID,
		Action:    action,
		Details:   details,
		Actor:     w.owner(),
	})
	if err != nil {
		w.log.Warn().Err(err).Str("action", action).Msg("failed to write audit log")
	}
}

// commit records paths in git when auto_commit is on and the workspace is a
// repository. It returns the short hash, or "" when nothing was committed.
func (w *workspace) commit(message string, paths ...string) (string, error) {
	if !w.cfg.Git.AutoCommit || !gitops.IsRepo(w.root) {
		return "", nil
	}
	sig := gitops.Signature{Name: w.cfg.Git.AuthorName, Email: w.cfg.Git.AuthorEmail}
	hash, err := gitops.CommitPaths(w.root, message, sig, paths...)
	if err != nil {
		return "", fmt.Errorf("committing: %w", err)
	}
	return hash, nil
}

// withWorkspace adapts a run function that needs an open workspace into a
// cobra RunE.
func withWorkspace(run func(cmd *cobra.Command, ws *workspace, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		ws, err := openWorkspace(cmd)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := ws.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("closing store: %w", cerr)
			}
		}()
		return run(cmd, ws, args)
	}
}
