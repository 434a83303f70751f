package commands_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/recon/internal/commands"
	"github.com/cleared-dev/recon/internal/model"
	"github.com/cleared-dev/recon/internal/store/sqlstore"
)

// isolateEnv keeps the developer's environment out of workspace config.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DATABASE_URL", "RECON_DATABASE_URL", "RECON_OWNER", "RECON_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
}

func runRecon(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := commands.NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// inWorkspace runs a command against the workspace at dir.
func inWorkspace(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	return runRecon(t, append(args, "--workspace", dir)...)
}

func mustRun(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := inWorkspace(t, dir, args...)
	require.NoError(t, err, "recon %s", strings.Join(args, " "))
	return out
}

// newWorkspace initializes a git-free workspace owned by alice.
func newWorkspace(t *testing.T) string {
	t.Helper()
	isolateEnv(t)
	dir := t.TempDir()
	_, err := runRecon(t, "init", dir, "--name", "Test Biz", "--owner", "alice", "--no-git")
	require.NoError(t, err)
	return dir
}

func writeCSV(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func fixture(name string) string {
	return filepath.Join("..", "..", "testdata", name)
}

// transactions reads a project's transactions straight from the workspace database.
func transactions(t *testing.T, dir, projectName string) []model.Transaction {
	t.Helper()
	ctx := context.Background()
	st, err := sqlstore.Open(ctx, "sqlite", filepath.Join(dir, "recon.db"))
	require.NoError(t, err)
	defer st.Close()

	projects, err := st.ListProjects(ctx, "")
	require.NoError(t, err)
	for _, p := range projects {
		if p.Name == projectName {
			txns, err := st.ListTransactions(ctx, p.ID)
			require.NoError(t, err)
			return txns
		}
	}
	t.Fatalf("project %q not found", projectName)
	return nil
}

func idsWhere(txns []model.Transaction, source model.SourceKind, amounts ...string) []string {
	var ids []string
	used := make(map[string]bool)
	for _, a := range amounts {
		for _, txn := range txns {
			if txn.Source == source && !used[txn.ID] && txn.Amount.StringFixed(2) == a {
				ids = append(ids, txn.ID)
				used[txn.ID] = true
				break
			}
		}
	}
	return ids
}
