package gitops

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSig = Signature{Name: "Test Author", Email: "test@example.com"}

func requireGit(t *testing.T) {
	t.Helper()
	if !Available() {
		t.Skip("git not installed")
	}
}

func gitLog(t *testing.T, dir, format string) string {
	t.Helper()
	cmd := exec.Command("git", "log", "--format="+format, "-1")
	cmd.Dir = dir
	out, err := cmd.Output()
	require.NoError(t, err)
	return strings.TrimSpace(string(out))
}

func TestInit(t *testing.T) {
	requireGit(t)
	dir := t.TempDir()
	require.NoError(t, Init(dir))

	_, err := os.Stat(filepath.Join(dir, ".git"))
	require.NoError(t, err, ".git directory should exist")
}

func TestIsRepo(t *testing.T) {
	requireGit(t)
	dir := t.TempDir()
	assert.False(t, IsRepo(dir), "empty dir should not be a repo")

	require.NoError(t, Init(dir))
	assert.True(t, IsRepo(dir), "initialized dir should be a repo")
}

func TestCommitAll(t *testing.T) {
	requireGit(t)
	dir := t.TempDir()
	require.NoError(t, Init(dir))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "recon.yaml"), []byte("hello"), 0o644))

	hash, err := CommitAll(dir, "init: test commit", testSig)
	require.NoError(t, err)
	assert.NotEmpty(t, hash)

	assert.Equal(t, "init: test commit", gitLog(t, dir, "%s"))
	assert.Equal(t, "Test Author <test@example.com>", gitLog(t, dir, "%an <%ae>"))
	assert.Equal(t, "Test Author <test@example.com>", gitLog(t, dir, "%cn <%ce>"))
}

func TestCommitPaths(t *testing.T) {
	requireGit(t)
	dir := t.TempDir()
	require.NoError(t, Init(dir))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.csv"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.csv"), []byte("b"), 0o644))

	hash, err := CommitPaths(dir, "export: a", testSig, filepath.Join(dir, "a.csv"))
	require.NoError(t, err)
	assert.NotEmpty(t, hash)

	status := exec.Command("git", "status", "--porcelain")
	status.Dir = dir
	out, err := status.Output()
	require.NoError(t, err)
	assert.Equal(t, "?? b.csv", strings.TrimSpace(string(out)))

	// Unchanged paths produce no commit.
	hash, err = CommitPaths(dir, "export: again", testSig, "a.csv")
	require.NoError(t, err)
	assert.Empty(t, hash)
	assert.Equal(t, "export: a", gitLog(t, dir, "%s"))
}

func TestCommitAll_NotARepo(t *testing.T) {
	requireGit(t)
	_, err := CommitAll(t.TempDir(), "x", testSig)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "git add")
}
