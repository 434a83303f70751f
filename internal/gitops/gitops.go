package gitops

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Signature identifies who commits workspace changes.
type Signature struct {
	Name  string
	Email string
}

func (s Signature) String() string {
	return fmt.Sprintf("%s <%s>", s.Name, s.Email)
}

// env sets both author and committer so commits work without a global git identity.
func (s Signature) env() []string {
	return append(os.Environ(),
		"GIT_AUTHOR_NAME="+s.Name,
		"GIT_AUTHOR_EMAIL="+s.Email,
		"GIT_COMMITTER_NAME="+s.Name,
		"GIT_COMMITTER_EMAIL="+s.Email,
	)
}

func git(dir string, env []string, args ...string) ([]byte, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = env
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("git %s: %s: %w", args[0], strings.TrimSpace(string(out)), err)
	}
	return out, nil
}

// Init initializes a new git repository at dir.
func Init(dir string) error {
	_, err := git(dir, nil, "init", "--quiet")
	return err
}

// CommitAll stages all files and creates a commit. Returns the short commit hash.
func CommitAll(dir, message string, sig Signature) (string, error) {
	if _, err := git(dir, nil, "add", "-A"); err != nil {
		return "", err
	}
	return commit(dir, message, sig)
}

// CommitPaths stages only paths and commits them. Returns "" without error
// when the paths hold no changes.
func CommitPaths(dir, message string, sig Signature, paths ...string) (string, error) {
	rel := make([]string, 0, len(paths))
	for _, p := range paths {
		if filepath.IsAbs(p) {
			r, err := filepath.Rel(dir, p)
			if err != nil {
				return "", fmt.Errorf("resolving %s: %w", p, err)
			}
			p = r
		}
		rel = append(rel, p)
	}

	if _, err := git(dir, nil, append([]string{"add", "--"}, rel...)...); err != nil {
		return "", err
	}

	// diff --cached --quiet exits 1 when something is staged.
	diff := exec.Command("git", "diff", "--cached", "--quiet")
	diff.Dir = dir
	if err := diff.Run(); err == nil {
		return "", nil
	}
	return commit(dir, message, sig)
}

func commit(dir, message string, sig Signature) (string, error) {
	if _, err := git(dir, sig.env(), "commit", "--quiet", "-m", message, "--author", sig.String()); err != nil {
		return "", err
	}
	out, err := git(dir, nil, "rev-parse", "--short", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// IsRepo reports whether dir is the root of a git repository.
func IsRepo(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}

// Available reports whether a git binary is on PATH.
func Available() bool {
	_, err := exec.LookPath("git")
	return err == nil
}
