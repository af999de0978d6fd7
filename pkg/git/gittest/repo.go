package gittest

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/matzehuels/gilt/pkg/shell"
)

// RequireGit skips the test when the git executable is not on PATH.
func RequireGit(t testing.TB) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}

// Repo is a scratch repository on disk whose default branch is "master".
type Repo struct {
	Dir    string
	t      testing.TB
	runner *shell.Runner
}

// NewRepo initializes an empty repository in a temporary directory.
// The test is skipped when git is not installed.
func NewRepo(t testing.TB) *Repo {
	t.Helper()
	RequireGit(t)

	r := &Repo{
		Dir: filepath.Join(t.TempDir(), "upstream"),
		t:   t,
		runner: &shell.Runner{Env: []string{
			"GIT_AUTHOR_NAME=gilt", "GIT_AUTHOR_EMAIL=gilt@example.com",
			"GIT_COMMITTER_NAME=gilt", "GIT_COMMITTER_EMAIL=gilt@example.com",
			"GIT_CONFIG_NOSYSTEM=1",
		}},
	}
	if err := os.MkdirAll(r.Dir, 0755); err != nil {
		t.Fatal(err)
	}
	r.Git("init", "-q")
	r.Git("symbolic-ref", "HEAD", "refs/heads/master")
	return r
}

// Git runs a git command in the repository and returns its output.
func (r *Repo) Git(args ...string) string {
	r.t.Helper()
	out, err := r.runner.Output(context.Background(), r.Dir, "git", args...)
	if err != nil {
		r.t.Fatalf("git %v: %v", args, err)
	}
	return out
}

// Commit writes files (path to body) and commits them, returning the new
// commit id.
func (r *Repo) Commit(files map[string]string, msg string) string {
	r.t.Helper()
	for name, body := range files {
		path := filepath.Join(r.Dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			r.t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(body), 0644); err != nil {
			r.t.Fatal(err)
		}
	}
	r.Git("add", "--all")
	r.Git("commit", "-q", "-m", msg)
	return r.Git("rev-parse", "HEAD")
}

// Tag creates a lightweight tag at HEAD.
func (r *Repo) Tag(name string) {
	r.t.Helper()
	r.Git("tag", name)
}

// Branch creates a branch at HEAD without switching to it.
func (r *Repo) Branch(name string) {
	r.t.Helper()
	r.Git("branch", name)
}

// Checkout switches the repository to ref.
func (r *Repo) Checkout(ref string) {
	r.t.Helper()
	r.Git("checkout", "-q", ref)
}
