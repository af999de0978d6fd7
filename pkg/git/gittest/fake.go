// Package gittest provides helpers for testing code that drives git: an
// in-memory Fake implementation of git.Git and a Repo builder for tests that
// need a real repository.
package gittest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/matzehuels/gilt/pkg/git"
)

// Fake is an in-memory git.Git. Cloning or extracting writes Files into the
// target directory. It is safe for concurrent use.
type Fake struct {
	// Versions known to every clone, and versions that only become known
	// after a fetch.
	Known    map[string]git.Kind
	Upstream map[string]git.Kind

	// Files is the tree content, path to file body.
	Files map[string]string

	// Commit is returned by Head. Defaults to a fixed id.
	Commit string

	// Delay is slept inside every operation to widen race windows.
	Delay time.Duration

	mu       sync.Mutex
	fetched  map[string]bool // dir -> fetched
	remotes  map[string]map[string]string
	failures map[string][]error
	always   map[string]error
	calls    []string
}

// DefaultCommit is the commit id reported by Head when Fake.Commit is empty.
const DefaultCommit = "0123456789abcdef0123456789abcdef01234567"

// NewFake creates a fake that knows the "master" branch and holds one file.
func NewFake() *Fake {
	return &Fake{
		Known: map[string]git.Kind{"master": git.KindBranch},
		Files: map[string]string{"README.md": "fake\n"},
	}
}

// Fail queues errors returned by successive calls to op; once drained op
// succeeds again. op is the git subcommand name, for example "clone".
func (f *Fake) Fail(op string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures == nil {
		f.failures = make(map[string][]error)
	}
	f.failures[op] = append(f.failures[op], errs...)
}

// FailAlways makes every call to op return err.
func (f *Fake) FailAlways(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.always == nil {
		f.always = make(map[string]error)
	}
	f.always[op] = err
}

// Calls returns the recorded operations, formatted as "op dir args...".
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// CallsFor returns the recorded operation names that ran in dir.
func (f *Fake) CallsFor(dir string) []string {
	var ops []string
	for _, c := range f.Calls() {
		fields := strings.Fields(c)
		if len(fields) > 1 && fields[1] == dir {
			ops = append(ops, fields[0])
		}
	}
	return ops
}

// Remotes returns the remotes registered in dir.
func (f *Fake) Remotes(dir string) map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string)
	for k, v := range f.remotes[dir] {
		out[k] = v
	}
	return out
}

func (f *Fake) record(op, dir string, args ...string) error {
	f.mu.Lock()
	f.calls = append(f.calls, strings.Join(append([]string{op, dir}, args...), " "))
	var err error
	if q := f.failures[op]; len(q) > 0 {
		err, f.failures[op] = q[0], q[1:]
	} else if e, ok := f.always[op]; ok {
		err = e
	}
	f.mu.Unlock()

	if f.Delay > 0 {
		time.Sleep(f.Delay)
	}
	return err
}

func (f *Fake) kind(dir, version string) git.Kind {
	f.mu.Lock()
	defer f.mu.Unlock()
	if k, ok := f.Known[version]; ok {
		return k
	}
	if f.fetched[dir] {
		return f.Upstream[version]
	}
	return git.KindUnknown
}

func (f *Fake) writeTree(root string) error {
	for name, body := range f.Files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(body), 0644); err != nil {
			return err
		}
	}
	return nil
}

// Clone creates dir with a .git directory and the fake tree.
func (f *Fake) Clone(ctx context.Context, url, dir string) error {
	if err := f.record("clone", dir, url); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(dir, ".git"), 0755); err != nil {
		return err
	}
	return f.writeTree(dir)
}

// Fetch makes Upstream versions known in dir.
func (f *Fake) Fetch(ctx context.Context, dir, remote string) error {
	var args []string
	if remote != "" {
		args = append(args, remote)
	}
	if err := f.record("fetch", dir, args...); err != nil {
		return err
	}
	f.mu.Lock()
	if f.fetched == nil {
		f.fetched = make(map[string]bool)
	}
	f.fetched[dir] = true
	f.mu.Unlock()
	return nil
}

// Checkout fails for versions unknown in dir.
func (f *Fake) Checkout(ctx context.Context, dir, version string) error {
	if err := f.record("checkout", dir, version); err != nil {
		return err
	}
	if f.kind(dir, version) == git.KindUnknown {
		return fmt.Errorf("pathspec %q did not match any file(s) known to git", version)
	}
	return nil
}

// Clean records the call.
func (f *Fake) Clean(ctx context.Context, dir string) error {
	return f.record("clean", dir)
}

// Pull records the call.
func (f *Fake) Pull(ctx context.Context, dir string) error {
	return f.record("pull", dir)
}

// HasRef reports refs/heads and refs/tags lookups against the known
// versions.
func (f *Fake) HasRef(ctx context.Context, dir, ref string) bool {
	if f.record("show-ref", dir, ref) != nil {
		return false
	}
	if v, ok := strings.CutPrefix(ref, "refs/heads/"); ok {
		return f.kind(dir, v) == git.KindBranch
	}
	if v, ok := strings.CutPrefix(ref, "refs/tags/"); ok {
		return f.kind(dir, v) == git.KindTag
	}
	return false
}

// HasObject reports whether name is a known commit.
func (f *Fake) HasObject(ctx context.Context, dir, name string) bool {
	if f.record("cat-file", dir, name) != nil {
		return false
	}
	return f.kind(dir, name) == git.KindCommit
}

// CheckoutIndex writes the fake tree into prefix.
func (f *Fake) CheckoutIndex(ctx context.Context, dir, prefix string) error {
	if err := f.record("checkout-index", dir, prefix); err != nil {
		return err
	}
	return f.writeTree(prefix)
}

// Head returns Commit or DefaultCommit.
func (f *Fake) Head(ctx context.Context, dir string) (string, error) {
	if err := f.record("rev-parse", dir); err != nil {
		return "", err
	}
	if f.Commit != "" {
		return f.Commit, nil
	}
	return DefaultCommit, nil
}

// RemoteAdd registers a remote in dir.
func (f *Fake) RemoteAdd(ctx context.Context, dir, name, url string) error {
	if err := f.record("remote-add", dir, name, url); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.remotes == nil {
		f.remotes = make(map[string]map[string]string)
	}
	if f.remotes[dir] == nil {
		f.remotes[dir] = make(map[string]string)
	}
	if _, ok := f.remotes[dir][name]; ok {
		return fmt.Errorf("remote %s already exists", name)
	}
	f.remotes[dir][name] = url
	return nil
}

// RemoteRemove removes a remote from dir.
func (f *Fake) RemoteRemove(ctx context.Context, dir, name string) error {
	if err := f.record("remote-remove", dir, name); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.remotes[dir][name]; !ok {
		return fmt.Errorf("no such remote: %s", name)
	}
	delete(f.remotes[dir], name)
	return nil
}

// Ensure Fake implements git.Git.
var _ git.Git = (*Fake)(nil)
