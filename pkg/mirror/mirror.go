// Package mirror maintains the local clones gilt copies from.
//
// A mirror lives at <base>/clone/<host>/<name>. It is cloned on first use and
// updated in place afterwards; nothing in this package deletes one. Callers
// must hold the dependency lock while calling Ensure.
package mirror

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/gilt/pkg/errors"
	"github.com/matzehuels/gilt/pkg/git"
	"github.com/matzehuels/gilt/pkg/retry"
)

// Source identifies a mirror and the version it should be at.
type Source struct {
	URL     string // Clone URL
	Dir     string // Mirror directory
	Version string // Branch, tag or commit
}

// Result describes the state of a mirror after Ensure.
type Result struct {
	Kind   git.Kind // What Version turned out to be
	Commit string   // Commit checked out
	Cloned bool     // Whether the mirror was created by this call
}

// Manager clones and synchronizes mirrors.
type Manager struct {
	Git      git.Git
	Resolver *git.Resolver
	Logger   *log.Logger

	// Attempts and Backoff control clone retries on transient network
	// failures. Zero values use the retry package defaults.
	Attempts int
	Backoff  time.Duration
}

// NewManager creates a manager that drives g.
func NewManager(g git.Git, logger *log.Logger) *Manager {
	return &Manager{Git: g, Resolver: git.NewResolver(g, logger), Logger: logger}
}

// Ensure makes sure src.Dir is a clone of src.URL checked out at
// src.Version, with untracked files removed.
func (m *Manager) Ensure(ctx context.Context, src Source) (Result, error) {
	var res Result

	if _, err := os.Stat(src.Dir); os.IsNotExist(err) {
		if err := m.clone(ctx, src); err != nil {
			return res, err
		}
		res.Cloned = true
	} else if err != nil {
		return res, errors.Wrap(errors.ErrCodeFilesystem, err, "stat %s", src.Dir)
	}

	kind, err := m.Resolver.Resolve(ctx, src.Dir, src.Version, true)
	if err != nil {
		return res, err
	}
	res.Kind = kind

	commit, err := m.Git.Head(ctx, src.Dir)
	if err != nil {
		return res, errors.Wrap(errors.ErrCodeGit, err, "read HEAD of %s", src.Dir)
	}
	res.Commit = commit

	m.logger().Debug("mirror ready", "dir", src.Dir, "version", src.Version, "kind", kind, "commit", commit)
	return res, nil
}

// Clone creates dir as a clone of url, retrying transient network failures.
// It is used directly for development checkouts.
func (m *Manager) Clone(ctx context.Context, url, dir string) error {
	return m.clone(ctx, Source{URL: url, Dir: dir})
}

func (m *Manager) clone(ctx context.Context, src Source) error {
	if err := os.MkdirAll(filepath.Dir(src.Dir), 0755); err != nil {
		return errors.Wrap(errors.ErrCodeFilesystem, err, "create %s", filepath.Dir(src.Dir))
	}

	m.logger().Info("cloning", "url", src.URL, "dir", src.Dir)
	err := retry.Do(ctx, m.attempts(), m.backoff(), func() error {
		err := m.Git.Clone(ctx, src.URL, src.Dir)
		if err != nil && retry.IsRetryable(err) {
			// A failed clone can leave a partial directory behind.
			_ = os.RemoveAll(src.Dir)
		}
		return err
	})
	if err != nil {
		return errors.Wrap(errors.ErrCodeGit, err, "clone %s", src.URL)
	}
	return nil
}

func (m *Manager) attempts() int {
	if m.Attempts > 0 {
		return m.Attempts
	}
	return retry.DefaultAttempts
}

func (m *Manager) backoff() time.Duration {
	if m.Backoff > 0 {
		return m.Backoff
	}
	return retry.DefaultDelay
}

func (m *Manager) logger() *log.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return log.Default()
}
