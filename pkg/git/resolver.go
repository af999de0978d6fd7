package git

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/gilt/pkg/errors"
	"github.com/matzehuels/gilt/pkg/retry"
)

// Resolver brings a working clone to a requested version.
type Resolver struct {
	Git    Git
	Logger *log.Logger

	// Attempts and Backoff control retries of fetch on transient network
	// failures. Zero values use retry.DefaultAttempts and retry.DefaultDelay.
	Attempts int
	Backoff  time.Duration
}

// NewResolver creates a resolver using g.
func NewResolver(g Git, logger *log.Logger) *Resolver {
	return &Resolver{Git: g, Logger: logger}
}

// Classify reports what version names in the local clone at dir. Only local
// refs and objects are consulted.
func (r *Resolver) Classify(ctx context.Context, dir, version string) Kind {
	switch {
	case r.Git.HasRef(ctx, dir, "refs/heads/"+version):
		return KindBranch
	case r.Git.HasRef(ctx, dir, "refs/tags/"+version):
		return KindTag
	case r.Git.HasObject(ctx, dir, version):
		return KindCommit
	default:
		return KindUnknown
	}
}

// Resolve checks out version in dir, fetching first when the version is not
// known locally. With clean set, untracked and ignored files are removed
// after checkout. Branches are then fast-forwarded from upstream; a failed
// pull is logged and otherwise ignored.
//
// The returned kind is classified after checkout, so a remote branch that
// checkout turned into a local tracking branch reports KindBranch.
func (r *Resolver) Resolve(ctx context.Context, dir, version string, clean bool) (Kind, error) {
	if r.Classify(ctx, dir, version) == KindUnknown {
		if err := r.Fetch(ctx, dir, ""); err != nil {
			return KindUnknown, err
		}
	}

	if err := r.Git.Checkout(ctx, dir, version); err != nil {
		return KindUnknown, errors.Wrap(errors.ErrCodeGit, err, "checkout %s", version)
	}

	if clean {
		if err := r.Git.Clean(ctx, dir); err != nil {
			return KindUnknown, errors.Wrap(errors.ErrCodeGit, err, "clean %s", dir)
		}
	}

	kind := r.Classify(ctx, dir, version)
	if kind == KindBranch {
		if err := r.Git.Pull(ctx, dir); err != nil {
			r.logger().Warn("pulling failed, local changes exist?", "dir", dir, "version", version, "err", err)
		}
	}
	return kind, nil
}

// Fetch fetches remote into dir, retrying transient network failures.
// An empty remote fetches the default remote.
func (r *Resolver) Fetch(ctx context.Context, dir, remote string) error {
	err := retry.Do(ctx, r.attempts(), r.backoff(), func() error {
		return r.Git.Fetch(ctx, dir, remote)
	})
	if err != nil {
		if remote == "" {
			return errors.Wrap(errors.ErrCodeGit, err, "fetch %s", dir)
		}
		return errors.Wrap(errors.ErrCodeGit, err, "fetch %s in %s", remote, dir)
	}
	return nil
}

func (r *Resolver) attempts() int {
	if r.Attempts > 0 {
		return r.Attempts
	}
	return retry.DefaultAttempts
}

func (r *Resolver) backoff() time.Duration {
	if r.Backoff > 0 {
		return r.Backoff
	}
	return retry.DefaultDelay
}

func (r *Resolver) logger() *log.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return log.Default()
}
