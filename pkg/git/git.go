// Package git drives the git toolchain for gilt.
//
// The Git interface is the narrow set of operations gilt needs. CLI
// implements it by running the git executable through a shell.Runner;
// tests substitute gittest.Fake.
//
// Resolver classifies a requested version as a branch, tag or commit and
// brings a working clone to that version:
//
//	r := git.NewResolver(git.NewCLI(runner), logger)
//	kind, err := r.Resolve(ctx, dir, "v1.2.0", true)
package git

import "context"

// Git is the subset of git operations used by gilt. All methods operate on
// the repository rooted at dir.
type Git interface {
	// Clone clones url into dir. The parent of dir must exist.
	Clone(ctx context.Context, url, dir string) error

	// Fetch fetches from remote, or from the default remote when remote is "".
	Fetch(ctx context.Context, dir, remote string) error

	// Checkout checks out version.
	Checkout(ctx context.Context, dir, version string) error

	// Clean removes untracked and ignored files and directories.
	Clean(ctx context.Context, dir string) error

	// Pull rebases the current branch on its upstream, fast-forward only.
	Pull(ctx context.Context, dir string) error

	// HasRef reports whether the fully qualified ref exists locally.
	HasRef(ctx context.Context, dir, ref string) bool

	// HasObject reports whether name resolves to an object in the local
	// object store.
	HasObject(ctx context.Context, dir, name string) bool

	// CheckoutIndex writes every tracked file into prefix, which must end
	// with a path separator.
	CheckoutIndex(ctx context.Context, dir, prefix string) error

	// Head returns the commit id HEAD points at.
	Head(ctx context.Context, dir string) (string, error)

	// RemoteAdd adds a remote.
	RemoteAdd(ctx context.Context, dir, name, url string) error

	// RemoteRemove removes a remote.
	RemoteRemove(ctx context.Context, dir, name string) error
}

// Kind classifies a version.
type Kind int

const (
	KindUnknown Kind = iota
	KindBranch
	KindTag
	KindCommit
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindBranch:
		return "branch"
	case KindTag:
		return "tag"
	case KindCommit:
		return "commit"
	default:
		return "unknown"
	}
}
