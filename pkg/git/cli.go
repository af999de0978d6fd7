package git

import (
	"context"
	"errors"
	"strings"

	"github.com/matzehuels/gilt/pkg/retry"
	"github.com/matzehuels/gilt/pkg/shell"
)

// networkFailures are stderr fragments git prints for transport failures
// that are worth retrying.
var networkFailures = []string{
	"could not resolve host",
	"temporary failure in name resolution",
	"connection timed out",
	"connection reset",
	"connection refused",
	"operation timed out",
	"the remote end hung up unexpectedly",
	"early eof",
	"unable to access",
	"tls connection was non-properly terminated",
}

// CLI implements Git by running the git executable.
type CLI struct {
	runner *shell.Runner
	bin    string
}

// NewCLI creates a CLI that runs git through runner.
func NewCLI(runner *shell.Runner) *CLI {
	return &CLI{runner: runner, bin: "git"}
}

// Clone clones url into dir.
func (g *CLI) Clone(ctx context.Context, url, dir string) error {
	return network(g.runner.Run(ctx, "", g.bin, "clone", url, dir))
}

// Fetch fetches from remote.
func (g *CLI) Fetch(ctx context.Context, dir, remote string) error {
	args := []string{"fetch"}
	if remote != "" {
		args = append(args, remote)
	}
	return network(g.runner.Run(ctx, dir, g.bin, args...))
}

// Checkout checks out version.
func (g *CLI) Checkout(ctx context.Context, dir, version string) error {
	return g.runner.Run(ctx, dir, g.bin, "checkout", version)
}

// Clean removes untracked and ignored files.
func (g *CLI) Clean(ctx context.Context, dir string) error {
	return g.runner.Run(ctx, dir, g.bin, "clean", "-d", "-x", "-f")
}

// Pull rebases the current branch on its upstream.
func (g *CLI) Pull(ctx context.Context, dir string) error {
	return network(g.runner.Run(ctx, dir, g.bin, "pull", "--rebase", "--ff-only"))
}

// HasRef reports whether ref exists.
func (g *CLI) HasRef(ctx context.Context, dir, ref string) bool {
	return g.runner.Run(ctx, dir, g.bin, "show-ref", "--verify", "--quiet", ref) == nil
}

// HasObject reports whether name resolves to an object.
func (g *CLI) HasObject(ctx context.Context, dir, name string) bool {
	return g.runner.Run(ctx, dir, g.bin, "cat-file", "-e", name) == nil
}

// CheckoutIndex writes every tracked file into prefix.
func (g *CLI) CheckoutIndex(ctx context.Context, dir, prefix string) error {
	return g.runner.Run(ctx, dir, g.bin, "checkout-index", "--force", "--all", "--prefix", prefix)
}

// Head returns the commit id of HEAD.
func (g *CLI) Head(ctx context.Context, dir string) (string, error) {
	return g.runner.Output(ctx, dir, g.bin, "rev-parse", "HEAD")
}

// RemoteAdd adds a remote.
func (g *CLI) RemoteAdd(ctx context.Context, dir, name, url string) error {
	return g.runner.Run(ctx, dir, g.bin, "remote", "add", name, url)
}

// RemoteRemove removes a remote.
func (g *CLI) RemoteRemove(ctx context.Context, dir, name string) error {
	return g.runner.Run(ctx, dir, g.bin, "remote", "remove", name)
}

// network marks err retryable when git reported a transport failure.
func network(err error) error {
	if err == nil {
		return nil
	}
	var cerr *shell.CommandError
	if errors.As(err, &cerr) && isNetworkFailure(cerr.Stderr) {
		return retry.Retryable(err)
	}
	return err
}

func isNetworkFailure(stderr string) bool {
	stderr = strings.ToLower(stderr)
	for _, s := range networkFailures {
		if strings.Contains(stderr, s) {
			return true
		}
	}
	return false
}

// Ensure CLI implements Git.
var _ Git = (*CLI)(nil)
