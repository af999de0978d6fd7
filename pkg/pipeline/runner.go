package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/gilt/pkg/cache"
	"github.com/matzehuels/gilt/pkg/errors"
	"github.com/matzehuels/gilt/pkg/git"
	"github.com/matzehuels/gilt/pkg/lock"
	"github.com/matzehuels/gilt/pkg/manifest"
	"github.com/matzehuels/gilt/pkg/mirror"
	"github.com/matzehuels/gilt/pkg/observability"
	"github.com/matzehuels/gilt/pkg/overlay"
	"github.com/matzehuels/gilt/pkg/shell"
)

// Runner processes dependencies. Configure it before calling Run; a Runner
// may be reused for several runs but not concurrently.
type Runner struct {
	Git     git.Git
	Mirrors *mirror.Manager
	Locker  *lock.Locker
	Shell   *shell.Runner
	Copier  *overlay.Copier
	Cache   cache.Cache // Sync records; NullCache disables them
	Logger  *log.Logger // Its writer must be safe for concurrent use
	Hooks   observability.PipelineHooks

	Concurrency int    // Max dependencies in flight; 0 means no limit
	WorkDir     string // Where dependency-level overlay commands run
	RunID       string // Stamped on sync records; generated when empty
}

// NewRunner creates a runner that drives g and runs post-commands through
// sh. If c is nil, sync records are not kept. If logger is nil,
// log.Default() is used.
func NewRunner(g git.Git, sh *shell.Runner, c cache.Cache, logger *log.Logger) *Runner {
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Git:         g,
		Mirrors:     mirror.NewManager(g, logger),
		Locker:      lock.New(),
		Shell:       sh,
		Copier:      &overlay.Copier{Logger: logger},
		Cache:       c,
		Logger:      logger,
		Concurrency: DefaultConcurrency,
	}
}

// Run processes deps and waits for all of them. It never returns early:
// failures are recorded in the corresponding Outcome.
func (r *Runner) Run(ctx context.Context, deps []manifest.Dependency) *Result {
	start := time.Now()
	runID := r.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	result := &Result{RunID: runID, Outcomes: make([]Outcome, len(deps))}

	var g errgroup.Group
	if r.Concurrency > 0 {
		g.SetLimit(r.Concurrency)
	}
	for i, dep := range deps {
		g.Go(func() error {
			result.Outcomes[i] = r.runOne(ctx, runID, dep)
			return nil
		})
	}
	_ = g.Wait()

	result.Duration = time.Since(start)
	r.Logger.Debug("run finished", "run_id", runID, "dependencies", len(deps),
		"failed", result.Failed(), "duration", result.Duration)
	return result
}

// runOne processes a single dependency under its lock. A panic is turned
// into the dependency's error after the lock has been released.
func (r *Runner) runOne(ctx context.Context, runID string, dep manifest.Dependency) (out Outcome) {
	start := time.Now()
	logger := r.Logger.WithPrefix(dep.Name)
	hooks := r.hooks()

	out = Outcome{Name: dep.Name, Mode: dep.Mode()}
	hooks.OnDependencyStart(ctx, dep.Name)
	defer func() {
		if p := recover(); p != nil {
			out.Err = errors.New(errors.ErrCodeInternal, "panic: %v", p)
		}
		out.Duration = time.Since(start)
		if out.Err != nil {
			logger.Error("failed", "err", out.Err)
		}
		hooks.OnDependencyComplete(ctx, dep.Name, out.Duration, out.Err)
	}()

	release, err := r.Locker.Acquire(ctx, dep.Name, dep.LockFile)
	if err != nil {
		out.Err = err
		return out
	}
	defer func() {
		if err := release(); err != nil {
			logger.Warn("releasing lock", "err", err)
		}
	}()

	switch t := dep.Target.(type) {
	case manifest.Extract:
		out.Err = r.extract(ctx, logger, dep, t, &out)
	case manifest.Overlay:
		out.Err = r.overlay(ctx, logger, dep, t, &out)
	case manifest.Devel:
		out.Err = r.devel(ctx, logger, dep, t, &out)
	default:
		out.Err = errors.New(errors.ErrCodeInternal, "unsupported target %T", dep.Target)
	}

	if out.Err == nil && !out.Skipped {
		r.record(ctx, logger, runID, dep, out)
	}
	return out
}

// =============================================================================
// Targets
// =============================================================================

func (r *Runner) extract(ctx context.Context, logger *log.Logger, dep manifest.Dependency, t manifest.Extract, out *Outcome) error {
	if err := r.sync(ctx, dep, out); err != nil {
		return err
	}

	start := time.Now()
	err := overlay.Extract(ctx, r.Git, dep.MirrorDir, t.Dst)
	r.hooks().OnOverlayComplete(ctx, dep.Name, time.Since(start), err)
	if err != nil {
		return err
	}
	logger.Info("extracted", "version", dep.Version, "dst", t.Dst)

	return r.runCommands(ctx, logger, dep.PostCommands, t.Dst)
}

func (r *Runner) overlay(ctx context.Context, logger *log.Logger, dep manifest.Dependency, t manifest.Overlay, out *Outcome) error {
	if err := r.sync(ctx, dep, out); err != nil {
		return err
	}

	start := time.Now()
	err := r.copyFiles(ctx, logger, dep, t)
	r.hooks().OnOverlayComplete(ctx, dep.Name, time.Since(start), err)
	if err != nil {
		return err
	}

	return r.runCommands(ctx, logger, dep.PostCommands, r.WorkDir)
}

func (r *Runner) copyFiles(ctx context.Context, logger *log.Logger, dep manifest.Dependency, t manifest.Overlay) error {
	for _, f := range t.Files {
		st, err := r.Copier.Apply(dep.MirrorDir, overlay.Mapping{Src: f.Src, Dst: f.Dst})
		if err != nil {
			return err
		}
		logger.Info("copied", "version", dep.Version, "src", f.Src, "dst", f.Dst,
			"written", st.Copied, "unchanged", st.Skipped)

		if err := r.runCommands(ctx, logger, f.PostCommands, commandDir(f.Dst)); err != nil {
			return err
		}
	}
	return nil
}

// devel keeps a working clone at the destination. An existing non-empty
// destination that is not a git checkout is left alone.
func (r *Runner) devel(ctx context.Context, logger *log.Logger, dep manifest.Dependency, t manifest.Devel, out *Outcome) error {
	empty, err := isEmptyDir(t.Dst)
	if err != nil {
		return errors.Wrap(errors.ErrCodeFilesystem, err, "inspect %s", t.Dst)
	}
	switch {
	case empty:
		if err := r.Mirrors.Clone(ctx, dep.Git, t.Dst); err != nil {
			return err
		}
		out.Cloned = true
	case !isCheckout(t.Dst):
		logger.Warn("destination exists and is not a git checkout, skipping", "dst", t.Dst)
		out.Skipped = true
		return nil
	}

	start := time.Now()
	kind, err := r.Mirrors.Resolver.Resolve(ctx, t.Dst, dep.Version, false)
	r.hooks().OnMirrorComplete(ctx, dep.Name, dep.Version, time.Since(start), err)
	if err != nil {
		return err
	}
	out.Kind = kind

	for _, rm := range t.Remotes {
		_ = r.Git.RemoteRemove(ctx, t.Dst, rm.Name)
		if err := r.Git.RemoteAdd(ctx, t.Dst, rm.Name, rm.URL); err != nil {
			return errors.Wrap(errors.ErrCodeGit, err, "add remote %s", rm.Name)
		}
		if err := r.Mirrors.Resolver.Fetch(ctx, t.Dst, rm.Name); err != nil {
			return err
		}
	}

	commit, err := r.Git.Head(ctx, t.Dst)
	if err != nil {
		return errors.Wrap(errors.ErrCodeGit, err, "read HEAD of %s", t.Dst)
	}
	out.Commit = commit
	logger.Info("checked out", "version", dep.Version, "dst", t.Dst)

	return r.runCommands(ctx, logger, dep.PostCommands, t.Dst)
}

// sync brings the shared mirror to the dependency's version.
func (r *Runner) sync(ctx context.Context, dep manifest.Dependency, out *Outcome) error {
	start := time.Now()
	res, err := r.Mirrors.Ensure(ctx, mirror.Source{URL: dep.Git, Dir: dep.MirrorDir, Version: dep.Version})
	r.hooks().OnMirrorComplete(ctx, dep.Name, dep.Version, time.Since(start), err)
	if err != nil {
		return err
	}
	out.Kind = res.Kind
	out.Commit = res.Commit
	out.Cloned = res.Cloned
	return nil
}

// =============================================================================
// Helpers
// =============================================================================

// runCommands runs each command in dir, stopping at the first failure.
func (r *Runner) runCommands(ctx context.Context, logger *log.Logger, commands []string, dir string) error {
	for _, command := range commands {
		logger.Debug("running post command", "command", command, "dir", dir)
		if err := r.Shell.RunCommand(ctx, dir, command); err != nil {
			return errors.Wrap(errors.ErrCodePostCommand, err, "post command %q in %s", command, dir)
		}
	}
	return nil
}

// record stores the sync record. Failing to write it is only logged.
func (r *Runner) record(ctx context.Context, logger *log.Logger, runID string, dep manifest.Dependency, out Outcome) {
	rec := cache.SyncRecord{
		Name:     dep.Name,
		Git:      dep.Git,
		Version:  dep.Version,
		Kind:     out.Kind.String(),
		Commit:   out.Commit,
		SyncedAt: time.Now().UTC(),
		RunID:    runID,
	}
	if err := cache.PutSyncRecord(ctx, r.Cache, rec); err != nil {
		logger.Warn("writing sync record", "err", err)
	}
}

func (r *Runner) hooks() observability.PipelineHooks {
	if r.Hooks != nil {
		return r.Hooks
	}
	return observability.Pipeline()
}

// commandDir is where a file mapping's post-commands run: Dst itself when
// it is a directory, otherwise its parent.
func commandDir(dst string) string {
	if strings.HasSuffix(dst, string(filepath.Separator)) {
		return filepath.Clean(dst)
	}
	if info, err := os.Stat(dst); err == nil && info.IsDir() {
		return dst
	}
	return filepath.Dir(dst)
}

// isEmptyDir reports whether dir is missing or has no entries.
func isEmptyDir(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return len(entries) == 0, nil
}

func isCheckout(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}

// String implements fmt.Stringer for log output.
func (o Outcome) String() string {
	if o.Err != nil {
		return fmt.Sprintf("%s: %v", o.Name, o.Err)
	}
	return fmt.Sprintf("%s@%s", o.Name, shortCommit(o.Commit))
}

func shortCommit(c string) string {
	if len(c) > 7 {
		return c[:7]
	}
	return c
}
