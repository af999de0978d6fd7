package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/gilt/pkg/git"
	"github.com/matzehuels/gilt/pkg/manifest"
	"github.com/matzehuels/gilt/pkg/pipeline"
	"github.com/matzehuels/gilt/pkg/shell"
)

// overlayOpts holds flags for the overlay command.
type overlayOpts struct {
	config    string
	jobs      int
	tolerance time.Duration
	progress  bool
	noState   bool
}

// overlayCommand creates the overlay command.
func (c *CLI) overlayCommand() *cobra.Command {
	opts := overlayOpts{config: manifest.DefaultFile, jobs: defaultJobs}

	cmd := &cobra.Command{
		Use:   "overlay",
		Short: "Install the dependencies listed in the manifest",
		Long: `Clone or update every dependency in the manifest, check out the pinned
version and copy it into the working tree.

Dependencies are processed in parallel. A failing dependency does not stop
the others; the command exits non-zero if any of them failed.

Post-commands run after their dependency has been copied:
  - with dst: in dst
  - under files: in the file's dst, or its directory when dst is a file
  - at dependency level next to files: in the current working directory`,
		Example: `  # Install dependencies from gilt.yml
  gilt overlay

  # Use a TOML manifest and process one dependency at a time
  gilt overlay -c gilt.toml -j 1

  # Echo every git and post-command invocation
  gilt --debug overlay`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runOverlay(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.config, "config", "c", opts.config, "path to the manifest (.yml, .yaml or .toml)")
	cmd.Flags().IntVarP(&opts.jobs, "jobs", "j", opts.jobs, "dependencies processed at once (0 = unlimited)")
	cmd.Flags().DurationVar(&opts.tolerance, "mtime-tolerance", 0, "treat destination files this much older than the source as up to date")
	cmd.Flags().BoolVar(&opts.progress, "progress", false, "show a live progress view")
	cmd.Flags().BoolVar(&opts.noState, "no-state", false, "do not record sync state")

	return cmd
}

// runOverlay loads the manifest and runs every dependency in it.
func (c *CLI) runOverlay(ctx context.Context, opts overlayOpts) error {
	if opts.jobs < 0 {
		return fmt.Errorf("--jobs must not be negative")
	}

	deps, cfg, err := c.loadManifest(opts.config)
	if err != nil {
		return err
	}
	state, err := newStateCache(cfg, opts.noState)
	if err != nil {
		return fmt.Errorf("open sync state: %w", err)
	}
	defer state.Close()

	prog := newProgress(c.Logger)

	// The progress view owns the terminal, so the run's log output is held
	// back and replayed once the view exits.
	logger := c.Logger
	held := &heldLog{}
	if opts.progress {
		logger = newLogger(held, log.WarnLevel)
		if c.Debug {
			logger.SetLevel(log.DebugLevel)
		}
	}

	sh := shell.NewRunner(c.Debug && !opts.progress, logger)
	runner := pipeline.NewRunner(git.NewCLI(sh), sh, state, logger)
	runner.Concurrency = opts.jobs
	runner.WorkDir = cfg.WorkDir
	runner.Copier.Tolerance = opts.tolerance

	var result *pipeline.Result
	if opts.progress {
		result, err = runWithProgress(ctx, runner, deps)
		held.WriteTo(os.Stderr)
		if err != nil {
			return err
		}
	} else {
		result = runner.Run(ctx, deps)
	}

	printRunSummary(result)

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if n := result.Failed(); n > 0 {
		return fmt.Errorf("%d of %d dependencies failed", n, len(result.Outcomes))
	}
	prog.done(fmt.Sprintf("Overlaid %d dependencies", len(result.Outcomes)))
	return nil
}
