// Package cli implements the gilt command-line interface.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/gilt/pkg/buildinfo"
	"github.com/matzehuels/gilt/pkg/cache"
	"github.com/matzehuels/gilt/pkg/manifest"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for display.
	appName = "gilt"

	// defaultJobs is the default number of dependencies processed at once.
	defaultJobs = 8
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// Debug echoes every external command and streams its output.
	Debug bool

	baseDir string // --gilt-dir
	stdout  io.Writer
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		stdout: os.Stdout,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "gilt overlays pinned git repositories onto your working tree",
		Long:         `gilt is a GIT layering tool. It clones the repositories listed in a manifest, checks out a pinned branch, tag or commit, and copies the whole tree or selected files into your working tree.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.baseDir, "gilt-dir", "",
		fmt.Sprintf("directory for clones, locks and sync state (default $%s or ~/.gilt)", manifest.EnvBaseDir))

	// Register all subcommands
	root.AddCommand(c.overlayCommand())
	root.AddCommand(c.statusCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.mirrorsCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Manifest & Paths
// =============================================================================

// config resolves the base and working directories for this invocation.
func (c *CLI) config() (manifest.Config, error) {
	base := c.baseDir
	if base == "" {
		var err error
		if base, err = manifest.DefaultBaseDir(); err != nil {
			return manifest.Config{}, err
		}
	}
	wd, err := os.Getwd()
	if err != nil {
		return manifest.Config{}, fmt.Errorf("get working directory: %w", err)
	}
	return manifest.Config{BaseDir: base, WorkDir: wd, Lookup: os.LookupEnv}, nil
}

// loadManifest loads the manifest at path against the current config.
func (c *CLI) loadManifest(path string) ([]manifest.Dependency, manifest.Config, error) {
	cfg, err := c.config()
	if err != nil {
		return nil, cfg, err
	}
	deps, err := manifest.Load(path, cfg)
	if err != nil {
		return nil, cfg, err
	}
	c.Logger.Debug("loaded manifest", "path", path, "dependencies", len(deps), "base", cfg.BaseDir)
	return deps, cfg, nil
}

// newStateCache opens the sync-state store, or a NullCache when disabled.
func newStateCache(cfg manifest.Config, disabled bool) (cache.Cache, error) {
	if disabled {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(cfg.StateDir())
}
