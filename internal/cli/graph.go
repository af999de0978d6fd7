package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/gilt/pkg/manifest"
	"github.com/matzehuels/gilt/pkg/render/nodelink"
)

// Graph output formats.
const (
	formatDOT = "dot"
	formatSVG = "svg"
)

// graphOpts holds flags for the graph command.
type graphOpts struct {
	config   string
	format   string
	output   string
	detailed bool
}

// graphCommand creates the graph command.
func (c *CLI) graphCommand() *cobra.Command {
	opts := graphOpts{config: manifest.DefaultFile, format: formatDOT}

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Draw the manifest as a graph of repositories and destinations",
		Example: `  # Print DOT source
  gilt graph

  # Render an SVG
  gilt graph --format svg -o deps.svg`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runGraph(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.config, "config", "c", opts.config, "path to the manifest (.yml, .yaml or .toml)")
	cmd.Flags().StringVar(&opts.format, "format", opts.format, "output format: dot or svg")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write to file instead of stdout")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "include mirror paths and post-commands")

	return cmd
}

// runGraph renders the manifest in the requested format.
func (c *CLI) runGraph(ctx context.Context, opts graphOpts) error {
	format := strings.ToLower(opts.format)
	if format != formatDOT && format != formatSVG {
		return fmt.Errorf("unknown format %q (want dot or svg)", opts.format)
	}

	deps, cfg, err := c.loadManifest(opts.config)
	if err != nil {
		return err
	}

	dot := nodelink.ToDOT(deps, nodelink.Options{WorkDir: cfg.WorkDir, Detailed: opts.detailed})
	data := []byte(dot)
	if format == formatSVG {
		if data, err = nodelink.RenderSVG(ctx, dot); err != nil {
			return fmt.Errorf("render svg: %w", err)
		}
	}

	if opts.output == "" {
		_, err := c.stdout.Write(data)
		return err
	}
	if err := os.WriteFile(opts.output, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", opts.output, err)
	}
	printSuccess("Rendered %d dependencies", len(deps))
	printFile(opts.output)
	return nil
}
