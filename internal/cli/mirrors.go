package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// mirrorsCommand creates the mirrors management command.
func (c *CLI) mirrorsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mirrors",
		Short: "Manage the local mirrors, locks and sync state",
	}

	cmd.AddCommand(c.mirrorsClearCommand())
	cmd.AddCommand(c.mirrorsPathCommand())

	return cmd
}

// mirrorsClearCommand creates the "mirrors clear" subcommand.
func (c *CLI) mirrorsClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all mirrors, lock files and sync state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.config()
			if err != nil {
				return err
			}

			if _, err := os.Stat(cfg.BaseDir); os.IsNotExist(err) {
				printInfo("Nothing to clear")
				return nil
			}

			count, err := countMirrors(cfg.CloneDir())
			if err != nil {
				return err
			}
			for _, dir := range []string{cfg.CloneDir(), cfg.LockDir(), cfg.StateDir()} {
				if err := os.RemoveAll(dir); err != nil {
					return fmt.Errorf("remove %s: %w", dir, err)
				}
			}

			printSuccess("Cleared %d mirrors", count)
			printDetail("Directory: %s", cfg.BaseDir)
			return nil
		},
	}
}

// mirrorsPathCommand creates the "mirrors path" subcommand.
func (c *CLI) mirrorsPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the base directory path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.config()
			if err != nil {
				return err
			}
			fmt.Fprintln(c.stdout, cfg.BaseDir)
			return nil
		},
	}
}

// countMirrors counts the clones under dir, laid out as <host>/<name>.
func countMirrors(dir string) (int, error) {
	hosts, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", dir, err)
	}
	count := 0
	for _, h := range hosts {
		if !h.IsDir() {
			continue
		}
		names, err := os.ReadDir(filepath.Join(dir, h.Name()))
		if err != nil {
			continue
		}
		for _, n := range names {
			if n.IsDir() {
				count++
			}
		}
	}
	return count, nil
}
