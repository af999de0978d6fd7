package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/gilt/pkg/cache"
	"github.com/matzehuels/gilt/pkg/manifest"
)

// statusCommand creates the status command.
func (c *CLI) statusCommand() *cobra.Command {
	var config string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show manifest dependencies and when they were last synced",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runStatus(cmd.Context(), config)
		},
	}

	cmd.Flags().StringVarP(&config, "config", "c", manifest.DefaultFile, "path to the manifest (.yml, .yaml or .toml)")
	return cmd
}

// runStatus prints a table of the manifest's dependencies.
func (c *CLI) runStatus(ctx context.Context, config string) error {
	deps, cfg, err := c.loadManifest(config)
	if err != nil {
		return err
	}
	state, err := cache.NewFileCache(cfg.StateDir())
	if err != nil {
		return fmt.Errorf("open sync state: %w", err)
	}
	defer state.Close()

	rows, synced := statusRows(ctx, deps, state, cfg.WorkDir, time.Now())
	fmt.Fprintln(c.stdout, renderStatusTable(rows))

	if synced < len(deps) {
		printNextStep("Install missing dependencies", "gilt overlay")
	}
	return nil
}

// statusRows builds one table row per dependency and counts those with a
// sync record.
func statusRows(ctx context.Context, deps []manifest.Dependency, state cache.Cache, workDir string, now time.Time) ([][]string, int) {
	rows := make([][]string, 0, len(deps))
	synced := 0
	for _, d := range deps {
		commit, when := "—", "never"
		rec, ok, err := cache.GetSyncRecord(ctx, state, d.Name)
		if err == nil && ok && rec.Version == d.Version {
			commit = shortSHA(rec.Commit)
			when = formatRelativeTime(rec.SyncedAt, now)
			synced++
		} else if err == nil && ok {
			when = "stale (" + rec.Version + ")"
		}

		mirror := "missing"
		if _, err := os.Stat(d.MirrorDir); err == nil {
			mirror = "present"
		}

		rows = append(rows, []string{d.Name, d.Version, d.Mode(), targetLabel(d, workDir), mirror, commit, when})
	}
	return rows, synced
}

// renderStatusTable renders rows with the status table headers.
func renderStatusTable(rows [][]string) string {
	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Dependency", "Version", "Mode", "Destination", "Mirror", "Commit", "Synced").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			base := lipgloss.NewStyle().Padding(0, 1)
			if row < 0 || row >= len(rows) {
				return base
			}
			switch {
			case col == 0:
				return base.Foreground(colorCyan)
			case col == 6 && rows[row][6] == "never":
				return base.Foreground(colorYellow)
			case col >= 4:
				return base.Foreground(colorGray)
			}
			return base
		})

	return t.Render()
}

// targetLabel lists a dependency's destinations relative to workDir.
func targetLabel(d manifest.Dependency, workDir string) string {
	if dst := d.Dst(); dst != "" {
		return relPath(workDir, dst)
	}
	ov, ok := d.Target.(manifest.Overlay)
	if !ok {
		return ""
	}
	dsts := make([]string, len(ov.Files))
	for i, f := range ov.Files {
		dsts[i] = relPath(workDir, f.Dst)
	}
	return strings.Join(dsts, ", ")
}

// =============================================================================
// Helpers
// =============================================================================

// relPath returns path relative to base when it lies beneath it.
func relPath(base, path string) string {
	rel, err := filepath.Rel(base, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	if strings.HasSuffix(path, string(filepath.Separator)) {
		rel += string(filepath.Separator)
	}
	return rel
}

func formatRelativeTime(t, now time.Time) string {
	diff := now.Sub(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	default:
		return t.Format("Jan 2, 2006")
	}
}
