package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/gilt/pkg/manifest"
)

// Options configures diagram generation.
type Options struct {
	// WorkDir is stripped from destination labels.
	WorkDir string

	// Detailed adds the mirror directory and post-commands to labels.
	Detailed bool
}

// ToDOT converts deps to Graphviz DOT source. Dependencies that write to the
// same destination share its node.
func ToDOT(deps []manifest.Dependency, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph gilt {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=1.0;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	seen := make(map[string]bool)
	for i, d := range deps {
		id := fmt.Sprintf("dep%d", i)
		fmt.Fprintf(&buf, "  %q [label=%q];\n", id, depLabel(d, opts.Detailed))

		for _, e := range edges(d) {
			dst := relLabel(opts.WorkDir, e.dst)
			if !seen[dst] {
				seen[dst] = true
				fmt.Fprintf(&buf, "  %q [label=%q, shape=folder, style=filled, fillcolor=lightgrey];\n", "dst:"+dst, dst)
			}
			fmt.Fprintf(&buf, "  %q -> %q [label=%q];\n", id, "dst:"+dst, e.label)
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

type edge struct {
	dst   string
	label string
}

func edges(d manifest.Dependency) []edge {
	switch t := d.Target.(type) {
	case manifest.Extract:
		return []edge{{dst: t.Dst, label: "extract"}}
	case manifest.Devel:
		return []edge{{dst: t.Dst, label: "devel"}}
	case manifest.Overlay:
		out := make([]edge, 0, len(t.Files))
		for _, f := range t.Files {
			out = append(out, edge{dst: f.Dst, label: f.Src})
		}
		return out
	}
	return nil
}

func depLabel(d manifest.Dependency, detailed bool) string {
	label := d.Name + "\n@" + d.Version
	if !detailed {
		return label
	}
	parts := []string{label, d.MirrorDir}
	for _, c := range d.PostCommands {
		parts = append(parts, "$ "+c)
	}
	return strings.Join(parts, "\n")
}

// relLabel shows dst relative to workDir when it lies beneath it.
func relLabel(workDir, dst string) string {
	trailing := strings.HasSuffix(dst, string(filepath.Separator))
	if workDir != "" {
		if rel, err := filepath.Rel(workDir, filepath.Clean(dst)); err == nil && !strings.HasPrefix(rel, "..") {
			dst = filepath.ToSlash(rel)
			if trailing {
				dst += "/"
			}
		}
	}
	return dst
}

// RenderSVG renders DOT source to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox rewrites the root element so the drawing scales from the
// origin.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}
