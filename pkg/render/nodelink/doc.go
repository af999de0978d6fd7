// Package nodelink renders a manifest as a node-link diagram.
//
// # Overview
//
// Each dependency becomes a box labelled with its resolved name and version.
// Each destination becomes a folder-shaped node, and arrows connect a
// dependency to the paths it writes. Overlay arrows are labelled with the
// source path they copy; extract and devel arrows with the mode.
//
// # Usage
//
//	dot := nodelink.ToDOT(deps, nodelink.Options{WorkDir: wd})
//	svg, err := nodelink.RenderSVG(dot)
//
// # Options
//
//   - WorkDir: destinations under it are shown relative to it
//   - Detailed: when true, labels include the mirror directory and commands
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz] for in-process SVG
// rendering.
package nodelink
