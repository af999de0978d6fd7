// Package render draws manifests as diagrams.
//
// The [nodelink] subpackage renders the dependency-to-destination mapping of
// a manifest as a Graphviz node-link diagram.
//
// [nodelink]: github.com/matzehuels/gilt/pkg/render/nodelink
package render
