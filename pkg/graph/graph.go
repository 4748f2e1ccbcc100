package graph

import (
	"fmt"
	"maps"
	"slices"
)

// Ecosystem identifies the package registry a node belongs to.
type Ecosystem string

const (
	EcosystemNPM   Ecosystem = "npm"
	EcosystemPyPI  Ecosystem = "pypi"
	EcosystemOther Ecosystem = "other"
)

// UnknownVersion is the placeholder used when a manifest or registry does
// not pin a concrete version for a package.
const UnknownVersion = "unknown"

// Identity returns the canonical name@version identity for a package.
// An empty version is normalized to UnknownVersion.
func Identity(name, version string) string {
	if version == "" {
		version = UnknownVersion
	}
	return name + "@" + version
}

// Node is one package-version in the dependency graph.
// A node is materialized once per identity; every later reference to the
// same identity links the existing node rather than duplicating it.
// Nodes are read-only after Builder.Build returns.
type Node struct {
	Name      string
	Version   string
	Ecosystem Ecosystem

	// Depth is the distance from a declared root at the time the node was
	// first seen. It is deliberately not recomputed when the node is later
	// reached through a shorter or longer path ("first-seen depth wins"),
	// which keeps builds deterministic for cyclic inputs.
	Depth int

	// Dependencies maps dependency name to the shared child node.
	Dependencies map[string]*Node
}

// ID returns the node's name@version identity.
func (n *Node) ID() string { return Identity(n.Name, n.Version) }

// Graph is the immutable-after-build dependency graph.
type Graph struct {
	roots []*Node
	nodes map[string]*Node // arena keyed by identity

	versions  map[string]map[string]bool // name -> set of versions seen
	circular  int
	malformed int
}

// Roots returns the declared root nodes in insertion order.
func (g *Graph) Roots() []*Node { return g.roots }

// Node returns the node with the given name@version identity.
func (g *Graph) Node(identity string) (*Node, bool) {
	n, ok := g.nodes[identity]
	return n, ok
}

// Packages returns every distinct node sorted by identity.
// This is the graph's flat package list; the package extractor and the
// stage executors iterate it rather than walking the tree.
func (g *Graph) Packages() []*Node {
	ids := slices.Sorted(maps.Keys(g.nodes))
	out := make([]*Node, len(ids))
	for i, id := range ids {
		out[i] = g.nodes[id]
	}
	return out
}

// PackageCount returns the number of distinct name@version identities.
func (g *Graph) PackageCount() int { return len(g.nodes) }

// CircularCount returns the number of edges that close a cycle, i.e. edges
// whose target could already reach the source when the edge was inserted.
func (g *Graph) CircularCount() int { return g.circular }

// ConflictCount returns the number of distinct names that appear with two
// or more different versions anywhere in the graph.
func (g *Graph) ConflictCount() int {
	conflicts := 0
	for _, vs := range g.versions {
		if len(vs) > 1 {
			conflicts++
		}
	}
	return conflicts
}

// MalformedCount returns the number of edges skipped during the build
// because they were missing a package name.
func (g *Graph) MalformedCount() int { return g.malformed }

// Summary holds the graph-level counts attached to analysis reports.
// The full tree is deliberately excluded to keep reports small.
type Summary struct {
	PackageCount            int `json:"package_count"`
	CircularDependencyCount int `json:"circular_dependency_count"`
	VersionConflictCount    int `json:"version_conflict_count"`
	MalformedEdgeCount      int `json:"malformed_edge_count,omitempty"`
}

// Summarize returns the counts-only view of the graph.
func (g *Graph) Summarize() Summary {
	return Summary{
		PackageCount:            g.PackageCount(),
		CircularDependencyCount: g.CircularCount(),
		VersionConflictCount:    g.ConflictCount(),
		MalformedEdgeCount:      g.MalformedCount(),
	}
}

// String implements fmt.Stringer for log output.
func (g *Graph) String() string {
	return fmt.Sprintf("graph{packages: %d, circular: %d, conflicts: %d}",
		g.PackageCount(), g.CircularCount(), g.ConflictCount())
}
