package analysis

import (
	"slices"
	"strings"

	"github.com/depsentry/depsentry/pkg/graph"
)

// PackageIdentity is one distinct name@version drawn from the scan inputs.
type PackageIdentity struct {
	Name      string          `json:"name"`
	Version   string          `json:"version"`
	Ecosystem graph.Ecosystem `json:"ecosystem,omitempty"`
}

// ID returns the canonical name@version identity.
func (p PackageIdentity) ID() string { return graph.Identity(p.Name, p.Version) }

// ExtractPackages merges package identities from every available source
// into one deduplicated set: initial rule-based findings first, then the
// graph's root traversal, then its flat package list. When the same name
// appears with both a known and an unknown version, the known version wins
// and the unknown occurrence is dropped. Output is sorted by identity.
func ExtractPackages(initial []Finding, g *graph.Graph) []PackageIdentity {
	seen := make(map[string]PackageIdentity)

	add := func(name, version string, eco graph.Ecosystem) {
		if name == "" {
			return
		}
		if version == "" {
			version = graph.UnknownVersion
		}
		id := graph.Identity(name, version)
		if existing, ok := seen[id]; ok {
			// Earlier sources win for metadata; only fill gaps.
			if existing.Ecosystem == "" {
				existing.Ecosystem = eco
				seen[id] = existing
			}
			return
		}
		seen[id] = PackageIdentity{Name: name, Version: version, Ecosystem: eco}
	}

	for _, f := range initial {
		add(f.PackageName, f.PackageVersion, "")
	}
	if g != nil {
		for _, root := range g.Roots() {
			collectNodes(root, make(map[*graph.Node]bool), func(n *graph.Node) {
				add(n.Name, n.Version, n.Ecosystem)
			})
		}
		for _, n := range g.Packages() {
			add(n.Name, n.Version, n.Ecosystem)
		}
	}

	// Known versions supersede unknown occurrences of the same name.
	known := make(map[string]bool)
	for _, p := range seen {
		if p.Version != graph.UnknownVersion {
			known[p.Name] = true
		}
	}
	out := make([]PackageIdentity, 0, len(seen))
	for _, p := range seen {
		if p.Version == graph.UnknownVersion && known[p.Name] {
			continue
		}
		out = append(out, p)
	}

	slices.SortFunc(out, func(a, b PackageIdentity) int {
		return strings.Compare(a.ID(), b.ID())
	})
	return out
}

// collectNodes walks dependency edges once per node. Unlike serialization
// this is identity-global, not per-path: extraction only needs each node
// once, and the visited set keeps cyclic graphs from looping.
func collectNodes(n *graph.Node, visited map[*graph.Node]bool, fn func(*graph.Node)) {
	if visited[n] {
		return
	}
	visited[n] = true
	fn(n)
	for _, dep := range n.Dependencies {
		collectNodes(dep, visited, fn)
	}
}
