package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
)

// DefaultMaxDepth bounds serialization depth for any single path.
// It applies independently of cycle truncation.
const DefaultMaxDepth = 10

// Record is one node in the serialized tree view of the graph.
//
// A record with CircularReference set is a terminal marker: the same
// identity already appears on the current ancestor path, so descending
// again would re-expand a cycle. Terminal records always have empty
// children. Identities reached through independent paths are expanded in
// full at each occurrence; only re-entry into one's own ancestor chain is
// truncated.
type Record struct {
	Name              string    `json:"name"`
	Version           string    `json:"version"`
	Ecosystem         Ecosystem `json:"ecosystem"`
	Depth             int       `json:"depth"`
	CircularReference bool      `json:"circular_reference,omitempty"`
	Dependencies      []*Record `json:"dependencies,omitempty"`
}

// Serialize produces the bounded tree view of the graph.
//
// The walk carries a per-path set of visited identities, copied (not
// shared) when descending into each child, so siblings do not see each
// other's path history. Revisiting an identity on the current path emits a
// terminal record with CircularReference=true; exceeding maxDepth emits a
// terminal record without the flag. Worst-case output is O(edges × maxDepth)
// regardless of how many true cycles the underlying relation contains.
func Serialize(g *Graph, maxDepth int) []*Record {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	out := make([]*Record, 0, len(g.roots))
	for _, root := range g.roots {
		out = append(out, serializeNode(root, 0, maxDepth, map[string]bool{}))
	}
	return out
}

func serializeNode(n *Node, depth, maxDepth int, path map[string]bool) *Record {
	rec := &Record{
		Name:      n.Name,
		Version:   n.Version,
		Ecosystem: n.Ecosystem,
		Depth:     depth,
	}

	id := n.ID()
	if path[id] {
		rec.CircularReference = true
		return rec
	}
	if depth >= maxDepth {
		return rec
	}

	// Copy on descent: each child gets its own view of the ancestor chain.
	branch := maps.Clone(path)
	branch[id] = true

	for _, name := range slices.Sorted(maps.Keys(n.Dependencies)) {
		rec.Dependencies = append(rec.Dependencies, serializeNode(n.Dependencies[name], depth+1, maxDepth, branch))
	}
	return rec
}

// serialized is the on-disk envelope for a graph.
type serialized struct {
	Summary Summary   `json:"summary"`
	Roots   []*Record `json:"roots"`
}

// MarshalGraph converts a Graph to indented JSON bytes.
// Roots and dependencies are sorted for deterministic output.
func MarshalGraph(g *Graph, maxDepth int) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeGraphTo(g, maxDepth, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteGraph writes a Graph as JSON to an io.Writer.
func WriteGraph(g *Graph, maxDepth int, w io.Writer) error {
	return writeGraphTo(g, maxDepth, w)
}

// WriteGraphFile writes a Graph to a JSON file with 0644 permissions.
func WriteGraphFile(g *Graph, maxDepth int, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return writeGraphTo(g, maxDepth, f)
}

func writeGraphTo(g *Graph, maxDepth int, w io.Writer) error {
	out := serialized{
		Summary: g.Summarize(),
		Roots:   Serialize(g, maxDepth),
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}
