package graph

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/goccy/go-graphviz"
)

// DotOptions configures DOT export.
type DotOptions struct {
	// Highlights maps name@version identities to a severity string
	// ("critical", "high", "medium", "low"); matching nodes are filled
	// with the severity color.
	Highlights map[string]string
}

var severityFill = map[string]string{
	"critical": "#d64550",
	"high":     "#e8913a",
	"medium":   "#e5c453",
	"low":      "#9bb8d3",
}

// ToDOT converts the graph to Graphviz DOT format. Nodes carrying findings
// are colored by their worst severity so risky packages stand out.
func ToDOT(g *Graph, opts DotOptions) string {
	var buf bytes.Buffer
	buf.WriteString("digraph deps {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=12];\n")
	buf.WriteString("\n")

	for _, n := range g.Packages() {
		id := n.ID()
		attrs := []string{fmt.Sprintf("label=%q", n.Name+"\n"+n.Version)}
		if sev, ok := opts.Highlights[id]; ok {
			if fill, known := severityFill[sev]; known {
				attrs = append(attrs, fmt.Sprintf("fillcolor=%q", fill))
			}
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", id, strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, n := range g.Packages() {
		for _, name := range slices.Sorted(maps.Keys(n.Dependencies)) {
			fmt.Fprintf(&buf, "  %q -> %q;\n", n.ID(), n.Dependencies[name].ID())
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

// RenderSVG renders the graph to SVG via graphviz.
func RenderSVG(ctx context.Context, g *Graph, opts DotOptions) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	parsed, err := graphviz.ParseBytes([]byte(ToDOT(g, opts)))
	if err != nil {
		return nil, fmt.Errorf("parse dot: %w", err)
	}
	defer parsed.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, parsed, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render svg: %w", err)
	}
	return buf.Bytes(), nil
}
