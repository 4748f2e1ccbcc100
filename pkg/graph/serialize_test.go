package graph

import (
	"encoding/json"
	"strings"
	"testing"
)

func cyclicGraph() *Graph {
	// root -> A -> B -> A
	return new(Builder).Build([]Edge{
		{Parent: "", Name: "root", Version: "1.0.0"},
		{Parent: "root@1.0.0", Name: "A", Version: "1.0.0"},
		{Parent: "A@1.0.0", Name: "B", Version: "1.0.0"},
		{Parent: "B@1.0.0", Name: "A", Version: "1.0.0"},
	})
}

func TestSerializeTerminatesOnCycle(t *testing.T) {
	recs := Serialize(cyclicGraph(), DefaultMaxDepth)
	if len(recs) != 1 {
		t.Fatalf("roots = %d, want 1", len(recs))
	}

	a := recs[0].Dependencies[0]
	if a.Name != "A" || a.CircularReference {
		t.Fatalf("first A should be fully expanded, got circular=%v", a.CircularReference)
	}
	b := a.Dependencies[0]
	if b.Name != "B" {
		t.Fatalf("expected B under A, got %s", b.Name)
	}

	// B's child A re-enters the ancestor chain: terminal marker, no children.
	back := b.Dependencies[0]
	if !back.CircularReference {
		t.Error("cycle re-entry should be marked circular_reference")
	}
	if len(back.Dependencies) != 0 {
		t.Error("circular terminal must have empty children")
	}
}

func TestSerializeCrossBranchReuseIsExpandedTwice(t *testing.T) {
	// a and b both depend on shared; shared must appear fully in both
	// branches because the paths do not overlap.
	g := new(Builder).Build([]Edge{
		{Parent: "", Name: "root", Version: "1.0.0"},
		{Parent: "root@1.0.0", Name: "a", Version: "1.0.0"},
		{Parent: "root@1.0.0", Name: "b", Version: "1.0.0"},
		{Parent: "a@1.0.0", Name: "shared", Version: "1.0.0"},
		{Parent: "b@1.0.0", Name: "shared", Version: "1.0.0"},
		{Parent: "shared@1.0.0", Name: "leaf", Version: "1.0.0"},
	})

	recs := Serialize(g, DefaultMaxDepth)
	root := recs[0]
	if len(root.Dependencies) != 2 {
		t.Fatalf("root children = %d, want 2", len(root.Dependencies))
	}
	for _, branch := range root.Dependencies {
		shared := branch.Dependencies[0]
		if shared.CircularReference {
			t.Errorf("shared under %s must not be marked circular", branch.Name)
		}
		if len(shared.Dependencies) != 1 || shared.Dependencies[0].Name != "leaf" {
			t.Errorf("shared under %s should be fully expanded", branch.Name)
		}
	}
}

func TestSerializeDepthCutoff(t *testing.T) {
	// Linear chain longer than maxDepth.
	edges := []Edge{{Parent: "", Name: "p0", Version: "1"}}
	for i := 0; i < 6; i++ {
		edges = append(edges, Edge{
			Parent:  Identity(pkgName(i), "1"),
			Name:    pkgName(i + 1),
			Version: "1",
		})
	}
	g := new(Builder).Build(edges)

	recs := Serialize(g, 3)
	depth := 0
	rec := recs[0]
	for len(rec.Dependencies) > 0 {
		rec = rec.Dependencies[0]
		depth++
	}
	if depth != 3 {
		t.Errorf("serialized depth = %d, want 3", depth)
	}
	if rec.CircularReference {
		t.Error("depth cutoff must not be marked as circular reference")
	}
}

func pkgName(i int) string {
	return "p" + string(rune('0'+i))
}

func TestSerializeBoundedOutputForDenseCycles(t *testing.T) {
	// Fully-connected 4-package cycle; serialization must terminate and
	// stay small rather than exploding combinatorially.
	names := []string{"w", "x", "y", "z"}
	edges := []Edge{{Parent: "", Name: "w", Version: "1"}}
	for _, from := range names {
		for _, to := range names {
			if from == to {
				continue
			}
			edges = append(edges, Edge{Parent: Identity(from, "1"), Name: to, Version: "1"})
		}
	}
	g := new(Builder).Build(edges)

	recs := Serialize(g, 6)
	if n := countRecords(recs); n > 200 {
		t.Errorf("serialized %d records; expected bounded output", n)
	}
}

func countRecords(recs []*Record) int {
	n := 0
	for _, r := range recs {
		n += 1 + countRecords(r.Dependencies)
	}
	return n
}

func TestMarshalGraphDeterministic(t *testing.T) {
	g := cyclicGraph()

	first, err := MarshalGraph(g, DefaultMaxDepth)
	if err != nil {
		t.Fatalf("MarshalGraph: %v", err)
	}
	second, err := MarshalGraph(g, DefaultMaxDepth)
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Error("MarshalGraph output must be deterministic")
	}

	var out struct {
		Summary Summary `json:"summary"`
	}
	if err := json.Unmarshal(first, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Summary.PackageCount != 3 || out.Summary.CircularDependencyCount != 1 {
		t.Errorf("summary = %+v, want 3 packages / 1 circular", out.Summary)
	}
}

func TestToDOTHighlightsFindings(t *testing.T) {
	g := cyclicGraph()
	dot := ToDOT(g, DotOptions{Highlights: map[string]string{"A@1.0.0": "critical"}})

	if !strings.Contains(dot, "digraph deps") {
		t.Error("missing digraph header")
	}
	if !strings.Contains(dot, severityFill["critical"]) {
		t.Error("highlighted node should carry the severity fill color")
	}
	if !strings.Contains(dot, `"B@1.0.0" -> "A@1.0.0"`) {
		t.Error("missing cycle edge in DOT output")
	}
}
