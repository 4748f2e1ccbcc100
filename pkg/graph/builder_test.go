package graph

import "testing"

func TestBuildSinglePackage(t *testing.T) {
	g := new(Builder).Build([]Edge{
		{Parent: "", Name: "app", Version: "1.0.0", Ecosystem: EcosystemNPM},
	})

	if g.PackageCount() != 1 {
		t.Errorf("PackageCount() = %d, want 1", g.PackageCount())
	}
	if len(g.Roots()) != 1 {
		t.Fatalf("Roots() = %d, want 1", len(g.Roots()))
	}
	root := g.Roots()[0]
	if root.Name != "app" || root.Depth != 0 {
		t.Errorf("root = %s depth %d, want app depth 0", root.Name, root.Depth)
	}
}

func TestBuildTransitiveChain(t *testing.T) {
	g := new(Builder).Build([]Edge{
		{Parent: "", Name: "app", Version: "1.0.0"},
		{Parent: "app@1.0.0", Name: "express", Version: "4.18.2", Ecosystem: EcosystemNPM},
		{Parent: "express@4.18.2", Name: "body-parser", Version: "1.20.1", Ecosystem: EcosystemNPM},
	})

	if g.PackageCount() != 3 {
		t.Errorf("PackageCount() = %d, want 3", g.PackageCount())
	}

	bp, ok := g.Node("body-parser@1.20.1")
	if !ok {
		t.Fatal("body-parser node not found")
	}
	if bp.Depth != 2 {
		t.Errorf("body-parser depth = %d, want 2", bp.Depth)
	}
}

func TestBuildSharedDependencyIsNotDuplicated(t *testing.T) {
	// a and b both depend on c; c must be one node referenced twice.
	g := new(Builder).Build([]Edge{
		{Parent: "", Name: "root", Version: "1.0.0"},
		{Parent: "root@1.0.0", Name: "a", Version: "1.0.0"},
		{Parent: "root@1.0.0", Name: "b", Version: "1.0.0"},
		{Parent: "a@1.0.0", Name: "c", Version: "2.0.0"},
		{Parent: "b@1.0.0", Name: "c", Version: "2.0.0"},
	})

	if g.PackageCount() != 4 {
		t.Errorf("PackageCount() = %d, want 4", g.PackageCount())
	}
	a, _ := g.Node("a@1.0.0")
	b, _ := g.Node("b@1.0.0")
	if a.Dependencies["c"] != b.Dependencies["c"] {
		t.Error("shared dependency should be a single node")
	}
}

func TestBuildFirstSeenDepthWins(t *testing.T) {
	// c is first seen at depth 2 via a, then again at depth 1 via root.
	g := new(Builder).Build([]Edge{
		{Parent: "", Name: "root", Version: "1.0.0"},
		{Parent: "root@1.0.0", Name: "a", Version: "1.0.0"},
		{Parent: "a@1.0.0", Name: "c", Version: "1.0.0"},
		{Parent: "root@1.0.0", Name: "c", Version: "1.0.0"},
	})

	c, ok := g.Node("c@1.0.0")
	if !ok {
		t.Fatal("c not found")
	}
	if c.Depth != 2 {
		t.Errorf("c depth = %d, want 2 (first-seen)", c.Depth)
	}
}

func TestBuildCycleDetection(t *testing.T) {
	// root -> A, A -> B, B -> A.
	g := new(Builder).Build([]Edge{
		{Parent: "", Name: "root", Version: "1.0.0"},
		{Parent: "root@1.0.0", Name: "A", Version: "1.0.0"},
		{Parent: "A@1.0.0", Name: "B", Version: "1.0.0"},
		{Parent: "B@1.0.0", Name: "A", Version: "1.0.0"},
	})

	if g.PackageCount() != 3 {
		t.Errorf("PackageCount() = %d, want 3", g.PackageCount())
	}
	if g.CircularCount() != 1 {
		t.Errorf("CircularCount() = %d, want 1", g.CircularCount())
	}
}

func TestBuildSelfDependency(t *testing.T) {
	g := new(Builder).Build([]Edge{
		{Parent: "", Name: "a", Version: "1.0.0"},
		{Parent: "a@1.0.0", Name: "a", Version: "1.0.0"},
	})
	if g.CircularCount() != 1 {
		t.Errorf("CircularCount() = %d, want 1", g.CircularCount())
	}
	if g.PackageCount() != 1 {
		t.Errorf("PackageCount() = %d, want 1", g.PackageCount())
	}
}

func TestBuildVersionConflicts(t *testing.T) {
	g := new(Builder).Build([]Edge{
		{Parent: "", Name: "root", Version: "1.0.0"},
		{Parent: "root@1.0.0", Name: "lodash", Version: "4.17.21"},
		{Parent: "root@1.0.0", Name: "dep", Version: "1.0.0"},
		{Parent: "dep@1.0.0", Name: "lodash", Version: "3.10.1"},
	})

	if g.ConflictCount() != 1 {
		t.Errorf("ConflictCount() = %d, want 1", g.ConflictCount())
	}
	if g.PackageCount() != 4 {
		t.Errorf("PackageCount() = %d, want 4 (two lodash versions are distinct identities)", g.PackageCount())
	}
}

func TestBuildMalformedEdgesAreSkipped(t *testing.T) {
	g := new(Builder).Build([]Edge{
		{Parent: "", Name: "root", Version: "1.0.0"},
		{Parent: "root@1.0.0", Name: "", Version: "1.0.0"}, // missing name
		{Parent: "root@1.0.0", Name: "ok", Version: "1.0.0"},
	})

	if g.MalformedCount() != 1 {
		t.Errorf("MalformedCount() = %d, want 1", g.MalformedCount())
	}
	if g.PackageCount() != 2 {
		t.Errorf("PackageCount() = %d, want 2", g.PackageCount())
	}
}

func TestBuildUnknownVersionNormalized(t *testing.T) {
	g := new(Builder).Build([]Edge{
		{Parent: "", Name: "root", Version: ""},
	})
	root := g.Roots()[0]
	if root.Version != UnknownVersion {
		t.Errorf("Version = %q, want %q", root.Version, UnknownVersion)
	}
	if _, ok := g.Node("root@unknown"); !ok {
		t.Error("node should be addressable as root@unknown")
	}
}

func TestBuildImplicitRootFromUnknownParent(t *testing.T) {
	// Parent identity never declared: materialized as a root at depth 0.
	g := new(Builder).Build([]Edge{
		{Parent: "app@1.0.0", Name: "dep", Version: "2.0.0"},
	})

	if len(g.Roots()) != 1 {
		t.Fatalf("Roots() = %d, want 1", len(g.Roots()))
	}
	if g.Roots()[0].Name != "app" {
		t.Errorf("root = %q, want app", g.Roots()[0].Name)
	}
	dep, _ := g.Node("dep@2.0.0")
	if dep.Depth != 1 {
		t.Errorf("dep depth = %d, want 1", dep.Depth)
	}
}

func TestSplitIdentity(t *testing.T) {
	tests := []struct {
		id         string
		name, vers string
	}{
		{"lodash@4.17.21", "lodash", "4.17.21"},
		{"@types/node@20.1.0", "@types/node", "20.1.0"},
		{"noversion", "noversion", ""},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			name, vers := splitIdentity(tt.id)
			if name != tt.name || vers != tt.vers {
				t.Errorf("splitIdentity(%q) = (%q, %q), want (%q, %q)", tt.id, name, vers, tt.name, tt.vers)
			}
		})
	}
}
