package analysis

import (
	"testing"

	"github.com/depsentry/depsentry/pkg/graph"
)

func buildGraph(t *testing.T, edges []graph.Edge) *graph.Graph {
	t.Helper()
	return new(graph.Builder).Build(edges)
}

func TestExtractPackagesMergesSources(t *testing.T) {
	g := buildGraph(t, []graph.Edge{
		{Name: "app", Version: "1.0.0", Ecosystem: graph.EcosystemNPM},
		{Parent: "app@1.0.0", Name: "lodash", Version: "4.17.21", Ecosystem: graph.EcosystemNPM},
	})
	initial := []Finding{
		{PackageName: "evil-pkg", PackageVersion: "0.0.1", Type: FindingMaliciousScript, Severity: SeverityHigh},
	}

	got := ExtractPackages(initial, g)
	ids := make([]string, len(got))
	for i, p := range got {
		ids[i] = p.ID()
	}

	want := []string{"app@1.0.0", "evil-pkg@0.0.1", "lodash@4.17.21"}
	if len(ids) != len(want) {
		t.Fatalf("got %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("packages[%d] = %q, want %q (sorted by identity)", i, ids[i], want[i])
		}
	}
}

func TestExtractPackagesKnownVersionWins(t *testing.T) {
	g := buildGraph(t, []graph.Edge{
		{Name: "app", Version: "1.0.0"},
		{Parent: "app@1.0.0", Name: "requests", Version: "2.31.0", Ecosystem: graph.EcosystemPyPI},
	})
	initial := []Finding{
		{PackageName: "requests", PackageVersion: graph.UnknownVersion, Type: FindingLowReputation, Severity: SeverityLow},
	}

	got := ExtractPackages(initial, g)
	for _, p := range got {
		if p.Name == "requests" && p.Version == graph.UnknownVersion {
			t.Errorf("unknown-version entry survived alongside known version: %v", got)
		}
	}
	if len(got) != 2 {
		t.Errorf("len = %d, want 2 (app, requests@2.31.0)", len(got))
	}
}

func TestExtractPackagesCyclicGraph(t *testing.T) {
	g := buildGraph(t, []graph.Edge{
		{Name: "a", Version: "1"},
		{Parent: "a@1", Name: "b", Version: "1"},
		{Parent: "b@1", Name: "a", Version: "1"},
	})

	got := ExtractPackages(nil, g)
	if len(got) != 2 {
		t.Errorf("len = %d, want 2 despite cycle", len(got))
	}
}

func TestExtractPackagesEmptyInputs(t *testing.T) {
	if got := ExtractPackages(nil, nil); len(got) != 0 {
		t.Errorf("ExtractPackages(nil, nil) = %v, want empty", got)
	}
}

func TestExtractPackagesFillsEcosystem(t *testing.T) {
	g := buildGraph(t, []graph.Edge{
		{Name: "flask", Version: "3.0.0", Ecosystem: graph.EcosystemPyPI},
	})
	initial := []Finding{
		{PackageName: "flask", PackageVersion: "3.0.0", Type: FindingVulnerability, Severity: SeverityMedium},
	}

	got := ExtractPackages(initial, g)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].Ecosystem != graph.EcosystemPyPI {
		t.Errorf("Ecosystem = %q, want filled from graph", got[0].Ecosystem)
	}
}
