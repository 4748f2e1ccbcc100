package stages

import (
	"context"
	"errors"
	"testing"

	"github.com/depsentry/depsentry/pkg/analysis"
	"github.com/depsentry/depsentry/pkg/graph"
	"github.com/depsentry/depsentry/pkg/integrations/osv"
)

type stubAdvisoryClient struct {
	results [][]osv.Vulnerability
	err     error
	queries []osv.Query
}

func (s *stubAdvisoryClient) QueryBatch(ctx context.Context, queries []osv.Query, refresh bool) ([][]osv.Vulnerability, error) {
	s.queries = queries
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

func TestVulnerabilityStage(t *testing.T) {
	client := &stubAdvisoryClient{results: [][]osv.Vulnerability{
		{{ID: "GHSA-xxxx", Summary: "prototype pollution", Severity: "HIGH", Fixed: "4.17.21"}},
		{},
	}}
	stage := NewVulnerabilityStage(client, false)

	pkgs := []analysis.PackageIdentity{
		{Name: "lodash", Version: "4.17.20", Ecosystem: graph.EcosystemNPM},
		{Name: "left-pad", Version: "1.3.0", Ecosystem: graph.EcosystemNPM},
	}
	findings, err := stage.Execute(context.Background(), pkgs, nil)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if len(findings) != 1 {
		t.Fatalf("findings len = %d, want 1", len(findings))
	}
	f := findings[0]
	if f.Type != analysis.FindingVulnerability {
		t.Errorf("Type = %q, want vulnerability", f.Type)
	}
	if f.Severity != analysis.SeverityHigh {
		t.Errorf("Severity = %q, want high", f.Severity)
	}
	if f.Remediation == "" {
		t.Error("Remediation is empty, want upgrade advice from fixed version")
	}
	if len(client.queries) != 2 {
		t.Errorf("queries sent = %d, want 2", len(client.queries))
	}
}

func TestVulnerabilityStageMaliciousAdvisory(t *testing.T) {
	client := &stubAdvisoryClient{results: [][]osv.Vulnerability{
		{{ID: "MAL-2024-1234", Summary: "malicious code in package"}},
	}}
	stage := NewVulnerabilityStage(client, false)

	findings, err := stage.Execute(context.Background(), []analysis.PackageIdentity{
		{Name: "evil-pkg", Version: "1.0.0", Ecosystem: graph.EcosystemNPM},
	}, nil)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if findings[0].Type != analysis.FindingMaliciousPackage {
		t.Errorf("Type = %q, want malicious_package for MAL- advisory", findings[0].Type)
	}
	if findings[0].Severity != analysis.SeverityCritical {
		t.Errorf("Severity = %q, want critical", findings[0].Severity)
	}
}

func TestVulnerabilityStageError(t *testing.T) {
	client := &stubAdvisoryClient{err: errors.New("osv unavailable")}
	stage := NewVulnerabilityStage(client, false)

	_, err := stage.Execute(context.Background(), []analysis.PackageIdentity{
		{Name: "a", Version: "1"},
	}, nil)
	if err == nil {
		t.Error("Execute() error = nil, want the wrapped lookup error")
	}
}

func TestAdvisorySeverity(t *testing.T) {
	tests := []struct {
		in   string
		want analysis.Severity
	}{
		{"CRITICAL", analysis.SeverityCritical},
		{"HIGH", analysis.SeverityHigh},
		{"MODERATE", analysis.SeverityMedium},
		{"medium", analysis.SeverityMedium},
		{"LOW", analysis.SeverityLow},
		{"", analysis.SeverityMedium},
	}
	for _, tt := range tests {
		got := advisorySeverity(osv.Vulnerability{Severity: tt.in})
		if got != tt.want {
			t.Errorf("advisorySeverity(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
