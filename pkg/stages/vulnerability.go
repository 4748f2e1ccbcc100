package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/depsentry/depsentry/pkg/analysis"
	"github.com/depsentry/depsentry/pkg/integrations/osv"
)

// AdvisoryClient is the OSV capability the vulnerability stage needs.
type AdvisoryClient interface {
	QueryBatch(ctx context.Context, queries []osv.Query, refresh bool) ([][]osv.Vulnerability, error)
}

// VulnerabilityStage looks up every package-version in the OSV advisory
// database and converts known advisories into findings. OSV's malicious
// package advisories (MAL- prefixed) surface as malicious_package
// findings rather than plain vulnerabilities.
type VulnerabilityStage struct {
	client  AdvisoryClient
	refresh bool
}

// NewVulnerabilityStage creates the stage over an OSV client.
func NewVulnerabilityStage(client AdvisoryClient, refresh bool) *VulnerabilityStage {
	return &VulnerabilityStage{client: client, refresh: refresh}
}

func (s *VulnerabilityStage) Name() string { return "vulnerability" }

func (s *VulnerabilityStage) Execute(ctx context.Context, pkgs []analysis.PackageIdentity, prior []analysis.Finding) ([]analysis.Finding, error) {
	queries := make([]osv.Query, len(pkgs))
	for i, p := range pkgs {
		queries[i] = osv.Query{Name: p.Name, Version: p.Version, Ecosystem: p.Ecosystem}
	}

	results, err := s.client.QueryBatch(ctx, queries, s.refresh)
	if err != nil {
		return nil, fmt.Errorf("vulnerability lookup: %w", err)
	}

	var findings []analysis.Finding
	for i, vulns := range results {
		for _, v := range vulns {
			findings = append(findings, advisoryFinding(pkgs[i], v))
		}
	}
	return findings, nil
}

func advisoryFinding(pkg analysis.PackageIdentity, v osv.Vulnerability) analysis.Finding {
	f := analysis.Finding{
		PackageName:    pkg.Name,
		PackageVersion: pkg.Version,
		Type:           analysis.FindingVulnerability,
		Severity:       advisorySeverity(v),
		Description:    v.Summary,
		Detection:      analysis.DetectionRuleBased,
		Confidence:     1.0,
		Evidence:       append([]string{v.ID}, v.Aliases...),
	}
	if f.Description == "" {
		f.Description = "known vulnerability " + v.ID
	}
	if strings.HasPrefix(v.ID, "MAL-") {
		f.Type = analysis.FindingMaliciousPackage
		f.Severity = analysis.SeverityCritical
	}
	if v.Fixed != "" {
		f.Remediation = fmt.Sprintf("upgrade %s to %s or later", pkg.Name, v.Fixed)
	}
	return f
}

func advisorySeverity(v osv.Vulnerability) analysis.Severity {
	switch strings.ToUpper(v.Severity) {
	case "CRITICAL":
		return analysis.SeverityCritical
	case "HIGH":
		return analysis.SeverityHigh
	case "MODERATE", "MEDIUM":
		return analysis.SeverityMedium
	case "LOW":
		return analysis.SeverityLow
	default:
		// Advisories without a severity rating still matter.
		return analysis.SeverityMedium
	}
}
