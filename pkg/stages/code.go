package stages

import (
	"context"
	"regexp"
	"strings"

	"github.com/depsentry/depsentry/pkg/analysis"
)

// codePatterns are the rule set applied to install-script evidence. Each
// pattern names the behavior it detects; a match escalates the package to
// a malicious_package finding.
var codePatterns = []struct {
	name     string
	re       *regexp.Regexp
	severity analysis.Severity
}{
	{"remote code download", regexp.MustCompile(`(?i)\b(curl|wget|fetch)\b.*\bhttps?://`), analysis.SeverityCritical},
	{"piped shell execution", regexp.MustCompile(`\|\s*(ba)?sh\b`), analysis.SeverityCritical},
	{"base64 decoding", regexp.MustCompile(`(?i)base64\s*(-d|--decode|\.decode)`), analysis.SeverityHigh},
	{"eval of dynamic code", regexp.MustCompile(`\beval\s*\(`), analysis.SeverityHigh},
	{"child process spawn", regexp.MustCompile(`child_process|execSync|spawnSync`), analysis.SeverityHigh},
	{"environment harvesting", regexp.MustCompile(`process\.env|os\.environ`), analysis.SeverityMedium},
	{"hidden file write", regexp.MustCompile(`>\s*~?/\.[a-z]`), analysis.SeverityMedium},
	{"hex-obfuscated string", regexp.MustCompile(`(\\x[0-9a-fA-F]{2}){8,}`), analysis.SeverityHigh},
}

// CodeStage applies the rule set to the install-script evidence carried by
// earlier malicious_script findings. It consults no external services, so
// it is cheap and deterministic; the interesting work happened when the
// lockfile parser recorded the script bodies as evidence.
type CodeStage struct{}

// NewCodeStage creates the stage.
func NewCodeStage() *CodeStage { return &CodeStage{} }

func (s *CodeStage) Name() string { return "code" }

// Skip returns the predicate pairing for this stage: without script
// evidence from earlier stages there is nothing to scan.
func (s *CodeStage) Skip() analysis.SkipFunc {
	return analysis.SkipWithoutEvidence(analysis.FindingMaliciousScript, "no install-script evidence to scan")
}

func (s *CodeStage) Execute(ctx context.Context, pkgs []analysis.PackageIdentity, prior []analysis.Finding) ([]analysis.Finding, error) {
	var findings []analysis.Finding
	for _, f := range prior {
		if f.Type != analysis.FindingMaliciousScript {
			continue
		}
		if hit := scanEvidence(f); hit != nil {
			findings = append(findings, *hit)
		}
	}
	return findings, nil
}

// scanEvidence runs every pattern over every evidence line and folds the
// matches into one escalated finding, keeping the worst severity.
func scanEvidence(f analysis.Finding) *analysis.Finding {
	var (
		matched  []string
		worst    analysis.Severity
		worstSet bool
	)
	for _, line := range f.Evidence {
		for _, p := range codePatterns {
			if !p.re.MatchString(line) {
				continue
			}
			matched = append(matched, p.name+": "+truncate(line, 120))
			if !worstSet || severityWorse(p.severity, worst) {
				worst = p.severity
				worstSet = true
			}
		}
	}
	if len(matched) == 0 {
		return nil
	}

	return &analysis.Finding{
		PackageName:    f.PackageName,
		PackageVersion: f.PackageVersion,
		Type:           analysis.FindingMaliciousPackage,
		Severity:       worst,
		Description:    "install script matches known malicious patterns",
		Detection:      analysis.DetectionRuleBased,
		Confidence:     0.8,
		Evidence:       matched,
		Remediation:    "remove the package and audit systems where it was installed",
	}
}

func severityWorse(a, b analysis.Severity) bool {
	rank := map[analysis.Severity]int{
		analysis.SeverityCritical: 0,
		analysis.SeverityHigh:     1,
		analysis.SeverityMedium:   2,
		analysis.SeverityLow:      3,
	}
	return rank[a] < rank[b]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n]) + "..."
}
