package analysis

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// FallbackFunc derives a synthesis-equivalent result from accumulated
// findings alone. Implementations must be pure: no external calls, no
// failure modes.
type FallbackFunc func(findings []Finding) *SynthesisResult

// severity weights for the fallback risk score.
var severityWeight = map[Severity]float64{
	SeverityCritical: 0.40,
	SeverityHigh:     0.20,
	SeverityMedium:   0.08,
	SeverityLow:      0.03,
}

// DeriveSynthesis is the default fallback synthesizer: a deterministic
// transformation of the known findings into the synthesis shape. It is
// invoked when the agent-backed synthesis stage fails validation, errors,
// times out, or is skipped for budget, and it never fails.
func DeriveSynthesis(findings []Finding) *SynthesisResult {
	if len(findings) == 0 {
		return &SynthesisResult{
			Summary:     "No supply-chain risks were identified in the analyzed packages.",
			RiskScore:   0,
			GeneratedBy: SynthesisByFallback,
		}
	}

	counts := make(map[Severity]int)
	score := 0.0
	for _, f := range findings {
		counts[f.Severity]++
		score += severityWeight[f.Severity]
	}
	score = math.Min(score, 1.0)

	sorted := make([]Finding, len(findings))
	copy(sorted, findings)
	// findings arrive pre-sorted from the accumulator snapshot, but the
	// fallback must not depend on caller ordering.
	slices.SortStableFunc(sorted, compareFindings)

	topRisks := make([]string, 0, 5)
	remediations := make([]string, 0, 5)
	for _, f := range sorted {
		if len(topRisks) < 5 {
			topRisks = append(topRisks, fmt.Sprintf("%s@%s: %s", f.PackageName, f.PackageVersion, f.Description))
		}
		seen := slices.ContainsFunc(remediations, func(r string) bool {
			return strings.EqualFold(r, f.Remediation)
		})
		if f.Remediation != "" && len(remediations) < 5 && !seen {
			remediations = append(remediations, f.Remediation)
		}
	}

	return &SynthesisResult{
		Summary: fmt.Sprintf(
			"Identified %d finding(s) across the dependency tree: %d critical, %d high, %d medium, %d low.",
			len(findings), counts[SeverityCritical], counts[SeverityHigh], counts[SeverityMedium], counts[SeverityLow]),
		RiskScore:    round2(score),
		TopRisks:     topRisks,
		Remediations: remediations,
		GeneratedBy:  SynthesisByFallback,
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
