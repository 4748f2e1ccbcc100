package analysis

import (
	"fmt"
	"slices"
	"strings"
)

// FindingType classifies what a finding asserts about a package.
type FindingType string

const (
	FindingVulnerability    FindingType = "vulnerability"
	FindingMaliciousPackage FindingType = "malicious_package"
	FindingMaliciousScript  FindingType = "malicious_script"
	FindingLowReputation    FindingType = "low_reputation"
	FindingSupplyChainRisk  FindingType = "supply_chain_risk"
)

// Severity ranks how serious a finding is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// severityRank orders severities for sorting, worst first.
var severityRank = map[Severity]int{
	SeverityCritical: 0,
	SeverityHigh:     1,
	SeverityMedium:   2,
	SeverityLow:      3,
}

// DetectionMethod records whether a finding came from deterministic rules
// or from an agent-backed analysis.
type DetectionMethod string

const (
	DetectionRuleBased DetectionMethod = "rule_based"
	DetectionAgent     DetectionMethod = "agent"
)

// Finding is one security observation about a package-version.
type Finding struct {
	PackageName    string          `json:"package_name"`
	PackageVersion string          `json:"package_version"`
	Type           FindingType     `json:"finding_type"`
	Severity       Severity        `json:"severity"`
	Description    string          `json:"description"`
	Detection      DetectionMethod `json:"detection_method"`
	Confidence     float64         `json:"confidence"`
	Evidence       []string        `json:"evidence,omitempty"`
	Remediation    string          `json:"remediation,omitempty"`
}

// Key returns the deduplication identity. Findings sharing a key are merged
// rather than duplicated in the report.
func (f *Finding) Key() FindingKey {
	return FindingKey{
		Name:     f.PackageName,
		Version:  f.PackageVersion,
		Type:     f.Type,
		Severity: f.Severity,
	}
}

// FindingKey is the (package, version, type, severity) dedup tuple.
type FindingKey struct {
	Name     string
	Version  string
	Type     FindingType
	Severity Severity
}

// merge folds other into f: evidence is unioned in order, confidence keeps
// the maximum, and the first non-empty remediation wins. Evidence is never
// dropped.
func (f *Finding) merge(other Finding) {
	for _, ev := range other.Evidence {
		if !slices.Contains(f.Evidence, ev) {
			f.Evidence = append(f.Evidence, ev)
		}
	}
	if other.Confidence > f.Confidence {
		f.Confidence = other.Confidence
	}
	if f.Remediation == "" {
		f.Remediation = other.Remediation
	}
	if f.Description == "" {
		f.Description = other.Description
	}
}

// accumulator collects findings across stages, deduplicating by key while
// preserving first-seen order. Merging is monotonic: once a key is
// recorded, later stages can only add evidence to it.
type accumulator struct {
	order []FindingKey
	byKey map[FindingKey]*Finding
}

func newAccumulator(initial []Finding) *accumulator {
	acc := &accumulator{byKey: make(map[FindingKey]*Finding)}
	acc.addAll(initial)
	return acc
}

func (a *accumulator) addAll(findings []Finding) int {
	added := 0
	for _, f := range findings {
		if f.PackageName == "" {
			continue
		}
		key := f.Key()
		if existing, ok := a.byKey[key]; ok {
			existing.merge(f)
			continue
		}
		copied := f
		a.byKey[key] = &copied
		a.order = append(a.order, key)
		added++
	}
	return added
}

// snapshot returns a copy of the accumulated findings in a stable order:
// severity first, then package name, then finding type. Stages receive
// snapshots so they can never mutate the accumulator.
func (a *accumulator) snapshot() []Finding {
	out := make([]Finding, 0, len(a.order))
	for _, key := range a.order {
		out = append(out, *a.byKey[key])
	}
	slices.SortStableFunc(out, compareFindings)
	return out
}

func (a *accumulator) len() int { return len(a.order) }

func compareFindings(x, y Finding) int {
	if d := severityRank[x.Severity] - severityRank[y.Severity]; d != 0 {
		return d
	}
	if d := strings.Compare(x.PackageName, y.PackageName); d != 0 {
		return d
	}
	return strings.Compare(string(x.Type), string(y.Type))
}

// String implements fmt.Stringer for log output.
func (f Finding) String() string {
	return fmt.Sprintf("[%s] %s %s@%s", f.Severity, f.Type, f.PackageName, f.PackageVersion)
}
