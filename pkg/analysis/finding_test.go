package analysis

import (
	"testing"
)

func TestAccumulatorDedup(t *testing.T) {
	f1 := Finding{
		PackageName:    "lodash",
		PackageVersion: "4.17.20",
		Type:           FindingVulnerability,
		Severity:       SeverityHigh,
		Description:    "prototype pollution",
		Confidence:     0.8,
		Evidence:       []string{"CVE-2020-8203"},
	}
	f2 := f1
	f2.Confidence = 0.95
	f2.Evidence = []string{"CVE-2020-8203", "GHSA-p6mc-m468-83gw"}
	f2.Remediation = "upgrade to 4.17.21"

	acc := newAccumulator(nil)
	if added := acc.addAll([]Finding{f1, f2}); added != 1 {
		t.Errorf("addAll added = %d, want 1", added)
	}

	got := acc.snapshot()
	if len(got) != 1 {
		t.Fatalf("snapshot len = %d, want 1", len(got))
	}
	f := got[0]
	if f.Confidence != 0.95 {
		t.Errorf("Confidence = %v, want max 0.95", f.Confidence)
	}
	if len(f.Evidence) != 2 {
		t.Errorf("Evidence = %v, want union of 2", f.Evidence)
	}
	if f.Remediation != "upgrade to 4.17.21" {
		t.Errorf("Remediation = %q, want filled from merge", f.Remediation)
	}
}

func TestAccumulatorDistinctKeys(t *testing.T) {
	base := Finding{
		PackageName:    "left-pad",
		PackageVersion: "1.3.0",
		Type:           FindingLowReputation,
		Severity:       SeverityMedium,
	}
	diffType := base
	diffType.Type = FindingSupplyChainRisk
	diffSev := base
	diffSev.Severity = SeverityHigh
	diffVer := base
	diffVer.PackageVersion = "1.2.0"

	acc := newAccumulator(nil)
	if added := acc.addAll([]Finding{base, diffType, diffSev, diffVer}); added != 4 {
		t.Errorf("addAll added = %d, want 4 distinct keys", added)
	}
}

func TestAccumulatorSkipsEmptyName(t *testing.T) {
	acc := newAccumulator([]Finding{{PackageVersion: "1.0.0", Type: FindingVulnerability}})
	if acc.len() != 0 {
		t.Errorf("len = %d, want 0 for empty package name", acc.len())
	}
}

func TestSnapshotOrder(t *testing.T) {
	acc := newAccumulator([]Finding{
		{PackageName: "b", PackageVersion: "1", Type: FindingLowReputation, Severity: SeverityLow},
		{PackageName: "a", PackageVersion: "1", Type: FindingVulnerability, Severity: SeverityCritical},
		{PackageName: "a", PackageVersion: "1", Type: FindingLowReputation, Severity: SeverityCritical},
	})

	got := acc.snapshot()
	want := []struct {
		name string
		typ  FindingType
	}{
		{"a", FindingLowReputation},
		{"a", FindingVulnerability},
		{"b", FindingLowReputation},
	}
	for i, w := range want {
		if got[i].PackageName != w.name || got[i].Type != w.typ {
			t.Errorf("snapshot[%d] = %s/%s, want %s/%s", i, got[i].PackageName, got[i].Type, w.name, w.typ)
		}
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	acc := newAccumulator([]Finding{
		{PackageName: "a", PackageVersion: "1", Type: FindingVulnerability, Severity: SeverityHigh},
	})
	snap := acc.snapshot()
	snap[0].Description = "mutated"

	if acc.snapshot()[0].Description == "mutated" {
		t.Error("mutating a snapshot must not affect the accumulator")
	}
}
