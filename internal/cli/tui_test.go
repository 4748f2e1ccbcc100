package cli

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/depsentry/depsentry/pkg/analysis"
)

func sampleFindings(n int) []analysis.Finding {
	findings := make([]analysis.Finding, n)
	for i := range findings {
		findings[i] = analysis.Finding{
			PackageName:    "pkg" + string(rune('a'+i)),
			PackageVersion: "1.0.0",
			Type:           analysis.FindingVulnerability,
			Severity:       analysis.SeverityHigh,
			Description:    "known vulnerability",
			Evidence:       []string{"GHSA-xxxx"},
			Remediation:    "upgrade",
		}
	}
	return findings
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func TestFindingsModelNavigation(t *testing.T) {
	m := newFindingsModel(sampleFindings(3))

	next, _ := m.Update(keyMsg("down"))
	m = next.(FindingsModel)
	if m.Cursor != 1 {
		t.Errorf("Cursor = %d after down, want 1", m.Cursor)
	}

	next, _ = m.Update(keyMsg("up"))
	m = next.(FindingsModel)
	if m.Cursor != 0 {
		t.Errorf("Cursor = %d after up, want 0", m.Cursor)
	}

	// Cursor stays in bounds.
	next, _ = m.Update(keyMsg("up"))
	m = next.(FindingsModel)
	if m.Cursor != 0 {
		t.Errorf("Cursor = %d, must not go negative", m.Cursor)
	}
}

func TestFindingsModelScrollsOffset(t *testing.T) {
	m := newFindingsModel(sampleFindings(20))
	m.Height = 5

	for range 10 {
		next, _ := m.Update(keyMsg("down"))
		m = next.(FindingsModel)
	}
	if m.Cursor != 10 {
		t.Fatalf("Cursor = %d, want 10", m.Cursor)
	}
	if m.Offset != 6 {
		t.Errorf("Offset = %d, want 6 to keep cursor visible", m.Offset)
	}
}

func TestFindingsModelQuits(t *testing.T) {
	m := newFindingsModel(sampleFindings(1))
	_, cmd := m.Update(keyMsg("q"))
	if cmd == nil {
		t.Fatal("q should produce a quit command")
	}
	if msg := cmd(); msg != (tea.QuitMsg{}) {
		t.Errorf("cmd() = %v, want tea.QuitMsg", msg)
	}
}

func TestFindingsModelView(t *testing.T) {
	m := newFindingsModel(sampleFindings(2))
	view := m.View()

	for _, want := range []string{"Findings", "pkga@1.0.0", "known vulnerability", "upgrade"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q", want)
		}
	}
}

func TestFindingsModelEmptyDetail(t *testing.T) {
	m := newFindingsModel(nil)
	if got := m.detailView(); !strings.Contains(got, "no findings") {
		t.Errorf("detailView() = %q, want the empty placeholder", got)
	}
}
