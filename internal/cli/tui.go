package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/depsentry/depsentry/pkg/analysis"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// FindingsModel is the bubbletea model for browsing findings. The left
// pane lists findings worst-first; the detail pane shows evidence and
// remediation for the selected one.
type FindingsModel struct {
	Findings []analysis.Finding
	Cursor   int
	Height   int
	Offset   int
}

// newFindingsModel creates a findings browser over a report's findings.
func newFindingsModel(findings []analysis.Finding) FindingsModel {
	return FindingsModel{
		Findings: findings,
		Height:   12,
	}
}

func (m FindingsModel) Init() tea.Cmd {
	return nil
}

func (m FindingsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc", "enter":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Findings)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "home", "g":
			m.Cursor = 0
			m.Offset = 0
		case "end", "G":
			m.Cursor = len(m.Findings) - 1
			if m.Cursor >= m.Height {
				m.Offset = m.Cursor - m.Height + 1
			}
		}
	}
	return m, nil
}

func (m FindingsModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Findings"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("arrows: navigate  q: quit"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.Findings))
	for i := m.Offset; i < end; i++ {
		f := m.Findings[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "> "
		}

		line := fmt.Sprintf("%s%-8s %-40s %s", cursor, f.Severity, clip(f.PackageName+"@"+f.PackageVersion, 40), listDimStyle.Render(string(f.Type)))
		if i == m.Cursor {
			b.WriteString(listSelectedStyle.Render(line))
		} else {
			b.WriteString(listNormalStyle.Render(line))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(strings.Repeat("-", 60)))
	b.WriteString("\n")
	b.WriteString(m.detailView())
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Findings))))

	return b.String()
}

// detailView renders the selected finding's full detail.
func (m FindingsModel) detailView() string {
	if len(m.Findings) == 0 {
		return listDimStyle.Render("  no findings")
	}
	f := m.Findings[m.Cursor]

	var b strings.Builder
	b.WriteString("  " + styleSeverity(f.Severity) + " " + StyleValue.Render(f.Description) + "\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  detection: %s  confidence: %.1f", f.Detection, f.Confidence)) + "\n")
	for _, ev := range f.Evidence {
		b.WriteString(listDimStyle.Render("  · "+clip(ev, 76)) + "\n")
	}
	if f.Remediation != "" {
		b.WriteString("  " + StyleWarning.Render(iconArrow+" "+f.Remediation) + "\n")
	}
	return b.String()
}
