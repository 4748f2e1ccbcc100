package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/depsentry/depsentry/pkg/analysis"
)

// maxListedFindings caps the findings table; the full list lives in the
// JSON report and the interactive browser.
const maxListedFindings = 15

// printReport renders a report summary to the terminal.
func printReport(r *analysis.Report) {
	fmt.Println()
	fmt.Println(StyleTitle.Render("Analysis Report"))
	printKeyValue("Report ID", r.ID)
	printKeyValue("Packages", fmt.Sprintf("%d", r.PackagesAnalyzed))
	printKeyValue("Duration", r.Duration.Round(time.Millisecond).String())
	printKeyValue("Findings", severitySummary(r.CountBySeverity()))
	if r.GraphSummary.CircularDependencyCount > 0 {
		printKeyValue("Cycles", fmt.Sprintf("%d", r.GraphSummary.CircularDependencyCount))
	}
	if r.Degraded {
		printWarning("Report is degraded: not every stage could run to completion")
	}

	fmt.Println()
	fmt.Println(stageTable(r.StageResults))

	if len(r.Findings) > 0 {
		fmt.Println()
		fmt.Println(findingsTable(r.Findings))
		if len(r.Findings) > maxListedFindings {
			printDetail("… and %d more; save the full report with --output", len(r.Findings)-maxListedFindings)
		}
	}

	if r.Synthesis != nil {
		fmt.Println()
		fmt.Println(StyleTitle.Render("Assessment"))
		printKeyValue("Risk score", fmt.Sprintf("%.2f", r.Synthesis.RiskScore))
		printKeyValue("Source", r.Synthesis.GeneratedBy)
		fmt.Println("  " + StyleValue.Render(r.Synthesis.Summary))
		for _, rem := range r.Synthesis.Remediations {
			printDetail("%s %s", iconArrow, rem)
		}
	}
}

// severitySummary formats finding counts as "2 critical · 1 high · 3 low".
func severitySummary(counts map[analysis.Severity]int) string {
	order := []analysis.Severity{
		analysis.SeverityCritical,
		analysis.SeverityHigh,
		analysis.SeverityMedium,
		analysis.SeverityLow,
	}
	var parts []string
	for _, sev := range order {
		if n := counts[sev]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, styleSeverity(sev)))
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, StyleDim.Render(" · "))
}

// stageTable renders per-stage outcomes.
func stageTable(results []analysis.StageResult) string {
	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	rows := make([][]string, 0, len(results))
	for _, res := range results {
		detail := res.Reason
		if res.Error != "" {
			detail = res.Error
		}
		rows = append(rows, []string{
			res.Stage,
			string(res.Status),
			res.Duration.Round(time.Millisecond).String(),
			fmt.Sprintf("%d", len(res.Findings)),
			detail,
		})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Stage", "Status", "Duration", "Findings", "Detail").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			if col != 1 || row >= len(results) {
				return lipgloss.NewStyle()
			}
			switch results[row].Status {
			case analysis.StageSuccess:
				return lipgloss.NewStyle().Foreground(colorGreen)
			case analysis.StageSkipped:
				return lipgloss.NewStyle().Foreground(colorDim)
			default:
				return lipgloss.NewStyle().Foreground(colorRed)
			}
		}).
		Render()
}

// findingsTable renders the worst findings, capped at maxListedFindings.
func findingsTable(findings []analysis.Finding) string {
	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	listed := findings
	if len(listed) > maxListedFindings {
		listed = listed[:maxListedFindings]
	}
	rows := make([][]string, 0, len(listed))
	for _, f := range listed {
		rows = append(rows, []string{
			styleSeverity(f.Severity),
			f.PackageName + "@" + f.PackageVersion,
			string(f.Type),
			clip(f.Description, 60),
		})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Severity", "Package", "Type", "Description").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			return lipgloss.NewStyle()
		}).
		Render()
}

// clip truncates s to max runes with an ellipsis.
func clip(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
