package cli

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/depsentry/depsentry/pkg/analysis"
)

// newReportCmd creates the report command for displaying saved reports.
func newReportCmd() *cobra.Command {
	var interactive bool

	cmd := &cobra.Command{
		Use:   "report <report.json>",
		Short: "Display a previously saved analysis report",
		Long: `Display a previously saved analysis report.

Reads a JSON report produced by 'scan --output' (or downloaded from the
HTTP API) and renders the same summary the scan command prints.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open report: %w", err)
			}
			defer f.Close()

			report, err := analysis.ReadReport(f)
			if err != nil {
				return fmt.Errorf("read report %s: %w", args[0], err)
			}

			printReport(report)

			if interactive && len(report.Findings) > 0 {
				model := newFindingsModel(report.Findings)
				if _, err := tea.NewProgram(model, tea.WithContext(cmd.Context())).Run(); err != nil {
					return fmt.Errorf("findings browser: %w", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "browse findings interactively")
	return cmd
}
