package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/depsentry/depsentry/pkg/analysis"
	"github.com/depsentry/depsentry/pkg/deps"
	"github.com/depsentry/depsentry/pkg/deps/javascript"
	"github.com/depsentry/depsentry/pkg/deps/python"
	"github.com/depsentry/depsentry/pkg/graph"
)

// newGraphCmd creates the graph export command.
func newGraphCmd() *cobra.Command {
	var (
		format     string
		output     string
		reportPath string
	)

	cmd := &cobra.Command{
		Use:   "graph <manifest>",
		Short: "Export the dependency graph as DOT or SVG",
		Long: `Export the dependency graph as DOT or SVG.

Parses the manifest and writes the graph in Graphviz DOT format, or as a
rendered SVG. Pass --report with a saved analysis report to color nodes
by their worst finding severity.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())

			parser, err := deps.DetectManifest(args[0], &javascript.PackageLock{}, &python.PoetryLock{})
			if err != nil {
				return err
			}
			result, err := parser.Parse(args[0], deps.Options{Logger: logger.Debugf})
			if err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}
			g := new(graph.Builder).Build(result.Edges)

			opts := graph.DotOptions{}
			if reportPath != "" {
				highlights, err := loadHighlights(reportPath)
				if err != nil {
					return err
				}
				opts.Highlights = highlights
			}

			var data []byte
			switch format {
			case "dot":
				data = []byte(graph.ToDOT(g, opts))
			case "svg":
				data, err = graph.RenderSVG(cmd.Context(), g, opts)
				if err != nil {
					return fmt.Errorf("render svg: %w", err)
				}
			default:
				return fmt.Errorf("unknown format %q: want dot or svg", format)
			}

			if output == "" || output == "-" {
				_, err = os.Stdout.Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			printSuccess("Exported %d packages", g.PackageCount())
			printFile(output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "dot", "output format: dot, svg")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringVar(&reportPath, "report", "", "color nodes using findings from a saved report")

	return cmd
}

// loadHighlights maps package identities to their worst finding severity.
func loadHighlights(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open report: %w", err)
	}
	defer f.Close()

	report, err := analysis.ReadReport(f)
	if err != nil {
		return nil, fmt.Errorf("read report %s: %w", path, err)
	}

	rank := map[analysis.Severity]int{
		analysis.SeverityCritical: 0,
		analysis.SeverityHigh:     1,
		analysis.SeverityMedium:   2,
		analysis.SeverityLow:      3,
	}
	highlights := make(map[string]string)
	for _, finding := range report.Findings {
		id := graph.Identity(finding.PackageName, finding.PackageVersion)
		if current, ok := highlights[id]; ok && rank[analysis.Severity(current)] <= rank[finding.Severity] {
			continue
		}
		highlights[id] = string(finding.Severity)
	}
	return highlights, nil
}
