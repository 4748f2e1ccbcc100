package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/depsentry/depsentry/pkg/analysis"
	"github.com/depsentry/depsentry/pkg/cache"
	"github.com/depsentry/depsentry/pkg/deps"
	"github.com/depsentry/depsentry/pkg/deps/javascript"
	"github.com/depsentry/depsentry/pkg/deps/python"
	"github.com/depsentry/depsentry/pkg/graph"
	"github.com/depsentry/depsentry/pkg/stages"
)

// scanOptions collects the scan command's flags.
type scanOptions struct {
	pkg              string
	ecosystem        string
	output           string
	budget           time.Duration
	model            string
	internalPrefixes []string
	refresh          bool
	noCache          bool
	interactive      bool
	maxDepth         int
	maxNodes         int
}

// newScanCmd creates the scan command.
func newScanCmd() *cobra.Command {
	var opts scanOptions

	cmd := &cobra.Command{
		Use:   "scan [manifest]",
		Short: "Analyze a dependency tree for supply-chain risk",
		Long: `Analyze a dependency tree for supply-chain risk.

Scan takes either a local manifest file (package-lock.json, poetry.lock)
or, with --package, a package name resolved straight from its registry.
The dependency graph is run through the analysis pipeline and the
resulting report is printed as a summary; use --output to save the full
JSON report.

Registry responses are cached locally for faster subsequent runs.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && opts.pkg == "" {
				return fmt.Errorf("either a manifest path or --package is required")
			}
			if len(args) == 1 && opts.pkg != "" {
				return fmt.Errorf("a manifest path and --package are mutually exclusive")
			}
			manifest := ""
			if len(args) == 1 {
				manifest = args[0]
			}
			return runScan(cmd.Context(), manifest, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.pkg, "package", "p", "", "scan a registry package instead of a manifest")
	cmd.Flags().StringVarP(&opts.ecosystem, "ecosystem", "e", "npm", "registry for --package: npm, pypi")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write the full JSON report to this file")
	cmd.Flags().DurationVar(&opts.budget, "budget", analysis.DefaultBudget, "total time budget for the pipeline")
	cmd.Flags().StringVar(&opts.model, "model", stages.DefaultSynthesisModel, "model for agent-backed synthesis")
	cmd.Flags().StringArrayVar(&opts.internalPrefixes, "internal-prefix", nil, "private package prefix for dependency-confusion checks (repeatable)")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "bypass cached registry responses")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "browse findings interactively")
	cmd.Flags().IntVar(&opts.maxDepth, "max-depth", deps.DefaultMaxDepth, "maximum dependency depth for registry resolution")
	cmd.Flags().IntVar(&opts.maxNodes, "max-nodes", deps.DefaultMaxNodes, "maximum packages to fetch for registry resolution")

	return cmd
}

func runScan(ctx context.Context, manifest string, opts scanOptions) error {
	logger := loggerFromContext(ctx)
	backend := newCacheBackend(opts.noCache)
	defer backend.Close()

	result, err := loadDependencies(ctx, manifest, opts, backend, logger)
	if err != nil {
		return err
	}

	report, err := runPipeline(ctx, result, opts, backend, logger)
	if err != nil {
		return err
	}

	printReport(report)

	if opts.output != "" {
		if err := analysis.WriteReportFile(report, opts.output); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		printFile(opts.output)
	}

	if opts.interactive && len(report.Findings) > 0 {
		model := newFindingsModel(report.Findings)
		if _, err := tea.NewProgram(model, tea.WithContext(ctx)).Run(); err != nil {
			return fmt.Errorf("findings browser: %w", err)
		}
	}
	return nil
}

// loadDependencies produces the edge list, from a manifest file or by
// crawling the registry for --package.
func loadDependencies(ctx context.Context, manifest string, opts scanOptions, backend cache.Cache, logger *log.Logger) (*deps.ManifestResult, error) {
	depOpts := deps.Options{
		MaxDepth: opts.maxDepth,
		MaxNodes: opts.maxNodes,
		Refresh:  opts.refresh,
		Logger:   logger.Debugf,
	}

	if manifest != "" {
		parser, err := deps.DetectManifest(manifest, &javascript.PackageLock{}, &python.PoetryLock{})
		if err != nil {
			return nil, err
		}
		prog := newProgress(logger)
		result, err := parser.Parse(manifest, depOpts)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", manifest, err)
		}
		prog.done(fmt.Sprintf("Parsed %s (%d edges)", manifest, len(result.Edges)))
		return result, nil
	}

	var registry *deps.Registry
	switch opts.ecosystem {
	case "npm":
		registry = javascript.NewResolver(backend, deps.DefaultCacheTTL)
	case "pypi":
		registry = python.NewResolver(backend, deps.DefaultCacheTTL)
	default:
		return nil, fmt.Errorf("unknown ecosystem %q: want npm or pypi", opts.ecosystem)
	}

	spinner := newSpinner(ctx, fmt.Sprintf("Resolving %s from %s...", opts.pkg, opts.ecosystem))
	spinner.Start()
	result, err := registry.Resolve(ctx, opts.pkg, depOpts)
	if err != nil {
		spinner.StopWithError("Resolution failed")
		return nil, fmt.Errorf("resolve %s: %w", opts.pkg, err)
	}
	spinner.StopWithSuccess(fmt.Sprintf("Resolved %s (%d edges)", opts.pkg, len(result.Edges)))
	return result, nil
}

// runPipeline builds the graph and runs the staged analysis over it.
func runPipeline(ctx context.Context, result *deps.ManifestResult, opts scanOptions, backend cache.Cache, logger *log.Logger) (*analysis.Report, error) {
	g := new(graph.Builder).Build(result.Edges)

	synthesis := newSynthesisStage(ctx, opts.model, logger)
	pipeline := stages.DefaultPipeline(stages.Config{
		Backend:          backend,
		Graph:            g,
		InternalPrefixes: opts.internalPrefixes,
		Synthesis:        synthesis,
		Refresh:          opts.refresh,
	})

	pkgs := analysis.ExtractPackages(result.Findings, g)

	spinner := newSpinner(ctx, fmt.Sprintf("Analyzing %d packages...", len(pkgs)))
	spinner.Start()
	o := analysis.NewOrchestrator(pipeline,
		analysis.WithBudget(opts.budget),
		analysis.WithLogger(logger),
	)
	report := o.Run(ctx, pkgs, result.Findings, g.Summarize())
	spinner.Stop()
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// newSynthesisStage enables agent-backed synthesis when an API key is
// configured; without one the report relies on the local fallback.
func newSynthesisStage(ctx context.Context, model string, logger *log.Logger) *stages.SynthesisStage {
	if os.Getenv("GEMINI_API_KEY") == "" {
		logger.Debug("GEMINI_API_KEY not set, using local synthesis fallback")
		return nil
	}
	stage, err := stages.NewSynthesisStage(ctx, model)
	if err != nil {
		logger.Warn("synthesis stage unavailable", "err", err)
		return nil
	}
	return stage
}
