package analysis

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/depsentry/depsentry/pkg/graph"
)

// Options configures a full analysis run.
type Options struct {
	// Stages is the pipeline to run, in order. Empty means no stages: the
	// report still carries the graph summary, initial findings, and a
	// fallback synthesis.
	Stages []Stage

	// Initial are rule-based findings produced while parsing manifests,
	// seeded into the accumulator before the first stage.
	Initial []Finding

	// Budget bounds the whole run. Zero means DefaultBudget.
	Budget time.Duration

	// Fallback overrides the local synthesizer. Nil means DeriveSynthesis.
	Fallback FallbackFunc

	Logger *log.Logger
}

// Analyze is the core entry point: build the dependency graph from raw
// edges, extract the package set, and run the stage pipeline over it.
// Like Orchestrator.Run it always returns a report.
func Analyze(ctx context.Context, edges []graph.Edge, opts Options) *Report {
	g := new(graph.Builder).Build(edges)
	pkgs := ExtractPackages(opts.Initial, g)

	oopts := []OrchestratorOption{}
	if opts.Budget > 0 {
		oopts = append(oopts, WithBudget(opts.Budget))
	}
	if opts.Fallback != nil {
		oopts = append(oopts, WithFallback(opts.Fallback))
	}
	if opts.Logger != nil {
		oopts = append(oopts, WithLogger(opts.Logger))
	}

	o := NewOrchestrator(opts.Stages, oopts...)
	return o.Run(ctx, pkgs, opts.Initial, g.Summarize())
}
