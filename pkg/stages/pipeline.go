package stages

import (
	"time"

	"github.com/depsentry/depsentry/pkg/analysis"
	"github.com/depsentry/depsentry/pkg/cache"
	"github.com/depsentry/depsentry/pkg/graph"
	"github.com/depsentry/depsentry/pkg/integrations/npm"
	"github.com/depsentry/depsentry/pkg/integrations/osv"
	"github.com/depsentry/depsentry/pkg/integrations/pypi"
)

// Config wires the default pipeline.
type Config struct {
	// Backend caches HTTP responses for every registry client.
	Backend cache.Cache

	// Graph provides depth information to the supply-chain stage; may be nil.
	Graph *graph.Graph

	// InternalPrefixes lists private package naming conventions for
	// dependency-confusion detection.
	InternalPrefixes []string

	// Synthesis is the optional final stage; nil means the report relies
	// on the local fallback synthesizer.
	Synthesis *SynthesisStage

	// Refresh bypasses cached registry responses.
	Refresh bool
}

// DefaultPipeline assembles the standard five-stage pipeline:
// vulnerability, reputation, code, supplychain, synthesis.
func DefaultPipeline(cfg Config) []analysis.Stage {
	code := NewCodeStage()

	pipeline := []analysis.Stage{
		{
			Executor: NewVulnerabilityStage(osv.NewClient(cfg.Backend, cache.TTLAdvisory), cfg.Refresh),
			Timeout:  30 * time.Second,
			Retries:  1,
		},
		{
			Executor: NewReputationStage(
				npm.NewClient(cfg.Backend, cache.TTLAdvisory),
				pypi.NewClient(cfg.Backend, cache.TTLAdvisory),
				cfg.Refresh,
			),
			Timeout: 60 * time.Second,
			Retries: 1,
		},
		{
			Executor: code,
			Skip:     code.Skip(),
			Timeout:  10 * time.Second,
		},
		{
			Executor: NewSupplyChainStage(cfg.Graph, cfg.InternalPrefixes),
			Timeout:  10 * time.Second,
		},
	}

	if cfg.Synthesis != nil {
		pipeline = append(pipeline, analysis.Stage{
			Executor:  cfg.Synthesis,
			Timeout:   45 * time.Second,
			MinBudget: 5 * time.Second,
		})
	}
	return pipeline
}
