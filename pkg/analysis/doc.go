// Package analysis contains the supply-chain analysis core: the finding and
// report model, the package extractor, and the stage orchestrator.
//
// The orchestrator runs a fixed, ordered pipeline of independent analysis
// stages (vulnerability, reputation, code, supply-chain, synthesis) against
// the package set extracted from a dependency graph. It enforces a global
// wall-clock budget and per-stage timeouts, skips stages whose predicates
// say there is nothing to do, tolerates individual stage failures, and
// guarantees a complete report: the synthesis step falls back to a pure
// local derivation whenever the agent-backed executor fails, times out, or
// returns structurally invalid output.
//
// Callers always receive a report. Partial failure is communicated through
// Report.Degraded and the per-stage results, never through an error.
package analysis
