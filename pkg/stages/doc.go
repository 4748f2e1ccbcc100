// Package stages implements the analysis pipeline stages: vulnerability
// lookup against OSV, registry reputation heuristics, install-script code
// analysis, supply-chain risk detection, and the agent-backed synthesis.
//
// Each stage satisfies [analysis.Executor]; stages may fan out internally
// (batched OSV queries, worker pools over registry metadata) but always
// return one aggregated finding set.
package stages
