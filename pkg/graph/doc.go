// Package graph builds and serializes dependency graphs for analysis.
//
// The package consumes a flat edge list produced by manifest parsers or
// registry resolvers and turns it into an arena of package nodes keyed by
// name@version identity. The underlying dependency relation is allowed to
// be cyclic; the graph records cycles as facts rather than rejecting them,
// and the serializer bounds its output with per-path visited tracking so
// mutually-recursive packages can never blow up the output size.
//
// Build once, read forever: a Graph is immutable after Builder.Build
// returns and may be read concurrently by any number of goroutines.
package graph
