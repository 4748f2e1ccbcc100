// Package deps turns dependency manifests and registry crawls into the
// edge lists the graph builder consumes.
//
// Lockfile parsers (package-lock.json, poetry.lock) carry the full
// transitive closure and need no network access; the [Registry] resolver
// crawls a registry from a named root package instead. Both produce
// []graph.Edge plus any rule-based findings discovered along the way,
// such as install scripts declared in a lockfile.
package deps
