package graph

// Edge is one resolved dependency relation from a manifest parser or
// registry resolver. Parent is the name@version identity of the dependent
// package; an empty Parent declares Name@Version as a root.
type Edge struct {
	Parent    string
	Name      string
	Version   string
	Ecosystem Ecosystem
}

// Builder converts a flat, possibly cyclic edge list into a Graph.
//
// The zero value is ready to use:
//
//	g := new(graph.Builder).Build(edges)
type Builder struct {
	g *Graph
}

// Build constructs the graph. Malformed edges (missing name) are counted
// and skipped, never fatal. Edges that close a cycle are linked and counted
// as circular dependencies; detection happens at insertion time by checking
// whether the child can already reach the parent.
func (b *Builder) Build(edges []Edge) *Graph {
	b.g = &Graph{
		nodes:    make(map[string]*Node),
		versions: make(map[string]map[string]bool),
	}

	for _, e := range edges {
		b.add(e)
	}
	return b.g
}

func (b *Builder) add(e Edge) {
	if e.Name == "" {
		b.g.malformed++
		return
	}

	if e.Parent == "" {
		b.materialize(e.Name, e.Version, e.Ecosystem, 0, true)
		return
	}

	parent, ok := b.g.nodes[e.Parent]
	if !ok {
		// Parent identity never appeared as a child: it is an implicit root.
		name, version := splitIdentity(e.Parent)
		if name == "" {
			b.g.malformed++
			return
		}
		parent = b.materialize(name, version, e.Ecosystem, 0, true)
	}

	child := b.materialize(e.Name, e.Version, e.Ecosystem, parent.Depth+1, false)

	if _, dup := parent.Dependencies[child.Name]; dup {
		return
	}
	// An edge is circular when its target can already reach its source.
	// The check runs before linking so the new edge itself is not followed.
	if child == parent || reaches(child, parent) {
		b.g.circular++
	}
	parent.Dependencies[child.Name] = child
}

// materialize returns the node for name@version, creating it on first
// sight. First-seen depth wins; later encounters never recompute depth.
func (b *Builder) materialize(name, version string, eco Ecosystem, depth int, root bool) *Node {
	id := Identity(name, version)
	if n, ok := b.g.nodes[id]; ok {
		return n
	}

	if eco == "" {
		eco = EcosystemOther
	}
	n := &Node{
		Name:         name,
		Version:      normalizeVersion(version),
		Ecosystem:    eco,
		Depth:        depth,
		Dependencies: make(map[string]*Node),
	}
	b.g.nodes[id] = n

	if b.g.versions[name] == nil {
		b.g.versions[name] = make(map[string]bool)
	}
	b.g.versions[name][n.Version] = true

	if root {
		b.g.roots = append(b.g.roots, n)
	}
	return n
}

// reaches reports whether target is reachable from start by following
// dependency edges. The visited set makes it safe on already-cyclic graphs.
func reaches(start, target *Node) bool {
	visited := make(map[*Node]bool)
	var walk func(n *Node) bool
	walk = func(n *Node) bool {
		if n == target {
			return true
		}
		if visited[n] {
			return false
		}
		visited[n] = true
		for _, dep := range n.Dependencies {
			if walk(dep) {
				return true
			}
		}
		return false
	}
	return walk(start)
}

func normalizeVersion(v string) string {
	if v == "" {
		return UnknownVersion
	}
	return v
}

// splitIdentity splits a name@version identity. Scoped npm names keep their
// leading @; only the last @ separates the version.
func splitIdentity(id string) (name, version string) {
	for i := len(id) - 1; i > 0; i-- {
		if id[i] == '@' {
			return id[:i], id[i+1:]
		}
	}
	return id, ""
}
