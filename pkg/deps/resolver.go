package deps

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/depsentry/depsentry/pkg/analysis"
	"github.com/depsentry/depsentry/pkg/graph"
)

const workers = 20

// Fetcher retrieves package metadata from a registry.
type Fetcher interface {
	// Fetch retrieves package information by name. If refresh is true,
	// cached data is bypassed.
	Fetch(ctx context.Context, name string, refresh bool) (*Package, error)
}

// Registry resolves a named package and its transitive dependencies into
// an edge list by crawling a registry with a bounded worker pool.
type Registry struct {
	name      string
	ecosystem graph.Ecosystem
	fetcher   Fetcher
}

// NewRegistry creates a resolver that crawls dependencies using the given
// Fetcher.
func NewRegistry(name string, eco graph.Ecosystem, fetcher Fetcher) *Registry {
	return &Registry{name: name, ecosystem: eco, fetcher: fetcher}
}

// Name returns the registry name.
func (r *Registry) Name() string { return r.name }

// Resolve crawls dependencies starting from pkg, respecting Options
// limits. Fetch failures below the root are tolerated; the failed branch
// is simply absent from the edge list.
func (r *Registry) Resolve(ctx context.Context, pkg string, opts Options) (*ManifestResult, error) {
	c := &crawler{
		ctx:       ctx,
		opts:      opts.WithDefaults(),
		ecosystem: r.ecosystem,
		fetch:     r.fetcher.Fetch,
		versions:  make(map[string]string),
		children:  make(map[string][]string),
		visited:   make(map[string]bool),
		jobs:      make(chan job, workers*2),
		results:   make(chan result, workers*2),
	}
	if err := c.run(pkg); err != nil {
		return nil, err
	}
	edges, findings := c.assemble(pkg)
	return &ManifestResult{
		Edges:              edges,
		Findings:           findings,
		Ecosystem:          r.ecosystem,
		Type:               r.name,
		IncludesTransitive: true,
		RootPackage:        pkg,
	}, nil
}

type crawler struct {
	ctx       context.Context
	opts      Options
	ecosystem graph.Ecosystem
	fetch     func(context.Context, string, bool) (*Package, error)

	jobs    chan job
	results chan result
	wg      sync.WaitGroup

	mu       sync.Mutex
	versions map[string]string   // name -> resolved version
	children map[string][]string // name -> direct dependency names
	findings []analysis.Finding
	visited  map[string]bool
	pending  int64
	fetched  int32
	closing  int32 // 1 once jobs is about to close; late senders must check it
}

type job struct {
	name  string
	depth int
}

type result struct {
	job
	pkg *Package
	err error
}

func (c *crawler) run(root string) error {
	for range workers {
		c.wg.Add(1)
		go c.worker()
	}

	c.enqueue(job{name: root})
	err := c.collect(root)

	// The closing flag must be set before close so that sender
	// goroutines still in flight back off instead of hitting a closed
	// channel.
	atomic.StoreInt32(&c.closing, 1)
	close(c.jobs)
	c.wg.Wait()
	return err
}

func (c *crawler) worker() {
	defer c.wg.Done()
	for j := range c.jobs {
		if c.ctx.Err() != nil {
			atomic.AddInt64(&c.pending, -1)
			continue
		}
		pkg, err := c.fetch(c.ctx, j.name, c.opts.Refresh)
		select {
		case c.results <- result{job: j, pkg: pkg, err: err}:
		case <-c.ctx.Done():
			// collect has stopped draining results; don't block Wait.
			atomic.AddInt64(&c.pending, -1)
		}
	}
}

func (c *crawler) enqueue(j job) bool {
	if atomic.LoadInt32(&c.closing) == 1 {
		return false
	}

	c.mu.Lock()
	if c.visited[j.name] {
		c.mu.Unlock()
		return false
	}
	c.visited[j.name] = true
	c.mu.Unlock()

	atomic.AddInt64(&c.pending, 1)

	// Sent from a goroutine so handle never blocks on a full buffer. A
	// cancelled crawl closes jobs while senders are still queued, so the
	// send is guarded three ways: the closing flag, the context, and a
	// recover for the window between flag check and close.
	go func() {
		defer func() {
			if recover() != nil {
				atomic.AddInt64(&c.pending, -1)
			}
		}()
		if atomic.LoadInt32(&c.closing) == 1 {
			atomic.AddInt64(&c.pending, -1)
			return
		}
		select {
		case c.jobs <- j:
		case <-c.ctx.Done():
			atomic.AddInt64(&c.pending, -1)
		}
	}()
	return true
}

func (c *crawler) collect(root string) error {
	for {
		select {
		case r := <-c.results:
			if err := c.handle(r, root); err != nil {
				return err
			}
			if atomic.AddInt64(&c.pending, -1) == 0 {
				return nil
			}
		case <-c.ctx.Done():
			return c.ctx.Err()
		}
	}
}

func (c *crawler) handle(r result, root string) error {
	if r.err != nil {
		if r.name == root {
			return fmt.Errorf("resolve %s: %w", root, r.err)
		}
		c.opts.Logger("fetch failed: %s: %v", r.name, r.err)
		return nil
	}

	atomic.AddInt32(&c.fetched, 1)

	c.mu.Lock()
	c.versions[r.name] = r.pkg.Version
	c.children[r.name] = r.pkg.Dependencies
	if r.pkg.HasInstallScript {
		c.findings = append(c.findings, installScriptFinding(r.name, r.pkg.Version, r.pkg.Scripts))
	}
	c.mu.Unlock()

	c.enqueueDeps(r)
	return nil
}

func (c *crawler) enqueueDeps(r result) {
	if r.depth >= c.opts.MaxDepth || len(r.pkg.Dependencies) == 0 {
		return
	}

	next := r.depth + 1
	count := atomic.LoadInt32(&c.fetched)

	for _, dep := range r.pkg.Dependencies {
		if int(count) < c.opts.MaxNodes {
			c.enqueue(job{name: dep, depth: next})
		}
	}
}

// assemble converts the crawl results into edges. Versions are resolved
// after the crawl completes so child edges carry the version the registry
// reported, not a placeholder.
func (c *crawler) assemble(root string) ([]graph.Edge, []analysis.Finding) {
	c.mu.Lock()
	defer c.mu.Unlock()

	version := func(name string) string {
		if v := c.versions[name]; v != "" {
			return v
		}
		return graph.UnknownVersion
	}

	edges := []graph.Edge{{
		Name:      root,
		Version:   version(root),
		Ecosystem: c.ecosystem,
	}}
	for parent, deps := range c.children {
		parentID := graph.Identity(parent, version(parent))
		for _, dep := range deps {
			edges = append(edges, graph.Edge{
				Parent:    parentID,
				Name:      dep,
				Version:   version(dep),
				Ecosystem: c.ecosystem,
			})
		}
	}
	return edges, c.findings
}

// installScriptFinding records a package that runs code at install time.
// The script bodies become evidence for the code-analysis stage.
func installScriptFinding(name, version string, scripts map[string]string) analysis.Finding {
	evidence := make([]string, 0, len(scripts))
	for _, hook := range []string{"preinstall", "install", "postinstall"} {
		if body, ok := scripts[hook]; ok {
			evidence = append(evidence, hook+": "+body)
		}
	}
	if len(evidence) == 0 {
		evidence = []string{"install script declared"}
	}
	return analysis.Finding{
		PackageName:    name,
		PackageVersion: version,
		Type:           analysis.FindingMaliciousScript,
		Severity:       analysis.SeverityMedium,
		Description:    "package declares install-time scripts",
		Detection:      analysis.DetectionRuleBased,
		Confidence:     0.5,
		Evidence:       evidence,
		Remediation:    "review the install scripts before installing",
	}
}
