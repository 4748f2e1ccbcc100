package python

import (
	"context"
	"time"

	"github.com/depsentry/depsentry/pkg/cache"
	"github.com/depsentry/depsentry/pkg/deps"
	"github.com/depsentry/depsentry/pkg/graph"
	"github.com/depsentry/depsentry/pkg/integrations/pypi"
)

// PyPIFetcher adapts the PyPI client to the resolver's Fetcher interface.
type PyPIFetcher struct {
	client *pypi.Client
}

// NewPyPIFetcher creates a fetcher over the PyPI registry.
func NewPyPIFetcher(backend cache.Cache, ttl time.Duration) *PyPIFetcher {
	return &PyPIFetcher{client: pypi.NewClient(backend, ttl)}
}

func (f *PyPIFetcher) Fetch(ctx context.Context, name string, refresh bool) (*deps.Package, error) {
	info, err := f.client.FetchPackage(ctx, name, "", refresh)
	if err != nil {
		return nil, err
	}
	return &deps.Package{
		Name:         info.Name,
		Version:      info.Version,
		Dependencies: info.Dependencies,
	}, nil
}

// NewResolver creates a registry resolver for PyPI packages.
func NewResolver(backend cache.Cache, ttl time.Duration) *deps.Registry {
	return deps.NewRegistry("pypi", graph.EcosystemPyPI, NewPyPIFetcher(backend, ttl))
}
