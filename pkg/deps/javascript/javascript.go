package javascript

import (
	"context"
	"time"

	"github.com/depsentry/depsentry/pkg/cache"
	"github.com/depsentry/depsentry/pkg/deps"
	"github.com/depsentry/depsentry/pkg/graph"
	"github.com/depsentry/depsentry/pkg/integrations/npm"
)

// NPMFetcher adapts the npm registry client to the resolver's Fetcher
// interface.
type NPMFetcher struct {
	client *npm.Client
}

// NewNPMFetcher creates a fetcher over the npm registry.
func NewNPMFetcher(backend cache.Cache, ttl time.Duration) *NPMFetcher {
	return &NPMFetcher{client: npm.NewClient(backend, ttl)}
}

func (f *NPMFetcher) Fetch(ctx context.Context, name string, refresh bool) (*deps.Package, error) {
	info, err := f.client.FetchPackage(ctx, name, "", refresh)
	if err != nil {
		return nil, err
	}
	return &deps.Package{
		Name:             info.Name,
		Version:          info.Version,
		Dependencies:     info.Dependencies,
		HasInstallScript: info.HasInstallScript,
		Scripts:          info.Scripts,
	}, nil
}

// NewResolver creates a registry resolver for npm packages.
func NewResolver(backend cache.Cache, ttl time.Duration) *deps.Registry {
	return deps.NewRegistry("npm", graph.EcosystemNPM, NewNPMFetcher(backend, ttl))
}
