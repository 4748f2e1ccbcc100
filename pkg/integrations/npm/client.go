// Package npm fetches package metadata from the npm registry for the
// reputation and code-analysis stages.
package npm

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/depsentry/depsentry/pkg/cache"
	"github.com/depsentry/depsentry/pkg/integrations"
)

// PackageInfo holds the registry metadata the analysis stages consume.
type PackageInfo struct {
	Name             string            `json:"name"`
	Version          string            `json:"version"`
	Description      string            `json:"description,omitempty"`
	License          string            `json:"license,omitempty"`
	Repository       string            `json:"repository,omitempty"`
	Dependencies     []string          `json:"dependencies,omitempty"`
	Maintainers      int               `json:"maintainers"`
	CreatedAt        time.Time         `json:"created_at"`
	PublishedAt      time.Time         `json:"published_at"`
	HasInstallScript bool              `json:"has_install_script"`
	Scripts          map[string]string `json:"scripts,omitempty"`
	VersionDeps      map[string]string `json:"version_deps,omitempty"`
}

// Client provides access to the npm registry API.
// All methods are safe for concurrent use.
type Client struct {
	*integrations.Client
	baseURL      string
	downloadsURL string
}

// NewClient creates an npm client with the given cache backend.
func NewClient(backend cache.Cache, cacheTTL time.Duration) *Client {
	return &Client{
		Client:       integrations.NewClient(backend, "npm:", cacheTTL, nil),
		baseURL:      "https://registry.npmjs.org",
		downloadsURL: "https://api.npmjs.org",
	}
}

// installScriptNames are the lifecycle hooks that run code at install time.
var installScriptNames = []string{"preinstall", "install", "postinstall"}

// FetchPackage retrieves metadata for an npm package. When version is
// empty, the registry's latest dist-tag is used.
//
// Returns [integrations.ErrNotFound] if the package or version doesn't
// exist, [integrations.ErrNetwork] for HTTP failures.
func (c *Client) FetchPackage(ctx context.Context, pkg, version string, refresh bool) (*PackageInfo, error) {
	pkg = strings.ToLower(strings.TrimSpace(pkg))
	key := pkg + "@" + version

	var info PackageInfo
	err := c.Cached(ctx, key, refresh, &info, func() error {
		return c.fetch(ctx, pkg, version, &info)
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) fetch(ctx context.Context, pkg, version string, info *PackageInfo) error {
	var data registryResponse
	if err := c.Get(ctx, c.baseURL+"/"+pkg, &data); err != nil {
		if errors.Is(err, integrations.ErrNotFound) {
			return fmt.Errorf("%w: npm package %s", err, pkg)
		}
		return err
	}

	if version == "" {
		version = data.DistTags.Latest
	}
	v, ok := data.Versions[version]
	if !ok {
		return fmt.Errorf("%w: npm package %s@%s", integrations.ErrNotFound, pkg, version)
	}

	hasInstall := v.HasInstallScript
	for _, name := range installScriptNames {
		if _, exists := v.Scripts[name]; exists {
			hasInstall = true
		}
	}

	*info = PackageInfo{
		Name:             data.Name,
		Version:          version,
		Description:      v.Description,
		License:          extractField(v.License, "type"),
		Repository:       integrations.NormalizeRepoURL(extractField(v.Repository, "url")),
		Dependencies:     slices.Sorted(maps.Keys(v.Dependencies)),
		Maintainers:      len(data.Maintainers),
		CreatedAt:        data.Time["created"],
		PublishedAt:      data.Time[version],
		HasInstallScript: hasInstall,
		Scripts:          v.Scripts,
		VersionDeps:      v.Dependencies,
	}
	return nil
}

// FetchWeeklyDownloads returns the package's download count for the last
// week, the registry's standard popularity signal.
func (c *Client) FetchWeeklyDownloads(ctx context.Context, pkg string, refresh bool) (int64, error) {
	pkg = strings.ToLower(strings.TrimSpace(pkg))

	var data downloadsResponse
	err := c.Cached(ctx, "downloads:"+pkg, refresh, &data, func() error {
		return c.Get(ctx, c.downloadsURL+"/downloads/point/last-week/"+pkg, &data)
	})
	if err != nil {
		return 0, err
	}
	return data.Downloads, nil
}

func extractField(v any, field string) string {
	switch val := v.(type) {
	case string:
		return val
	case map[string]any:
		if s, ok := val[field].(string); ok {
			return s
		}
	}
	return ""
}

type registryResponse struct {
	Name        string                    `json:"name"`
	DistTags    distTags                  `json:"dist-tags"`
	Versions    map[string]versionDetails `json:"versions"`
	Time        map[string]time.Time      `json:"time"`
	Maintainers []maintainer              `json:"maintainers"`
}

type distTags struct {
	Latest string `json:"latest"`
}

type versionDetails struct {
	Description      string            `json:"description"`
	License          any               `json:"license"`
	Repository       any               `json:"repository"`
	Dependencies     map[string]string `json:"dependencies"`
	Scripts          map[string]string `json:"scripts"`
	HasInstallScript bool              `json:"hasInstallScript"`
}

type maintainer struct {
	Name string `json:"name"`
}

type downloadsResponse struct {
	Downloads int64  `json:"downloads"`
	Package   string `json:"package"`
}
