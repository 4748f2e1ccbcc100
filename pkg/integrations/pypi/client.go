// Package pypi fetches package metadata from the PyPI JSON API for the
// reputation stage.
package pypi

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/depsentry/depsentry/pkg/cache"
	"github.com/depsentry/depsentry/pkg/integrations"
)

var (
	depRE    = regexp.MustCompile(`^([a-zA-Z0-9_-]+)`)
	markerRE = regexp.MustCompile(`;\s*(.+)`)
	skipRE   = regexp.MustCompile(`extra|dev|test`)
)

// PackageInfo holds metadata for a Python package from PyPI.
//
// Package names are normalized following PEP 503 (lowercase,
// underscores→hyphens). Dependencies list only runtime dependencies;
// extras, dev, and test deps are excluded.
type PackageInfo struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	Summary      string            `json:"summary,omitempty"`
	Author       string            `json:"author,omitempty"`
	Dependencies []string          `json:"dependencies,omitempty"`
	ProjectURLs  map[string]string `json:"project_urls,omitempty"`
	HomePage     string            `json:"home_page,omitempty"`
	ReleaseCount int               `json:"release_count"`
	UploadedAt   time.Time         `json:"uploaded_at"`
	Yanked       bool              `json:"yanked"`
}

// Client provides access to the PyPI package registry API.
// All methods are safe for concurrent use.
type Client struct {
	*integrations.Client
	baseURL string
}

// NewClient creates a PyPI client with the given cache backend.
func NewClient(backend cache.Cache, cacheTTL time.Duration) *Client {
	return &Client{
		Client:  integrations.NewClient(backend, "pypi:", cacheTTL, nil),
		baseURL: "https://pypi.org/pypi",
	}
}

// FetchPackage retrieves metadata for a Python package from PyPI.
// When version is empty, the latest release is used.
//
// Returns [integrations.ErrNotFound] if the package doesn't exist,
// [integrations.ErrNetwork] for HTTP failures.
func (c *Client) FetchPackage(ctx context.Context, pkg, version string, refresh bool) (*PackageInfo, error) {
	pkg = integrations.NormalizePkgName(pkg)
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
	url := fmt.Sprintf("%s/%s/json", c.baseURL, pkg)
	if version != "" {
		url = fmt.Sprintf("%s/%s/%s/json", c.baseURL, pkg, version)
	}

	var data apiResponse
	if err := c.Get(ctx, url, &data); err != nil {
		if errors.Is(err, integrations.ErrNotFound) {
			return fmt.Errorf("%w: pypi package %s", err, pkg)
		}
		return err
	}

	urls := make(map[string]string, len(data.Info.ProjectURLs))
	for k, v := range data.Info.ProjectURLs {
		if s, ok := v.(string); ok {
			urls[k] = s
		}
	}

	uploaded, yanked := latestUpload(data.URLs)

	*info = PackageInfo{
		Name:         integrations.NormalizePkgName(data.Info.Name),
		Version:      data.Info.Version,
		Summary:      data.Info.Summary,
		Author:       data.Info.Author,
		Dependencies: extractDeps(data.Info.RequiresDist),
		ProjectURLs:  urls,
		HomePage:     data.Info.HomePage,
		ReleaseCount: len(data.Releases),
		UploadedAt:   uploaded,
		Yanked:       yanked,
	}
	return nil
}

func latestUpload(files []apiFile) (time.Time, bool) {
	var latest time.Time
	yanked := len(files) > 0
	for _, f := range files {
		if f.UploadTime.After(latest) {
			latest = f.UploadTime
		}
		if !f.Yanked {
			yanked = false
		}
	}
	return latest, yanked
}

func extractDeps(requires []string) []string {
	seen := make(map[string]bool)
	var deps []string
	for _, req := range requires {
		if m := markerRE.FindStringSubmatch(req); len(m) > 1 && skipRE.MatchString(m[1]) {
			continue
		}
		if m := depRE.FindStringSubmatch(req); len(m) > 1 {
			dep := integrations.NormalizePkgName(m[1])
			if !seen[dep] {
				seen[dep] = true
				deps = append(deps, dep)
			}
		}
	}
	return deps
}

type apiResponse struct {
	Info     apiInfo              `json:"info"`
	Releases map[string][]apiFile `json:"releases"`
	URLs     []apiFile            `json:"urls"`
}

type apiInfo struct {
	Name         string         `json:"name"`
	Version      string         `json:"version"`
	Summary      string         `json:"summary"`
	Author       string         `json:"author"`
	RequiresDist []string       `json:"requires_dist"`
	ProjectURLs  map[string]any `json:"project_urls"`
	HomePage     string         `json:"home_page"`
}

type apiFile struct {
	UploadTime time.Time `json:"upload_time_iso_8601"`
	Yanked     bool      `json:"yanked"`
}
