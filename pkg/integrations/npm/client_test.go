package npm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/depsentry/depsentry/pkg/integrations"
)

const registryFixture = `{
	"name": "suspicious-pkg",
	"dist-tags": {"latest": "2.0.0"},
	"maintainers": [{"name": "alice"}],
	"time": {
		"created": "2024-01-01T00:00:00Z",
		"1.0.0": "2024-01-01T00:00:00Z",
		"2.0.0": "2024-06-01T00:00:00Z"
	},
	"versions": {
		"1.0.0": {
			"description": "old release",
			"dependencies": {"lodash": "^4.17.21"}
		},
		"2.0.0": {
			"description": "new release",
			"license": {"type": "MIT"},
			"repository": {"url": "git+https://github.com/alice/suspicious-pkg.git"},
			"dependencies": {"lodash": "^4.17.21", "minimist": "^1.2.8"},
			"scripts": {"postinstall": "node setup.js"}
		}
	}
}`

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(nil, time.Hour)
	client.baseURL = server.URL
	client.downloadsURL = server.URL
	return client
}

func TestFetchPackageLatest(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/suspicious-pkg" {
			t.Errorf("path = %q, want /suspicious-pkg", r.URL.Path)
		}
		w.Write([]byte(registryFixture))
	}))

	info, err := client.FetchPackage(context.Background(), "Suspicious-Pkg", "", false)
	if err != nil {
		t.Fatalf("FetchPackage() error: %v", err)
	}

	if info.Version != "2.0.0" {
		t.Errorf("Version = %q, want latest 2.0.0", info.Version)
	}
	if info.License != "MIT" {
		t.Errorf("License = %q, want MIT", info.License)
	}
	if info.Repository != "https://github.com/alice/suspicious-pkg" {
		t.Errorf("Repository = %q, want normalized URL", info.Repository)
	}
	if !info.HasInstallScript {
		t.Error("HasInstallScript = false, want true for postinstall script")
	}
	if info.Maintainers != 1 {
		t.Errorf("Maintainers = %d, want 1", info.Maintainers)
	}
	if len(info.Dependencies) != 2 {
		t.Errorf("Dependencies = %v, want 2 sorted names", info.Dependencies)
	}
	if info.CreatedAt.IsZero() || info.PublishedAt.IsZero() {
		t.Error("timestamps not extracted from the time map")
	}
}

func TestFetchPackagePinnedVersion(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(registryFixture))
	}))

	info, err := client.FetchPackage(context.Background(), "suspicious-pkg", "1.0.0", false)
	if err != nil {
		t.Fatalf("FetchPackage() error: %v", err)
	}
	if info.Version != "1.0.0" {
		t.Errorf("Version = %q, want pinned 1.0.0", info.Version)
	}
	if info.HasInstallScript {
		t.Error("HasInstallScript = true, want false for 1.0.0")
	}
}

func TestFetchPackageMissingVersion(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(registryFixture))
	}))

	_, err := client.FetchPackage(context.Background(), "suspicious-pkg", "9.9.9", false)
	if !errors.Is(err, integrations.ErrNotFound) {
		t.Errorf("FetchPackage() error = %v, want ErrNotFound for missing version", err)
	}
}

func TestFetchPackageNotFound(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.FetchPackage(context.Background(), "no-such-pkg", "", false)
	if !errors.Is(err, integrations.ErrNotFound) {
		t.Errorf("FetchPackage() error = %v, want ErrNotFound", err)
	}
}

func TestFetchWeeklyDownloads(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/downloads/point/last-week/lodash" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(downloadsResponse{Downloads: 45000000, Package: "lodash"})
	}))

	got, err := client.FetchWeeklyDownloads(context.Background(), "lodash", false)
	if err != nil {
		t.Fatalf("FetchWeeklyDownloads() error: %v", err)
	}
	if got != 45000000 {
		t.Errorf("downloads = %d, want 45000000", got)
	}
}

func TestExtractField(t *testing.T) {
	tests := []struct {
		name  string
		v     any
		field string
		want  string
	}{
		{"string value", "MIT", "type", "MIT"},
		{"object value", map[string]any{"type": "ISC"}, "type", "ISC"},
		{"missing field", map[string]any{"other": "x"}, "type", ""},
		{"nil", nil, "type", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractField(tt.v, tt.field); got != tt.want {
				t.Errorf("extractField() = %q, want %q", got, tt.want)
			}
		})
	}
}
