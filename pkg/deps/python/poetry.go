package python

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/depsentry/depsentry/pkg/deps"
	"github.com/depsentry/depsentry/pkg/graph"
)

// PoetryLock parses poetry.lock files. It provides a full transitive
// closure of the dependency graph without needing to contact a registry.
type PoetryLock struct{}

func (p *PoetryLock) Type() string              { return "poetry.lock" }
func (p *PoetryLock) IncludesTransitive() bool  { return true }
func (p *PoetryLock) Supports(name string) bool { return name == "poetry.lock" }

func (p *PoetryLock) Parse(path string, opts deps.Options) (*deps.ManifestResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lock lockFile
	if err := toml.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("parse poetry.lock: %w", err)
	}

	versions := make(map[string]string, len(lock.Packages))
	for _, pkg := range lock.Packages {
		versions[normalize(pkg.Name)] = pkg.Version
	}

	// Locked packages another locked package depends on are not roots.
	incoming := make(map[string]bool)
	for _, pkg := range lock.Packages {
		for dep := range pkg.Dependencies {
			incoming[normalize(dep)] = true
		}
	}

	var edges []graph.Edge
	for _, pkg := range lock.Packages {
		name := normalize(pkg.Name)
		if !incoming[name] {
			edges = append(edges, graph.Edge{
				Name:      name,
				Version:   pkg.Version,
				Ecosystem: graph.EcosystemPyPI,
			})
		}
	}
	for _, pkg := range lock.Packages {
		name := normalize(pkg.Name)
		parentID := graph.Identity(name, pkg.Version)
		for dep := range pkg.Dependencies {
			depName := normalize(dep)
			version, locked := versions[depName]
			if !locked {
				// Marker-gated dependency absent from the lock; keep the
				// edge with an unknown version rather than dropping it.
				version = graph.UnknownVersion
			}
			edges = append(edges, graph.Edge{
				Parent:    parentID,
				Name:      depName,
				Version:   version,
				Ecosystem: graph.EcosystemPyPI,
			})
		}
	}

	return &deps.ManifestResult{
		Edges:              edges,
		Ecosystem:          graph.EcosystemPyPI,
		Type:               p.Type(),
		IncludesTransitive: true,
		RootPackage:        extractPyprojectName(filepath.Dir(path)),
	}, nil
}

// normalize applies PEP 503 name normalization.
func normalize(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
}

func extractPyprojectName(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, "pyproject.toml"))
	if err != nil {
		return ""
	}
	var pyproject struct {
		Tool struct {
			Poetry struct {
				Name string `toml:"name"`
			} `toml:"poetry"`
		} `toml:"tool"`
		Project struct {
			Name string `toml:"name"`
		} `toml:"project"`
	}
	if err := toml.Unmarshal(data, &pyproject); err != nil {
		return ""
	}
	if pyproject.Tool.Poetry.Name != "" {
		return pyproject.Tool.Poetry.Name
	}
	return pyproject.Project.Name
}

type lockFile struct {
	Packages []lockPackage `toml:"package"`
}

type lockPackage struct {
	Name         string         `toml:"name"`
	Version      string         `toml:"version"`
	Dependencies map[string]any `toml:"dependencies"`
}
