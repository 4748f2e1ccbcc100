package javascript

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/depsentry/depsentry/pkg/analysis"
	"github.com/depsentry/depsentry/pkg/deps"
	"github.com/depsentry/depsentry/pkg/graph"
)

// PackageLock parses package-lock.json files (lockfile v2 and v3). The
// lockfile carries the full transitive closure plus install-script flags,
// so parsing needs no registry access and doubles as the first rule-based
// detection pass: every package with install hooks gets a
// malicious_script finding carrying the hook names as evidence.
type PackageLock struct{}

func (p *PackageLock) Type() string              { return "package-lock.json" }
func (p *PackageLock) IncludesTransitive() bool  { return true }
func (p *PackageLock) Supports(name string) bool { return strings.EqualFold(name, "package-lock.json") }

func (p *PackageLock) Parse(path string, opts deps.Options) (*deps.ManifestResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lock lockFile
	if err := json.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("parse package-lock.json: %w", err)
	}
	if lock.LockfileVersion < 2 {
		return nil, fmt.Errorf("unsupported lockfile version %d (need v2 or v3)", lock.LockfileVersion)
	}

	root, ok := lock.Packages[""]
	if !ok {
		return nil, fmt.Errorf("package-lock.json has no root entry")
	}
	rootName := lock.Name
	if rootName == "" {
		rootName = "project"
	}

	edges := []graph.Edge{{
		Name:      rootName,
		Version:   root.Version,
		Ecosystem: graph.EcosystemNPM,
	}}
	var findings []analysis.Finding

	// Deterministic iteration: paths sorted lexicographically.
	paths := make([]string, 0, len(lock.Packages))
	for p := range lock.Packages {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, pkgPath := range paths {
		entry := lock.Packages[pkgPath]
		name := entryName(pkgPath)
		if pkgPath == "" {
			name = rootName
		}
		parentID := graph.Identity(name, entry.Version)

		for _, dep := range dependencyNames(entry) {
			target, ok := resolveDep(lock.Packages, pkgPath, dep)
			version := graph.UnknownVersion
			if ok {
				version = target.Version
			}
			edges = append(edges, graph.Edge{
				Parent:    parentID,
				Name:      dep,
				Version:   version,
				Ecosystem: graph.EcosystemNPM,
			})
		}

		if pkgPath != "" && entry.HasInstallScript {
			findings = append(findings, installScriptFinding(name, entry))
		}
	}

	return &deps.ManifestResult{
		Edges:              edges,
		Findings:           findings,
		Ecosystem:          graph.EcosystemNPM,
		Type:               p.Type(),
		IncludesTransitive: true,
		RootPackage:        rootName,
	}, nil
}

// entryName derives the package name from its node_modules path: the
// segment after the last "node_modules/", keeping npm scopes intact.
func entryName(pkgPath string) string {
	const marker = "node_modules/"
	if i := strings.LastIndex(pkgPath, marker); i >= 0 {
		return pkgPath[i+len(marker):]
	}
	return pkgPath
}

// resolveDep finds the lockfile entry a dependency name resolves to using
// npm's nesting rules: the nearest node_modules/<dep> walking up from the
// dependent's own path.
func resolveDep(packages map[string]lockEntry, fromPath, dep string) (lockEntry, bool) {
	prefix := fromPath
	for {
		candidate := "node_modules/" + dep
		if prefix != "" {
			candidate = prefix + "/node_modules/" + dep
		}
		if entry, ok := packages[candidate]; ok {
			return entry, true
		}
		if prefix == "" {
			return lockEntry{}, false
		}
		// Step up one nesting level.
		if i := strings.LastIndex(prefix, "/node_modules/"); i >= 0 {
			prefix = prefix[:i]
		} else {
			prefix = ""
		}
	}
}

func dependencyNames(e lockEntry) []string {
	names := make([]string, 0, len(e.Dependencies)+len(e.OptionalDependencies))
	for name := range e.Dependencies {
		names = append(names, name)
	}
	for name := range e.OptionalDependencies {
		names = append(names, name)
	}
	// Root entries also declare devDependencies; transitive entries don't
	// install theirs.
	for name := range e.DevDependencies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func installScriptFinding(name string, e lockEntry) analysis.Finding {
	evidence := []string{"hasInstallScript declared in lockfile"}
	if e.Dev {
		evidence = append(evidence, "dev dependency")
	}
	return analysis.Finding{
		PackageName:    name,
		PackageVersion: e.Version,
		Type:           analysis.FindingMaliciousScript,
		Severity:       analysis.SeverityMedium,
		Description:    "package runs scripts at install time",
		Detection:      analysis.DetectionRuleBased,
		Confidence:     0.5,
		Evidence:       evidence,
		Remediation:    "review the package's install scripts before installing",
	}
}

type lockFile struct {
	Name            string               `json:"name"`
	LockfileVersion int                  `json:"lockfileVersion"`
	Packages        map[string]lockEntry `json:"packages"`
}

type lockEntry struct {
	Version              string            `json:"version"`
	Dev                  bool              `json:"dev"`
	HasInstallScript     bool              `json:"hasInstallScript"`
	Dependencies         map[string]string `json:"dependencies"`
	DevDependencies      map[string]string `json:"devDependencies"`
	OptionalDependencies map[string]string `json:"optionalDependencies"`
}
