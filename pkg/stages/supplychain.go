package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/depsentry/depsentry/pkg/analysis"
	"github.com/depsentry/depsentry/pkg/graph"
)

// popularNPM and popularPyPI are the corpora typosquat candidates are
// compared against: the most-depended-upon names in each registry.
var popularNPM = []string{
	"react", "lodash", "express", "axios", "chalk", "commander", "debug",
	"moment", "webpack", "typescript", "jquery", "vue", "next", "eslint",
	"prettier", "jest", "mocha", "babel", "rollup", "vite", "uuid",
	"classnames", "request", "underscore", "bluebird", "async", "minimist",
	"glob", "rimraf", "mkdirp", "semver", "yargs", "inquirer", "dotenv",
}

var popularPyPI = []string{
	"requests", "numpy", "pandas", "flask", "django", "pytest", "scipy",
	"matplotlib", "pillow", "boto3", "urllib3", "setuptools", "wheel",
	"cryptography", "click", "pyyaml", "sqlalchemy", "celery", "redis",
	"fastapi", "pydantic", "httpx", "aiohttp", "jinja2", "werkzeug",
}

// deepChainThreshold flags dependencies buried deeper than most projects
// can realistically audit.
const deepChainThreshold = 8

// SupplyChainStage detects structural supply-chain risks that need no
// code inspection: typosquats of popular names, dependency confusion
// against internal naming conventions, and excessively deep dependency
// chains.
type SupplyChainStage struct {
	g *graph.Graph

	// internalPrefixes are name prefixes reserved for private packages.
	// A public package carrying one is a dependency-confusion candidate.
	internalPrefixes []string
}

// NewSupplyChainStage creates the stage. The graph provides depth
// information for chain analysis and may be nil. internalPrefixes lists
// private naming conventions (e.g. "@acme/", "acme-internal-").
func NewSupplyChainStage(g *graph.Graph, internalPrefixes []string) *SupplyChainStage {
	return &SupplyChainStage{g: g, internalPrefixes: internalPrefixes}
}

func (s *SupplyChainStage) Name() string { return "supplychain" }

func (s *SupplyChainStage) Execute(ctx context.Context, pkgs []analysis.PackageIdentity, prior []analysis.Finding) ([]analysis.Finding, error) {
	var findings []analysis.Finding
	for _, pkg := range pkgs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if f := s.checkTyposquat(pkg); f != nil {
			findings = append(findings, *f)
		}
		if f := s.checkConfusion(pkg); f != nil {
			findings = append(findings, *f)
		}
		if f := s.checkDepth(pkg); f != nil {
			findings = append(findings, *f)
		}
	}
	return findings, nil
}

func (s *SupplyChainStage) checkTyposquat(pkg analysis.PackageIdentity) *analysis.Finding {
	corpus := popularNPM
	if pkg.Ecosystem == graph.EcosystemPyPI {
		corpus = popularPyPI
	}

	name := strings.ToLower(pkg.Name)
	for _, popular := range corpus {
		if name == popular {
			return nil // the real thing
		}
	}
	for _, popular := range corpus {
		d := editDistance(name, popular)
		if d == 0 || d > typoDistance(popular) {
			continue
		}
		return &analysis.Finding{
			PackageName:    pkg.Name,
			PackageVersion: pkg.Version,
			Type:           analysis.FindingSupplyChainRisk,
			Severity:       analysis.SeverityHigh,
			Description:    fmt.Sprintf("name is %d edit(s) from popular package %q", d, popular),
			Detection:      analysis.DetectionRuleBased,
			Confidence:     0.7,
			Evidence:       []string{fmt.Sprintf("edit distance %d to %s", d, popular)},
			Remediation:    fmt.Sprintf("verify this is not a typosquat of %q", popular),
		}
	}
	return nil
}

// typoDistance scales the allowed edit distance with name length: short
// names collide too easily at distance 2.
func typoDistance(name string) int {
	if len(name) <= 5 {
		return 1
	}
	return 2
}

func (s *SupplyChainStage) checkConfusion(pkg analysis.PackageIdentity) *analysis.Finding {
	for _, prefix := range s.internalPrefixes {
		if !strings.HasPrefix(pkg.Name, prefix) {
			continue
		}
		return &analysis.Finding{
			PackageName:    pkg.Name,
			PackageVersion: pkg.Version,
			Type:           analysis.FindingSupplyChainRisk,
			Severity:       analysis.SeverityCritical,
			Description:    "internal package name resolved from a public registry",
			Detection:      analysis.DetectionRuleBased,
			Confidence:     0.9,
			Evidence:       []string{"matches internal prefix " + prefix},
			Remediation:    "pin the internal registry for this scope and claim the public name",
		}
	}
	return nil
}

func (s *SupplyChainStage) checkDepth(pkg analysis.PackageIdentity) *analysis.Finding {
	if s.g == nil {
		return nil
	}
	node, ok := s.g.Node(pkg.ID())
	if !ok || node.Depth < deepChainThreshold {
		return nil
	}
	return &analysis.Finding{
		PackageName:    pkg.Name,
		PackageVersion: pkg.Version,
		Type:           analysis.FindingSupplyChainRisk,
		Severity:       analysis.SeverityLow,
		Description:    fmt.Sprintf("dependency sits %d levels deep in the tree", node.Depth),
		Detection:      analysis.DetectionRuleBased,
		Confidence:     0.5,
		Evidence:       []string{fmt.Sprintf("depth %d exceeds threshold %d", node.Depth, deepChainThreshold)},
	}
}

// editDistance computes the Levenshtein distance between two names with a
// rolling two-row table.
func editDistance(a, b string) int {
	if a == b {
		return 0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
