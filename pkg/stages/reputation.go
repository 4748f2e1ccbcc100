package stages

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/depsentry/depsentry/pkg/analysis"
	"github.com/depsentry/depsentry/pkg/graph"
	"github.com/depsentry/depsentry/pkg/integrations"
	"github.com/depsentry/depsentry/pkg/integrations/npm"
	"github.com/depsentry/depsentry/pkg/integrations/pypi"
)

const reputationWorkers = 10

// Reputation heuristics thresholds.
const (
	youngPackageAge    = 30 * 24 * time.Hour
	lowWeeklyDownloads = 500
)

// NPMMetadataClient is the npm capability the reputation stage needs.
type NPMMetadataClient interface {
	FetchPackage(ctx context.Context, pkg, version string, refresh bool) (*npm.PackageInfo, error)
	FetchWeeklyDownloads(ctx context.Context, pkg string, refresh bool) (int64, error)
}

// PyPIMetadataClient is the PyPI capability the reputation stage needs.
type PyPIMetadataClient interface {
	FetchPackage(ctx context.Context, pkg, version string, refresh bool) (*pypi.PackageInfo, error)
}

// ReputationStage checks registry metadata for weak-reputation signals:
// very young packages, tiny download counts, missing maintainers or
// repository links, yanked releases. It fans out over a bounded worker
// pool; per-package fetch failures are tolerated and reported as partial
// results, a registry blip must not sink the stage.
type ReputationStage struct {
	npm     NPMMetadataClient
	pypi    PyPIMetadataClient
	refresh bool
	workers int
	now     func() time.Time
}

// NewReputationStage creates the stage over registry metadata clients.
// Either client may be nil; packages from that ecosystem are then skipped.
func NewReputationStage(npmClient NPMMetadataClient, pypiClient PyPIMetadataClient, refresh bool) *ReputationStage {
	return &ReputationStage{
		npm:     npmClient,
		pypi:    pypiClient,
		refresh: refresh,
		workers: reputationWorkers,
		now:     time.Now,
	}
}

func (s *ReputationStage) Name() string { return "reputation" }

func (s *ReputationStage) Execute(ctx context.Context, pkgs []analysis.PackageIdentity, prior []analysis.Finding) ([]analysis.Finding, error) {
	jobs := make(chan analysis.PackageIdentity)
	out := make([][]analysis.Finding, 0, len(pkgs))

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		failures int
	)
	for range s.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pkg := range jobs {
				findings, err := s.check(ctx, pkg)
				mu.Lock()
				if err != nil {
					failures++
				} else {
					out = append(out, findings)
				}
				mu.Unlock()
			}
		}()
	}

	for _, pkg := range pkgs {
		select {
		case jobs <- pkg:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return nil, ctx.Err()
		}
	}
	close(jobs)
	wg.Wait()

	if failures == len(pkgs) && len(pkgs) > 0 {
		return nil, fmt.Errorf("reputation lookup failed for all %d packages", len(pkgs))
	}

	var findings []analysis.Finding
	for _, fs := range out {
		findings = append(findings, fs...)
	}
	return findings, nil
}

func (s *ReputationStage) check(ctx context.Context, pkg analysis.PackageIdentity) ([]analysis.Finding, error) {
	switch pkg.Ecosystem {
	case graph.EcosystemNPM:
		if s.npm == nil {
			return nil, nil
		}
		return s.checkNPM(ctx, pkg)
	case graph.EcosystemPyPI:
		if s.pypi == nil {
			return nil, nil
		}
		return s.checkPyPI(ctx, pkg)
	default:
		return nil, nil
	}
}

func (s *ReputationStage) checkNPM(ctx context.Context, pkg analysis.PackageIdentity) ([]analysis.Finding, error) {
	version := pkg.Version
	if version == graph.UnknownVersion {
		version = ""
	}
	info, err := s.npm.FetchPackage(ctx, pkg.Name, version, s.refresh)
	if err != nil {
		// A package the registry doesn't know is the supply-chain stage's
		// business, not a reputation signal.
		if errors.Is(err, integrations.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var signals []string
	if !info.CreatedAt.IsZero() && s.now().Sub(info.CreatedAt) < youngPackageAge {
		signals = append(signals, fmt.Sprintf("package created %s ago", s.now().Sub(info.CreatedAt).Round(24*time.Hour)))
	}
	if info.Maintainers == 0 {
		signals = append(signals, "no maintainers listed")
	}
	if info.Repository == "" {
		signals = append(signals, "no source repository linked")
	}
	if downloads, err := s.npm.FetchWeeklyDownloads(ctx, pkg.Name, s.refresh); err == nil && downloads < lowWeeklyDownloads {
		signals = append(signals, fmt.Sprintf("%d downloads last week", downloads))
	}

	return reputationFindings(pkg, signals), nil
}

func (s *ReputationStage) checkPyPI(ctx context.Context, pkg analysis.PackageIdentity) ([]analysis.Finding, error) {
	version := pkg.Version
	if version == graph.UnknownVersion {
		version = ""
	}
	info, err := s.pypi.FetchPackage(ctx, pkg.Name, version, s.refresh)
	if err != nil {
		if errors.Is(err, integrations.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var signals []string
	if info.Yanked {
		signals = append(signals, "release has been yanked")
	}
	if info.ReleaseCount <= 1 {
		signals = append(signals, "single release in package history")
	}
	if !info.UploadedAt.IsZero() && s.now().Sub(info.UploadedAt) < youngPackageAge {
		signals = append(signals, fmt.Sprintf("release uploaded %s ago", s.now().Sub(info.UploadedAt).Round(24*time.Hour)))
	}
	if len(info.ProjectURLs) == 0 && info.HomePage == "" {
		signals = append(signals, "no project URLs listed")
	}

	return reputationFindings(pkg, signals), nil
}

// reputationFindings converts signals into at most one finding. A single
// weak signal is noise; two or more together warrant attention.
func reputationFindings(pkg analysis.PackageIdentity, signals []string) []analysis.Finding {
	if len(signals) < 2 {
		return nil
	}
	severity := analysis.SeverityLow
	if len(signals) >= 3 {
		severity = analysis.SeverityMedium
	}
	return []analysis.Finding{{
		PackageName:    pkg.Name,
		PackageVersion: pkg.Version,
		Type:           analysis.FindingLowReputation,
		Severity:       severity,
		Description:    fmt.Sprintf("weak registry reputation: %d independent signals", len(signals)),
		Detection:      analysis.DetectionRuleBased,
		Confidence:     0.6,
		Evidence:       signals,
		Remediation:    "review the package before trusting it in production",
	}}
}
