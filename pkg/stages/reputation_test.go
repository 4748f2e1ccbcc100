package stages

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/depsentry/depsentry/pkg/analysis"
	"github.com/depsentry/depsentry/pkg/graph"
	"github.com/depsentry/depsentry/pkg/integrations"
	"github.com/depsentry/depsentry/pkg/integrations/npm"
	"github.com/depsentry/depsentry/pkg/integrations/pypi"
)

type stubNPM struct {
	infos     map[string]*npm.PackageInfo
	downloads map[string]int64
	err       error
}

func (s *stubNPM) FetchPackage(ctx context.Context, pkg, version string, refresh bool) (*npm.PackageInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	info, ok := s.infos[pkg]
	if !ok {
		return nil, integrations.ErrNotFound
	}
	return info, nil
}

func (s *stubNPM) FetchWeeklyDownloads(ctx context.Context, pkg string, refresh bool) (int64, error) {
	return s.downloads[pkg], nil
}

type stubPyPI struct {
	infos map[string]*pypi.PackageInfo
}

func (s *stubPyPI) FetchPackage(ctx context.Context, pkg, version string, refresh bool) (*pypi.PackageInfo, error) {
	info, ok := s.infos[pkg]
	if !ok {
		return nil, integrations.ErrNotFound
	}
	return info, nil
}

func fixedNow() time.Time {
	return time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
}

func TestReputationStageYoungObscurePackage(t *testing.T) {
	npmStub := &stubNPM{
		infos: map[string]*npm.PackageInfo{
			"fresh-pkg": {
				Name:      "fresh-pkg",
				CreatedAt: fixedNow().Add(-5 * 24 * time.Hour),
				// no repository, no maintainers
			},
		},
		downloads: map[string]int64{"fresh-pkg": 12},
	}
	stage := NewReputationStage(npmStub, nil, false)
	stage.now = fixedNow

	findings, err := stage.Execute(context.Background(), []analysis.PackageIdentity{
		{Name: "fresh-pkg", Version: "1.0.0", Ecosystem: graph.EcosystemNPM},
	}, nil)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if len(findings) != 1 {
		t.Fatalf("findings len = %d, want 1", len(findings))
	}
	f := findings[0]
	if f.Type != analysis.FindingLowReputation {
		t.Errorf("Type = %q, want low_reputation", f.Type)
	}
	if f.Severity != analysis.SeverityMedium {
		t.Errorf("Severity = %q, want medium for 3+ signals", f.Severity)
	}
	if len(f.Evidence) < 3 {
		t.Errorf("Evidence = %v, want at least 3 signals", f.Evidence)
	}
}

func TestReputationStageHealthyPackage(t *testing.T) {
	npmStub := &stubNPM{
		infos: map[string]*npm.PackageInfo{
			"lodash": {
				Name:        "lodash",
				CreatedAt:   fixedNow().Add(-10 * 365 * 24 * time.Hour),
				Maintainers: 3,
				Repository:  "https://github.com/lodash/lodash",
			},
		},
		downloads: map[string]int64{"lodash": 45000000},
	}
	stage := NewReputationStage(npmStub, nil, false)
	stage.now = fixedNow

	findings, err := stage.Execute(context.Background(), []analysis.PackageIdentity{
		{Name: "lodash", Version: "4.17.21", Ecosystem: graph.EcosystemNPM},
	}, nil)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if len(findings) != 0 {
		t.Errorf("findings = %v, want none for a healthy package", findings)
	}
}

func TestReputationStageSingleSignalIgnored(t *testing.T) {
	npmStub := &stubNPM{
		infos: map[string]*npm.PackageInfo{
			"quiet-pkg": {
				Name:        "quiet-pkg",
				CreatedAt:   fixedNow().Add(-2 * 365 * 24 * time.Hour),
				Maintainers: 1,
				Repository:  "https://github.com/someone/quiet-pkg",
			},
		},
		downloads: map[string]int64{"quiet-pkg": 40},
	}
	stage := NewReputationStage(npmStub, nil, false)
	stage.now = fixedNow

	findings, err := stage.Execute(context.Background(), []analysis.PackageIdentity{
		{Name: "quiet-pkg", Version: "2.0.0", Ecosystem: graph.EcosystemNPM},
	}, nil)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if len(findings) != 0 {
		t.Errorf("findings = %v, want none for a single weak signal", findings)
	}
}

func TestReputationStagePyPIYanked(t *testing.T) {
	pypiStub := &stubPyPI{
		infos: map[string]*pypi.PackageInfo{
			"shady-lib": {
				Name:         "shady-lib",
				ReleaseCount: 1,
				Yanked:       true,
				UploadedAt:   fixedNow().Add(-365 * 24 * time.Hour),
			},
		},
	}
	stage := NewReputationStage(nil, pypiStub, false)
	stage.now = fixedNow

	findings, err := stage.Execute(context.Background(), []analysis.PackageIdentity{
		{Name: "shady-lib", Version: "0.1.0", Ecosystem: graph.EcosystemPyPI},
	}, nil)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("findings len = %d, want 1", len(findings))
	}
}

func TestReputationStageNotFoundTolerated(t *testing.T) {
	stage := NewReputationStage(&stubNPM{}, nil, false)
	stage.now = fixedNow

	findings, err := stage.Execute(context.Background(), []analysis.PackageIdentity{
		{Name: "ghost-pkg", Version: "1.0.0", Ecosystem: graph.EcosystemNPM},
	}, nil)
	if err != nil {
		t.Fatalf("Execute() error: %v, want not-found tolerated", err)
	}
	if len(findings) != 0 {
		t.Errorf("findings = %v, want none", findings)
	}
}

func TestReputationStageAllFailuresError(t *testing.T) {
	stage := NewReputationStage(&stubNPM{err: errors.New("registry down")}, nil, false)
	stage.now = fixedNow

	_, err := stage.Execute(context.Background(), []analysis.PackageIdentity{
		{Name: "a", Version: "1", Ecosystem: graph.EcosystemNPM},
		{Name: "b", Version: "1", Ecosystem: graph.EcosystemNPM},
	}, nil)
	if err == nil {
		t.Error("Execute() error = nil, want error when every lookup fails")
	}
}

func TestReputationStageUnknownEcosystemSkipped(t *testing.T) {
	stage := NewReputationStage(&stubNPM{}, &stubPyPI{}, false)
	stage.now = fixedNow

	findings, err := stage.Execute(context.Background(), []analysis.PackageIdentity{
		{Name: "weird", Version: "1", Ecosystem: graph.EcosystemOther},
	}, nil)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if len(findings) != 0 {
		t.Errorf("findings = %v, want none for unsupported ecosystem", findings)
	}
}
