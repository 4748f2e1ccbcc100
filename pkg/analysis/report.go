package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/depsentry/depsentry/pkg/graph"
)

// StageStatus is the terminal state of one pipeline stage.
type StageStatus string

const (
	StageSuccess  StageStatus = "success"
	StageFailed   StageStatus = "failed"
	StageSkipped  StageStatus = "skipped"
	StageTimedOut StageStatus = "timed_out"
)

// Skip reasons recorded in StageResult.Reason. Predicate skips and budget
// skips must stay distinguishable: only the latter degrades the report.
const (
	SkipReasonPredicate = "predicate"
	SkipReasonBudget    = "budget exhausted"
)

// StageResult records the outcome of one attempted or skipped stage.
type StageResult struct {
	Stage    string        `json:"stage_name"`
	Status   StageStatus   `json:"status"`
	Reason   string        `json:"skip_reason,omitempty"`
	Duration time.Duration `json:"duration"`
	Findings []Finding     `json:"produced_findings,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// SynthesisResult is the condensed risk assessment closing a report. It is
// produced by the agent-backed synthesis stage, or derived locally by the
// fallback when that stage cannot deliver valid output.
type SynthesisResult struct {
	Summary      string   `json:"summary"`
	RiskScore    float64  `json:"risk_score"`
	TopRisks     []string `json:"top_risks,omitempty"`
	Remediations []string `json:"remediations,omitempty"`
	GeneratedBy  string   `json:"generated_by"`
}

// Generators for SynthesisResult.GeneratedBy.
const (
	SynthesisByAgent    = "agent"
	SynthesisByFallback = "fallback"
)

// Valid reports whether the result passes the structural validity check
// the orchestrator applies to agent output.
func (r *SynthesisResult) Valid() bool {
	return r != nil && r.Summary != "" && r.RiskScore >= 0 && r.RiskScore <= 1
}

// Report is the aggregated result of one analysis run. It is append-only
// while the orchestrator runs and frozen once Run returns.
type Report struct {
	ID               string           `json:"id"`
	CreatedAt        time.Time        `json:"created_at"`
	Duration         time.Duration    `json:"duration"`
	PackagesAnalyzed int              `json:"packages_analyzed"`
	Findings         []Finding        `json:"findings"`
	StageResults     []StageResult    `json:"stage_results"`
	Degraded         bool             `json:"degraded"`
	GraphSummary     graph.Summary    `json:"dependency_graph_summary"`
	Synthesis        *SynthesisResult `json:"synthesis"`
}

// CountBySeverity tallies findings per severity for display.
func (r *Report) CountBySeverity() map[Severity]int {
	counts := make(map[Severity]int)
	for _, f := range r.Findings {
		counts[f.Severity]++
	}
	return counts
}

// MarshalReport converts a report to indented JSON bytes.
func MarshalReport(r *Report) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeReportTo(r, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteReport writes a report as JSON to an io.Writer.
func WriteReport(r *Report, w io.Writer) error {
	return writeReportTo(r, w)
}

// WriteReportFile writes a report to a JSON file with 0644 permissions.
func WriteReportFile(r *Report, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return writeReportTo(r, f)
}

// ReadReport decodes a JSON report from an io.Reader.
func ReadReport(rd io.Reader) (*Report, error) {
	var r Report
	if err := json.NewDecoder(rd).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &r, nil
}

func writeReportTo(r *Report, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}
