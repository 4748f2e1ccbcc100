package analysis

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/depsentry/depsentry/pkg/graph"
	"github.com/depsentry/depsentry/pkg/observability"
)

// Orchestrator runs a fixed sequence of analysis stages against a package
// set under a global time budget. Stages run one at a time; their outputs
// feed the inputs of the stages that follow. A run always produces a
// report: stage failures, timeouts, and budget exhaustion degrade the
// report instead of aborting it.
type Orchestrator struct {
	stages   []Stage
	budget   time.Duration
	fallback FallbackFunc
	logger   *log.Logger

	// sleep is swapped out in tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration)
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithBudget sets the global wall-clock budget for a run.
func WithBudget(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.budget = d
		}
	}
}

// WithFallback replaces the default local synthesizer used when the
// synthesis stage cannot deliver valid output.
func WithFallback(fn FallbackFunc) OrchestratorOption {
	return func(o *Orchestrator) {
		if fn != nil {
			o.fallback = fn
		}
	}
}

// WithLogger attaches a logger for stage progress.
func WithLogger(logger *log.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewOrchestrator builds an orchestrator over the given stages, applying
// per-stage defaults.
func NewOrchestrator(stages []Stage, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		budget:   DefaultBudget,
		fallback: DeriveSynthesis,
		logger:   log.Default(),
		sleep:    sleepCtx,
	}
	for _, s := range stages {
		o.stages = append(o.stages, s.withDefaults())
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes the pipeline and returns the finished report. It never
// returns an error: every failure mode is folded into the report as a
// degraded stage result, and the synthesis slot is always filled, by the
// agent stage when it succeeds and by the local fallback otherwise.
func (o *Orchestrator) Run(ctx context.Context, pkgs []PackageIdentity, initial []Finding, summary graph.Summary) *Report {
	start := time.Now()
	deadline := start.Add(o.budget)
	acc := newAccumulator(initial)

	report := &Report{
		ID:               uuid.NewString(),
		CreatedAt:        start.UTC(),
		PackagesAnalyzed: len(pkgs),
		GraphSummary:     summary,
	}

	for _, stage := range o.stages {
		res := o.runStage(ctx, stage, pkgs, acc, deadline, report)
		report.StageResults = append(report.StageResults, res)
		if degrades(res) {
			report.Degraded = true
		}
	}

	if report.Synthesis == nil {
		report.Synthesis = o.fallback(acc.snapshot())
	}

	report.Findings = acc.snapshot()
	if report.Findings == nil {
		report.Findings = []Finding{}
	}
	report.Duration = time.Since(start)
	observability.Stage().OnRunComplete(ctx, report.ID, len(report.Findings), report.Degraded, report.Duration)
	return report
}

// runStage attempts one stage and folds its outcome into the accumulator
// and, for synthesis stages, the report.
func (o *Orchestrator) runStage(ctx context.Context, stage Stage, pkgs []PackageIdentity, acc *accumulator, deadline time.Time, report *Report) StageResult {
	res := StageResult{Stage: stage.Name}

	if stage.Skip != nil {
		if skip, reason := stage.Skip(acc.snapshot()); skip {
			if reason == "" {
				reason = SkipReasonPredicate
			}
			res.Status = StageSkipped
			res.Reason = reason
			o.logger.Debug("stage skipped", "stage", stage.Name, "reason", reason)
			return res
		}
	}

	remaining := time.Until(deadline)
	if remaining < stage.MinBudget {
		res.Status = StageSkipped
		res.Reason = SkipReasonBudget
		o.logger.Warn("stage skipped, budget exhausted", "stage", stage.Name, "remaining", remaining)
		return res
	}

	timeout := stage.Timeout
	if remaining < timeout {
		timeout = remaining
	}

	stageStart := time.Now()
	prior := acc.snapshot()

	synth, isSynth := stage.Executor.(Synthesizer)

	var (
		findings  []Finding
		synthesis *SynthesisResult
		err       error
	)
	for attempt := 0; ; attempt++ {
		observability.Stage().OnStageStart(ctx, stage.Name, attempt)
		if isSynth {
			synthesis, err = o.attemptSynthesis(ctx, synth, pkgs, prior, timeout)
		} else {
			findings, err = o.attempt(ctx, stage.Executor, pkgs, prior, timeout)
		}
		if err == nil {
			break
		}
		// Timeouts are final: retrying an executor that just consumed its
		// whole window would only burn budget.
		if errors.Is(err, ErrStageTimeout) || attempt >= stage.Retries {
			break
		}
		o.logger.Warn("stage failed, retrying", "stage", stage.Name, "err", err)
		o.sleep(ctx, stage.Backoff)
		timeout = min(stage.Timeout, time.Until(deadline))
		if timeout <= 0 {
			err = ErrStageTimeout
			break
		}
	}

	res.Duration = time.Since(stageStart)

	switch {
	case errors.Is(err, ErrStageTimeout):
		res.Status = StageTimedOut
		res.Error = err.Error()
		o.logger.Warn("stage timed out", "stage", stage.Name, "after", res.Duration)
	case err != nil:
		res.Status = StageFailed
		res.Error = err.Error()
		o.logger.Error("stage failed", "stage", stage.Name, "err", err)
	default:
		res.Status = StageSuccess
		if isSynth {
			synthesis.GeneratedBy = SynthesisByAgent
			report.Synthesis = synthesis
		} else {
			added := acc.addAll(findings)
			res.Findings = findings
			o.logger.Info("stage complete", "stage", stage.Name, "findings", len(findings), "new", added, "took", res.Duration)
		}
	}
	observability.Stage().OnStageComplete(ctx, stage.Name, string(res.Status), len(res.Findings), res.Duration)
	return res
}

// attempt runs one executor invocation under its own timeout. The executor
// runs in a goroutine with a buffered result channel: if the deadline
// elapses first, the goroutine is abandoned and its eventual result is
// dropped into the buffer and garbage collected, never observed.
func (o *Orchestrator) attempt(ctx context.Context, ex Executor, pkgs []PackageIdentity, prior []Finding, timeout time.Duration) ([]Finding, error) {
	stageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		findings []Finding
		err      error
	}
	done := make(chan result, 1)
	go func() {
		findings, err := ex.Execute(stageCtx, pkgs, prior)
		done <- result{findings, err}
	}()

	select {
	case r := <-done:
		if r.err != nil && stageCtx.Err() != nil {
			return nil, ErrStageTimeout
		}
		return r.findings, r.err
	case <-stageCtx.Done():
		return nil, ErrStageTimeout
	}
}

// attemptSynthesis is the synthesis variant of attempt: same timeout and
// abandonment handling, plus the structural validity check on the output.
func (o *Orchestrator) attemptSynthesis(ctx context.Context, s Synthesizer, pkgs []PackageIdentity, prior []Finding, timeout time.Duration) (*SynthesisResult, error) {
	stageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		synthesis *SynthesisResult
		err       error
	}
	done := make(chan result, 1)
	go func() {
		synthesis, err := s.Synthesize(stageCtx, pkgs, prior)
		done <- result{synthesis, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			if stageCtx.Err() != nil {
				return nil, ErrStageTimeout
			}
			return nil, r.err
		}
		if !r.synthesis.Valid() {
			return nil, ErrInvalidSynthesis
		}
		return r.synthesis, nil
	case <-stageCtx.Done():
		return nil, ErrStageTimeout
	}
}

// degrades reports whether a stage outcome marks the report degraded.
// Predicate skips are expected behavior; everything else that is not a
// success means some analysis the caller asked for did not happen.
func degrades(res StageResult) bool {
	switch res.Status {
	case StageSuccess:
		return false
	case StageSkipped:
		return res.Reason == SkipReasonBudget
	default:
		return true
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
