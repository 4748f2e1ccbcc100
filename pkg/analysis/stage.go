package analysis

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for stage outcomes. They never escape the orchestrator;
// they surface only through StageResult.Status and StageResult.Error.
var (
	// ErrStageTimeout marks an executor that exceeded its stage timeout.
	ErrStageTimeout = errors.New("stage timed out")

	// ErrBudgetExhausted marks a stage skipped because the remaining
	// global budget could not cover its minimum runtime.
	ErrBudgetExhausted = errors.New("budget exhausted")

	// ErrInvalidSynthesis marks synthesis output that failed the
	// structural validity check.
	ErrInvalidSynthesis = errors.New("invalid synthesis output")
)

// Executor is the capability every analysis stage provides. Executors may
// parallelize internally (batched registry queries and the like) but must
// return one aggregated result; the orchestrator never observes partial
// output. Execute must honor ctx cancellation: when the stage deadline
// elapses, in-flight work is abandoned and its result discarded.
type Executor interface {
	// Name identifies the stage in logs and results.
	Name() string

	// Execute analyzes the package set in light of prior findings and
	// returns new findings. prior is a snapshot; mutating it has no effect.
	Execute(ctx context.Context, pkgs []PackageIdentity, prior []Finding) ([]Finding, error)
}

// Synthesizer is the extra capability of the final pipeline stage: it
// condenses accumulated findings into a SynthesisResult. An executor that
// also implements Synthesizer is run through the synthesis path, including
// structural validation and local fallback.
type Synthesizer interface {
	Synthesize(ctx context.Context, pkgs []PackageIdentity, findings []Finding) (*SynthesisResult, error)
}

// SkipFunc decides, from the findings accumulated so far, whether a stage
// has nothing to do. The returned reason is recorded in the stage result.
type SkipFunc func(prior []Finding) (skip bool, reason string)

// Stage describes one pipeline entry.
type Stage struct {
	Name     string
	Executor Executor

	// Skip is evaluated against the accumulated findings before the stage
	// starts. Nil means the stage always runs.
	Skip SkipFunc

	// Timeout bounds a single executor invocation. Zero means DefaultStageTimeout.
	Timeout time.Duration

	// Retries is the number of re-attempts after an executor error.
	// Capped at 1; timeouts are never retried.
	Retries int

	// Backoff is the fixed delay before a retry. Zero means DefaultBackoff.
	Backoff time.Duration

	// MinBudget is the least remaining global budget worth attempting the
	// stage with. When the budget falls below it, the stage is skipped with
	// a budget-exhausted reason instead of being started and killed.
	// Zero means DefaultMinBudget.
	MinBudget time.Duration
}

// Stage defaults.
const (
	DefaultStageTimeout = 30 * time.Second
	DefaultBackoff      = 500 * time.Millisecond
	DefaultMinBudget    = time.Second
	DefaultBudget       = 5 * time.Minute

	maxRetries = 1
)

func (s Stage) withDefaults() Stage {
	if s.Name == "" && s.Executor != nil {
		s.Name = s.Executor.Name()
	}
	if s.Timeout <= 0 {
		s.Timeout = DefaultStageTimeout
	}
	if s.Backoff <= 0 {
		s.Backoff = DefaultBackoff
	}
	if s.MinBudget <= 0 {
		s.MinBudget = DefaultMinBudget
	}
	if s.Retries > maxRetries {
		s.Retries = maxRetries
	}
	if s.Retries < 0 {
		s.Retries = 0
	}
	return s
}

// SkipWithoutEvidence returns a SkipFunc that skips the stage unless some
// accumulated finding carries the given finding type. The code-analysis
// stage uses it to run only when suspicious scripts were flagged earlier.
func SkipWithoutEvidence(t FindingType, reason string) SkipFunc {
	return func(prior []Finding) (bool, string) {
		for _, f := range prior {
			if f.Type == t {
				return false, ""
			}
		}
		return true, reason
	}
}
