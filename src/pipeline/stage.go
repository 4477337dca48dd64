package pipeline

import (
	"context"
	"time"
)

// Outcome is the terminal (or pending) state of a stage.
type Outcome string

const (
	Pending Outcome = "pending"
	Success Outcome = "success"
	Failure Outcome = "failure"
	Skipped Outcome = "skipped"
)

// SkipReason explains why a stage was not dispatched.
type SkipReason string

const (
	NoReason          SkipReason = ""
	GateNotMet        SkipReason = "gate-not-met"
	DependencyFailed  SkipReason = "dependency-failed"
	DependencySkipped SkipReason = "dependency-skipped"
	Cancelled         SkipReason = "cancelled"
)

// StepStatus is the result of a single step inside a stage body.
type StepStatus string

const (
	StepSuccess StepStatus = "success"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
	StepWarning StepStatus = "warning" // best-effort step failed
)

// Step is one collaborator invocation inside a stage body.
type Step struct {
	Name string

	// When gates the step itself. Nil = always.
	When Gate

	// BestEffort steps record failures as warnings and never fail the stage.
	BestEffort bool

	Run func(ctx context.Context, run *Run) error
}

// Stage is a named node of the pipeline graph.
type Stage struct {
	Name  string
	Needs []string

	// Gate decides whether the stage runs once its dependencies succeeded.
	// Nil = always.
	Gate Gate

	// Timeout bounds the whole body. Zero = no limit.
	Timeout time.Duration

	Steps []Step
}

// StepResult records one step execution.
type StepResult struct {
	Name     string
	Status   StepStatus
	Err      error
	Duration time.Duration
}

// StageResult records one stage's outcome.
type StageResult struct {
	Name     string
	Outcome  Outcome
	Reason   SkipReason
	Err      error
	Steps    []StepResult
	Started  time.Time
	Duration time.Duration
}

// Dispatched reports whether the stage body was started.
func (r StageResult) Dispatched() bool {
	return r.Outcome == Success || r.Outcome == Failure
}

// Warnings returns the best-effort steps that failed.
func (r StageResult) Warnings() []StepResult {
	var out []StepResult
	for _, s := range r.Steps {
		if s.Status == StepWarning {
			out = append(out, s)
		}
	}
	return out
}

// Step returns the named step result.
func (r StageResult) Step(name string) (StepResult, bool) {
	for _, s := range r.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return StepResult{}, false
}
