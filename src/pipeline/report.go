package pipeline

import (
	"errors"
	"time"
)

// Report is the aggregate result of one run.
type Report struct {
	Run      *Run
	Stages   []StageResult // dependency order
	Duration time.Duration
}

// Counts tallies stage outcomes.
type Counts struct {
	Success  int
	Failure  int
	Skipped  int
	Warnings int // best-effort step failures across all stages
}

// Result returns the named stage result.
func (r *Report) Result(name string) (StageResult, bool) {
	for _, s := range r.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return StageResult{}, false
}

// Failed reports whether any dispatched stage failed.
func (r *Report) Failed() bool {
	for _, s := range r.Stages {
		if s.Outcome == Failure {
			return true
		}
	}
	return false
}

// ExitCode is 0 iff every dispatched stage succeeded.
func (r *Report) ExitCode() int {
	if r.Failed() {
		return 1
	}
	return 0
}

// Counts tallies the report.
func (r *Report) Counts() Counts {
	var c Counts
	for _, s := range r.Stages {
		switch s.Outcome {
		case Success:
			c.Success++
		case Failure:
			c.Failure++
		case Skipped:
			c.Skipped++
		}
		c.Warnings += len(s.Warnings())
	}
	return c
}

// Err joins the errors of every failed stage, or returns nil.
func (r *Report) Err() error {
	var errs []error
	for _, s := range r.Stages {
		if s.Outcome == Failure && s.Err != nil {
			errs = append(errs, s.Err)
		}
	}
	return errors.Join(errs...)
}
