package build

import "time"

// StepResult captures the outcome of a single build step.
type StepResult struct {
	Name     string
	Status   string   // "success", "failed"
	Images   []string // tags produced by the build
	Duration time.Duration
	Error    error
}
