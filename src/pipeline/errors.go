package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateStage is returned when two stages share a name.
	ErrDuplicateStage = errors.New("duplicate stage")

	// ErrUnknownDependency is returned when a stage needs a stage that does not exist.
	ErrUnknownDependency = errors.New("unknown dependency")

	// ErrCycle is returned when the dependency edges form a cycle.
	ErrCycle = errors.New("dependency cycle")
)

// StageError is a stage body failure: the named step returned an error or
// panicked. It is local to the stage and propagates to dependents as a skip.
type StageError struct {
	Stage string
	Step  string
	Err   error
}

func (e *StageError) Error() string {
	if e.Step == "" {
		return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("stage %s: step %s: %v", e.Stage, e.Step, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// TelemetryError is a failed best-effort step. It is recorded and reported
// but never changes the stage outcome.
type TelemetryError struct {
	Stage string
	Step  string
	Err   error
}

func (e *TelemetryError) Error() string {
	return fmt.Sprintf("stage %s: %s (non-fatal): %v", e.Stage, e.Step, e.Err)
}

func (e *TelemetryError) Unwrap() error { return e.Err }

// PanicError wraps a value recovered from a panicking step.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
