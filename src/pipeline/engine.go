package pipeline

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"
)

// Observer receives progress callbacks. StageStarted and StepFinished are
// called from stage goroutines; implementations must be safe for concurrent use.
type Observer interface {
	StageStarted(run *Run, stage string)
	StepFinished(run *Run, stage string, step StepResult)
	StageFinished(run *Run, result StageResult)
}

// Engine dispatches stages of a graph for one run.
type Engine struct {
	// MaxParallel bounds concurrently running stage bodies. 0 = unbounded.
	MaxParallel int

	Observer Observer
}

type completion struct {
	name   string
	result StageResult
}

// Execute evaluates the graph against run and blocks until every stage has
// an outcome. It never returns an error: stage failures are recorded in the
// report and only affect dependents.
func (e *Engine) Execute(ctx context.Context, run *Run, g *Graph) *Report {
	start := time.Now()
	order := g.Order()

	results := make(map[string]*StageResult, len(order))
	for _, name := range order {
		results[name] = &StageResult{Name: name, Outcome: Pending}
	}

	var sem *semaphore.Weighted
	if e.MaxParallel > 0 {
		sem = semaphore.NewWeighted(int64(e.MaxParallel))
	}

	done := make(chan completion)
	running := 0

	for {
		progressed := true
		for progressed {
			progressed = false
			for _, name := range order {
				res := results[name]
				if res.Outcome != Pending || res.Started != (time.Time{}) {
					continue
				}
				stage, _ := g.Stage(name)

				switch depState(stage, results) {
				case depsWaiting:
					continue
				case depsFailed:
					e.skip(run, res, DependencyFailed)
				case depsSkipped:
					e.skip(run, res, DependencySkipped)
				case depsReady:
					switch {
					case ctx.Err() != nil:
						e.skip(run, res, Cancelled)
					case !stage.Gate.Eval(run):
						e.skip(run, res, GateNotMet)
					default:
						res.Started = time.Now()
						running++
						go func(s Stage) {
							done <- completion{name: s.Name, result: e.dispatch(ctx, sem, run, s)}
						}(stage)
					}
				}
				progressed = true
			}
		}

		if running == 0 {
			break
		}

		c := <-done
		running--
		r := c.result
		*results[c.name] = r
		e.finished(run, r)
	}

	report := &Report{Run: run, Duration: time.Now().Sub(start)}
	for _, name := range order {
		report.Stages = append(report.Stages, *results[name])
	}
	return report
}

type dependencyState int

const (
	depsReady dependencyState = iota
	depsWaiting
	depsFailed
	depsSkipped
)

// depState folds the outcomes of a stage's dependencies. A failed
// dependency dominates a skipped one.
func depState(s Stage, results map[string]*StageResult) dependencyState {
	state := depsReady
	for _, dep := range s.Needs {
		switch results[dep].Outcome {
		case Failure:
			return depsFailed
		case Skipped:
			state = depsSkipped
		case Pending:
			if state == depsReady {
				state = depsWaiting
			}
		}
	}
	return state
}

func (e *Engine) skip(run *Run, res *StageResult, reason SkipReason) {
	res.Outcome = Skipped
	res.Reason = reason
	e.finished(run, *res)
}

func (e *Engine) finished(run *Run, res StageResult) {
	if e.Observer != nil {
		e.Observer.StageFinished(run, res)
	}
}

// dispatch waits for a parallelism slot and runs the stage body.
func (e *Engine) dispatch(ctx context.Context, sem *semaphore.Weighted, run *Run, s Stage) StageResult {
	if sem != nil {
		if err := sem.Acquire(ctx, 1); err != nil {
			return StageResult{Name: s.Name, Outcome: Skipped, Reason: Cancelled}
		}
		defer sem.Release(1)
	}
	return e.runStage(ctx, run, s)
}

// runStage executes the steps of s in order. The first failing non-best-effort
// step aborts the rest of the body.
func (e *Engine) runStage(ctx context.Context, run *Run, s Stage) StageResult {
	if e.Observer != nil {
		e.Observer.StageStarted(run, s.Name)
	}

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	res := StageResult{Name: s.Name, Outcome: Success, Started: time.Now()}
	aborted := false

	for _, step := range s.Steps {
		sr := StepResult{Name: step.Name}

		var (
			applies bool
			gateErr error
		)
		if !aborted {
			applies, gateErr = safeEval(run, step)
		}

		switch {
		case aborted:
			sr.Status = StepSkipped
		case gateErr == nil && !applies:
			sr.Status = StepSkipped
		default:
			stepStart := time.Now()
			err := gateErr
			if err == nil {
				err = ctx.Err()
			}
			if err == nil {
				err = safeRun(ctx, run, step)
			}
			sr.Duration = time.Now().Sub(stepStart)

			switch {
			case err == nil:
				sr.Status = StepSuccess
			case step.BestEffort:
				sr.Status = StepWarning
				sr.Err = &TelemetryError{Stage: s.Name, Step: step.Name, Err: err}
			default:
				sr.Status = StepFailed
				sr.Err = &StageError{Stage: s.Name, Step: step.Name, Err: err}
				res.Outcome = Failure
				res.Err = sr.Err
				aborted = true
			}
		}

		res.Steps = append(res.Steps, sr)
		if e.Observer != nil {
			e.Observer.StepFinished(run, s.Name, sr)
		}
	}

	res.Duration = time.Now().Sub(res.Started)
	return res
}

// safeEval evaluates the step gate, converting a panic into an error so a
// broken gate fails its stage instead of the coordinator.
func safeEval(run *Run, step Step) (ok bool, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{Value: v}
		}
	}()
	return step.When.Eval(run), nil
}

// safeRun calls the step body, converting a panic into an error.
func safeRun(ctx context.Context, run *Run, step Step) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{Value: v}
		}
	}()
	if step.Run == nil {
		return fmt.Errorf("step has no body")
	}
	return step.Run(ctx, run)
}
