package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sofmeright/slipway/src/event"
)

type recorder struct {
	mu       sync.Mutex
	started  []string
	finished []string
	steps    map[string][]StepStatus
}

func newRecorder() *recorder {
	return &recorder{steps: map[string][]StepStatus{}}
}

func (r *recorder) StageStarted(_ *Run, stage string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, stage)
}

func (r *recorder) StepFinished(_ *Run, stage string, step StepResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps[stage] = append(r.steps[stage], step.Status)
}

func (r *recorder) StageFinished(_ *Run, res StageResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, res.Name)
}

func ok(calls *atomic.Int32) func(context.Context, *Run) error {
	return func(context.Context, *Run) error {
		if calls != nil {
			calls.Add(1)
		}
		return nil
	}
}

func fail(msg string) func(context.Context, *Run) error {
	return func(context.Context, *Run) error { return errors.New(msg) }
}

func branchRun() *Run {
	return NewRun(event.Trigger{Kind: event.Push, Ref: "refs/heads/main", Commit: "abc"}, event.Metadata{VersionToken: "tmp"})
}

func releaseRun() *Run {
	return NewRun(event.Trigger{Kind: event.Release, Ref: "v2.1.0", Commit: "abc"}, event.Metadata{VersionToken: "v2.1.0", IsRelease: true})
}

func mustGraph(t *testing.T, stages ...Stage) *Graph {
	t.Helper()
	g, err := NewGraph(stages...)
	require.NoError(t, err)
	return g
}

func TestExecuteTestFailureSkipsDownstream(t *testing.T) {
	var downstream atomic.Int32
	g := mustGraph(t,
		Stage{Name: "test", Steps: []Step{{Name: "tests", Run: fail("2 tests failed")}}},
		Stage{Name: "package", Needs: []string{"test"}, Gate: OnRelease, Steps: []Step{{Name: "publish", Run: ok(&downstream)}}},
		Stage{Name: "image-standard", Needs: []string{"test"}, Steps: []Step{{Name: "build", Run: ok(&downstream)}}},
		Stage{Name: "image-slim", Needs: []string{"test"}, Steps: []Step{{Name: "build", Run: ok(&downstream)}}},
	)

	rec := newRecorder()
	report := (&Engine{Observer: rec}).Execute(context.Background(), releaseRun(), g)

	assert.Equal(t, 1, report.ExitCode())
	assert.True(t, report.Failed())
	assert.Zero(t, downstream.Load(), "no downstream body may run")

	test, _ := report.Result("test")
	assert.Equal(t, Failure, test.Outcome)
	var se *StageError
	require.ErrorAs(t, test.Err, &se)
	assert.Equal(t, "tests", se.Step)

	for _, name := range []string{"package", "image-standard", "image-slim"} {
		r, found := report.Result(name)
		require.True(t, found)
		assert.Equal(t, Skipped, r.Outcome, name)
		assert.Equal(t, DependencyFailed, r.Reason, name)
		assert.False(t, r.Dispatched(), name)
	}

	assert.Equal(t, []string{"test"}, rec.started)
	assert.Len(t, rec.finished, 4)
	assert.Equal(t, Counts{Failure: 1, Skipped: 3}, report.Counts())
	assert.ErrorContains(t, report.Err(), "2 tests failed")
}

func TestExecuteTransitiveSkip(t *testing.T) {
	g := mustGraph(t,
		Stage{Name: "a", Steps: []Step{{Name: "x", Run: fail("boom")}}},
		Stage{Name: "b", Needs: []string{"a"}, Steps: []Step{{Name: "x", Run: ok(nil)}}},
		Stage{Name: "c", Needs: []string{"b"}, Steps: []Step{{Name: "x", Run: ok(nil)}}},
		Stage{Name: "d", Steps: []Step{{Name: "x", Run: ok(nil)}}},
	)
	report := (&Engine{}).Execute(context.Background(), branchRun(), g)

	b, _ := report.Result("b")
	c, _ := report.Result("c")
	d, _ := report.Result("d")
	assert.Equal(t, DependencyFailed, b.Reason)
	assert.Equal(t, Skipped, c.Outcome)
	assert.Equal(t, DependencySkipped, c.Reason)
	assert.Equal(t, Success, d.Outcome, "independent branches are unaffected")
	assert.Equal(t, 1, report.ExitCode())
}

func TestExecuteGateNotMet(t *testing.T) {
	var published atomic.Int32
	g := mustGraph(t,
		Stage{Name: "test", Steps: []Step{{Name: "tests", Run: ok(nil)}}},
		Stage{Name: "package", Needs: []string{"test"}, Gate: OnRelease, Steps: []Step{{Name: "publish", Run: ok(&published)}}},
		Stage{Name: "after-package", Needs: []string{"package"}, Steps: []Step{{Name: "x", Run: ok(&published)}}},
	)
	report := (&Engine{}).Execute(context.Background(), branchRun(), g)

	pkg, _ := report.Result("package")
	assert.Equal(t, Skipped, pkg.Outcome)
	assert.Equal(t, GateNotMet, pkg.Reason)
	after, _ := report.Result("after-package")
	assert.Equal(t, DependencySkipped, after.Reason)
	assert.Zero(t, published.Load())
	assert.Equal(t, 0, report.ExitCode(), "skipped stages do not fail the run")
}

func TestExecuteStepSemantics(t *testing.T) {
	var after atomic.Int32
	g := mustGraph(t,
		Stage{Name: "image", Steps: []Step{
			{Name: "restore", BestEffort: true, Run: fail("cache unreachable")},
			{Name: "login", When: OnPublishable, Run: ok(&after)},
			{Name: "build", Run: fail("dockerfile error")},
			{Name: "save", BestEffort: true, Run: ok(&after)},
		}},
	)
	rec := newRecorder()
	report := (&Engine{Observer: rec}).Execute(context.Background(), branchRun(), g)

	res, _ := report.Result("image")
	assert.Equal(t, Failure, res.Outcome)
	assert.Zero(t, after.Load())

	statuses := make([]StepStatus, 0, len(res.Steps))
	for _, s := range res.Steps {
		statuses = append(statuses, s.Status)
	}
	assert.Equal(t, []StepStatus{StepWarning, StepSkipped, StepFailed, StepSkipped}, statuses)
	assert.Equal(t, statuses, rec.steps["image"])

	restore, _ := res.Step("restore")
	var te *TelemetryError
	require.ErrorAs(t, restore.Err, &te)
	assert.Contains(t, te.Error(), "non-fatal")
	assert.Len(t, res.Warnings(), 1)
	assert.Equal(t, 1, report.Counts().Warnings)
}

func TestExecuteBestEffortFailureKeepsSuccess(t *testing.T) {
	g := mustGraph(t,
		Stage{Name: "test", Steps: []Step{
			{Name: "tests", Run: ok(nil)},
			{Name: "coverage-upload", BestEffort: true, Run: fail("503")},
		}},
		Stage{Name: "image", Needs: []string{"test"}, Steps: []Step{{Name: "build", Run: ok(nil)}}},
	)
	report := (&Engine{}).Execute(context.Background(), branchRun(), g)

	test, _ := report.Result("test")
	assert.Equal(t, Success, test.Outcome)
	image, _ := report.Result("image")
	assert.Equal(t, Success, image.Outcome)
	assert.Equal(t, 0, report.ExitCode())
	assert.NoError(t, report.Err())
}

func TestExecuteRecoversPanic(t *testing.T) {
	g := mustGraph(t,
		Stage{Name: "a", Steps: []Step{{Name: "x", Run: func(context.Context, *Run) error { panic("nil map") }}}},
		Stage{Name: "b", Steps: []Step{{Name: "x", Run: ok(nil)}}},
		Stage{Name: "c", Steps: []Step{{Name: "no-body"}}},
	)
	report := (&Engine{}).Execute(context.Background(), branchRun(), g)

	a, _ := report.Result("a")
	assert.Equal(t, Failure, a.Outcome)
	var pe *PanicError
	require.ErrorAs(t, a.Err, &pe)
	assert.Equal(t, "nil map", pe.Value)

	b, _ := report.Result("b")
	assert.Equal(t, Success, b.Outcome)
	c, _ := report.Result("c")
	assert.Equal(t, Failure, c.Outcome)
}

func TestExecutePanickingGateFailsStage(t *testing.T) {
	var ran atomic.Int32
	g := mustGraph(t,
		Stage{Name: "test", Steps: []Step{
			{Name: "tests", Run: ok(&ran)},
			{Name: "upload", When: func(*Run) bool { panic("nil environment") }, Run: ok(&ran)},
		}},
		Stage{Name: "image", Needs: []string{"test"}, Steps: []Step{{Name: "build", Run: ok(&ran)}}},
		Stage{Name: "other", Steps: []Step{{Name: "x", Run: ok(nil)}}},
	)
	report := (&Engine{}).Execute(context.Background(), branchRun(), g)

	test, _ := report.Result("test")
	assert.Equal(t, Failure, test.Outcome)
	var pe *PanicError
	require.ErrorAs(t, test.Err, &pe)
	assert.Equal(t, "nil environment", pe.Value)
	upload, _ := test.Step("upload")
	assert.Equal(t, StepFailed, upload.Status)

	assert.Equal(t, int32(1), ran.Load(), "only the tests body ran")
	image, _ := report.Result("image")
	assert.Equal(t, DependencyFailed, image.Reason)
	other, _ := report.Result("other")
	assert.Equal(t, Success, other.Outcome)
}

func TestExecuteStageTimeout(t *testing.T) {
	g := mustGraph(t,
		Stage{Name: "slow", Timeout: 20 * time.Millisecond, Steps: []Step{
			{Name: "wait", Run: func(ctx context.Context, _ *Run) error {
				<-ctx.Done()
				return ctx.Err()
			}},
			{Name: "never", Run: ok(nil)},
		}},
	)
	report := (&Engine{}).Execute(context.Background(), branchRun(), g)

	res, _ := report.Result("slow")
	assert.Equal(t, Failure, res.Outcome)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
	never, _ := res.Step("never")
	assert.Equal(t, StepSkipped, never.Status)
}

func TestExecuteCancelledBeforeDispatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	g := mustGraph(t,
		Stage{Name: "test", Steps: []Step{{Name: "tests", Run: func(context.Context, *Run) error {
			cancel()
			return nil
		}}}},
		Stage{Name: "image", Needs: []string{"test"}, Steps: []Step{{Name: "build", Run: ok(nil)}}},
	)
	report := (&Engine{}).Execute(ctx, branchRun(), g)

	test, _ := report.Result("test")
	assert.Equal(t, Success, test.Outcome)
	image, _ := report.Result("image")
	assert.Equal(t, Skipped, image.Outcome)
	assert.Equal(t, Cancelled, image.Reason)
}

func TestExecuteRunsIndependentStagesConcurrently(t *testing.T) {
	// each stage waits for the other to start; serial dispatch would time out.
	var wg sync.WaitGroup
	wg.Add(2)
	rendezvous := func(ctx context.Context, _ *Run) error {
		wg.Done()
		waited := make(chan struct{})
		go func() { wg.Wait(); close(waited) }()
		select {
		case <-waited:
			return nil
		case <-time.After(2 * time.Second):
			return errors.New("sibling never started")
		}
	}
	g := mustGraph(t,
		Stage{Name: "image-standard", Steps: []Step{{Name: "build", Run: rendezvous}}},
		Stage{Name: "image-slim", Steps: []Step{{Name: "build", Run: rendezvous}}},
	)
	report := (&Engine{}).Execute(context.Background(), branchRun(), g)
	assert.Equal(t, 0, report.ExitCode(), "%v", report.Err())
}

func TestExecuteMaxParallel(t *testing.T) {
	var current, peak atomic.Int32
	body := func(context.Context, *Run) error {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		current.Add(-1)
		return nil
	}

	var stages []Stage
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		stages = append(stages, Stage{Name: name, Steps: []Step{{Name: "x", Run: body}}})
	}
	report := (&Engine{MaxParallel: 2}).Execute(context.Background(), branchRun(), mustGraph(t, stages...))

	assert.Equal(t, 5, report.Counts().Success)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestStageErrorFormatting(t *testing.T) {
	err := &StageError{Stage: "package", Err: errors.New("no token")}
	assert.Equal(t, "stage package: no token", err.Error())

	err = &StageError{Stage: "package", Step: "upload", Err: errors.New("403")}
	assert.Equal(t, "stage package: step upload: 403", err.Error())
}
