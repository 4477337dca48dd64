package output

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/sofmeright/slipway/src/pipeline"
)

// Console is the pipeline observer for terminals and CI logs. Stages run
// concurrently, so each stage's rows are collected and written as one
// section when the stage finishes.
type Console struct {
	W        io.Writer
	Color    bool
	Redactor *Redactor

	mu      sync.Mutex
	pending map[string]*bytes.Buffer
}

// NewConsole returns a console writing to w.
func NewConsole(w io.Writer, color bool, r *Redactor) *Console {
	return &Console{W: w, Color: color, Redactor: r, pending: map[string]*bytes.Buffer{}}
}

func (c *Console) StageStarted(_ *pipeline.Run, stage string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		c.pending = map[string]*bytes.Buffer{}
	}
	c.pending[stage] = &bytes.Buffer{}
	fmt.Fprintf(c.W, "    %s %s started\n", Dimmed("▸", c.Color), stage)
}

func (c *Console) StepFinished(_ *pipeline.Run, stage string, step pipeline.StepResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf, ok := c.pending[stage]
	if !ok {
		return
	}

	detail := ""
	switch step.Status {
	case pipeline.StepSkipped:
		detail = Dimmed("not applicable", c.Color)
	case pipeline.StepFailed, pipeline.StepWarning:
		detail = c.Redactor.Redact(errString(step.Err))
	default:
		detail = formatElapsed(step.Duration)
	}
	fmt.Fprintf(buf, "%-16s%s  %s\n", step.Name, StatusIcon(StepStatus(step.Status), c.Color), detail)
}

func (c *Console) StageFinished(_ *pipeline.Run, res pipeline.StageResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	buf := c.pending[res.Name]
	delete(c.pending, res.Name)

	sec := NewSection(c.W, res.Name, res.Duration, c.Color)
	if !res.Dispatched() {
		sec.Row("%s  skipped: %s", StatusIcon(StatusSkipped, c.Color), res.Reason)
		sec.Close()
		return
	}

	GroupStart(c.W, res.Name, res.Name+" steps")
	if buf != nil {
		for _, line := range bytes.Split(bytes.TrimRight(buf.Bytes(), "\n"), []byte("\n")) {
			sec.Row("%s", line)
		}
	}
	GroupEnd(c.W, res.Name)
	sec.Close()

	if res.Outcome == pipeline.Failure {
		Annotate(c.W, "error", c.Redactor.Redact(errString(res.Err)))
	}
	for _, w := range res.Warnings() {
		Annotate(c.W, "warning", c.Redactor.Redact(errString(w.Err)))
	}
}

// Summary prints the per-stage summary section and the total line.
func (c *Console) Summary(report *pipeline.Report) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sec := NewSection(c.W, "Summary", 0, c.Color)
	for _, st := range report.Stages {
		detail := formatElapsed(st.Duration)
		switch {
		case !st.Dispatched():
			detail = string(st.Reason)
		case len(st.Warnings()) > 0:
			detail = fmt.Sprintf("%s, %d warning(s)", detail, len(st.Warnings()))
		}
		SummaryRow(c.W, st.Name, OutcomeStatus(st), detail, c.Color)
	}
	sec.Separator()

	status := StatusSuccess
	if report.Failed() {
		status = StatusFailed
	}
	SummaryTotal(c.W, report.Duration, status, c.Color)
	sec.Close()
}

// RunContext prints the run header.
func RunContext(w io.Writer, run *pipeline.Run) {
	kv := []KV{
		{"event", string(run.Event)},
		{"token", run.Token()},
		{"ref", run.Ref},
		{"commit", run.ShortCommit()},
	}
	if run.Meta.IsTagPush {
		kv = append(kv, KV{"trigger", "tag push"})
	}
	if run.Meta.IsRelease {
		kv = append(kv, KV{"trigger", "release"})
	}
	if run.ID != "" {
		kv = append(kv, KV{"run", run.ID})
	}
	ContextBlock(w, kv)
}
