package output

import (
	"bytes"
	"encoding/xml"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sofmeright/slipway/src/event"
	"github.com/sofmeright/slipway/src/pipeline"
	"github.com/sofmeright/slipway/src/secrets"
)

func plainCI(t *testing.T) {
	t.Setenv("GITHUB_ACTIONS", "")
	t.Setenv("GITLAB_CI", "")
}

func sampleReport() *pipeline.Report {
	run := pipeline.NewRun(event.Trigger{Kind: event.Push, Ref: "refs/heads/main", Commit: "0123456789"}, event.Metadata{VersionToken: "tmp"})
	return &pipeline.Report{
		Run:      run,
		Duration: 3 * time.Second,
		Stages: []pipeline.StageResult{
			{
				Name:     "test",
				Outcome:  pipeline.Success,
				Duration: 2 * time.Second,
				Steps: []pipeline.StepResult{
					{Name: "tests", Status: pipeline.StepSuccess, Duration: time.Second},
					{Name: "coverage-upload", Status: pipeline.StepWarning, Err: errors.New("503 token=supersecret")},
				},
			},
			{
				Name:    "image-slim",
				Outcome: pipeline.Failure,
				Err:     errors.New("stage image-slim: step build: exit 1"),
				Steps: []pipeline.StepResult{
					{Name: "build", Status: pipeline.StepFailed, Err: errors.New("exit 1\nmore detail")},
					{Name: "push", Status: pipeline.StepSkipped},
				},
			},
			{Name: "package", Outcome: pipeline.Skipped, Reason: pipeline.GateNotMet},
		},
	}
}

func TestStatusIcon(t *testing.T) {
	assert.Equal(t, "✓", StatusIcon(StatusSuccess, false))
	assert.Equal(t, "✗", StatusIcon(StatusFailed, false))
	assert.Equal(t, "⚠", StatusIcon(StatusWarning, false))
	assert.Equal(t, "⊘", StatusIcon(StatusSkipped, false))
	assert.Equal(t, "\033[32m✓\033[0m", StatusIcon(StatusSuccess, true))
}

func TestOutcomeStatus(t *testing.T) {
	r := sampleReport()
	assert.Equal(t, StatusWarning, OutcomeStatus(r.Stages[0]))
	assert.Equal(t, StatusFailed, OutcomeStatus(r.Stages[1]))
	assert.Equal(t, StatusSkipped, OutcomeStatus(r.Stages[2]))
}

func TestFormatElapsed(t *testing.T) {
	assert.Equal(t, "<1ms", formatElapsed(0))
	assert.Equal(t, "250ms", formatElapsed(250*time.Millisecond))
	assert.Equal(t, "1.5s", formatElapsed(1500*time.Millisecond))
	assert.Equal(t, "2m3.0s", formatElapsed(123*time.Second))
}

func TestSectionHeaderWidth(t *testing.T) {
	var buf bytes.Buffer
	sec := NewSection(&buf, "image-standard", 1500*time.Millisecond, false)
	sec.Row("build %s", "ok")
	sec.Close()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, sectionWidth+4, len([]rune(strings.TrimSpace(lines[0]))))
	assert.Contains(t, lines[0], "1.5s")
	assert.Equal(t, "    │ build ok", lines[1])
}

func TestConsole(t *testing.T) {
	plainCI(t)
	red, err := NewRedactor(false)
	require.NoError(t, err)
	red.Add(secrets.NewCredential("supersecret"))

	var buf bytes.Buffer
	c := NewConsole(&buf, false, red)
	report := sampleReport()

	for _, st := range report.Stages {
		if st.Dispatched() {
			c.StageStarted(report.Run, st.Name)
			for _, step := range st.Steps {
				c.StepFinished(report.Run, st.Name, step)
			}
		}
		c.StageFinished(report.Run, st)
	}
	c.Summary(report)

	out := buf.String()
	assert.Contains(t, out, "▸ test started")
	assert.Contains(t, out, "coverage-upload ⚠  503 token=[redacted]")
	assert.NotContains(t, out, "supersecret")
	assert.Contains(t, out, "push            ⊘  not applicable")
	assert.Contains(t, out, "skipped: gate-not-met")
	assert.Contains(t, out, "1 warning(s)")
	assert.Contains(t, out, "── Summary")
	assert.NotContains(t, out, "::group::")
}

func TestConsoleGitHubGroups(t *testing.T) {
	plainCI(t)
	t.Setenv("GITHUB_ACTIONS", "true")

	var buf bytes.Buffer
	c := NewConsole(&buf, false, nil)
	report := sampleReport()
	c.StageStarted(report.Run, "image-slim")
	c.StageFinished(report.Run, report.Stages[1])

	out := buf.String()
	assert.Contains(t, out, "::group::image-slim steps")
	assert.Contains(t, out, "::endgroup::")
	assert.Contains(t, out, "::error::stage image-slim: step build: exit 1")
}

func TestGitLabSection(t *testing.T) {
	plainCI(t)
	t.Setenv("GITLAB_CI", "true")

	var buf bytes.Buffer
	GroupStart(&buf, "Image Slim", "image")
	GroupEnd(&buf, "Image Slim")
	assert.Contains(t, buf.String(), ":image_slim[collapsed=true]")
	assert.Contains(t, buf.String(), "section_end:")
}

func TestRunContext(t *testing.T) {
	var buf bytes.Buffer
	run := pipeline.NewRun(event.Trigger{Kind: event.Push, Ref: "refs/tags/v2.1.0", Commit: "0123456789", RunID: "9"},
		event.Metadata{VersionToken: "v2.1.0", IsTagPush: true})
	RunContext(&buf, run)
	assert.Contains(t, buf.String(), "v2.1.0")
	assert.Contains(t, buf.String(), "tag push")
	assert.Contains(t, buf.String(), "01234567")
}

func TestRedactorCredentials(t *testing.T) {
	r, err := NewRedactor(false)
	require.NoError(t, err)
	r.Add(secrets.NewCredential("abcd"), secrets.NewCredential("abcdefgh"), secrets.NewCredential("ci"), secrets.Credential{})

	assert.Equal(t, "login [redacted] as ci", r.Redact("login abcdefgh as ci"))
	assert.Equal(t, "[redacted]!", r.Redact("abcd!"))
	assert.Equal(t, "", r.Redact(""))

	var nilRedactor *Redactor
	assert.Equal(t, "as is", nilRedactor.Redact("as is"))
}

func TestRedactorDetectsUnregisteredSecrets(t *testing.T) {
	r, err := NewRedactor(true)
	require.NoError(t, err)

	pat := "ghp_" + "R2d9Kq7Lm3Xv8Tz1Wb6Yc4Nf0Hj5Sg2Pa7Eu"
	out := r.Redact("export GITHUB_TOKEN=" + pat)
	assert.NotContains(t, out, pat)
	assert.Contains(t, out, redacted)
}

func TestRedactingWriterSplitsAcrossWrites(t *testing.T) {
	r, err := NewRedactor(false)
	require.NoError(t, err)
	r.Add(secrets.NewCredential("hunter2"))

	var buf bytes.Buffer
	w := r.Writer(&buf)
	_, err = w.Write([]byte("password: hun"))
	require.NoError(t, err)
	assert.Empty(t, buf.String(), "partial lines are held back")
	_, err = w.Write([]byte("ter2\ntail hunter2"))
	require.NoError(t, err)
	require.NoError(t, w.Flush())

	assert.Equal(t, "password: [redacted]\ntail [redacted]", buf.String())
}

func TestStageJUnit(t *testing.T) {
	r, err := NewRedactor(false)
	require.NoError(t, err)
	r.Add(secrets.NewCredential("supersecret"))

	suites := StageJUnit(sampleReport(), r.Redact)
	assert.Equal(t, 5, suites.Tests)
	assert.Equal(t, 1, suites.Failures)
	assert.Equal(t, 2, suites.Skipped)
	require.Len(t, suites.Suites, 3)

	test := suites.Suites[0]
	assert.Equal(t, "slipway/test", test.Name)
	assert.Equal(t, "503 token=[redacted]", test.Cases[1].SystemOut)

	build := suites.Suites[1].Cases[0]
	require.NotNil(t, build.Failure)
	assert.Equal(t, "exit 1", build.Failure.Message)

	pkg := suites.Suites[2].Cases[0]
	require.NotNil(t, pkg.Skipped)
	assert.Equal(t, "gate-not-met", pkg.Skipped.Message)
}

func TestWriteStageJUnit(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	require.NoError(t, WriteStageJUnit(dir, sampleReport(), nil))

	data, err := os.ReadFile(filepath.Join(dir, "slipway.xml"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), xml.Header))

	var decoded JUnitTestSuites
	require.NoError(t, xml.Unmarshal(data, &decoded))
	assert.Len(t, decoded.Suites, 3)
}
