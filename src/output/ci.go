package output

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sofmeright/slipway/src/pipeline"
)

// CI environment detection.

func IsCI() bool {
	return os.Getenv("CI") == "true"
}

func IsGitLabCI() bool {
	return os.Getenv("GITLAB_CI") == "true"
}

func IsGitHubActions() bool {
	return os.Getenv("GITHUB_ACTIONS") == "true"
}

// GroupStart opens a collapsible log group on hosts that support one.
func GroupStart(w io.Writer, id, name string) {
	switch {
	case IsGitHubActions():
		fmt.Fprintf(w, "::group::%s\n", name)
	case IsGitLabCI():
		fmt.Fprintf(w, "\033[0Ksection_start:%d:%s[collapsed=true]\r\033[0K%s\n", time.Now().Unix(), sectionID(id), name)
	}
}

// GroupEnd closes the group opened by GroupStart.
func GroupEnd(w io.Writer, id string) {
	switch {
	case IsGitHubActions():
		fmt.Fprintln(w, "::endgroup::")
	case IsGitLabCI():
		fmt.Fprintf(w, "\033[0Ksection_end:%d:%s\r\033[0K\n", time.Now().Unix(), sectionID(id))
	}
}

// Annotate emits a workflow annotation (GitHub only).
func Annotate(w io.Writer, level, message string) {
	if !IsGitHubActions() {
		return
	}
	fmt.Fprintf(w, "::%s::%s\n", level, strings.ReplaceAll(message, "\n", "%0A"))
}

// GitLab section ids are limited to [a-z0-9_.-].
func sectionID(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '.', r == '-':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '_'
		}
	}, id)
}

// JUnit XML types for CI test reporting.

type JUnitTestSuites struct {
	XMLName  xml.Name         `xml:"testsuites"`
	Name     string           `xml:"name,attr"`
	Tests    int              `xml:"tests,attr"`
	Failures int              `xml:"failures,attr"`
	Skipped  int              `xml:"skipped,attr"`
	Time     string           `xml:"time,attr"`
	Suites   []JUnitTestSuite `xml:"testsuite"`
}

type JUnitTestSuite struct {
	Name     string          `xml:"name,attr"`
	Tests    int             `xml:"tests,attr"`
	Failures int             `xml:"failures,attr"`
	Skipped  int             `xml:"skipped,attr"`
	Time     string          `xml:"time,attr"`
	Cases    []JUnitTestCase `xml:"testcase"`
}

type JUnitTestCase struct {
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Skipped   *JUnitSkipped `xml:"skipped,omitempty"`
	SystemOut string        `xml:"system-out,omitempty"`
}

type JUnitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

type JUnitSkipped struct {
	Message string `xml:"message,attr"`
}

// StageJUnit converts a run report into JUnit suites: one suite per stage,
// one case per step. A stage that never ran becomes a single skipped case.
// Best-effort failures are recorded as system-out, not failures.
func StageJUnit(report *pipeline.Report, redact func(string) string) JUnitTestSuites {
	if redact == nil {
		redact = func(s string) string { return s }
	}
	root := JUnitTestSuites{
		Name: "slipway",
		Time: seconds(report.Duration),
	}

	for _, st := range report.Stages {
		suite := JUnitTestSuite{Name: "slipway/" + st.Name, Time: seconds(st.Duration)}
		class := "slipway." + st.Name

		if !st.Dispatched() {
			suite.Cases = append(suite.Cases, JUnitTestCase{
				Name:      st.Name,
				Classname: class,
				Time:      seconds(0),
				Skipped:   &JUnitSkipped{Message: string(st.Reason)},
			})
			suite.Skipped++
		}

		for _, step := range st.Steps {
			tc := JUnitTestCase{Name: step.Name, Classname: class, Time: seconds(step.Duration)}
			switch step.Status {
			case pipeline.StepFailed:
				msg := redact(errString(step.Err))
				tc.Failure = &JUnitFailure{Message: firstLine(msg), Type: "StageError", Body: msg}
				suite.Failures++
			case pipeline.StepSkipped:
				tc.Skipped = &JUnitSkipped{Message: "not applicable"}
				suite.Skipped++
			case pipeline.StepWarning:
				tc.SystemOut = redact(errString(step.Err))
			}
			suite.Cases = append(suite.Cases, tc)
		}

		suite.Tests = len(suite.Cases)
		root.Tests += suite.Tests
		root.Failures += suite.Failures
		root.Skipped += suite.Skipped
		root.Suites = append(root.Suites, suite)
	}
	return root
}

// WriteStageJUnit writes the stage report to <dir>/slipway.xml.
func WriteStageJUnit(dir string, report *pipeline.Report, redact func(string) string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating report dir: %w", err)
	}

	path := filepath.Join(dir, "slipway.xml")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	if _, err := io.WriteString(f, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(f)
	enc.Indent("", "  ")
	if err := enc.Encode(StageJUnit(report, redact)); err != nil {
		return fmt.Errorf("encoding junit xml: %w", err)
	}
	_, err = io.WriteString(f, "\n")
	return err
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
