// Package output renders pipeline progress for operators: framed sections,
// status icons, CI log groups, a JUnit stage report, and credential
// redaction for everything streamed from external tools.
package output

import (
	"os"

	"github.com/sofmeright/slipway/src/pipeline"
)

// Colors for terminal output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorGray   = "\033[90m"
)

// Status keywords accepted by StatusIcon.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
	StatusWarning = "warning"
)

// OutcomeStatus maps a stage outcome onto a status keyword. A successful
// stage with best-effort failures reports a warning.
func OutcomeStatus(r pipeline.StageResult) string {
	switch r.Outcome {
	case pipeline.Success:
		if len(r.Warnings()) > 0 {
			return StatusWarning
		}
		return StatusSuccess
	case pipeline.Failure:
		return StatusFailed
	default:
		return StatusSkipped
	}
}

// StepStatus maps a step status onto a status keyword.
func StepStatus(s pipeline.StepStatus) string {
	switch s {
	case pipeline.StepSuccess:
		return StatusSuccess
	case pipeline.StepFailed:
		return StatusFailed
	case pipeline.StepWarning:
		return StatusWarning
	default:
		return StatusSkipped
	}
}

func colorize(text, color string, enabled bool) string {
	if !enabled {
		return text
	}
	return color + text + colorReset
}

func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// UseColor returns true if colored output should be used.
// Respects NO_COLOR env, TERM=dumb, and terminal detection.
func UseColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return isTerminal() || IsCI()
}
