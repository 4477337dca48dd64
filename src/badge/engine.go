package badge

import (
	"fmt"
	"os"
	"path/filepath"
)

// Engine renders SVG badges with one measured font.
type Engine struct {
	metrics *FontMetrics
}

// New creates a badge engine with the given font metrics.
func New(metrics *FontMetrics) *Engine {
	return &Engine{metrics: metrics}
}

// Badge is the content of a single badge.
type Badge struct {
	Label string // left side text
	Value string // right side text
	Color string // right side fill, e.g. "#4c1"
}

// Generate produces a shields.io-compatible flat SVG.
func (e *Engine) Generate(b Badge) string {
	return e.renderSVG(b)
}

// WriteFile renders b to path, creating parent directories.
func (e *Engine) WriteFile(path string, b Badge) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating badge directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(e.Generate(b)), 0o644); err != nil {
		return fmt.Errorf("writing badge %s: %w", path, err)
	}
	return nil
}

// Coverage returns the badge for a line coverage percentage.
func Coverage(percent float64) Badge {
	return Badge{
		Label: "coverage",
		Value: fmt.Sprintf("%.0f%%", percent),
		Color: CoverageColor(percent),
	}
}

// CoverageColor follows the usual coverage service thresholds.
func CoverageColor(percent float64) string {
	switch {
	case percent >= 90:
		return "#4c1"
	case percent >= 80:
		return "#97ca00"
	case percent >= 70:
		return "#a4a61d"
	case percent >= 60:
		return "#dfb317"
	case percent >= 50:
		return "#fe7d37"
	default:
		return "#e05d44"
	}
}
