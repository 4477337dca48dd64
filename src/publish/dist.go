package publish

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/sofmeright/slipway/src/runner"
)

// Dist builds distribution artifacts with "python -m build".
type Dist struct {
	Runner runner.Runner
	Python string

	// OutDir receives the artifacts. Relative paths are resolved against the
	// project root.
	OutDir string

	// VersionEnv is the variable the build backend reads the version
	// override from (setuptools_scm: SETUPTOOLS_SCM_PRETEND_VERSION).
	VersionEnv string

	// Formats is any of "sdist", "wheel". Empty = sdist.
	Formats []string
}

// Build produces artifacts for the project at root with version forced to
// version, and returns their paths. Stale artifacts in OutDir are removed
// first so only this build is uploaded.
func (d *Dist) Build(ctx context.Context, root, version string) ([]string, error) {
	out := d.OutDir
	if out == "" {
		out = "dist"
	}
	if !filepath.IsAbs(out) {
		out = filepath.Join(root, out)
	}
	if err := os.RemoveAll(out); err != nil {
		return nil, fmt.Errorf("clearing %s: %w", out, err)
	}

	python := d.Python
	if python == "" {
		python = "python"
	}
	args := []string{"-m", "build"}
	formats := d.Formats
	if len(formats) == 0 {
		formats = []string{"sdist"}
	}
	for _, f := range formats {
		args = append(args, "--"+f)
	}
	args = append(args, "--outdir", out)

	env := map[string]string{}
	if d.VersionEnv != "" && version != "" {
		env[d.VersionEnv] = version
	}

	if _, err := d.Runner.Run(ctx, runner.Command{Name: python, Args: args, Dir: root, Env: env}); err != nil {
		return nil, fmt.Errorf("building package: %w", err)
	}

	artifacts, err := Artifacts(out)
	if err != nil {
		return nil, err
	}
	if len(artifacts) == 0 {
		return nil, fmt.Errorf("building package: no artifacts in %s", out)
	}
	return artifacts, nil
}

// Artifacts lists sdists and wheels in dir, sorted.
func Artifacts(dir string) ([]string, error) {
	var out []string
	for _, pattern := range []string{"*.tar.gz", "*.whl", "*.zip"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		out = append(out, matches...)
	}
	sort.Strings(out)
	return out, nil
}
