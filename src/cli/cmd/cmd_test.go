package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
version: 1
images:
  name: nansat
  variants:
    - name: standard
      base_image: nansat_base
    - name: slim
      suffix: -slim
      base_image: nansat_base
`

func isolate(t *testing.T) (cfgPath, dir string) {
	t.Helper()
	for _, k := range []string{
		"GITHUB_EVENT_NAME", "GITHUB_REF", "GITHUB_SHA", "GITHUB_EVENT_PATH", "GITHUB_ACTIONS",
		"GITLAB_CI", "CI_COMMIT_TAG", "CI_COMMIT_BRANCH", "CI_COMMIT_SHA",
		"RELEASE_VERSION", "DOCKER_ORG", "PYPI_TOKEN", "PYPI_REPOSITORY_URL",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("NO_COLOR", "1")

	dir = t.TempDir()
	cfgPath = filepath.Join(dir, ".slipway.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(testConfig), 0o644))
	return cfgPath, dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestEventEnvFormat(t *testing.T) {
	cfgPath, dir := isolate(t)
	out, err := execute(t, "event", "--config", cfgPath,
		"--event", "push", "--ref", "refs/tags/v2.1.0", "--sha", "abc123", "--format", "env", dir)
	require.NoError(t, err)

	assert.Contains(t, out, "SLIPWAY_VERSION_TOKEN=v2.1.0\n")
	assert.Contains(t, out, "SLIPWAY_PACKAGE_VERSION=2.1.0\n")
	assert.Contains(t, out, "SLIPWAY_IS_TAG_PUSH=true\n")
	assert.Contains(t, out, "SLIPWAY_IS_RELEASE=false\n")
}

func TestEventReleaseVersionOverride(t *testing.T) {
	cfgPath, dir := isolate(t)
	t.Setenv("RELEASE_VERSION", "v3.0.0")
	out, err := execute(t, "event", "--config", cfgPath,
		"--event", "release", "--ref", "v2.1.0", "--sha", "abc123", "--action", "released", "--format", "env", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "SLIPWAY_VERSION_TOKEN=v3.0.0\n")

	out, err = execute(t, "event", "--config", cfgPath,
		"--event", "push", "--ref", "refs/heads/main", "--sha", "abc123", "--action", "", "--format", "env", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "SLIPWAY_VERSION_TOKEN=tmp\n", "branch pushes ignore the override")
}

func TestEventUnknownFormat(t *testing.T) {
	cfgPath, dir := isolate(t)
	_, err := execute(t, "event", "--config", cfgPath, "--sha", "abc", "--ref", "refs/heads/main", "--format", "yaml", dir)
	assert.ErrorContains(t, err, "unknown format")
}

func TestPlanRelease(t *testing.T) {
	cfgPath, dir := isolate(t)
	t.Setenv("DOCKER_ORG", "nansencenter")
	out, err := execute(t, "plan", "--config", cfgPath,
		"--event", "release", "--ref", "v2.1.0", "--sha", "abc123", "--action", "released", dir)
	require.NoError(t, err)

	assert.Contains(t, out, "publish 2.1.0 to https://upload.pypi.org/legacy/")
	assert.Contains(t, out, "push nansencenter/nansat:latest-slim, nansencenter/nansat:v2.1.0-slim")
	assert.Contains(t, out, "PYPI_TOKEN is not set")
}

func TestPlanBranchPush(t *testing.T) {
	cfgPath, dir := isolate(t)
	out, err := execute(t, "plan", "--config", cfgPath,
		"--event", "push", "--ref", "refs/heads/main", "--sha", "abc123", "--action", "", dir)
	require.NoError(t, err)

	assert.Contains(t, out, "skipped: gate-not-met")
	assert.Contains(t, out, "build only nansat:latest, nansat:tmp")
	assert.Contains(t, out, "not a release; nothing is published")
}

func TestPlanPrereleaseAndDockerfileWarnings(t *testing.T) {
	cfgPath, dir := isolate(t)
	t.Setenv("PYPI_TOKEN", "pypi-secret")
	out, err := execute(t, "plan", "--config", cfgPath,
		"--event", "release", "--ref", "v2.2.0-rc.1", "--sha", "abc123", "--action", "released", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "publish 2.2.0-rc.1 (prerelease) to https://upload.pypi.org/legacy/")
	assert.Contains(t, out, "dockerfile:", "a missing Dockerfile is reported before any build")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte("FROM python:3.12\n"), 0o644))
	out, err = execute(t, "plan", "--config", cfgPath,
		"--event", "release", "--ref", "v2.2.0", "--sha", "abc123", "--action", "released", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "publish 2.2.0 to")
	assert.Contains(t, out, "no ARG BASE_IMAGE")
}

func TestRunRequiresDocker(t *testing.T) {
	cfgPath, dir := isolate(t)
	t.Setenv("PATH", t.TempDir())
	_, err := execute(t, "run", "--config", cfgPath,
		"--event", "push", "--ref", "refs/heads/main", "--sha", "abc123", "--action", "", dir)
	assert.ErrorContains(t, err, "docker not found on PATH")
}

func TestRunIgnoresUnreleasedAction(t *testing.T) {
	cfgPath, dir := isolate(t)
	out, err := execute(t, "run", "--config", cfgPath,
		"--event", "release", "--ref", "v2.1.0", "--sha", "abc123", "--action", "created", dir)
	require.NoError(t, err)
	assert.Contains(t, out, `release action "created" does not start a pipeline`)
}

func TestInvalidConfig(t *testing.T) {
	_, dir := isolate(t)
	bad := filepath.Join(dir, "bad.yml")
	require.NoError(t, os.WriteFile(bad, []byte("version: 2\n"), 0o644))
	_, err := execute(t, "event", "--config", bad, "--sha", "abc", dir)
	assert.ErrorContains(t, err, "invalid config")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "slipway dev")
}
