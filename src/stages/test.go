package stages

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/sofmeright/slipway/src/badge"
	"github.com/sofmeright/slipway/src/build"
	"github.com/sofmeright/slipway/src/config"
	"github.com/sofmeright/slipway/src/coverage"
	"github.com/sofmeright/slipway/src/pipeline"
	"github.com/sofmeright/slipway/src/runner"
)

// Test runs the suite under coverage inside the pinned test image, then
// uploads the report and renders the coverage badge. Only the suite itself
// can fail the stage.
func Test(d Deps) pipeline.Stage {
	return pipeline.Stage{
		Name: config.KindTest,
		Steps: []pipeline.Step{
			{Name: "tests", Run: d.runTests},
			{
				Name:       "coverage-upload",
				BestEffort: true,
				When: func(*pipeline.Run) bool {
					return d.Uploader != nil && d.Env != nil && d.Env.CoverageToken.IsSet()
				},
				Run: d.uploadCoverage,
			},
			{
				Name:       "coverage-badge",
				BestEffort: true,
				When:       func(*pipeline.Run) bool { return d.Config.Badges.Coverage != "" },
				Run:        d.renderBadge,
			},
		},
	}
}

// TestImage returns the image the suite runs in: the configured one, or the
// standard variant's base image.
func TestImage(cfg *config.Config, env *config.Environment) string {
	if cfg.Test.Image != "" {
		return cfg.Test.Image
	}
	v, ok := cfg.Images.Variant("standard")
	if !ok && len(cfg.Images.Variants) > 0 {
		v = cfg.Images.Variants[0]
	}
	tag := v.BaseTag
	if tag == "" {
		tag = env.BaseTag(v.Name)
	}
	return build.BaseImageRef(env.RegistryURL, env.RegistryOrg, v.BaseImage, tag)
}

// TestScript is the shell script executed in the test container.
func TestScript(t config.TestConfig, c config.CoverageConfig) string {
	lines := append([]string{}, t.Setup...)

	run := []string{"coverage", "run"}
	if c.Source != "" {
		run = append(run, "--source="+c.Source)
	}
	if len(c.Omit) > 0 {
		run = append(run, "--omit="+strings.Join(c.Omit, ","))
	}
	run = append(run, "-m", t.Module)
	run = append(run, t.Args...)
	lines = append(lines, quoteAll(run))

	lines = append(lines, quoteAll([]string{"coverage", "xml", "-o", c.Report}))
	return strings.Join(lines, "\n")
}

// TestCommand is the docker invocation of the suite. Container environment
// values travel through the process environment, not argv.
func TestCommand(d Deps) runner.Command {
	t := d.Config.Test
	workdir := t.Workdir
	if workdir == "" {
		workdir = "/src"
	}
	root, err := filepath.Abs(d.Root)
	if err != nil {
		root = d.Root
	}

	args := []string{"run", "--rm", "-v", root + ":" + workdir, "-w", workdir}
	keys := make([]string, 0, len(t.Env))
	for k := range t.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "-e", k)
	}
	args = append(args, TestImage(d.Config, d.Env), "sh", "-ec", TestScript(t, d.Config.Coverage))

	return runner.Command{Name: "docker", Args: args, Env: t.Env}
}

func (d Deps) runTests(ctx context.Context, r *pipeline.Run) error {
	cmd := TestCommand(d)
	d.logf("running tests in %s", TestImage(d.Config, d.Env))
	if _, err := d.Runner.Run(ctx, cmd); err != nil {
		return fmt.Errorf("test suite: %w", err)
	}
	return nil
}

func (d Deps) readReport() (*coverage.Report, error) {
	return coverage.ReadCobertura(d.path(d.Config.Coverage.Report))
}

func (d Deps) uploadCoverage(ctx context.Context, r *pipeline.Run) error {
	report, err := d.readReport()
	if err != nil {
		return err
	}
	meta := coverage.RunMeta{
		ServiceName:   d.Config.Coverage.ServiceName,
		JobID:         r.ID,
		ServiceNumber: r.ID,
		Commit:        r.Commit,
		Branch:        branch(r),
	}
	if err := d.Uploader.Upload(ctx, report, meta, d.Env.CoverageToken); err != nil {
		return err
	}
	d.logf("coverage %.1f%% uploaded", report.Percent())
	return nil
}

func (d Deps) renderBadge(_ context.Context, _ *pipeline.Run) error {
	report, err := d.readReport()
	if err != nil {
		return err
	}
	metrics, err := badge.Load(d.Config.Badges.FontFile, d.Config.Badges.FontSize)
	if err != nil {
		return err
	}
	out := d.path(d.Config.Badges.Coverage)
	if err := badge.New(metrics).WriteFile(out, badge.Coverage(report.Percent())); err != nil {
		return err
	}
	d.logf("coverage badge written to %s", out)
	return nil
}

// path resolves p against the repository root.
func (d Deps) path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(d.Root, p)
}

var shellSafe = regexp.MustCompile(`^[A-Za-z0-9_./=:,@+%-]+$`)

func quoteAll(words []string) string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = shellQuote(w)
	}
	return strings.Join(out, " ")
}

func shellQuote(s string) string {
	if shellSafe.MatchString(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
