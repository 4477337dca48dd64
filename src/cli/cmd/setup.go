package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sofmeright/slipway/src/build"
	"github.com/sofmeright/slipway/src/cache"
	"github.com/sofmeright/slipway/src/config"
	"github.com/sofmeright/slipway/src/coverage"
	"github.com/sofmeright/slipway/src/event"
	"github.com/sofmeright/slipway/src/publish"
	"github.com/sofmeright/slipway/src/runner"
	"github.com/sofmeright/slipway/src/stages"
)

// triggerFlags override what event.Detect finds in the environment.
type triggerFlags struct {
	event  string
	ref    string
	sha    string
	runID  string
	action string
}

func (f *triggerFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.event, "event", "", "event name (push|release); default: detected")
	cmd.Flags().StringVar(&f.ref, "ref", "", "git ref, e.g. refs/tags/v2.1.0; default: detected")
	cmd.Flags().StringVar(&f.sha, "sha", "", "commit SHA; default: detected")
	cmd.Flags().StringVar(&f.runID, "run-id", "", "CI run identifier; default: detected")
	cmd.Flags().StringVar(&f.action, "action", "", "release action; default: read from the event payload")
}

func (f *triggerFlags) detect(rootDir string) (event.Trigger, error) {
	override := event.Trigger{
		Ref:    f.ref,
		Commit: f.sha,
		RunID:  f.runID,
		Action: f.action,
	}
	if f.event != "" {
		override.Kind = event.ParseKind(f.event)
	}
	return event.Detect(event.DetectOptions{RootDir: rootDir, Override: override})
}

func rootDirFromArgs(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", dir, err)
	}
	return abs, nil
}

func resolveEnvironment(ctx context.Context) (*config.Environment, error) {
	src, err := config.NewSource(ctx, cfg.Secrets)
	if err != nil {
		return nil, err
	}
	return config.ResolveEnvironment(ctx, cfg.Env, src)
}

// cacheOS is the OS component of cache keys.
func cacheOS(env *config.Environment) string {
	if cfg.Cache.OS != "" {
		return cfg.Cache.OS
	}
	return env.RunnerOS
}

// newCacheManager returns nil when caching is disabled.
func newCacheManager(ctx context.Context, rootDir string, env *config.Environment) (*cache.Manager, error) {
	if !cfg.Cache.Enabled() {
		return nil, nil
	}
	store, err := cache.NewStore(ctx, cfg.Cache, rootDir, env)
	if err != nil {
		return nil, err
	}
	if cfg.Cache.Backend == config.CacheLocal {
		cache.EnsureGitignore(rootDir, ".slipway/")
	}
	return cache.NewManager(store, cacheOS(env)), nil
}

// newDeps wires the production collaborators. log receives narration and,
// in verbose mode, the live output of every external command.
func newDeps(ctx context.Context, rootDir string, env *config.Environment, log io.Writer) stages.Deps {
	exec := &runner.Exec{}
	if verbose {
		exec.Stdout, exec.Stderr = log, log
	}

	mgr, err := newCacheManager(ctx, rootDir, env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: cache disabled: %v\n", err)
		mgr = nil
	}

	return stages.Deps{
		Config:  cfg,
		Env:     env,
		Root:    rootDir,
		Runner:  exec,
		Builder: build.NewBuildx(exec, verbose, log),
		Index:   &publish.Twine{Runner: exec, Executable: cfg.Package.Twine},
		Uploader: &coverage.Coveralls{
			Endpoint: cfg.Coverage.Endpoint,
			Root:     rootDir,
			Workdir:  cfg.Test.Workdir,
		},
		Cache: mgr,
		Log:   log,
	}
}
