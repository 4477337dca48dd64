package stages

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sofmeright/slipway/src/config"
	"github.com/sofmeright/slipway/src/event"
	"github.com/sofmeright/slipway/src/pipeline"
	"github.com/sofmeright/slipway/src/publish"
	"github.com/sofmeright/slipway/src/secrets"
)

// Package builds the source distribution with the version forced to the
// release token and uploads it to the package index. It only runs for
// release events.
func Package(d Deps) pipeline.Stage {
	p := &packageStage{Deps: d}
	return pipeline.Stage{
		Name: config.KindPackage,
		Gate: pipeline.OnRelease,
		Steps: []pipeline.Step{
			{Name: "build", Run: p.build},
			{Name: "upload", Run: p.upload},
		},
	}
}

type packageStage struct {
	Deps
	artifacts []string
}

// IndexURL is the upload endpoint: the environment's redirect (e.g. a test
// index) when set, the configured index otherwise.
func IndexURL(cfg *config.Config, env *config.Environment) string {
	if env.IndexURL != "" {
		return env.IndexURL
	}
	if cfg.Package.IndexURL != "" {
		return cfg.Package.IndexURL
	}
	return config.DefaultIndexURL
}

func (p *packageStage) build(ctx context.Context, r *pipeline.Run) error {
	// fail before building anything that could not be uploaded
	if !p.Env.IndexToken.IsSet() {
		return fmt.Errorf("package index token: %w", secrets.ErrMissing)
	}

	project, err := publish.ReadProject(p.Root)
	if err != nil {
		return err
	}
	version := event.PackageVersion(r.Token())

	pc := p.Config.Package
	dist := &publish.Dist{
		Runner:     p.Runner,
		Python:     pc.Python,
		OutDir:     pc.Dist,
		VersionEnv: pc.VersionEnv,
		Formats:    pc.Formats,
	}
	if !project.DynamicVersion() && project.Version != version {
		p.logf("warning: pyproject.toml pins version %s; %s=%s has no effect", project.Version, pc.VersionEnv, version)
	}

	artifacts, err := dist.Build(ctx, p.Root, version)
	if err != nil {
		return err
	}
	p.artifacts = artifacts

	name := project.Name
	if name == "" {
		name = filepath.Base(p.Root)
	}
	p.logf("built %s %s: %d artifact(s)", name, version, len(artifacts))
	return nil
}

func (p *packageStage) upload(ctx context.Context, _ *pipeline.Run) error {
	url := IndexURL(p.Config, p.Env)
	if err := p.Index.Publish(ctx, p.artifacts, url, p.Env.IndexToken); err != nil {
		return err
	}
	p.logf("uploaded %d artifact(s) to %s", len(p.artifacts), url)
	return nil
}
