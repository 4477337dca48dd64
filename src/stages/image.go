package stages

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sofmeright/slipway/src/build"
	"github.com/sofmeright/slipway/src/config"
	"github.com/sofmeright/slipway/src/pipeline"
)

// CacheScope is the cache scope of an image variant.
func CacheScope(variant string) string { return "buildx-" + variant }

// Image builds one variant. Every run builds; login and push only happen
// when the run is publishable (tag push or release).
func Image(d Deps, v config.VariantConfig) pipeline.Stage {
	im := &imageStage{Deps: d, variant: v}
	cached := func(*pipeline.Run) bool { return d.Cache != nil }

	return pipeline.Stage{
		Name: "image-" + v.Name,
		Steps: []pipeline.Step{
			{Name: "cache-restore", BestEffort: true, When: cached, Run: im.restore},
			{Name: "login", When: pipeline.OnPublishable, Run: im.login},
			{Name: "build", Run: im.build},
			{Name: "cache-save", BestEffort: true, When: cached, Run: im.save},
			{Name: "push", When: pipeline.OnPublishable, Run: im.push},
		},
	}
}

type imageStage struct {
	Deps
	variant config.VariantConfig
}

// Repository is the image repository every variant is tagged under.
func Repository(cfg *config.Config, env *config.Environment) string {
	return build.ImageRepository(env.RegistryURL, env.RegistryOrg, cfg.Images.Name)
}

// BaseImage resolves the base image reference of a variant.
func BaseImage(v config.VariantConfig, env *config.Environment) string {
	tag := v.BaseTag
	if tag == "" {
		tag = env.BaseTag(v.Name)
	}
	return build.BaseImageRef(env.RegistryURL, env.RegistryOrg, v.BaseImage, tag)
}

// Plan resolves the build step for a run.
func (im *imageStage) Plan(r *pipeline.Run) build.BuildStep {
	images := im.Config.Images
	in := build.StepInput{
		Repository: Repository(im.Config, im.Env),
		Token:      r.Token(),
		Variant: build.Variant{
			Name:      im.variant.Name,
			Suffix:    im.variant.Suffix,
			BaseImage: BaseImage(im.variant, im.Env),
		},
		Dockerfile:   im.path(images.Dockerfile),
		Context:      im.path(images.Context),
		Target:       images.Target,
		Platforms:    images.Platforms,
		BuildArgs:    images.BuildArgs,
		BaseImageArg: images.BaseImageArg,
		VersionArg:   images.VersionArg,
	}
	if im.Cache != nil {
		if dirExists(im.cacheFrom()) {
			in.CacheFrom = im.cacheFrom()
		}
		in.CacheTo = im.cacheTo()
	}
	return build.NewStep(in)
}

func (im *imageStage) cacheDir() string {
	return filepath.Join(im.path(im.Config.Cache.WorkDir), im.variant.Name)
}

func (im *imageStage) cacheFrom() string { return filepath.Join(im.cacheDir(), "from") }
func (im *imageStage) cacheTo() string   { return filepath.Join(im.cacheDir(), "to") }

func (im *imageStage) restore(ctx context.Context, r *pipeline.Run) error {
	hit, err := im.Cache.Restore(ctx, CacheScope(im.variant.Name), r.Commit, im.cacheFrom())
	if err != nil {
		return err
	}
	im.logf("%s: cache %s", im.variant.Name, hit)
	return nil
}

func (im *imageStage) login(ctx context.Context, _ *pipeline.Run) error {
	return im.Builder.Login(ctx, im.Env.RegistryURL, im.Env.RegistryUser, im.Env.RegistryPassword)
}

func (im *imageStage) build(ctx context.Context, r *pipeline.Run) error {
	step := im.Plan(r)
	if step.CacheTo != "" {
		// buildx refuses to export into a directory holding a previous export
		if err := os.RemoveAll(step.CacheTo); err != nil {
			return err
		}
	}
	res, err := im.Builder.Build(ctx, step)
	if err != nil {
		return err
	}
	im.logf("%s: built %v in %s", im.variant.Name, res.Images, res.Duration.Round(time.Millisecond))
	return nil
}

func (im *imageStage) save(ctx context.Context, r *pipeline.Run) error {
	if !dirExists(im.cacheTo()) {
		return errors.New("builder exported no cache")
	}
	key, err := im.Cache.Save(ctx, CacheScope(im.variant.Name), r.Commit, im.cacheTo())
	if err != nil {
		return err
	}
	im.logf("%s: cache saved as %s", im.variant.Name, key)
	return nil
}

func (im *imageStage) push(ctx context.Context, r *pipeline.Run) error {
	tags := im.Plan(r).Tags
	if err := im.Builder.Push(ctx, tags); err != nil {
		return err
	}
	im.logf("%s: pushed %v", im.variant.Name, tags)
	return nil
}

// DockerfileWarnings reports build args and the target stage that the
// configured Dockerfile does not declare. Docker ignores undeclared build
// args, so a missing ARG builds from the wrong base or version silently.
func DockerfileWarnings(d Deps) []string {
	images := d.Config.Images
	path := d.path(images.Dockerfile)
	df, err := build.ParseDockerfile(path)
	if err != nil {
		return []string{fmt.Sprintf("dockerfile: %v", err)}
	}

	var warnings []string
	for _, arg := range df.MissingArgs(images.BaseImageArg, images.VersionArg) {
		warnings = append(warnings, fmt.Sprintf("dockerfile %s: no ARG %s; the build arg has no effect", images.Dockerfile, arg))
	}
	if images.Target != "" && !df.HasStage(images.Target) {
		warnings = append(warnings, fmt.Sprintf("dockerfile %s: no stage named %q", images.Dockerfile, images.Target))
	}
	return warnings
}

func dirExists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.IsDir()
}
