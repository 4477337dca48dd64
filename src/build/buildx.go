package build

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/sofmeright/slipway/src/runner"
	"github.com/sofmeright/slipway/src/secrets"
)

// Builder is the registry collaborator: authenticate, build, publish.
type Builder interface {
	Login(ctx context.Context, registry string, user, password secrets.Credential) error
	Build(ctx context.Context, step BuildStep) (*StepResult, error)
	Push(ctx context.Context, tags []string) error
}

// builderName is the buildx builder created when none is usable.
const builderName = "slipway"

// Buildx wraps docker and docker buildx commands.
type Buildx struct {
	Runner  runner.Runner
	Verbose bool
	Log     io.Writer // command echo in verbose mode
}

// NewBuildx creates a Buildx driving the docker CLI through r.
func NewBuildx(r runner.Runner, verbose bool, log io.Writer) *Buildx {
	return &Buildx{Runner: r, Verbose: verbose, Log: log}
}

// Login authenticates against registry (empty = Docker Hub). The password
// travels over stdin, never argv.
func (bx *Buildx) Login(ctx context.Context, registry string, user, password secrets.Credential) error {
	if !user.IsSet() || !password.IsSet() {
		return fmt.Errorf("docker login: %w", secrets.ErrMissing)
	}

	args := []string{"login", "--username", user.Reveal(), "--password-stdin"}
	if registry != "" {
		args = append(args, registry)
	}
	_, err := bx.run(ctx, runner.Command{
		Name:  "docker",
		Args:  args,
		Stdin: strings.NewReader(password.Reveal()),
	})
	if err != nil {
		return fmt.Errorf("docker login failed: %w", err)
	}
	return nil
}

// Build executes a single build step via docker buildx.
func (bx *Buildx) Build(ctx context.Context, step BuildStep) (*StepResult, error) {
	start := time.Now()
	result := &StepResult{Name: step.Name}

	_, err := bx.run(ctx, runner.Command{Name: "docker", Args: bx.buildArgs(step)})
	result.Duration = time.Since(start)
	if err != nil {
		result.Status = "failed"
		result.Error = fmt.Errorf("docker buildx build failed: %w", err)
		return result, result.Error
	}

	result.Status = "success"
	result.Images = step.Tags
	return result, nil
}

// Push publishes every tag. The first failure aborts the rest.
func (bx *Buildx) Push(ctx context.Context, tags []string) error {
	for _, tag := range tags {
		if _, err := bx.run(ctx, runner.Command{Name: "docker", Args: []string{"push", tag}}); err != nil {
			return fmt.Errorf("docker push %s failed: %w", tag, err)
		}
	}
	return nil
}

// buildArgs constructs the docker buildx build argument list.
func (bx *Buildx) buildArgs(step BuildStep) []string {
	args := []string{"buildx", "build"}

	if step.Dockerfile != "" {
		args = append(args, "--file", step.Dockerfile)
	}
	if step.Target != "" {
		args = append(args, "--target", step.Target)
	}
	if len(step.Platforms) > 0 {
		args = append(args, "--platform", strings.Join(step.Platforms, ","))
	}

	// sorted for reproducible command lines
	keys := make([]string, 0, len(step.BuildArgs))
	for k := range step.BuildArgs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "--build-arg", fmt.Sprintf("%s=%s", k, step.BuildArgs[k]))
	}

	for _, tag := range step.Tags {
		args = append(args, "--tag", tag)
	}

	if step.CacheFrom != "" {
		args = append(args, "--cache-from", "type=local,src="+step.CacheFrom)
	}
	if step.CacheTo != "" {
		args = append(args, "--cache-to", "type=local,dest="+step.CacheTo+",mode=max")
	}

	if step.Load {
		args = append(args, "--load")
	}

	buildContext := step.Context
	if buildContext == "" {
		buildContext = "."
	}
	return append(args, buildContext)
}

// EnsureBuilder checks that a buildx builder is available and creates a
// docker-container one if needed (required for local cache export).
func (bx *Buildx) EnsureBuilder(ctx context.Context) error {
	if _, err := bx.run(ctx, runner.Command{Name: "docker", Args: []string{"buildx", "inspect", builderName}}); err == nil {
		_, err = bx.run(ctx, runner.Command{Name: "docker", Args: []string{"buildx", "use", builderName}})
		return err
	}
	_, err := bx.run(ctx, runner.Command{
		Name: "docker",
		Args: []string{"buildx", "create", "--use", "--driver", "docker-container", "--name", builderName},
	})
	if err != nil {
		return fmt.Errorf("creating buildx builder: %w", err)
	}
	return nil
}

func (bx *Buildx) run(ctx context.Context, cmd runner.Command) (*runner.Result, error) {
	if bx.Verbose && bx.Log != nil {
		fmt.Fprintf(bx.Log, "exec: %s\n", cmd)
	}
	return bx.Runner.Run(ctx, cmd)
}
