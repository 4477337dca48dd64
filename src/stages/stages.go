// Package stages builds the concrete pipeline stages (test, image variants,
// package publisher) from configuration and wires them to their external
// collaborators.
package stages

import (
	"fmt"
	"io"
	"strings"

	"github.com/sofmeright/slipway/src/build"
	"github.com/sofmeright/slipway/src/cache"
	"github.com/sofmeright/slipway/src/config"
	"github.com/sofmeright/slipway/src/coverage"
	"github.com/sofmeright/slipway/src/event"
	"github.com/sofmeright/slipway/src/pipeline"
	"github.com/sofmeright/slipway/src/publish"
	"github.com/sofmeright/slipway/src/runner"
)

// Deps carries the read-only inputs and collaborators handed to every stage.
// Nothing in here is global: tests substitute fakes field by field.
type Deps struct {
	Config *config.Config
	Env    *config.Environment

	// Root is the repository checkout.
	Root string

	Runner   runner.Runner
	Builder  build.Builder
	Index    publish.Index
	Uploader coverage.Uploader

	// Cache is nil when no cache backend is configured.
	Cache *cache.Manager

	// Log receives step narration. Nil discards it.
	Log io.Writer
}

func (d Deps) logf(format string, args ...any) {
	if d.Log == nil {
		return
	}
	fmt.Fprintf(d.Log, format+"\n", args...)
}

// NewRun classifies a trigger and, for release events, applies the
// operator's release version override from the environment. Other events
// keep the matcher's token.
func NewRun(t event.Trigger, m event.Matcher, env *config.Environment) *pipeline.Run {
	meta := m.Match(t)
	if meta.IsRelease && env != nil && env.ReleaseVersion != "" {
		meta.VersionToken = env.ReleaseVersion
	}
	return pipeline.NewRun(t, meta)
}

// Build turns the configured stage list into a validated graph.
func Build(d Deps) (*pipeline.Graph, error) {
	var stages []pipeline.Stage
	for _, sc := range d.Config.Stages {
		s, err := stage(d, sc)
		if err != nil {
			return nil, err
		}
		stages = append(stages, s)
	}
	return pipeline.NewGraph(stages...)
}

func stage(d Deps, sc config.StageConfig) (pipeline.Stage, error) {
	var s pipeline.Stage
	switch sc.Kind {
	case config.KindTest:
		s = Test(d)
	case config.KindPackage:
		s = Package(d)
	case config.KindImage:
		v, ok := d.Config.Images.Variant(sc.Variant)
		if !ok {
			return s, fmt.Errorf("stage %s: unknown variant %q", sc.Name, sc.Variant)
		}
		s = Image(d, v)
	default:
		return s, fmt.Errorf("stage %s: unknown kind %q", sc.Name, sc.Kind)
	}

	s.Name = sc.Name
	s.Needs = sc.Needs
	s.Timeout = sc.Timeout.Std()
	if when := Condition(sc.When); when != nil {
		s.Gate = pipeline.All(s.Gate, when)
	}
	return s, nil
}

// Condition converts a configured condition into a gate. An empty condition
// yields nil (always).
func Condition(c config.Condition) pipeline.Gate {
	if c.IsZero() {
		return nil
	}
	return func(r *pipeline.Run) bool {
		return config.MatchCondition(c, config.ConditionInput{
			Event:     string(r.Event),
			Ref:       r.Ref,
			Token:     r.Token(),
			IsTagPush: r.Meta.IsTagPush,
			IsRelease: r.Meta.IsRelease,
		})
	}
}

// branch names the run for services that want one: the branch for branch
// pushes, the version token otherwise.
func branch(r *pipeline.Run) string {
	if b, ok := strings.CutPrefix(r.Ref, "refs/heads/"); ok {
		return b
	}
	return r.Token()
}
