package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sofmeright/slipway/src/event"
)

func TestNewGraphOrder(t *testing.T) {
	g, err := NewGraph(
		Stage{Name: "image-slim", Needs: []string{"test"}},
		Stage{Name: "package", Needs: []string{"test"}},
		Stage{Name: "test"},
		Stage{Name: "notify", Needs: []string{"package", "image-slim"}},
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"test", "image-slim", "package", "notify"}, g.Order())
	assert.Equal(t, 4, g.Len())
	assert.Equal(t, []string{"image-slim", "package"}, g.Dependents("test"))

	s, ok := g.Stage("package")
	require.True(t, ok)
	assert.Equal(t, []string{"test"}, s.Needs)
	_, ok = g.Stage("missing")
	assert.False(t, ok)
}

func TestNewGraphDuplicateNeedsCountedOnce(t *testing.T) {
	g, err := NewGraph(
		Stage{Name: "a"},
		Stage{Name: "b", Needs: []string{"a", "a"}},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, g.Order())
}

func TestNewGraphErrors(t *testing.T) {
	tests := []struct {
		name    string
		stages  []Stage
		want    error
		message string
	}{
		{
			name:   "duplicate",
			stages: []Stage{{Name: "a"}, {Name: "a"}},
			want:   ErrDuplicateStage,
		},
		{
			name:    "unknown dependency",
			stages:  []Stage{{Name: "a", Needs: []string{"ghost"}}},
			want:    ErrUnknownDependency,
			message: `"ghost"`,
		},
		{
			name:    "self cycle",
			stages:  []Stage{{Name: "a", Needs: []string{"a"}}},
			want:    ErrCycle,
			message: "a -> a",
		},
		{
			name: "three cycle",
			stages: []Stage{
				{Name: "root"},
				{Name: "a", Needs: []string{"root", "c"}},
				{Name: "b", Needs: []string{"a"}},
				{Name: "c", Needs: []string{"b"}},
			},
			want:    ErrCycle,
			message: "a -> c -> b -> a",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGraph(tt.stages...)
			require.ErrorIs(t, err, tt.want)
			if tt.message != "" {
				assert.Contains(t, err.Error(), tt.message)
			}
		})
	}
}

func TestNewGraphEmptyName(t *testing.T) {
	_, err := NewGraph(Stage{})
	require.Error(t, err)
}

func TestGates(t *testing.T) {
	branch := NewRun(event.Trigger{Kind: event.Push, Ref: "refs/heads/main"}, event.Metadata{VersionToken: "tmp"})
	tag := NewRun(event.Trigger{Kind: event.Push, Ref: "refs/tags/v2.1.0"}, event.Metadata{VersionToken: "v2.1.0", IsTagPush: true})
	release := NewRun(event.Trigger{Kind: event.Release, Ref: "v2.1.0"}, event.Metadata{VersionToken: "v2.1.0", IsRelease: true})

	tests := []struct {
		name string
		gate Gate
		want [3]bool // branch, tag, release
	}{
		{"nil", nil, [3]bool{true, true, true}},
		{"always", Always, [3]bool{true, true, true}},
		{"release", OnRelease, [3]bool{false, false, true}},
		{"tag push", OnTagPush, [3]bool{false, true, false}},
		{"publishable", OnPublishable, [3]bool{false, true, true}},
		{"push events", Events(event.Push), [3]bool{true, true, false}},
		{"all", All(Events(event.Push), OnTagPush), [3]bool{false, true, false}},
		{"empty all", All(), [3]bool{true, true, true}},
		{"not", Not(OnPublishable), [3]bool{true, false, false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := [3]bool{tt.gate.Eval(branch), tt.gate.Eval(tag), tt.gate.Eval(release)}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRunAccessors(t *testing.T) {
	r := NewRun(event.Trigger{
		Kind:       event.Push,
		Ref:        "refs/heads/main",
		Commit:     "0123456789abcdef",
		Repository: "nansencenter/nansat",
		RunID:      "42",
	}, event.Metadata{VersionToken: "tmp"})

	assert.Equal(t, "42", r.ID)
	assert.Equal(t, "tmp", r.Token())
	assert.Equal(t, "01234567", r.ShortCommit())
	assert.Equal(t, "abc", (&Run{Commit: "abc"}).ShortCommit())
}

func TestPlan(t *testing.T) {
	g, err := NewGraph(
		Stage{Name: "test", Steps: []Step{{Name: "tests"}}},
		Stage{Name: "package", Needs: []string{"test"}, Gate: OnRelease, Steps: []Step{{Name: "upload"}}},
		Stage{Name: "after-package", Needs: []string{"package"}},
		Stage{Name: "image", Needs: []string{"test"}, Steps: []Step{
			{Name: "build"},
			{Name: "push", When: OnPublishable},
		}},
	)
	require.NoError(t, err)

	branch := NewRun(event.Trigger{Kind: event.Push, Ref: "refs/heads/main"}, event.Metadata{VersionToken: "tmp"})
	plan := g.Plan(branch)
	require.Len(t, plan, 4)

	byName := map[string]Prediction{}
	for _, p := range plan {
		byName[p.Name] = p
	}
	assert.True(t, byName["test"].Run)
	assert.Equal(t, GateNotMet, byName["package"].Reason)
	assert.Equal(t, DependencySkipped, byName["after-package"].Reason)
	assert.Equal(t, []string{"build"}, byName["image"].Steps)
	assert.Equal(t, []string{"push"}, byName["image"].Gated)

	release := NewRun(event.Trigger{Kind: event.Release, Ref: "v1.0.0"}, event.Metadata{VersionToken: "v1.0.0", IsRelease: true})
	for _, p := range g.Plan(release) {
		assert.True(t, p.Run, p.Name)
	}
}
