// Package event classifies the trigger that started a pipeline run and
// derives the version token every downstream stage tags its artifacts with.
// It is the shared foundation used by the stage gates, the image builders
// and the package publisher.
package event

import "strings"

// Kind is the type of event that triggered the pipeline.
type Kind string

const (
	Push    Kind = "push"
	Release Kind = "release"
)

// DefaultTagPrefix is the ref prefix that marks a tag-shaped reference.
const DefaultTagPrefix = "refs/tags/"

// Placeholder is the version token used when the reference is not a tag.
const Placeholder = "tmp"

// ReleasedAction is the only release action that starts a pipeline.
const ReleasedAction = "released"

// Trigger is the raw event as supplied by the hosting CI environment.
type Trigger struct {
	Kind       Kind
	Ref        string // "refs/heads/main", "refs/tags/v2.1.0", or a bare tag name on release
	Commit     string
	Repository string
	RunID      string
	Action     string // release action ("released", "published", ...); empty when unknown
}

// Handled reports whether the trigger should start a pipeline at all.
// Release events only count once the release is actually released; other
// release actions (created, prereleased, edited) are ignored.
func (t Trigger) Handled() bool {
	if t.Kind != Release {
		return true
	}
	return t.Action == "" || t.Action == ReleasedAction
}

// Metadata holds everything derived from a trigger: the version token and
// the gate flags.
type Metadata struct {
	VersionToken string
	IsRelease    bool
	IsTagPush    bool
}

// Publishable is true when built images should be pushed to a registry.
func (m Metadata) Publishable() bool {
	return m.IsRelease || m.IsTagPush
}

// Matcher classifies triggers. The zero value uses DefaultTagPrefix.
type Matcher struct {
	TagPrefix string
}

// Match derives Metadata from a trigger. It never fails: any reference that
// does not look like a tag falls through to the placeholder token.
//
//	release, "refs/tags/v2.1.0" → {v2.1.0, release}
//	push,    "refs/tags/v2.1.0" → {v2.1.0, tag push}
//	push,    "refs/heads/main"  → {tmp}
func (m Matcher) Match(t Trigger) Metadata {
	prefix := m.prefix()

	if t.Kind == Release {
		return Metadata{
			VersionToken: tokenOrPlaceholder(strings.TrimPrefix(t.Ref, prefix)),
			IsRelease:    true,
		}
	}

	if strings.HasPrefix(t.Ref, prefix) {
		token := strings.TrimSpace(strings.TrimPrefix(t.Ref, prefix))
		if token == "" {
			return Metadata{VersionToken: Placeholder}
		}
		return Metadata{VersionToken: tokenOrPlaceholder(token), IsTagPush: true}
	}

	return Metadata{VersionToken: Placeholder}
}

// Match classifies a trigger with the default matcher.
func Match(t Trigger) Metadata {
	return Matcher{}.Match(t)
}

func (m Matcher) prefix() string {
	if m.TagPrefix == "" {
		return DefaultTagPrefix
	}
	return m.TagPrefix
}

func tokenOrPlaceholder(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return Placeholder
	}
	return s
}

// ParseKind maps a host event name onto a Kind. Anything that is not a
// release is treated as a push.
func ParseKind(name string) Kind {
	if strings.EqualFold(strings.TrimSpace(name), string(Release)) {
		return Release
	}
	return Push
}
