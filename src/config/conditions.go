package config

import "strings"

// Condition is the gating rule attached to a stage. Every stage kind has a
// built-in gate (the package stage only runs on releases, image pushes only
// happen on tag pushes and releases); a Condition narrows that further.
//
// Pattern syntax for Branches and Tags:
//
//	"^main$"             regex match (default)
//	"!^feature/.*"       negated regex (! prefix)
//	"main"               unanchored regex, so also "maintenance"
//
// Matching logic:
//   - Events: the trigger kind must be listed. Empty = any event.
//   - TagPush / Release: when set, the flag must equal the run's flag.
//   - Branches: tested against the branch name (refs/heads/ stripped).
//     A run without a branch (tag push, release) never matches a branch rule.
//   - Tags: tested against the version token. Only matches tag pushes and releases.
//   - Multiple fields set: AND. No fields set: catch-all.
type Condition struct {
	Events   []string `yaml:"events,omitempty"`
	TagPush  *bool    `yaml:"tag_push,omitempty"`
	Release  *bool    `yaml:"release,omitempty"`
	Branches []string `yaml:"branches,omitempty"`
	Tags     []string `yaml:"tags,omitempty"`
}

// IsZero reports whether the condition has no rules.
func (c Condition) IsZero() bool {
	return len(c.Events) == 0 && c.TagPush == nil && c.Release == nil &&
		len(c.Branches) == 0 && len(c.Tags) == 0
}

// ConditionInput is the run metadata a Condition is evaluated against.
type ConditionInput struct {
	Event     string
	Ref       string
	Token     string
	IsTagPush bool
	IsRelease bool
}

// Branch returns the branch name when Ref is a branch ref.
func (in ConditionInput) Branch() string {
	if strings.HasPrefix(in.Ref, "refs/heads/") {
		return strings.TrimPrefix(in.Ref, "refs/heads/")
	}
	return ""
}

// MatchCondition evaluates c against in. Empty condition = always true.
func MatchCondition(c Condition, in ConditionInput) bool {
	if len(c.Events) > 0 {
		found := false
		for _, e := range c.Events {
			if strings.EqualFold(e, in.Event) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if c.TagPush != nil && *c.TagPush != in.IsTagPush {
		return false
	}
	if c.Release != nil && *c.Release != in.IsRelease {
		return false
	}

	if len(c.Branches) > 0 {
		branch := in.Branch()
		if branch == "" || !MatchPatterns(c.Branches, branch) {
			return false
		}
	}

	if len(c.Tags) > 0 {
		if !in.IsTagPush && !in.IsRelease {
			return false
		}
		if !MatchPatterns(c.Tags, in.Token) {
			return false
		}
	}

	return true
}
