package config

import (
	"regexp"
	"strings"
)

// identifierRe matches valid stage names: letter-first, alphanumeric + _ . -
var identifierRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_.\-]*$`)

// isIdentifier returns true if s looks like a stage or variant name.
func isIdentifier(s string) bool {
	return identifierRe.MatchString(s)
}

// matchPattern evaluates a single pattern against a value.
//
// Syntax:
//
//	"^main$"         regex match
//	"!^feature/.*"   negated regex
//	"main"           unanchored regex
//	"!develop"       negated match
func matchPattern(pattern, value string) bool {
	negate := false
	if strings.HasPrefix(pattern, "!") {
		negate = true
		pattern = pattern[1:]
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		// invalid regex: literal comparison
		matched := pattern == value
		if negate {
			return !matched
		}
		return matched
	}

	matched := re.MatchString(value)
	if negate {
		return !matched
	}
	return matched
}

// MatchPatterns evaluates a list of patterns against a value (OR logic).
// Any pattern matching means the value is allowed.
// Empty list = always allowed (no filter).
//
// Evaluation: exclude patterns (!) are checked first. If any exclude matches,
// the value is rejected. Then include patterns are checked: any match
// allows the value. If only exclude patterns exist and none matched,
// the value is allowed.
func MatchPatterns(patterns []string, value string) bool {
	if len(patterns) == 0 {
		return true
	}

	var includes []string
	var excludes []string
	for _, p := range patterns {
		if strings.HasPrefix(p, "!") {
			excludes = append(excludes, p)
		} else {
			includes = append(includes, p)
		}
	}

	for _, p := range excludes {
		if !matchPattern(p, value) {
			return false
		}
	}

	if len(includes) == 0 {
		return true
	}

	for _, p := range includes {
		if matchPattern(p, value) {
			return true
		}
	}

	return false
}
