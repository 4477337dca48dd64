package event

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// PackageVersion converts a version token into the form a package index
// expects. Semver tokens are normalized ("v2.1.0" → "2.1.0",
// "v2.1.0-rc.1" → "2.1.0-rc.1"); anything else is passed through with a
// leading "v" trimmed.
func PackageVersion(token string) string {
	v, err := semver.NewVersion(token)
	if err != nil {
		return strings.TrimPrefix(token, "v")
	}
	return v.String()
}

// IsPrerelease reports whether the token parses as a semver prerelease.
func IsPrerelease(token string) bool {
	v, err := semver.NewVersion(token)
	if err != nil {
		return false
	}
	return v.Prerelease() != ""
}
