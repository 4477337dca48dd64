package build

import (
	"regexp"
	"strings"
)

// ResolveTags returns the two references an image is published under:
//
//	latest{suffix}
//	{token}{suffix}
//
// e.g. ("org/app", "v2.1.0", "-slim") → org/app:latest-slim, org/app:v2.1.0-slim.
func ResolveTags(repo, token, suffix string) []string {
	tags := []string{repo + ":" + sanitizeTag("latest"+suffix)}
	versioned := repo + ":" + sanitizeTag(token+suffix)
	if versioned != tags[0] {
		tags = append(tags, versioned)
	}
	return tags
}

// ImageRepository joins registry host, organization and image name,
// skipping empty parts (Docker Hub needs no host).
func ImageRepository(registry, org, name string) string {
	var parts []string
	for _, p := range []string{strings.TrimSuffix(registry, "/"), org, name} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "/")
}

// BaseImageRef builds the base image reference for a variant. An empty tag
// yields an untagged reference (the registry's latest).
func BaseImageRef(registry, org, image, tag string) string {
	ref := ImageRepository(registry, org, image)
	if tag == "" {
		return ref
	}
	return ref + ":" + tag
}

var invalidTagChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// sanitizeTag replaces characters not allowed in Docker tags and trims to
// the 128-character limit.
func sanitizeTag(s string) string {
	s = invalidTagChars.ReplaceAllString(s, "-")
	if len(s) > 128 {
		s = s[:128]
	}
	return s
}
