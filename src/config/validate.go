package config

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Validate checks structural invariants of a loaded Config.
// Returns warnings (soft issues) and a hard error if the config is invalid.
// Cycle detection happens when the graph is built.
func Validate(cfg *Config) (warnings []string, err error) {
	var errs []string

	// ── Version ───────────────────────────────────────────────────────────

	if cfg.Version != 1 {
		errs = append(errs, fmt.Sprintf("version: must be 1, got %d", cfg.Version))
	}

	if cfg.MaxParallel < 0 {
		errs = append(errs, fmt.Sprintf("max_parallel: must be >= 0, got %d", cfg.MaxParallel))
	}

	// ── Variants ──────────────────────────────────────────────────────────

	variantNames := make(map[string]bool)
	suffixes := make(map[string]string)
	for i, v := range cfg.Images.Variants {
		vpath := fmt.Sprintf("images.variants[%d]", i)
		if !isIdentifier(v.Name) {
			errs = append(errs, fmt.Sprintf("%s: name %q is not a valid identifier", vpath, v.Name))
		} else if variantNames[v.Name] {
			errs = append(errs, fmt.Sprintf("%s: duplicate variant %q", vpath, v.Name))
		}
		variantNames[v.Name] = true

		if other, ok := suffixes[v.Suffix]; ok {
			errs = append(errs, fmt.Sprintf("%s: suffix %q already used by variant %q (tags would collide)", vpath, v.Suffix, other))
		}
		suffixes[v.Suffix] = v.Name

		if v.BaseImage == "" {
			errs = append(errs, fmt.Sprintf("%s: base_image is required", vpath))
		}
	}

	// "slim" and "slim-arm" would share the cache restore prefix buildx-slim-.
	for i, a := range cfg.Images.Variants {
		for _, b := range cfg.Images.Variants {
			if a.Name != "" && strings.HasPrefix(b.Name, a.Name+"-") {
				errs = append(errs, fmt.Sprintf("images.variants[%d]: name %q is a dash-prefix of %q (cache scopes would overlap)", i, a.Name, b.Name))
			}
		}
	}

	// ── Stages ────────────────────────────────────────────────────────────

	stageNames := make(map[string]bool)
	for _, s := range cfg.Stages {
		stageNames[s.Name] = true
	}

	seen := make(map[string]bool)
	hasImage := false
	for i, s := range cfg.Stages {
		spath := fmt.Sprintf("stages[%d]", i)

		if s.Name == "" {
			errs = append(errs, fmt.Sprintf("%s: name is required", spath))
		} else if !isIdentifier(s.Name) {
			errs = append(errs, fmt.Sprintf("%s: name %q is not a valid identifier", spath, s.Name))
		} else if seen[s.Name] {
			errs = append(errs, fmt.Sprintf("%s: duplicate stage %q", spath, s.Name))
		}
		seen[s.Name] = true

		if s.Kind == "" {
			errs = append(errs, fmt.Sprintf("%s: kind is required", spath))
		} else if !validStageKinds[s.Kind] {
			errs = append(errs, fmt.Sprintf("%s: unknown stage kind %q (supported: %s)", spath, s.Kind, joinKeys(validStageKinds)))
		}

		for _, dep := range s.Needs {
			if dep == s.Name {
				errs = append(errs, fmt.Sprintf("%s: stage %q needs itself", spath, s.Name))
			} else if !stageNames[dep] {
				errs = append(errs, fmt.Sprintf("%s: needs unknown stage %q", spath, dep))
			}
		}

		switch s.Kind {
		case KindImage:
			hasImage = true
			if s.Variant == "" {
				errs = append(errs, fmt.Sprintf("%s: kind image requires variant", spath))
			} else if !variantNames[s.Variant] {
				errs = append(errs, fmt.Sprintf("%s: references unknown variant %q", spath, s.Variant))
			}
		default:
			if s.Variant != "" {
				errs = append(errs, fmt.Sprintf("%s: variant is only valid for kind image", spath))
			}
		}

		if s.Kind != KindTest && len(s.Needs) == 0 {
			warnings = append(warnings, fmt.Sprintf("%s: stage %q has no needs and is not gated on tests", spath, s.Name))
		}

		errs = append(errs, validateWhen(s.When, spath)...)
	}

	if hasImage && cfg.Images.Name == "" {
		errs = append(errs, "images.name: required when image stages are configured")
	}

	// ── Cache ─────────────────────────────────────────────────────────────

	switch cfg.Cache.Backend {
	case "":
		if hasImage {
			warnings = append(warnings, "cache.backend: empty, image builds will run cold")
		}
	case CacheLocal:
		if cfg.Cache.Dir == "" {
			errs = append(errs, "cache.dir: required for backend local")
		}
	case CacheS3:
		if cfg.Cache.S3.Bucket == "" {
			errs = append(errs, "cache.s3.bucket: required for backend s3")
		}
	case CacheOCI:
		if cfg.Cache.OCI.Repository == "" {
			errs = append(errs, "cache.oci.repository: required for backend oci")
		}
	default:
		if !validCacheBackends[cfg.Cache.Backend] {
			errs = append(errs, fmt.Sprintf("cache.backend: unknown backend %q (supported: %s)", cfg.Cache.Backend, joinKeys(validCacheBackends)))
		}
	}

	// ── Secrets ───────────────────────────────────────────────────────────

	switch cfg.Secrets.Provider {
	case "":
	case "aws":
		if cfg.Secrets.SecretID == "" {
			errs = append(errs, "secrets.secret_id: required for provider aws")
		}
	default:
		errs = append(errs, fmt.Sprintf("secrets.provider: unknown provider %q (supported: aws)", cfg.Secrets.Provider))
	}

	// ── Package ───────────────────────────────────────────────────────────

	for _, f := range cfg.Package.Formats {
		if f != "sdist" && f != "wheel" {
			errs = append(errs, fmt.Sprintf("package.formats: unknown format %q (supported: sdist, wheel)", f))
		}
	}

	if len(errs) > 0 {
		return warnings, fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return warnings, nil
}

// validateWhen checks event names and pattern syntax in a condition.
func validateWhen(c Condition, path string) []string {
	var errs []string
	for _, e := range c.Events {
		if !validEvents[strings.ToLower(e)] {
			errs = append(errs, fmt.Sprintf("%s.when.events: unknown event %q (supported: %s)", path, e, joinKeys(validEvents)))
		}
	}
	for _, field := range []struct {
		name     string
		patterns []string
	}{
		{"branches", c.Branches},
		{"tags", c.Tags},
	} {
		for _, p := range field.patterns {
			raw := strings.TrimPrefix(p, "!")
			if _, err := regexp.Compile(raw); err != nil {
				errs = append(errs, fmt.Sprintf("%s.when.%s: invalid pattern %q: %v", path, field.name, p, err))
			}
		}
	}
	return errs
}

func joinKeys(m map[string]bool) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}
