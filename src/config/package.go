package config

// DefaultIndexURL is the production package index upload endpoint.
const DefaultIndexURL = "https://upload.pypi.org/legacy/"

// PackageConfig controls building and uploading the distributable package.
type PackageConfig struct {
	// Dist is the output directory for built artifacts.
	Dist string `yaml:"dist"`

	// Python is the interpreter used for "python -m build".
	Python string `yaml:"python"`

	// Twine is the uploader executable.
	Twine string `yaml:"twine"`

	// IndexURL is the default upload endpoint. The environment's index URL
	// (e.g. a test index for forks) takes precedence.
	IndexURL string `yaml:"index_url"`

	// VersionEnv is the variable the build backend reads the version override from.
	VersionEnv string `yaml:"version_env"`

	// Formats selects "sdist" and/or "wheel".
	Formats []string `yaml:"formats"`
}

// DefaultPackageConfig returns sensible defaults for package publishing.
func DefaultPackageConfig() PackageConfig {
	return PackageConfig{
		Dist:       "dist",
		Python:     "python",
		Twine:      "twine",
		IndexURL:   DefaultIndexURL,
		VersionEnv: "SETUPTOOLS_SCM_PRETEND_VERSION",
		Formats:    []string{"sdist"},
	}
}
