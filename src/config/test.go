package config

// TestConfig describes how the test suite runs inside its pinned container.
type TestConfig struct {
	// Image is the pinned execution environment. When empty, the standard
	// variant's base image is used.
	Image string `yaml:"image"`

	// Workdir is where the repository is mounted inside the container.
	Workdir string `yaml:"workdir"`

	// Setup lines run before the test command (e.g. installing the package).
	Setup []string `yaml:"setup"`

	// Module is the python module that runs the suite under coverage
	// ("coverage run -m <module> <args>").
	Module string   `yaml:"module"`
	Args   []string `yaml:"args"`

	// Env is passed into the container.
	Env map[string]string `yaml:"env"`
}

// CoverageConfig controls coverage accounting and upload.
type CoverageConfig struct {
	// Source limits measurement to the project's own package.
	Source string `yaml:"source"`

	// Omit lists glob patterns excluded from coverage accounting.
	Omit []string `yaml:"omit"`

	// Report is the Cobertura XML path, relative to the repository root.
	Report string `yaml:"report"`

	// Endpoint is the aggregation service jobs API.
	Endpoint string `yaml:"endpoint"`

	// ServiceName identifies the CI service to the aggregator.
	ServiceName string `yaml:"service_name"`
}

// DefaultTestConfig returns sensible defaults for the test stage.
func DefaultTestConfig() TestConfig {
	return TestConfig{
		Workdir: "/src",
		Module:  "unittest",
		Args:    []string{"discover"},
		Env:     map[string]string{},
	}
}

// DefaultCoverageConfig returns sensible defaults for coverage.
func DefaultCoverageConfig() CoverageConfig {
	return CoverageConfig{
		Report:      "coverage.xml",
		Endpoint:    "https://coveralls.io/api/v1/jobs",
		ServiceName: "github",
	}
}
