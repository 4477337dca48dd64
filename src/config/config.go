package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultConfigFile = ".slipway.yml"

// Config is the top-level slipway pipeline configuration.
type Config struct {
	Version     int            `yaml:"version"`
	Env         EnvNames       `yaml:"env"`
	TagPrefix   string         `yaml:"tag_prefix"`
	MaxParallel int            `yaml:"max_parallel"`
	Stages      []StageConfig  `yaml:"stages"`
	Test        TestConfig     `yaml:"test"`
	Coverage    CoverageConfig `yaml:"coverage"`
	Images      ImagesConfig   `yaml:"images"`
	Package     PackageConfig  `yaml:"package"`
	Cache       CacheConfig    `yaml:"cache"`
	Secrets     SecretsConfig  `yaml:"secrets"`
	Badges      BadgesConfig   `yaml:"badges"`
}

// Load reads configuration from a YAML file.
// If path is empty, it tries the default file.
// Returns sensible defaults if the file doesn't exist.
func Load(path string) (*Config, error) {
	if path == "" {
		path = defaultConfigFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return finalize(defaults()), nil
		}
		return nil, err
	}

	return Parse(data)
}

// Parse decodes YAML configuration on top of the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return finalize(cfg), nil
}

func defaults() *Config {
	return &Config{
		Version:     1,
		Env:         DefaultEnvNames(),
		MaxParallel: 0,
		Test:        DefaultTestConfig(),
		Coverage:    DefaultCoverageConfig(),
		Images:      DefaultImagesConfig(),
		Package:     DefaultPackageConfig(),
		Cache:       DefaultCacheConfig(),
	}
}

// finalize fills list-valued defaults that YAML decoding would otherwise
// replace wholesale.
func finalize(cfg *Config) *Config {
	if len(cfg.Images.Variants) == 0 {
		cfg.Images.Variants = DefaultVariants()
	}
	if len(cfg.Stages) == 0 {
		cfg.Stages = DefaultStages(cfg.Images.Variants)
	}
	return cfg
}

// Duration is a time.Duration that decodes from YAML strings like "30m".
type Duration time.Duration

// UnmarshalYAML accepts Go duration strings ("90s", "1h30m") or a bare
// integer number of seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration: expected scalar, got YAML kind %d", value.Kind)
	}

	var secs int
	if err := value.Decode(&secs); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}

	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("duration: %w", err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration in Go syntax.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the standard library duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }
