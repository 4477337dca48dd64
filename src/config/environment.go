package config

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/sofmeright/slipway/src/secrets"
)

// EnvNames maps each environment field to the variable it is read from.
type EnvNames struct {
	RegistryOrg      string `yaml:"registry_org"`
	RegistryURL      string `yaml:"registry_url"`
	BaseImageTag     string `yaml:"base_image_tag"`
	SlimBaseImageTag string `yaml:"slim_base_image_tag"`
	ReleaseVersion   string `yaml:"release_version"`
	RegistryUser     string `yaml:"registry_user"`
	RegistryPassword string `yaml:"registry_password"`
	IndexToken       string `yaml:"index_token"`
	IndexURL         string `yaml:"index_url"`
	CoverageToken    string `yaml:"coverage_token"`
	CIToken          string `yaml:"ci_token"`
	RunnerOS         string `yaml:"runner_os"`
}

// DefaultEnvNames returns the conventional variable names.
func DefaultEnvNames() EnvNames {
	return EnvNames{
		RegistryOrg:      "DOCKER_ORG",
		RegistryURL:      "DOCKER_REGISTRY",
		BaseImageTag:     "BASE_IMAGE_TAG",
		SlimBaseImageTag: "SLIM_BASE_IMAGE_TAG",
		ReleaseVersion:   "RELEASE_VERSION",
		RegistryUser:     "DOCKER_USER",
		RegistryPassword: "DOCKER_PASS",
		IndexToken:       "PYPI_TOKEN",
		IndexURL:         "PYPI_REPOSITORY_URL",
		CoverageToken:    "COVERALLS_REPO_TOKEN",
		CIToken:          "GITHUB_TOKEN",
		RunnerOS:         "RUNNER_OS",
	}
}

// Environment is the read-only, per-run view of identifiers and credentials.
// It is resolved once at run start and handed to each stage explicitly.
type Environment struct {
	RegistryOrg      string
	RegistryURL      string
	BaseImageTag     string
	SlimBaseImageTag string
	ReleaseVersion   string
	IndexURL         string
	RunnerOS         string

	RegistryUser     secrets.Credential
	RegistryPassword secrets.Credential
	IndexToken       secrets.Credential
	CoverageToken    secrets.Credential
	CIToken          secrets.Credential
}

// Credentials returns every set credential, for log redaction.
func (e *Environment) Credentials() []secrets.Credential {
	var out []secrets.Credential
	for _, c := range []secrets.Credential{e.RegistryUser, e.RegistryPassword, e.IndexToken, e.CoverageToken, e.CIToken} {
		if c.IsSet() {
			out = append(out, c)
		}
	}
	return out
}

// BaseTag returns the base image tag for a variant name.
func (e *Environment) BaseTag(variant string) string {
	if variant == "slim" && e.SlimBaseImageTag != "" {
		return e.SlimBaseImageTag
	}
	return e.BaseImageTag
}

// ResolveEnvironment reads every configured variable from src exactly once.
func ResolveEnvironment(ctx context.Context, names EnvNames, src secrets.Source) (*Environment, error) {
	get := func(name string) (string, error) {
		if name == "" {
			return "", nil
		}
		v, _, err := src.Lookup(ctx, name)
		if err != nil {
			return "", fmt.Errorf("resolving %s: %w", name, err)
		}
		return strings.TrimSpace(v), nil
	}

	env := &Environment{}
	plain := []struct {
		dst  *string
		name string
	}{
		{&env.RegistryOrg, names.RegistryOrg},
		{&env.RegistryURL, names.RegistryURL},
		{&env.BaseImageTag, names.BaseImageTag},
		{&env.SlimBaseImageTag, names.SlimBaseImageTag},
		{&env.ReleaseVersion, names.ReleaseVersion},
		{&env.IndexURL, names.IndexURL},
		{&env.RunnerOS, names.RunnerOS},
	}
	for _, p := range plain {
		v, err := get(p.name)
		if err != nil {
			return nil, err
		}
		*p.dst = v
	}

	secret := []struct {
		dst  *secrets.Credential
		name string
	}{
		{&env.RegistryUser, names.RegistryUser},
		{&env.RegistryPassword, names.RegistryPassword},
		{&env.IndexToken, names.IndexToken},
		{&env.CoverageToken, names.CoverageToken},
		{&env.CIToken, names.CIToken},
	}
	for _, s := range secret {
		v, err := get(s.name)
		if err != nil {
			return nil, err
		}
		*s.dst = secrets.NewCredential(v)
	}

	if env.RunnerOS == "" {
		env.RunnerOS = runtimeOS()
	}
	return env, nil
}

// NewSource builds the credential source chain for a config: the process
// environment first, then the configured secret store.
func NewSource(ctx context.Context, cfg SecretsConfig) (secrets.Source, error) {
	chain := secrets.Chain{secrets.EnvSource{LookupEnv: os.LookupEnv}}
	switch cfg.Provider {
	case "":
	case "aws":
		aws, err := secrets.NewAWSSource(ctx, cfg.SecretID, cfg.Region, cfg.Endpoint)
		if err != nil {
			return nil, err
		}
		chain = append(chain, aws)
	default:
		return nil, fmt.Errorf("secrets: unsupported provider %q (valid: aws)", cfg.Provider)
	}
	return chain, nil
}

// runtimeOS mirrors the hosted runner naming ("Linux", "macOS", "Windows").
func runtimeOS() string {
	switch runtime.GOOS {
	case "linux":
		return "Linux"
	case "darwin":
		return "macOS"
	case "windows":
		return "Windows"
	default:
		return runtime.GOOS
	}
}
