package config

// ImagesConfig holds container image build configuration shared by every
// image stage.
type ImagesConfig struct {
	// Name is the image repository name under the registry organization.
	Name string `yaml:"name"`

	Context    string            `yaml:"context"`
	Dockerfile string            `yaml:"dockerfile"`
	Target     string            `yaml:"target"`
	Platforms  []string          `yaml:"platforms"`
	BuildArgs  map[string]string `yaml:"build_args"`

	// BaseImageArg is the build-arg that receives the variant's base image.
	BaseImageArg string `yaml:"base_image_arg"`

	// VersionArg is the build-arg that receives the version token.
	VersionArg string `yaml:"version_arg"`

	Variants []VariantConfig `yaml:"variants"`
}

// VariantConfig describes one flavour of the image.
type VariantConfig struct {
	// Name also names the cache scope, so no name may be another's name
	// followed by "-".
	Name string `yaml:"name"`

	// Suffix is appended to every tag ("-slim" → latest-slim, v2.1.0-slim).
	Suffix string `yaml:"suffix"`

	// BaseImage is the repository of the base image under the registry
	// organization (e.g. "project_base").
	BaseImage string `yaml:"base_image"`

	// BaseTag pins the base image tag. When empty the tag comes from the
	// environment: SlimBaseImageTag for the "slim" variant, BaseImageTag otherwise.
	BaseTag string `yaml:"base_tag,omitempty"`
}

// DefaultImagesConfig returns sensible defaults for image builds.
func DefaultImagesConfig() ImagesConfig {
	return ImagesConfig{
		Context:      ".",
		Dockerfile:   "Dockerfile",
		Platforms:    []string{},
		BuildArgs:    map[string]string{},
		BaseImageArg: "BASE_IMAGE",
		VersionArg:   "VERSION",
	}
}

// DefaultVariants returns the standard and slim variants.
func DefaultVariants() []VariantConfig {
	return []VariantConfig{
		{Name: "standard", Suffix: "", BaseImage: "base"},
		{Name: "slim", Suffix: "-slim", BaseImage: "base"},
	}
}

// Variant returns the named variant.
func (c ImagesConfig) Variant(name string) (VariantConfig, bool) {
	for _, v := range c.Variants {
		if v.Name == name {
			return v, true
		}
	}
	return VariantConfig{}, false
}
