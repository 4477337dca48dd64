package config

// Stage kinds.
const (
	KindTest    = "test"
	KindImage   = "image"
	KindPackage = "package"
)

// validStageKinds enumerates all recognized stage kinds.
var validStageKinds = map[string]bool{
	KindTest:    true,
	KindImage:   true,
	KindPackage: true,
}

// validEvents enumerates the trigger kinds a condition may reference.
var validEvents = map[string]bool{
	"push":    true,
	"release": true,
}

// StageConfig declares one node of the pipeline graph.
type StageConfig struct {
	// Name is the unique stage identifier, referenced by needs.
	Name string `yaml:"name"`

	// Kind selects the stage body: test, image, or package.
	Kind string `yaml:"kind"`

	// Needs lists stages that must succeed before this one is dispatched.
	Needs []string `yaml:"needs,omitempty"`

	// When narrows the built-in gate of the stage kind.
	When Condition `yaml:"when,omitempty"`

	// Timeout bounds the whole stage body. Zero = no limit.
	Timeout Duration `yaml:"timeout,omitempty"`

	// Variant references an images.variants entry (kind: image).
	Variant string `yaml:"variant,omitempty"`
}

// DefaultStages returns the standard graph: tests gate the package
// publisher and one image builder per variant.
func DefaultStages(variants []VariantConfig) []StageConfig {
	stages := []StageConfig{
		{Name: "test", Kind: KindTest},
		{Name: "package", Kind: KindPackage, Needs: []string{"test"}},
	}
	for _, v := range variants {
		stages = append(stages, StageConfig{
			Name:    "image-" + v.Name,
			Kind:    KindImage,
			Needs:   []string{"test"},
			Variant: v.Name,
		})
	}
	return stages
}
