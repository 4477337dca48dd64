package build

// Variant is one flavour of the image: same Dockerfile, different base
// image and tag suffix.
type Variant struct {
	Name      string
	Suffix    string // appended to every tag: "" (standard) or "-slim"
	BaseImage string // full base image reference, e.g. "org/project_base:3.1"
}

// BuildStep is a single build invocation.
type BuildStep struct {
	Name       string
	Dockerfile string
	Context    string
	Target     string
	Platforms  []string
	BuildArgs  map[string]string
	Tags       []string

	// Load the result into the local daemon so it can be pushed afterwards.
	Load bool

	// CacheFrom / CacheTo are local layer-cache directories for buildx
	// (type=local). Empty = no cache.
	CacheFrom string
	CacheTo   string
}

// StepInput collects everything an image build is derived from.
type StepInput struct {
	Repository   string // image repository, e.g. "org/project"
	Token        string // version token
	Variant      Variant
	Dockerfile   string
	Context      string
	Target       string
	Platforms    []string
	BuildArgs    map[string]string
	BaseImageArg string
	VersionArg   string
	CacheFrom    string
	CacheTo      string
}

// NewStep resolves a BuildStep for one variant. The variant's base image and
// the version token are injected as build args on top of the extras.
func NewStep(in StepInput) BuildStep {
	args := make(map[string]string, len(in.BuildArgs)+2)
	for k, v := range in.BuildArgs {
		args[k] = v
	}
	if in.BaseImageArg != "" && in.Variant.BaseImage != "" {
		args[in.BaseImageArg] = in.Variant.BaseImage
	}
	if in.VersionArg != "" {
		args[in.VersionArg] = in.Token
	}

	return BuildStep{
		Name:       in.Variant.Name,
		Dockerfile: in.Dockerfile,
		Context:    in.Context,
		Target:     in.Target,
		Platforms:  in.Platforms,
		BuildArgs:  args,
		Tags:       ResolveTags(in.Repository, in.Token, in.Variant.Suffix),
		Load:       true,
		CacheFrom:  in.CacheFrom,
		CacheTo:    in.CacheTo,
	}
}
