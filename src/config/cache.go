package config

// Cache backends.
const (
	CacheLocal  = "local"
	CacheMemory = "memory"
	CacheS3     = "s3"
	CacheOCI    = "oci"
)

var validCacheBackends = map[string]bool{
	CacheLocal:  true,
	CacheMemory: true,
	CacheS3:     true,
	CacheOCI:    true,
}

// CacheConfig selects and configures the build-layer cache store.
type CacheConfig struct {
	// Backend is one of local, memory, s3, oci. Empty disables caching.
	Backend string `yaml:"backend"`

	// Dir is the local store root (backend: local).
	Dir string `yaml:"dir"`

	// WorkDir is where restored layer sets are unpacked for buildx.
	WorkDir string `yaml:"work_dir"`

	// OS overrides the OS component of cache keys. Default: RUNNER_OS or GOOS.
	OS string `yaml:"os,omitempty"`

	S3  S3CacheConfig  `yaml:"s3"`
	OCI OCICacheConfig `yaml:"oci"`
}

// S3CacheConfig configures the S3 store.
type S3CacheConfig struct {
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`   // S3-compatible endpoint (MinIO, LocalStack)
	PathStyle bool   `yaml:"path_style"` // force path-style addressing
}

// OCICacheConfig configures the OCI registry store.
type OCICacheConfig struct {
	// Repository is "registry/namespace/name" without a tag.
	Repository string `yaml:"repository"`
	PlainHTTP  bool   `yaml:"plain_http"`
}

// Enabled reports whether a backend is configured.
func (c CacheConfig) Enabled() bool { return c.Backend != "" }

// DefaultCacheConfig returns sensible defaults for the build cache.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Backend: CacheLocal,
		Dir:     ".slipway/cache",
		WorkDir: ".slipway/buildx",
	}
}
