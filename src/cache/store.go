package cache

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sofmeright/slipway/src/config"
)

// NewStore builds the store selected by cfg.Backend. rootDir anchors a
// relative local directory. env supplies registry credentials for the OCI
// backend and may be nil.
func NewStore(ctx context.Context, cfg config.CacheConfig, rootDir string, env *config.Environment) (Store, error) {
	switch cfg.Backend {
	case config.CacheLocal:
		dir := cfg.Dir
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(rootDir, dir)
		}
		return NewLocalStore(dir), nil
	case config.CacheMemory:
		return NewMemoryStore(), nil
	case config.CacheS3:
		return NewS3Store(ctx, S3Options{
			Bucket:    cfg.S3.Bucket,
			Prefix:    cfg.S3.Prefix,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			PathStyle: cfg.S3.PathStyle,
		})
	case config.CacheOCI:
		opts := OCIOptions{Repository: cfg.OCI.Repository, PlainHTTP: cfg.OCI.PlainHTTP}
		if env != nil {
			opts.Username = env.RegistryUser.Reveal()
			opts.Password = env.RegistryPassword.Reveal()
		}
		return NewOCIStore(opts)
	case "":
		return nil, fmt.Errorf("cache: no backend configured")
	default:
		return nil, fmt.Errorf("cache: unknown backend %q", cfg.Backend)
	}
}
