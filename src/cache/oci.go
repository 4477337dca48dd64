package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content"
	"oras.land/oras-go/v2/errdef"
	"oras.land/oras-go/v2/registry"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/errcode"
	"oras.land/oras-go/v2/registry/remote/retry"
)

// ArtifactType marks cache manifests in the registry.
const ArtifactType = "application/vnd.slipway.cache.v1"

// OCITarget is a content store that can also enumerate its tags: a remote
// registry repository or a local OCI layout.
type OCITarget interface {
	oras.Target
	registry.TagLister
}

// OCIStore keeps each entry as a single-layer OCI artifact tagged with its key.
// The created time lives in the manifest annotations.
type OCIStore struct {
	Target OCITarget

	// Now stamps Created on Put. Defaults to time.Now.
	Now func() time.Time
}

// OCIOptions configures NewOCIStore.
type OCIOptions struct {
	// Repository is "registry/namespace/name".
	Repository string
	PlainHTTP  bool
	Username   string
	Password   string
}

// NewOCIStore connects to a registry repository. Without explicit
// credentials, requests go out anonymously.
func NewOCIStore(opts OCIOptions) (*OCIStore, error) {
	repo, err := remote.NewRepository(opts.Repository)
	if err != nil {
		return nil, fmt.Errorf("oci cache: %w", err)
	}
	repo.PlainHTTP = opts.PlainHTTP

	client := &auth.Client{
		Client: retry.DefaultClient,
		Cache:  auth.NewCache(),
	}
	if opts.Username != "" {
		client.Credential = auth.StaticCredential(repo.Reference.Registry, auth.Credential{
			Username: opts.Username,
			Password: opts.Password,
		})
	}
	repo.Client = client

	return &OCIStore{Target: repo}, nil
}

func (s *OCIStore) Get(ctx context.Context, key string) (*Entry, error) {
	man, err := s.manifest(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(man.Layers) == 0 {
		return nil, fmt.Errorf("oci get %s: manifest has no layers", key)
	}
	layer := man.Layers[0]

	rc, err := s.Target.Fetch(ctx, layer)
	if err != nil {
		return nil, fmt.Errorf("oci get %s: fetching layer: %w", key, err)
	}
	return &Entry{
		EntryInfo: EntryInfo{Key: key, Created: created(man), Size: layer.Size},
		Body:      rc,
	}, nil
}

func (s *OCIStore) List(ctx context.Context, prefix string) ([]EntryInfo, error) {
	tags, err := registry.Tags(ctx, s.Target)
	if err != nil {
		var resp *errcode.ErrorResponse
		if errors.As(err, &resp) && resp.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("oci list %s: %w", prefix, err)
	}

	var out []EntryInfo
	for _, tag := range tags {
		if !strings.HasPrefix(tag, prefix) {
			continue
		}
		man, err := s.manifest(ctx, tag)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		var size int64
		if len(man.Layers) > 0 {
			size = man.Layers[0].Size
		}
		out = append(out, EntryInfo{Key: tag, Created: created(man), Size: size})
	}
	return out, nil
}

// Put pushes the archive blob, packs a manifest around it and tags the
// manifest with key, moving the tag if it already exists.
func (s *OCIStore) Put(ctx context.Context, key string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	layer, err := oras.PushBytes(ctx, s.Target, MediaType, data)
	if err != nil {
		return fmt.Errorf("oci put %s: pushing layer: %w", key, err)
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	manDesc, err := oras.PackManifest(ctx, s.Target, oras.PackManifestVersion1_1, ArtifactType, oras.PackManifestOptions{
		Layers: []ocispec.Descriptor{layer},
		ManifestAnnotations: map[string]string{
			ocispec.AnnotationCreated: now().UTC().Format(time.RFC3339Nano),
		},
	})
	if err != nil {
		return fmt.Errorf("oci put %s: packing manifest: %w", key, err)
	}

	if err := s.Target.Tag(ctx, manDesc, key); err != nil {
		return fmt.Errorf("oci put %s: tagging: %w", key, err)
	}
	return nil
}

func (s *OCIStore) manifest(ctx context.Context, tag string) (ocispec.Manifest, error) {
	var man ocispec.Manifest
	desc, err := s.Target.Resolve(ctx, tag)
	if err != nil {
		if errors.Is(err, errdef.ErrNotFound) {
			return man, ErrNotFound
		}
		return man, fmt.Errorf("oci resolve %s: %w", tag, err)
	}
	data, err := content.FetchAll(ctx, s.Target, desc)
	if err != nil {
		return man, fmt.Errorf("oci fetch manifest %s: %w", tag, err)
	}
	if err := json.Unmarshal(data, &man); err != nil {
		return man, fmt.Errorf("oci manifest %s: %w", tag, err)
	}
	return man, nil
}

func created(man ocispec.Manifest) time.Time {
	t, err := time.Parse(time.RFC3339Nano, man.Annotations[ocispec.AnnotationCreated])
	if err != nil {
		return time.Time{}
	}
	return t
}
