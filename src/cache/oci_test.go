package cache

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"oras.land/oras-go/v2/content/oci"
)

func newLayoutStore(t *testing.T) *OCIStore {
	t.Helper()
	layout, err := oci.New(t.TempDir())
	require.NoError(t, err)
	return &OCIStore{Target: layout, Now: steppedClock()}
}

func TestOCIStore(t *testing.T) {
	ctx := context.Background()
	s := newLayoutStore(t)

	_, err := s.Get(ctx, "Linux-buildx-standard-c1")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, "Linux-buildx-standard-c1", strings.NewReader("first")))
	require.NoError(t, s.Put(ctx, "Linux-buildx-standard-c2", strings.NewReader("second")))
	require.NoError(t, s.Put(ctx, "Linux-buildx-slim-c1", strings.NewReader("slim")))

	e, err := s.Get(ctx, "Linux-buildx-standard-c2")
	require.NoError(t, err)
	body, err := io.ReadAll(e.Body)
	require.NoError(t, err)
	require.NoError(t, e.Body.Close())
	assert.Equal(t, "second", string(body))
	assert.Equal(t, int64(6), e.Size)

	infos, err := s.List(ctx, "Linux-buildx-standard-")
	require.NoError(t, err)
	require.Len(t, infos, 2)
	best, ok := latest(infos)
	require.True(t, ok)
	assert.Equal(t, "Linux-buildx-standard-c2", best.Key)
}

func TestOCIStoreRetagMovesKey(t *testing.T) {
	ctx := context.Background()
	s := newLayoutStore(t)

	require.NoError(t, s.Put(ctx, "Linux-s-c1", strings.NewReader("old")))
	require.NoError(t, s.Put(ctx, "Linux-s-c1", strings.NewReader("new")))

	e, err := s.Get(ctx, "Linux-s-c1")
	require.NoError(t, err)
	defer e.Body.Close()
	body, _ := io.ReadAll(e.Body)
	assert.Equal(t, "new", string(body))
}

func TestOCIStoreWithManager(t *testing.T) {
	ctx := context.Background()
	m := NewManager(newLayoutStore(t), "Linux")

	_, err := m.Save(ctx, "buildx-standard", "c1", writeTree(t, map[string]string{"index.json": "{}"}))
	require.NoError(t, err)

	hit, err := m.Restore(ctx, "buildx-standard", "c2", t.TempDir()+"/out")
	require.NoError(t, err)
	assert.Equal(t, Partial, hit.Kind)
}
