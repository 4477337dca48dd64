package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
	return dir
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

// steppedClock returns successive timestamps one minute apart.
func steppedClock() func() time.Time {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	n := 0
	return func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Minute)
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "Linux-buildx-standard-abc123", Key("Linux", "buildx-standard", "abc123"))
	assert.Equal(t, "Linux-buildx-slim-", Prefix("Linux", "buildx-slim"))
	assert.Equal(t, "mac_OS-a_b-", Prefix("mac OS", "a/b"))
}

func TestLatest(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	best, ok := latest([]EntryInfo{
		{Key: "k-a", Created: t0},
		{Key: "k-c", Created: t0.Add(time.Hour)},
		{Key: "k-b", Created: t0.Add(time.Hour)},
	})
	require.True(t, ok)
	assert.Equal(t, "k-c", best.Key, "ties break on key")

	_, ok = latest(nil)
	assert.False(t, ok)
}

func TestManagerExactHit(t *testing.T) {
	store := NewMemoryStore()
	m := NewManager(store, "Linux")
	src := writeTree(t, map[string]string{"index.json": `{"v":1}`, "blobs/sha256/aa": "layer"})

	key, err := m.Save(context.Background(), "buildx-standard", "c1", src)
	require.NoError(t, err)
	assert.Equal(t, "Linux-buildx-standard-c1", key)

	dest := filepath.Join(t.TempDir(), "restore")
	hit, err := m.Restore(context.Background(), "buildx-standard", "c1", dest)
	require.NoError(t, err)
	assert.Equal(t, Hit{Kind: Exact, Key: key}, hit)
	assert.Equal(t, "layer", readFile(t, filepath.Join(dest, "blobs", "sha256", "aa")))
}

func TestManagerPartialHitUsesMostRecentSamePrefix(t *testing.T) {
	store := NewMemoryStore()
	store.Now = steppedClock()
	m := NewManager(store, "Linux")
	ctx := context.Background()

	for _, c := range []struct{ scope, commit, body string }{
		{"buildx-standard", "old", "old layers"},
		{"buildx-standard", "newer", "newer layers"},
		{"buildx-slim", "newest", "slim layers"},
	} {
		_, err := m.Save(ctx, c.scope, c.commit, writeTree(t, map[string]string{"layer": c.body}))
		require.NoError(t, err)
	}

	dest := filepath.Join(t.TempDir(), "restore")
	hit, err := m.Restore(ctx, "buildx-standard", "unseen", dest)
	require.NoError(t, err)
	assert.Equal(t, Partial, hit.Kind)
	assert.Equal(t, "Linux-buildx-standard-newer", hit.Key)
	assert.Equal(t, "newer layers", readFile(t, filepath.Join(dest, "layer")))

	lookup, err := m.Lookup(ctx, "buildx-standard", "unseen")
	require.NoError(t, err)
	assert.Equal(t, hit, lookup)

	lookup, err = m.Lookup(ctx, "buildx-standard", "old")
	require.NoError(t, err)
	assert.Equal(t, Exact, lookup.Kind)
}

func TestManagerMiss(t *testing.T) {
	m := NewManager(NewMemoryStore(), "Linux")
	dest := filepath.Join(t.TempDir(), "restore")

	hit, err := m.Restore(context.Background(), "buildx-standard", "c1", dest)
	require.NoError(t, err)
	assert.Equal(t, Miss, hit.Kind)
	assert.Equal(t, "miss", hit.String())
	assert.NoDirExists(t, dest)
}

func TestManagerRestoreReplacesStaleDest(t *testing.T) {
	m := NewManager(NewMemoryStore(), "Linux")
	_, err := m.Save(context.Background(), "s", "c1", writeTree(t, map[string]string{"fresh": "1"}))
	require.NoError(t, err)

	dest := writeTree(t, map[string]string{"stale": "0"})
	_, err = m.Restore(context.Background(), "s", "c1", dest)
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(dest, "stale"))
	assert.FileExists(t, filepath.Join(dest, "fresh"))
}

func TestManagerSaveLastWriterWins(t *testing.T) {
	store := NewMemoryStore()
	m := NewManager(store, "Linux")
	ctx := context.Background()

	_, err := m.Save(ctx, "s", "c1", writeTree(t, map[string]string{"f": "first"}))
	require.NoError(t, err)
	_, err = m.Save(ctx, "s", "c1", writeTree(t, map[string]string{"f": "second"}))
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "out")
	_, err = m.Restore(ctx, "s", "c1", dest)
	require.NoError(t, err)
	assert.Equal(t, "second", readFile(t, filepath.Join(dest, "f")))

	infos, err := store.List(ctx, "Linux-s-")
	require.NoError(t, err)
	assert.Len(t, infos, 1)
}

func TestManagerSaveMissingSource(t *testing.T) {
	m := NewManager(NewMemoryStore(), "Linux")
	_, err := m.Save(context.Background(), "s", "c1", filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to save")
}
