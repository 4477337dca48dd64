package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// Manager restores and saves layer sets for one runner OS.
type Manager struct {
	Store Store
	OS    string
}

// NewManager returns a manager over store.
func NewManager(store Store, os string) *Manager {
	return &Manager{Store: store, OS: os}
}

// Key returns the exact key for scope at commit.
func (m *Manager) Key(scope, commit string) string {
	return Key(m.OS, scope, commit)
}

// Lookup resolves which entry a restore would use, without fetching it.
func (m *Manager) Lookup(ctx context.Context, scope, commit string) (Hit, error) {
	key := m.Key(scope, commit)
	infos, err := m.Store.List(ctx, Prefix(m.OS, scope))
	if err != nil {
		return Hit{Kind: Miss}, fmt.Errorf("cache: listing %s: %w", Prefix(m.OS, scope), err)
	}
	for _, in := range infos {
		if in.Key == key {
			return Hit{Kind: Exact, Key: key}, nil
		}
	}
	if best, ok := latest(infos); ok {
		return Hit{Kind: Partial, Key: best.Key}, nil
	}
	return Hit{Kind: Miss}, nil
}

// Restore unpacks the best available entry for scope into dest: the exact
// key if present, else the most recent entry with the scope prefix.
// A miss is not an error.
func (m *Manager) Restore(ctx context.Context, scope, commit, dest string) (Hit, error) {
	key := m.Key(scope, commit)

	entry, err := m.Store.Get(ctx, key)
	switch {
	case err == nil:
		return Hit{Kind: Exact, Key: key}, m.unpack(entry, dest)
	case !errors.Is(err, ErrNotFound):
		return Hit{Kind: Miss}, fmt.Errorf("cache: get %s: %w", key, err)
	}

	prefix := Prefix(m.OS, scope)
	infos, err := m.Store.List(ctx, prefix)
	if err != nil {
		return Hit{Kind: Miss}, fmt.Errorf("cache: listing %s: %w", prefix, err)
	}
	best, ok := latest(infos)
	if !ok {
		return Hit{Kind: Miss}, nil
	}

	entry, err = m.Store.Get(ctx, best.Key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// pruned between List and Get
			return Hit{Kind: Miss}, nil
		}
		return Hit{Kind: Miss}, fmt.Errorf("cache: get %s: %w", best.Key, err)
	}
	return Hit{Kind: Partial, Key: best.Key}, m.unpack(entry, dest)
}

// Save archives src and stores it under the exact key for scope at commit.
func (m *Manager) Save(ctx context.Context, scope, commit, src string) (string, error) {
	key := m.Key(scope, commit)

	info, err := os.Stat(src)
	if err != nil {
		return key, fmt.Errorf("cache: nothing to save: %w", err)
	}
	if !info.IsDir() {
		return key, fmt.Errorf("cache: %s is not a directory", src)
	}

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(Pack(src, pw))
	}()

	if err := m.Store.Put(ctx, key, pr); err != nil {
		pr.CloseWithError(err)
		return key, fmt.Errorf("cache: put %s: %w", key, err)
	}
	return key, nil
}

func (m *Manager) unpack(entry *Entry, dest string) error {
	defer entry.Body.Close()
	if err := os.RemoveAll(dest); err != nil {
		return fmt.Errorf("cache: clearing %s: %w", dest, err)
	}
	if err := Unpack(entry.Body, dest); err != nil {
		return fmt.Errorf("cache: unpacking %s: %w", entry.Key, err)
	}
	return nil
}
