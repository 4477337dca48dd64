// Package cache persists build-layer sets across pipeline runs.
//
// Entries are keyed "{os}-{scope}-{commit}". Restore tries the exact key
// first and falls back to the most recent entry sharing the "{os}-{scope}-"
// prefix, so a new commit starts from a warm (but not exact) cache. Entries
// are never merged or evicted here; superseded entries are left for the
// backing store's own lifecycle rules.
package cache

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
)

// ErrNotFound is returned by Store.Get when no entry exists for a key.
var ErrNotFound = errors.New("cache entry not found")

// Key returns the exact cache key for a scope at a commit.
func Key(os, scope, commit string) string {
	return Prefix(os, scope) + commit
}

// Prefix returns the restore-key prefix shared by every commit of a scope.
func Prefix(os, scope string) string {
	return sanitize(os) + "-" + sanitize(scope) + "-"
}

// sanitize keeps keys usable as file names, object keys and OCI tags.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, s)
}

// EntryInfo describes a stored entry.
type EntryInfo struct {
	Key     string
	Created time.Time
	Size    int64
}

// Entry is a stored layer-set archive. Callers must close Body.
type Entry struct {
	EntryInfo
	Body io.ReadCloser
}

// Store is the cross-run key-value collaborator. Concurrent Put calls for the
// same key are not sequenced: the last writer wins.
type Store interface {
	// Get returns the entry stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (*Entry, error)

	// List returns every entry whose key starts with prefix.
	List(ctx context.Context, prefix string) ([]EntryInfo, error)

	// Put stores the content of r under key, replacing any previous entry.
	Put(ctx context.Context, key string, r io.Reader) error
}

// HitKind classifies a restore.
type HitKind string

const (
	Exact   HitKind = "exact"
	Partial HitKind = "partial"
	Miss    HitKind = "miss"
)

// Hit is the result of a restore. Key is empty on a miss.
type Hit struct {
	Kind HitKind
	Key  string
}

func (h Hit) String() string {
	if h.Kind == Miss {
		return string(Miss)
	}
	return string(h.Kind) + " (" + h.Key + ")"
}

// latest picks the most recently created entry, breaking ties by key.
func latest(infos []EntryInfo) (EntryInfo, bool) {
	if len(infos) == 0 {
		return EntryInfo{}, false
	}
	best := infos[0]
	for _, in := range infos[1:] {
		if in.Created.After(best.Created) || (in.Created.Equal(best.Created) && in.Key > best.Key) {
			best = in
		}
	}
	return best, true
}
