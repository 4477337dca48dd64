package cache

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps entries in process memory. Entries do not survive the
// process; it serves tests and dry runs.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memEntry

	// Now stamps Created on Put. Defaults to time.Now.
	Now func() time.Time
}

type memEntry struct {
	data    []byte
	created time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memEntry)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &Entry{
		EntryInfo: EntryInfo{Key: key, Created: e.created, Size: int64(len(e.data))},
		Body:      io.NopCloser(bytes.NewReader(e.data)),
	}, nil
}

func (s *MemoryStore) List(_ context.Context, prefix string) ([]EntryInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []EntryInfo
	for k, e := range s.entries {
		if strings.HasPrefix(k, prefix) {
			out = append(out, EntryInfo{Key: k, Created: e.created, Size: int64(len(e.data))})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *MemoryStore) Put(_ context.Context, key string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entries == nil {
		s.entries = make(map[string]memEntry)
	}
	s.entries[key] = memEntry{data: data, created: now()}
	return nil
}
