package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStore keeps entries in a directory: one archive plus a JSON metadata
// sidecar per key.
type LocalStore struct {
	Dir string
}

// localMeta is the sidecar written next to each archive.
type localMeta struct {
	Key     string    `json:"key"`
	Created time.Time `json:"created"`
	Size    int64     `json:"size"`
}

// NewLocalStore returns a store rooted at dir.
func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{Dir: dir}
}

func (s *LocalStore) Get(_ context.Context, key string) (*Entry, error) {
	meta, err := s.readMeta(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(s.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &Entry{EntryInfo: meta, Body: f}, nil
}

func (s *LocalStore) List(_ context.Context, prefix string) ([]EntryInfo, error) {
	matches, err := filepath.Glob(filepath.Join(s.Dir, "*.json"))
	if err != nil {
		return nil, err
	}
	var out []EntryInfo
	for _, m := range matches {
		key := strings.TrimSuffix(filepath.Base(m), ".json")
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		meta, err := s.readMeta(key)
		if err != nil {
			// unreadable sidecar: treat the entry as absent
			continue
		}
		out = append(out, meta)
	}
	return out, nil
}

// Put writes the archive to a temp file and renames it into place, so a
// concurrent reader never sees a partial entry.
func (s *LocalStore) Put(_ context.Context, key string, r io.Reader) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.Dir, ".put-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	size, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		return err
	}

	data, err := json.Marshal(localMeta{Key: key, Created: time.Now().UTC(), Size: size})
	if err != nil {
		return err
	}
	return os.WriteFile(s.metaPath(key), data, 0o644)
}

func (s *LocalStore) readMeta(key string) (EntryInfo, error) {
	data, err := os.ReadFile(s.metaPath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return EntryInfo{}, ErrNotFound
		}
		return EntryInfo{}, err
	}
	var m localMeta
	if err := json.Unmarshal(data, &m); err != nil {
		return EntryInfo{}, fmt.Errorf("reading %s metadata: %w", key, err)
	}
	return EntryInfo{Key: m.Key, Created: m.Created, Size: m.Size}, nil
}

func (s *LocalStore) path(key string) string {
	return filepath.Join(s.Dir, key+".tar.zst")
}

func (s *LocalStore) metaPath(key string) string {
	return filepath.Join(s.Dir, key+".json")
}

// EnsureGitignore adds entry (e.g. ".slipway/") to rootDir/.gitignore if
// not already present. Best effort.
func EnsureGitignore(rootDir, entry string) {
	gitignorePath := filepath.Join(rootDir, ".gitignore")

	data, err := os.ReadFile(gitignorePath)
	if err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			if strings.TrimSuffix(line, "\r") == entry {
				return
			}
		}
	}

	f, err := os.OpenFile(gitignorePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()

	if len(data) > 0 && data[len(data)-1] != '\n' {
		f.WriteString("\n")
	}
	f.WriteString(entry + "\n")
}
