// Package publish builds the distributable Python package and uploads it to
// a package index.
package publish

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Project is the packaging metadata read from pyproject.toml.
type Project struct {
	Name    string
	Version string // static version, empty when dynamic

	// Dynamic lists fields computed at build time (e.g. "version").
	Dynamic []string

	BuildBackend string

	// Legacy is true when only setup.py / setup.cfg exist.
	Legacy bool
}

// DynamicVersion reports whether the build backend computes the version, in
// which case the version override env var is honoured.
func (p *Project) DynamicVersion() bool {
	if p.Legacy {
		return true
	}
	for _, d := range p.Dynamic {
		if d == "version" {
			return true
		}
	}
	return false
}

// ReadProject loads pyproject.toml from root. A setup.py-only project is
// accepted as Legacy with no metadata.
func ReadProject(root string) (*Project, error) {
	data, err := os.ReadFile(filepath.Join(root, "pyproject.toml"))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		for _, legacy := range []string{"setup.py", "setup.cfg"} {
			if _, statErr := os.Stat(filepath.Join(root, legacy)); statErr == nil {
				return &Project{Legacy: true}, nil
			}
		}
		return nil, fmt.Errorf("publish: no pyproject.toml, setup.py or setup.cfg in %s", root)
	}

	var doc struct {
		Project struct {
			Name    string   `toml:"name"`
			Version string   `toml:"version"`
			Dynamic []string `toml:"dynamic"`
		} `toml:"project"`
		BuildSystem struct {
			BuildBackend string `toml:"build-backend"`
		} `toml:"build-system"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("publish: parse pyproject.toml: %w", err)
	}

	return &Project{
		Name:         doc.Project.Name,
		Version:      doc.Project.Version,
		Dynamic:      doc.Project.Dynamic,
		BuildBackend: doc.BuildSystem.BuildBackend,
	}, nil
}

var nameSepRe = regexp.MustCompile(`[-_.]+`)

// NormalizeName applies PEP 503 name normalization.
func NormalizeName(name string) string {
	return strings.ToLower(nameSepRe.ReplaceAllString(name, "-"))
}
