// Package secrets resolves pipeline credentials from the process environment
// or an external secret store. Values are wrapped in Credential so they
// cannot leak through fmt verbs, YAML/JSON encoding, or error messages.
package secrets

import (
	"context"
	"errors"
	"os"
)

// ErrMissing is returned when a required credential is not set.
var ErrMissing = errors.New("credential not set")

const redacted = "[redacted]"

// Credential is an opaque secret value. Formatting it never reveals the value.
type Credential struct {
	value string
}

// NewCredential wraps a raw secret.
func NewCredential(v string) Credential {
	return Credential{value: v}
}

// Reveal returns the raw value. Only pass the result directly to the
// collaborator that needs it.
func (c Credential) Reveal() string { return c.value }

// IsSet reports whether the credential holds a non-empty value.
func (c Credential) IsSet() bool { return c.value != "" }

func (c Credential) String() string {
	if c.value == "" {
		return ""
	}
	return redacted
}

func (c Credential) GoString() string { return c.String() }

func (c Credential) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// Source looks up named values.
type Source interface {
	// Lookup returns the value for name and whether it exists.
	Lookup(ctx context.Context, name string) (string, bool, error)
}

// EnvSource reads from the process environment.
type EnvSource struct {
	// LookupEnv defaults to os.LookupEnv. Tests substitute a map.
	LookupEnv func(string) (string, bool)
}

func (s EnvSource) Lookup(_ context.Context, name string) (string, bool, error) {
	lookup := s.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	v, ok := lookup(name)
	return v, ok, nil
}

// MapSource serves values from a fixed map.
type MapSource map[string]string

func (m MapSource) Lookup(_ context.Context, name string) (string, bool, error) {
	v, ok := m[name]
	return v, ok, nil
}

// Chain queries sources in order and returns the first hit.
type Chain []Source

func (c Chain) Lookup(ctx context.Context, name string) (string, bool, error) {
	for _, s := range c {
		if s == nil {
			continue
		}
		v, ok, err := s.Lookup(ctx, name)
		if err != nil {
			return "", false, err
		}
		if ok {
			return v, true, nil
		}
	}
	return "", false, nil
}
