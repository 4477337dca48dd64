package output

import (
	"bytes"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/zricethezav/gitleaks/v8/detect"

	"github.com/sofmeright/slipway/src/secrets"
)

const redacted = "[redacted]"

// minSecretLen keeps short values (usernames like "ci") from shredding
// ordinary output.
const minSecretLen = 4

// Redactor masks registered credential values and, when scanning is
// enabled, anything the gitleaks default rules recognise as a secret.
type Redactor struct {
	mu       sync.Mutex
	values   []string
	detector *detect.Detector
}

// NewRedactor returns a redactor. scan enables gitleaks detection.
func NewRedactor(scan bool) (*Redactor, error) {
	r := &Redactor{}
	if scan {
		d, err := detect.NewDetectorDefaultConfig()
		if err != nil {
			return nil, err
		}
		r.detector = d
	}
	return r, nil
}

// Add registers credentials. Unset and very short values are ignored.
func (r *Redactor) Add(creds ...secrets.Credential) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range creds {
		v := c.Reveal()
		if len(v) < minSecretLen {
			continue
		}
		r.values = append(r.values, v)
	}
	// longest first so a value containing another is masked whole
	sort.Slice(r.values, func(i, j int) bool { return len(r.values[i]) > len(r.values[j]) })
}

// Redact returns s with every known secret masked.
func (r *Redactor) Redact(s string) string {
	if r == nil || s == "" {
		return s
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, v := range r.values {
		s = strings.ReplaceAll(s, v, redacted)
	}
	if r.detector != nil {
		for _, f := range r.detector.DetectBytes([]byte(s)) {
			if len(f.Secret) >= minSecretLen {
				s = strings.ReplaceAll(s, f.Secret, redacted)
			}
		}
	}
	return s
}

// Writer wraps w so everything written through it is redacted line by line.
func (r *Redactor) Writer(w io.Writer) *RedactingWriter {
	return &RedactingWriter{w: w, r: r}
}

// RedactingWriter buffers partial lines so a secret split across two
// writes is still masked. Call Flush when the stream ends.
type RedactingWriter struct {
	mu  sync.Mutex
	w   io.Writer
	r   *Redactor
	buf bytes.Buffer
}

func (rw *RedactingWriter) Write(p []byte) (int, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	rw.buf.Write(p)
	for {
		i := bytes.IndexByte(rw.buf.Bytes(), '\n')
		if i < 0 {
			break
		}
		line := string(rw.buf.Next(i + 1))
		if _, err := io.WriteString(rw.w, rw.r.Redact(line)); err != nil {
			return len(p), err
		}
	}
	return len(p), nil
}

// Flush writes any buffered partial line.
func (rw *RedactingWriter) Flush() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.buf.Len() == 0 {
		return nil
	}
	_, err := io.WriteString(rw.w, rw.r.Redact(rw.buf.String()))
	rw.buf.Reset()
	return err
}
