package coverage

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/sofmeright/slipway/src/secrets"
)

// DefaultEndpoint is the Coveralls jobs API.
const DefaultEndpoint = "https://coveralls.io/api/v1/jobs"

// RunMeta identifies the pipeline run a report belongs to.
type RunMeta struct {
	ServiceName   string // "github", "gitlab", ...
	JobID         string // run identifier
	ServiceNumber string
	Commit        string
	Branch        string
}

// Uploader is the coverage aggregation collaborator.
type Uploader interface {
	Upload(ctx context.Context, report *Report, meta RunMeta, token secrets.Credential) error
}

// Coveralls uploads to the Coveralls jobs API.
type Coveralls struct {
	Endpoint string
	Client   *http.Client

	// Root is the repository checkout on the host. Workdir is where it was
	// mounted while tests ran; report source roots under Workdir are mapped
	// back onto Root to read files and build repository-relative names.
	Root    string
	Workdir string
}

type sourceFile struct {
	Name         string `json:"name"`
	SourceDigest string `json:"source_digest"`
	Coverage     []*int `json:"coverage"`
}

type jobPayload struct {
	RepoToken     string         `json:"repo_token"`
	ServiceName   string         `json:"service_name"`
	ServiceJobID  string         `json:"service_job_id,omitempty"`
	ServiceNumber string         `json:"service_number,omitempty"`
	Git           map[string]any `json:"git,omitempty"`
	SourceFiles   []sourceFile   `json:"source_files"`
}

// Upload posts the report as a multipart json_file.
func (c *Coveralls) Upload(ctx context.Context, report *Report, meta RunMeta, token secrets.Credential) error {
	if !token.IsSet() {
		return fmt.Errorf("coverage token: %w", secrets.ErrMissing)
	}

	payload, err := c.payload(report, meta, token)
	if err != nil {
		return err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("json_file", "coverage.json")
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	endpoint := c.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("coverage upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("coverage upload: %d %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return nil
}

func (c *Coveralls) payload(report *Report, meta RunMeta, token secrets.Credential) (*jobPayload, error) {
	p := &jobPayload{
		RepoToken:     token.Reveal(),
		ServiceName:   meta.ServiceName,
		ServiceJobID:  meta.JobID,
		ServiceNumber: meta.ServiceNumber,
		SourceFiles:   []sourceFile{},
	}
	if meta.Commit != "" {
		p.Git = map[string]any{
			"head":   map[string]string{"id": meta.Commit},
			"branch": meta.Branch,
		}
	}

	for _, f := range report.Files {
		name, content, ok := c.locate(report.Sources, f.Name)
		if !ok {
			// file vanished or lives outside the checkout
			continue
		}
		sum := md5.Sum(content)

		lines := bytes.Count(content, []byte("\n"))
		if len(content) > 0 && !bytes.HasSuffix(content, []byte("\n")) {
			lines++
		}
		if m := f.MaxLine(); m > lines {
			lines = m
		}

		cov := make([]*int, lines)
		for n, hits := range f.Hits {
			if n >= 1 && n <= lines {
				h := hits
				cov[n-1] = &h
			}
		}
		p.SourceFiles = append(p.SourceFiles, sourceFile{
			Name:         name,
			SourceDigest: hex.EncodeToString(sum[:]),
			Coverage:     cov,
		})
	}
	return p, nil
}

// locate finds a report file on the host, returning its repository-relative
// name and content.
func (c *Coveralls) locate(sources []string, name string) (string, []byte, bool) {
	candidates := []string{name}
	for _, src := range sources {
		candidates = append(candidates, filepath.Join(src, name))
	}

	for _, cand := range candidates {
		host := c.toHost(cand)
		data, err := os.ReadFile(host)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(c.root(), host)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		return filepath.ToSlash(rel), data, true
	}
	return "", nil, false
}

func (c *Coveralls) toHost(p string) string {
	if c.Workdir != "" && (p == c.Workdir || strings.HasPrefix(p, strings.TrimSuffix(c.Workdir, "/")+"/")) {
		return filepath.Join(c.root(), strings.TrimPrefix(p, c.Workdir))
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.root(), p)
}

func (c *Coveralls) root() string {
	if c.Root == "" {
		return "."
	}
	return c.Root
}
