package publish

import (
	"context"
	"errors"
	"fmt"

	"github.com/sofmeright/slipway/src/runner"
	"github.com/sofmeright/slipway/src/secrets"
)

// Index is the package-index collaborator.
type Index interface {
	Publish(ctx context.Context, artifacts []string, indexURL string, token secrets.Credential) error
}

// Twine uploads with the twine CLI using API-token auth.
type Twine struct {
	Runner     runner.Runner
	Executable string
}

// Publish uploads artifacts to indexURL. The token is passed through the
// environment only.
func (t *Twine) Publish(ctx context.Context, artifacts []string, indexURL string, token secrets.Credential) error {
	if !token.IsSet() {
		return fmt.Errorf("package index token: %w", secrets.ErrMissing)
	}
	if len(artifacts) == 0 {
		return errors.New("nothing to upload")
	}
	if indexURL == "" {
		return errors.New("package index URL is empty")
	}

	exe := t.Executable
	if exe == "" {
		exe = "twine"
	}
	args := append([]string{"upload", "--non-interactive", "--repository-url", indexURL}, artifacts...)

	_, err := t.Runner.Run(ctx, runner.Command{
		Name: exe,
		Args: args,
		Env: map[string]string{
			"TWINE_USERNAME": "__token__",
			"TWINE_PASSWORD": token.Reveal(),
		},
	})
	if err != nil {
		return fmt.Errorf("twine upload to %s: %w", indexURL, err)
	}
	return nil
}
