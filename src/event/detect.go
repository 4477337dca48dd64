package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// DetectOptions controls where Detect looks for trigger information.
type DetectOptions struct {
	// RootDir is the repository checkout, used for the go-git fallback.
	RootDir string

	// Override fields win over anything found in the environment.
	Override Trigger

	// Getenv reads environment variables. Defaults to os.Getenv.
	Getenv func(string) string
}

// Detect resolves the trigger from the hosting environment.
//
// Resolution order per field: explicit override, GitHub Actions variables,
// GitLab CI variables, then the local git repository (HEAD and any tag
// pointing at it). Detect only fails when no commit can be resolved at all.
func Detect(opts DetectOptions) (Trigger, error) {
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	t := fromGitHub(getenv)
	if t.Ref == "" && t.Commit == "" {
		t = fromGitLab(getenv)
	}

	if t.Ref == "" || t.Commit == "" {
		local, err := fromRepo(opts.RootDir)
		if err == nil {
			if t.Ref == "" {
				t.Ref = local.Ref
			}
			if t.Commit == "" {
				t.Commit = local.Commit
			}
		}
	}

	t = merge(t, opts.Override)
	if t.Kind == "" {
		t.Kind = Push
	}

	if t.Commit == "" {
		return t, fmt.Errorf("event: unable to resolve commit (set GITHUB_SHA, CI_COMMIT_SHA or run inside a git checkout)")
	}
	return t, nil
}

// merge overlays every non-empty field of o onto t.
func merge(t, o Trigger) Trigger {
	if o.Kind != "" {
		t.Kind = o.Kind
	}
	if o.Ref != "" {
		t.Ref = o.Ref
	}
	if o.Commit != "" {
		t.Commit = o.Commit
	}
	if o.Repository != "" {
		t.Repository = o.Repository
	}
	if o.RunID != "" {
		t.RunID = o.RunID
	}
	if o.Action != "" {
		t.Action = o.Action
	}
	return t
}

func fromGitHub(getenv func(string) string) Trigger {
	name := getenv("GITHUB_EVENT_NAME")
	if name == "" {
		return Trigger{}
	}
	t := Trigger{
		Kind:       ParseKind(name),
		Ref:        getenv("GITHUB_REF"),
		Commit:     getenv("GITHUB_SHA"),
		Repository: getenv("GITHUB_REPOSITORY"),
		RunID:      getenv("GITHUB_RUN_ID"),
	}
	if t.Kind == Release {
		t.Action = readAction(getenv("GITHUB_EVENT_PATH"))
	}
	return t
}

func fromGitLab(getenv func(string) string) Trigger {
	if getenv("GITLAB_CI") != "true" {
		return Trigger{}
	}
	t := Trigger{
		Kind:       Push,
		Commit:     getenv("CI_COMMIT_SHA"),
		Repository: getenv("CI_PROJECT_PATH"),
		RunID:      getenv("CI_PIPELINE_ID"),
	}
	switch {
	case getenv("CI_COMMIT_TAG") != "":
		t.Ref = DefaultTagPrefix + getenv("CI_COMMIT_TAG")
	case getenv("CI_COMMIT_BRANCH") != "":
		t.Ref = "refs/heads/" + getenv("CI_COMMIT_BRANCH")
	}
	return t
}

// readAction extracts the "action" field from a webhook payload file.
// Missing or unreadable payloads yield "".
func readAction(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	var payload struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return ""
	}
	return payload.Action
}

// fromRepo inspects the local checkout. A tag pointing at HEAD wins over
// the branch name so a tagged checkout is classified as a tag push.
func fromRepo(rootDir string) (Trigger, error) {
	if rootDir == "" {
		rootDir = "."
	}
	repo, err := git.PlainOpenWithOptions(rootDir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return Trigger{}, err
	}

	head, err := repo.Head()
	if err != nil {
		return Trigger{}, err
	}

	t := Trigger{Kind: Push, Commit: head.Hash().String()}
	if head.Name().IsBranch() {
		t.Ref = head.Name().String()
	}

	if tag, err := tagAt(repo, head.Hash()); err == nil && tag != "" {
		t.Ref = DefaultTagPrefix + tag
	}
	return t, nil
}

var errFound = errors.New("found")

// tagAt returns the short name of a tag (lightweight or annotated) that
// points at hash, or "" if there is none.
func tagAt(repo *git.Repository, hash plumbing.Hash) (string, error) {
	iter, err := repo.Tags()
	if err != nil {
		return "", err
	}
	defer iter.Close()

	var name string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		target := ref.Hash()
		if obj, err := repo.TagObject(target); err == nil {
			target = obj.Target
		}
		if target == hash {
			name = strings.TrimPrefix(ref.Name().String(), DefaultTagPrefix)
			return errFound
		}
		return nil
	})
	if err != nil && !errors.Is(err, errFound) {
		return "", err
	}
	return name, nil
}
