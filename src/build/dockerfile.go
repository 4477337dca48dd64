package build

import (
	"bufio"
	"os"
	"regexp"
	"strings"
)

var (
	// FROM [--platform=...] <image> [AS <name>]
	fromRe = regexp.MustCompile(`(?i)^FROM\s+(?:--platform=\S+\s+)?(\S+)(?:\s+AS\s+(\S+))?`)
	// ARG <name>[=<default>]
	argRe = regexp.MustCompile(`(?i)^ARG\s+(\S+?)(?:=.*)?$`)
)

// Dockerfile is the subset of a Dockerfile that build planning checks.
type Dockerfile struct {
	Stages []DockerStage
	Args   []string
}

// DockerStage is one FROM line.
type DockerStage struct {
	Name      string
	BaseImage string
	Line      int
}

// ParseDockerfile extracts stages and declared build args.
// This is a regex-based parser, not a full AST.
func ParseDockerfile(path string) (*Dockerfile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info := &Dockerfile{}
	scanner := bufio.NewScanner(f)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if m := fromRe.FindStringSubmatch(line); m != nil {
			info.Stages = append(info.Stages, DockerStage{BaseImage: m[1], Name: m[2], Line: lineNum})
			continue
		}
		if m := argRe.FindStringSubmatch(line); m != nil {
			info.Args = append(info.Args, m[1])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return info, nil
}

// MissingArgs returns the names that the Dockerfile never declares with ARG.
// Build args passed for undeclared names are silently ignored by docker.
func (d *Dockerfile) MissingArgs(names ...string) []string {
	declared := make(map[string]bool, len(d.Args))
	for _, a := range d.Args {
		declared[a] = true
	}
	var missing []string
	for _, n := range names {
		if n != "" && !declared[n] {
			missing = append(missing, n)
		}
	}
	return missing
}

// HasStage reports whether a FROM ... AS name exists (case-insensitive).
func (d *Dockerfile) HasStage(name string) bool {
	for _, s := range d.Stages {
		if strings.EqualFold(s.Name, name) {
			return true
		}
	}
	return false
}
