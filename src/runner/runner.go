// Package runner executes external collaborator processes (docker, python,
// twine) with captured output and context cancellation.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
)

// Command describes one process invocation.
type Command struct {
	Name string
	Args []string

	// Dir is the working directory. Empty = current.
	Dir string

	// Env is appended to the process environment. Values never appear in
	// String() or errors.
	Env map[string]string

	// Stdin, if set, is fed to the process (e.g. a password for --password-stdin).
	Stdin io.Reader
}

// String renders the command line for logs.
func (c Command) String() string {
	parts := append([]string{c.Name}, c.Args...)
	return strings.Join(parts, " ")
}

// Result holds captured output.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner runs commands. Implementations must be safe for concurrent use.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// ExitError is returned when a process exits non-zero.
type ExitError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s: exit status %d", e.Command, e.ExitCode)
	if tail := lastLines(e.Stderr, 5); tail != "" {
		msg += "\n" + tail
	}
	return msg
}

// Exec runs commands with os/exec.
type Exec struct {
	// Stdout and Stderr, when set, receive a live copy of process output
	// (verbose mode). Output is always captured regardless.
	Stdout io.Writer
	Stderr io.Writer
}

// Run starts the command and waits for it to finish.
func (x *Exec) Run(ctx context.Context, c Command) (*Result, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), envList(c.Env)...)
	}
	if c.Stdin != nil {
		cmd.Stdin = c.Stdin
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = tee(&stdout, x.Stdout)
	cmd.Stderr = tee(&stderr, x.Stderr)

	err := cmd.Run()
	res := &Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		if ctx.Err() != nil {
			return res, fmt.Errorf("%s: %w", c.Name, ctx.Err())
		}
		return res, &ExitError{Command: c.String(), ExitCode: res.ExitCode, Stderr: res.Stderr}
	}
	return res, fmt.Errorf("%s: %w", c.Name, err)
}

// Available reports whether the named executable is on PATH.
func Available(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func tee(buf *bytes.Buffer, w io.Writer) io.Writer {
	if w == nil {
		return buf
	}
	return io.MultiWriter(buf, w)
}

// envList renders env in a stable order.
func envList(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
