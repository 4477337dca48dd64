package runner

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecCapturesOutput(t *testing.T) {
	if !Available("sh") {
		t.Skip("sh not available")
	}
	var live bytes.Buffer
	x := &Exec{Stdout: &live}

	res, err := x.Run(context.Background(), Command{
		Name:  "sh",
		Args:  []string{"-c", `printf "%s" "$SLIPWAY_GREETING"; cat`},
		Env:   map[string]string{"SLIPWAY_GREETING": "hello "},
		Stdin: strings.NewReader("world"),
	})
	require.NoError(t, err)
	assert.Equal(t, "hello world", res.Stdout)
	assert.Equal(t, "hello world", live.String())
}

func TestExecExitError(t *testing.T) {
	if !Available("sh") {
		t.Skip("sh not available")
	}
	res, err := (&Exec{}).Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "echo broken >&2; exit 3"},
		Env:  map[string]string{"SECRET": "hunter2"},
	})
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.ExitCode)
	assert.Equal(t, 3, res.ExitCode)
	assert.Contains(t, err.Error(), "broken")
	assert.NotContains(t, err.Error(), "hunter2")
}

func TestExecMissingBinary(t *testing.T) {
	_, err := (&Exec{}).Run(context.Background(), Command{Name: "slipway-no-such-binary"})
	require.Error(t, err)
	var exitErr *ExitError
	assert.NotErrorAs(t, err, &exitErr)
}

func TestFakeRecordsCalls(t *testing.T) {
	f := &Fake{Handler: func(c Call) (*Result, error) {
		if c.Args[0] == "push" {
			return &Result{ExitCode: 1}, &ExitError{Command: c.String(), ExitCode: 1}
		}
		return &Result{Stdout: "ok"}, nil
	}}

	_, err := f.Run(context.Background(), Command{Name: "docker", Args: []string{"login", "-u", "bot"}, Stdin: strings.NewReader("pw")})
	require.NoError(t, err)
	_, err = f.Run(context.Background(), Command{Name: "docker", Args: []string{"push", "x:latest"}})
	require.Error(t, err)

	calls := f.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "pw", calls[0].Input)
	assert.Equal(t, "docker push x:latest", calls[1].String())
	assert.Len(t, f.Matching("docker", "push"), 1)
	assert.Len(t, f.Matching("docker", ""), 2)
}

func TestLastLines(t *testing.T) {
	assert.Equal(t, "c\nd", lastLines("a\nb\nc\nd\n", 2))
	assert.Equal(t, "", lastLines("", 2))
}
