package runner

import (
	"context"
	"io"
	"sync"
)

// Call is a command observed by Fake, with stdin drained.
type Call struct {
	Command
	Input string
}

// Fake records commands instead of running them. Handler, when set, decides
// the result of each call; otherwise every call succeeds with empty output.
type Fake struct {
	Handler func(Call) (*Result, error)

	mu    sync.Mutex
	calls []Call
}

// Run records the call.
func (f *Fake) Run(_ context.Context, c Command) (*Result, error) {
	call := Call{Command: c}
	if c.Stdin != nil {
		data, err := io.ReadAll(c.Stdin)
		if err != nil {
			return nil, err
		}
		call.Input = string(data)
	}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()

	if f.Handler != nil {
		return f.Handler(call)
	}
	return &Result{}, nil
}

// Calls returns a copy of the recorded calls.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// Matching returns recorded calls whose first argument equals sub
// (e.g. "push" for docker push).
func (f *Fake) Matching(name, sub string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Name != name {
			continue
		}
		if sub == "" || (len(c.Args) > 0 && c.Args[0] == sub) {
			out = append(out, c)
		}
	}
	return out
}
