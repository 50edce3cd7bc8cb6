package command

import (
	"context"
	"fmt"
	"sync"
)

// FakeRunner records invocations instead of executing them. Handler, when
// set, decides each command's output and error.
type FakeRunner struct {
	mu      sync.Mutex
	calls   []Cmd
	Handler func(cmd Cmd) ([]byte, error)
}

// Run records cmd and returns the handler's error.
func (f *FakeRunner) Run(ctx context.Context, cmd Cmd) error {
	_, err := f.Output(ctx, cmd)
	return err
}

// Output records cmd and returns the handler's result.
func (f *FakeRunner) Output(ctx context.Context, cmd Cmd) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	h := f.Handler
	f.mu.Unlock()
	if h == nil {
		return nil, nil
	}
	return h(cmd)
}

// Calls returns a copy of the recorded commands.
func (f *FakeRunner) Calls() []Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Cmd, len(f.calls))
	copy(out, f.calls)
	return out
}

// Commands returns the recorded commands rendered as strings.
func (f *FakeRunner) Commands() []string {
	calls := f.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.String()
	}
	return out
}

// Fail returns an ExitError with the given status, for use in handlers.
func Fail(cmd Cmd, code int) error {
	return &ExitError{Command: cmd.String(), Code: code, Err: fmt.Errorf("exit status %d", code)}
}
