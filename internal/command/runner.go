// Package command runs the external tools the pipeline drives (pip, make,
// sphinx-build) with streamed output and exit-status preservation.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/substra/docpipeline/internal/logfields"
	"github.com/substra/docpipeline/internal/metrics"
)

// exitNotFound mirrors the shell's status for a missing executable.
const exitNotFound = 127

// Cmd describes one external command invocation.
type Cmd struct {
	Name string
	Args []string
	Dir  string
	Env  []string // appended to the current environment
}

// String renders the command the way `set -x` would echo it.
func (c Cmd) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, quote(c.Name))
	for _, a := range c.Args {
		parts = append(parts, quote(a))
	}
	return strings.Join(parts, " ")
}

func quote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.ContainsAny(s, " \t\n'\"$`\\*?[]!()") {
		return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
	}
	return s
}

// Runner executes commands. Implementations must return an error satisfying
// `interface{ ExitCode() int }` when the child exits non-zero.
type Runner interface {
	// Run executes cmd streaming its output.
	Run(ctx context.Context, cmd Cmd) error
	// Output executes cmd and returns its standard output.
	Output(ctx context.Context, cmd Cmd) ([]byte, error)
}

// ExitError reports a command that could not start or exited non-zero.
type ExitError struct {
	Command string
	Code    int
	Stderr  string // tail of captured stderr, when available
	Err     error
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("command %q exited with status %d", e.Command, e.Code)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode returns the child's exit status.
func (e *ExitError) ExitCode() int { return e.Code }

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	Stdout   io.Writer
	Stderr   io.Writer
	Recorder metrics.Recorder
	Logger   *slog.Logger
}

// NewExecRunner returns a runner streaming child output to the process stdio.
func NewExecRunner(recorder metrics.Recorder) *ExecRunner {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &ExecRunner{Stdout: os.Stdout, Stderr: os.Stderr, Recorder: recorder, Logger: slog.Default()}
}

func (r *ExecRunner) Run(ctx context.Context, c Cmd) error {
	tail := &tailBuffer{max: 4096}
	_, err := r.exec(ctx, c, r.Stdout, io.MultiWriter(r.Stderr, tail), tail)
	return err
}

func (r *ExecRunner) Output(ctx context.Context, c Cmd) ([]byte, error) {
	var stdout bytes.Buffer
	tail := &tailBuffer{max: 4096}
	_, err := r.exec(ctx, c, &stdout, tail, tail)
	return stdout.Bytes(), err
}

func (r *ExecRunner) exec(ctx context.Context, c Cmd, stdout, stderr io.Writer, tail *tailBuffer) (time.Duration, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("+ "+c.String(), logfields.Path(c.Dir))

	// #nosec G204 -- command names come from validated configuration
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	start := time.Now()
	err := cmd.Run()
	dur := time.Since(start)
	if r.Recorder != nil {
		r.Recorder.ObserveCommandDuration(c.Name, dur, err == nil)
	}
	if err == nil {
		logger.Debug("Command finished", logfields.Command(c.Name), logfields.Duration(dur))
		return dur, nil
	}
	return dur, classify(c, err, tail)
}

func classify(c Cmd, err error, tail *tailBuffer) error {
	stderr := strings.TrimSpace(tail.String())
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		code := ee.ExitCode()
		if code <= 0 {
			code = 1 // killed by signal or context
		}
		return &ExitError{Command: c.String(), Code: code, Stderr: stderr, Err: err}
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
		return &ExitError{Command: c.String(), Code: exitNotFound, Err: err}
	}
	return &ExitError{Command: c.String(), Code: 1, Stderr: stderr, Err: err}
}

// tailBuffer keeps the last max bytes written.
type tailBuffer struct {
	buf []byte
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string { return string(t.buf) }
