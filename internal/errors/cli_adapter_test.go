package errors

import (
	"bytes"
	stdErrors "errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeExit struct{ code int }

func (f fakeExit) Error() string { return fmt.Sprintf("exit status %d", f.code) }
func (f fakeExit) ExitCode() int { return f.code }

func TestExitCodeFor(t *testing.T) {
	a := NewCLIErrorAdapter(false, slog.New(slog.NewTextHandler(io.Discard, nil)))

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"plain", stdErrors.New("x"), 1},
		{"config", ConfigNotFound("docpipeline.yaml"), 7},
		{"validation", ValidationFailed("repositories", "empty"), 2},
		{"git", GitCloneError("substra", stdErrors.New("x")), 8},
		{"sphinx", SphinxFailed("html", stdErrors.New("x")), 11},
		{"filesystem", PathMissing("docs/notebooks", stdErrors.New("x")), 11},
		{"child exit code wins", SphinxFailed("html", fakeExit{code: 2}), 2},
		{"wrapped child exit", fmt.Errorf("stage: %w", PipFailed("install", fakeExit{code: 3})), 3},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, a.ExitCodeFor(c.err))
		})
	}
}

func TestFormatError(t *testing.T) {
	quiet := NewCLIErrorAdapter(false, nil)
	assert.Equal(t, "configuration file not found", quiet.FormatError(ConfigNotFound("x")))
	assert.Equal(t, "sphinx: documentation generator failed", quiet.FormatError(SphinxFailed("html", stdErrors.New("boom"))))
	assert.Equal(t, "Error: boom", quiet.FormatError(stdErrors.New("boom")))

	verbose := NewCLIErrorAdapter(true, nil)
	assert.Contains(t, verbose.FormatError(SphinxFailed("html", stdErrors.New("boom"))), "boom")
}

func TestHandleError(t *testing.T) {
	var out, logs bytes.Buffer
	a := NewCLIErrorAdapter(false, slog.New(slog.NewTextHandler(&logs, nil)))
	a.out = &out
	code := -1
	a.exit = func(c int) { code = c }

	a.HandleError(PathMissing("examples/titanic_example/assets", stdErrors.New("no such file")))

	assert.Equal(t, 11, code)
	assert.Contains(t, out.String(), "required path does not exist")
	assert.Contains(t, logs.String(), "category=filesystem")

	code = -1
	a.HandleError(nil)
	assert.Equal(t, -1, code)
}
