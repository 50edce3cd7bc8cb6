package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitFor(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestWatcherRebuildsOnChange(t *testing.T) {
	root := t.TempDir()
	rebuilt := make(chan struct{}, 8)
	w := New(func(context.Context) error {
		rebuilt <- struct{}{}
		return errors.New("failures are logged, not fatal")
	}, root).WithDebounce(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	waitFor(t, w.Ready(), "watcher ready")

	require.NoError(t, os.WriteFile(filepath.Join(root, "index.rst"), []byte("x"), 0o600))
	waitFor(t, rebuilt, "rebuild after write")

	sub := filepath.Join(root, "tutorials")
	require.NoError(t, os.Mkdir(sub, 0o750))
	waitFor(t, rebuilt, "rebuild after mkdir")
	time.Sleep(50 * time.Millisecond) // let the new directory be registered
	require.NoError(t, os.WriteFile(filepath.Join(sub, "intro.rst"), []byte("x"), 0o600))
	waitFor(t, rebuilt, "rebuild after nested write")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcherMissingRoot(t *testing.T) {
	w := New(func(context.Context) error { return nil }, filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, w.Run(context.Background()))
}

func TestShouldIgnoreEvent(t *testing.T) {
	assert.True(t, shouldIgnoreEvent("/docs/.index.rst.swp"))
	assert.True(t, shouldIgnoreEvent("/docs/index.rst~"))
	assert.True(t, shouldIgnoreEvent("/docs/#index.rst#"))
	assert.False(t, shouldIgnoreEvent("/docs/index.rst"))
}

func TestSkipped(t *testing.T) {
	w := New(nil, "/docs").Skip("/docs/build")
	assert.True(t, w.skipped("/docs/build/html/index.html"))
	assert.True(t, w.skipped("/docs/build"))
	assert.False(t, w.skipped("/docs/buildinfo.rst"))
}
