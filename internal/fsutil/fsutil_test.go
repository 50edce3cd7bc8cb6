package fsutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

func TestCopyTreeReplacesInsteadOfNesting(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "substra", "references")
	writeFile(t, filepath.Join(src, "sdk.md"), "# sdk")
	writeFile(t, filepath.Join(src, "cli", "commands.md"), "# cli")
	dst := filepath.Join(root, "docs", "source", "documentation", "references")

	require.NoError(t, CopyTree(src, dst))
	first, err := TreeDigest(dst)
	require.NoError(t, err)

	require.NoError(t, CopyTree(src, dst))
	second, err := TreeDigest(dst)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	_, err = os.Stat(filepath.Join(dst, "references"))
	assert.True(t, errors.Is(err, fs.ErrNotExist), "copy must not nest on re-run")

	data, err := os.ReadFile(filepath.Join(dst, "cli", "commands.md"))
	require.NoError(t, err)
	assert.Equal(t, "# cli", string(data))
}

func TestCopyTreeDropsStaleFiles(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	dst := filepath.Join(root, "dst")
	writeFile(t, filepath.Join(src, "a.md"), "a")
	writeFile(t, filepath.Join(dst, "stale.md"), "old")

	require.NoError(t, CopyTree(src, dst))
	names, err := Entries(dst)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md"}, names)
}

func TestCopyTreeMissingSource(t *testing.T) {
	err := CopyTree(filepath.Join(t.TempDir(), "absent"), filepath.Join(t.TempDir(), "dst"))
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestMove(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "examples", "titanic", "assets")
	writeFile(t, filepath.Join(src, "algo.py"), "print(1)")
	dst := filepath.Join(root, "notebooks", "titanic", "assets")

	require.NoError(t, Move(src, dst))
	ok, err := Exists(src)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = Exists(filepath.Join(dst, "algo.py"))
	require.NoError(t, err)
	assert.True(t, ok)

	writeFile(t, filepath.Join(root, "other", "x"), "x")
	err = Move(filepath.Join(root, "other"), dst)
	assert.True(t, errors.Is(err, ErrDestinationExists))

	err = Move(filepath.Join(root, "absent"), filepath.Join(root, "y"))
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestRemoveAllExceptAndDotEntries(t *testing.T) {
	root := t.TempDir()
	for _, p := range []string{".git/HEAD", ".binder/postBuild", ".gitignore", "README.md", "docs/src/x", "notebooks/a.ipynb", "requirements.txt"} {
		writeFile(t, filepath.Join(root, p), "x")
	}

	removed, err := RemoveDotEntries(root)
	require.NoError(t, err)
	assert.Equal(t, []string{".binder", ".git", ".gitignore"}, removed)

	removed, err = RemoveAllExcept(root, []string{"notebooks", "docs"})
	require.NoError(t, err)
	assert.Equal(t, []string{"README.md", "requirements.txt"}, removed)

	names, err := Entries(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"docs", "notebooks"}, names)
}

func TestRequireDir(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "file"), "x")
	require.NoError(t, RequireDir(root))
	assert.True(t, errors.Is(RequireDir(filepath.Join(root, "file")), fs.ErrNotExist))
	assert.True(t, errors.Is(RequireDir(filepath.Join(root, "absent")), fs.ErrNotExist))
}

func TestTreeDigestDetectsChanges(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a"), "1")
	d1, err := TreeDigest(root)
	require.NoError(t, err)
	writeFile(t, filepath.Join(root, "a"), "2")
	d2, err := TreeDigest(root)
	require.NoError(t, err)
	assert.NotEqual(t, d1, d2)
}
