package git

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	ggitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/substra/docpipeline/internal/config"
	derrors "github.com/substra/docpipeline/internal/errors"
)

// remoteFixture is a bare "remote" plus the working repo used to push to it.
type remoteFixture struct {
	bare string
	work string
	repo *git.Repository
}

func newRemote(t *testing.T) *remoteFixture {
	t.Helper()
	tmp := t.TempDir()
	f := &remoteFixture{bare: filepath.Join(tmp, "remote.git"), work: filepath.Join(tmp, "seed")}
	_, err := git.PlainInit(f.bare, true)
	require.NoError(t, err)
	f.repo, err = git.PlainInit(f.work, false)
	require.NoError(t, err)
	_, err = f.repo.CreateRemote(&ggitcfg.RemoteConfig{Name: "origin", URLs: []string{f.bare}})
	require.NoError(t, err)
	return f
}

func (f *remoteFixture) commit(t *testing.T, name, content string) plumbing.Hash {
	t.Helper()
	wt, err := f.repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(filepath.Join(f.work, name)), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(f.work, name), []byte(content), 0o600))
	_, err = wt.Add(name)
	require.NoError(t, err)
	hash, err := wt.Commit("update "+name, &git.CommitOptions{Author: &object.Signature{Name: "tester", Email: "t@example.com", When: time.Now()}})
	require.NoError(t, err)
	return hash
}

func (f *remoteFixture) push(t *testing.T) {
	t.Helper()
	err := f.repo.Push(&git.PushOptions{RemoteName: "origin", RefSpecs: []ggitcfg.RefSpec{
		"refs/heads/*:refs/heads/*",
		"refs/tags/*:refs/tags/*",
	}})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		require.NoError(t, err)
	}
}

func TestCloneRepository(t *testing.T) {
	remote := newRemote(t)
	want := remote.commit(t, "references/sdk.md", "# sdk")
	remote.push(t)

	root := t.TempDir()
	client := NewClient(root)
	repo := config.Repository{Name: "substra", URL: remote.bare, Branch: "master", Path: "substra"}

	res, err := client.CloneRepository(context.Background(), repo)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "substra"), res.Path)
	assert.Equal(t, want.String(), res.Commit)
	assert.Equal(t, "master", res.Branch)
	assert.FileExists(t, filepath.Join(root, "substra", "references", "sdk.md"))

	head, err := Head(res.Path)
	require.NoError(t, err)
	assert.Equal(t, want.String(), head)
}

func TestCloneReplacesExistingDirectory(t *testing.T) {
	remote := newRemote(t)
	remote.commit(t, "a.txt", "A")
	remote.push(t)

	root := t.TempDir()
	stale := filepath.Join(root, "repo", "stale.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o750))
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o600))

	_, err := NewClient(root).CloneRepository(context.Background(), config.Repository{Name: "repo", URL: remote.bare, Branch: "master"})
	require.NoError(t, err)
	assert.NoFileExists(t, stale)
}

func TestUpdateRepositoryResetsToRemote(t *testing.T) {
	remote := newRemote(t)
	remote.commit(t, "a.txt", "A")
	remote.push(t)

	root := t.TempDir()
	client := NewClient(root)
	repo := config.Repository{Name: "repo", URL: remote.bare, Branch: "master"}

	first, err := client.Checkout(context.Background(), repo, true)
	require.NoError(t, err)
	assert.False(t, first.Updated, "missing working copy is cloned")

	// local edit must not survive
	require.NoError(t, os.WriteFile(filepath.Join(first.Path, "a.txt"), []byte("local"), 0o600))
	want := remote.commit(t, "b.txt", "B")
	remote.push(t)

	second, err := client.Checkout(context.Background(), repo, true)
	require.NoError(t, err)
	assert.True(t, second.Updated)
	assert.Equal(t, want.String(), second.Commit)

	data, err := os.ReadFile(filepath.Join(second.Path, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "A", string(data))
	assert.FileExists(t, filepath.Join(second.Path, "b.txt"))
}

func TestPinnedRef(t *testing.T) {
	remote := newRemote(t)
	pinned := remote.commit(t, "a.txt", "A")
	_, err := remote.repo.CreateTag("v1.0.0", pinned, nil)
	require.NoError(t, err)
	remote.commit(t, "b.txt", "B")
	remote.push(t)

	root := t.TempDir()
	repo := config.Repository{Name: "tools", URL: remote.bare, Ref: "v1.0.0"}

	res, err := NewClient(root).CloneRepository(context.Background(), repo)
	require.NoError(t, err)
	assert.Equal(t, pinned.String(), res.Commit)
	assert.Empty(t, res.Branch)
	assert.NoFileExists(t, filepath.Join(res.Path, "b.txt"))

	res, err = NewClient(root).UpdateRepository(context.Background(), repo)
	require.NoError(t, err)
	assert.Equal(t, pinned.String(), res.Commit)
}

func TestCloneMissingRemote(t *testing.T) {
	root := t.TempDir()
	repo := config.Repository{Name: "absent", URL: filepath.Join(root, "absent.git"), Branch: "main"}
	client := NewClient(root).WithBuildConfig(config.BuildConfig{MaxRetries: 2, RetryInitialDelay: "1ms", RetryMaxDelay: "2ms"})

	_, err := client.CloneRepository(context.Background(), repo)
	require.Error(t, err)
	assert.True(t, derrors.IsCategory(ToPipelineError(repo.Name, err), derrors.CategoryGit))
}

func TestPathResolution(t *testing.T) {
	c := NewClient("/work")
	assert.Equal(t, filepath.FromSlash("/work/substra"), c.Path(config.Repository{Name: "substra"}))
	assert.Equal(t, filepath.FromSlash("/work/vendor/tools"), c.Path(config.Repository{Name: "tools", Path: "vendor/tools"}))
}
