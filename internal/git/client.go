package git

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/substra/docpipeline/internal/config"
	"github.com/substra/docpipeline/internal/logfields"
	"github.com/substra/docpipeline/internal/metrics"
	"github.com/substra/docpipeline/internal/retry"
)

// Result describes one finished checkout.
type Result struct {
	Name    string
	Path    string
	Commit  string
	Branch  string // empty when a pinned ref is checked out detached
	Updated bool   // true when an existing working copy was reused
}

// Client handles Git operations below a root directory.
type Client struct {
	root     string
	buildCfg config.BuildConfig
	policy   retry.Policy
	recorder metrics.Recorder
	progress io.Writer
}

// NewClient creates a client placing checkouts under root.
func NewClient(root string) *Client {
	return &Client{root: root, policy: retry.DefaultPolicy(), recorder: metrics.NoopRecorder{}}
}

// WithBuildConfig attaches depth and retry settings (fluent helper).
func (c *Client) WithBuildConfig(cfg config.BuildConfig) *Client {
	c.buildCfg = cfg
	c.policy = retry.FromBuildConfig(cfg)
	return c
}

// WithRecorder attaches a metrics recorder.
func (c *Client) WithRecorder(r metrics.Recorder) *Client {
	if r != nil {
		c.recorder = r
	}
	return c
}

// WithProgress streams go-git's remote progress to w.
func (c *Client) WithProgress(w io.Writer) *Client { c.progress = w; return c }

// Path returns the checkout directory of repo.
func (c *Client) Path(repo config.Repository) string {
	p := repo.Path
	if p == "" {
		p = repo.Name
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(c.root, filepath.FromSlash(p))
}

// Checkout clones repo, or updates it in place when incremental is set and a
// working copy already exists.
func (c *Client) Checkout(ctx context.Context, repo config.Repository, incremental bool) (Result, error) {
	if incremental {
		return c.UpdateRepository(ctx, repo)
	}
	return c.CloneRepository(ctx, repo)
}

// CloneRepository replaces whatever is at the checkout path with a fresh clone.
func (c *Client) CloneRepository(ctx context.Context, repo config.Repository) (Result, error) {
	return c.withRetry(ctx, "clone", repo, func() (Result, error) { return c.cloneOnce(ctx, repo) })
}

// UpdateRepository fetches into an existing working copy, cloning when missing.
func (c *Client) UpdateRepository(ctx context.Context, repo config.Repository) (Result, error) {
	return c.withRetry(ctx, "update", repo, func() (Result, error) { return c.updateOnce(ctx, repo) })
}

func (c *Client) cloneOnce(ctx context.Context, repo config.Repository) (Result, error) {
	repoPath := c.Path(repo)
	slog.Debug("Cloning repository", logfields.URL(repo.URL), logfields.Name(repo.Name), slog.String("branch", repo.Branch), logfields.Path(repoPath))
	if err := os.RemoveAll(repoPath); err != nil {
		return Result{}, fmt.Errorf("failed to remove existing directory: %w", err)
	}

	opts := &git.CloneOptions{URL: repo.URL, Progress: c.progress}
	if repo.Ref == "" && repo.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(repo.Branch)
		opts.SingleBranch = true
	}
	if repo.Ref != "" {
		opts.Tags = git.AllTags
	}
	if c.buildCfg.ShallowDepth > 0 && repo.Ref == "" {
		opts.Depth = c.buildCfg.ShallowDepth
	}
	auth, err := getAuthentication(repo.Auth)
	if err != nil {
		return Result{}, &AuthError{Op: "clone", URL: repo.URL, Err: err}
	}
	opts.Auth = auth

	repository, err := git.PlainCloneContext(ctx, repoPath, false, opts)
	if err != nil {
		return Result{}, classifyCloneError(repo.URL, err)
	}
	res := Result{Name: repo.Name, Path: repoPath, Branch: repo.Branch}
	if repo.Ref != "" {
		if err := checkoutRef(repository, repo.Ref); err != nil {
			return Result{}, err
		}
		res.Branch = ""
	}
	if ref, herr := repository.Head(); herr == nil {
		res.Commit = ref.Hash().String()
		if res.Branch == "" && ref.Name().IsBranch() && repo.Ref == "" {
			res.Branch = ref.Name().Short()
		}
	}
	slog.Info("Repository cloned successfully", logfields.Name(repo.Name), logfields.URL(repo.URL), logfields.Commit(shortHash(res.Commit)), logfields.Path(repoPath))
	return res, nil
}

func (c *Client) updateOnce(ctx context.Context, repo config.Repository) (Result, error) {
	repoPath := c.Path(repo)
	if _, err := os.Stat(filepath.Join(repoPath, ".git")); err != nil {
		slog.Debug("Repository missing, cloning", logfields.Name(repo.Name))
		return c.cloneOnce(ctx, repo)
	}
	return c.updateExistingRepo(ctx, repoPath, repo)
}

// checkoutRef detaches the worktree at a tag, branch or commit.
func checkoutRef(repository *git.Repository, ref string) error {
	hash, err := repository.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return &NotFoundError{Op: "checkout", URL: ref, Err: fmt.Errorf("resolve ref %q: %w", ref, err)}
	}
	wt, err := repository.Worktree()
	if err != nil {
		return fmt.Errorf("worktree: %w", err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{Hash: *hash, Force: true}); err != nil {
		return fmt.Errorf("checkout %s: %w", ref, err)
	}
	return nil
}

// Head returns the commit checked out at path.
func Head(path string) (string, error) {
	repository, err := git.PlainOpen(path)
	if err != nil {
		return "", fmt.Errorf("open repo: %w", err)
	}
	ref, err := repository.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return "", fmt.Errorf("repository at %s has no commits: %w", path, err)
		}
		return "", err
	}
	return ref.Hash().String(), nil
}

func (c *Client) observe(repo config.Repository, start time.Time, err error) {
	c.recorder.ObserveCheckoutDuration(repo.Name, time.Since(start), err == nil)
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}
