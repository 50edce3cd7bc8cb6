package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-git/go-git/v5"
	ggitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/substra/docpipeline/internal/config"
	"github.com/substra/docpipeline/internal/logfields"
)

func (c *Client) updateExistingRepo(ctx context.Context, repoPath string, repo config.Repository) (Result, error) {
	repository, err := git.PlainOpen(repoPath)
	if err != nil {
		return Result{}, fmt.Errorf("open repo: %w", err)
	}
	slog.Info("Updating repository", logfields.Name(repo.Name), logfields.Path(repoPath))

	// 1. Fetch remote refs
	if err := c.fetchOrigin(ctx, repository, repo); err != nil {
		return Result{}, classifyFetchError(repo.URL, err)
	}

	// 2. Pinned refs are checked out detached
	if repo.Ref != "" {
		if err := checkoutRef(repository, repo.Ref); err != nil {
			return Result{}, err
		}
		head, _ := repository.Head()
		res := Result{Name: repo.Name, Path: repoPath, Updated: true}
		if head != nil {
			res.Commit = head.Hash().String()
		}
		slog.Info("Repository pinned", logfields.Name(repo.Name), slog.String("ref", repo.Ref), logfields.Commit(shortHash(res.Commit)))
		return res, nil
	}

	// 3. Resolve target branch, check it out and reset to the remote tip
	branch, err := resolveTargetBranch(repository, repo)
	if err != nil {
		return Result{}, err
	}
	remoteRef, err := repository.Reference(plumbing.NewRemoteReferenceName("origin", branch), true)
	if err != nil {
		return Result{}, &NotFoundError{Op: "update", URL: repo.URL, Err: fmt.Errorf("remote branch %s: %w", branch, err)}
	}
	wt, err := repository.Worktree()
	if err != nil {
		return Result{}, fmt.Errorf("worktree: %w", err)
	}
	localBranch := plumbing.NewBranchReferenceName(branch)
	if _, lerr := repository.Reference(localBranch, true); lerr != nil {
		if err := repository.Storer.SetReference(plumbing.NewHashReference(localBranch, remoteRef.Hash())); err != nil {
			return Result{}, fmt.Errorf("create local branch: %w", err)
		}
	}
	if err := wt.Checkout(&git.CheckoutOptions{Branch: localBranch, Force: true}); err != nil {
		return Result{}, fmt.Errorf("checkout branch: %w", err)
	}

	before, _ := repository.Head()
	if err := wt.Reset(&git.ResetOptions{Commit: remoteRef.Hash(), Mode: git.HardReset}); err != nil {
		return Result{}, fmt.Errorf("hard reset: %w", err)
	}
	commit := remoteRef.Hash().String()
	if before != nil && before.Hash() == remoteRef.Hash() {
		slog.Info("Repository already up-to-date", logfields.Name(repo.Name), slog.String("branch", branch), logfields.Commit(shortHash(commit)))
	} else {
		slog.Info("Repository updated", logfields.Name(repo.Name), slog.String("branch", branch), logfields.Commit(shortHash(commit)))
	}
	return Result{Name: repo.Name, Path: repoPath, Commit: commit, Branch: branch, Updated: true}, nil
}

// fetchOrigin fetches all branches of origin, with tags when a ref is pinned.
func (c *Client) fetchOrigin(ctx context.Context, repository *git.Repository, repo config.Repository) error {
	opts := &git.FetchOptions{
		RemoteName: "origin",
		Tags:       git.NoTags,
		RefSpecs:   []ggitcfg.RefSpec{"+refs/heads/*:refs/remotes/origin/*"},
		Force:      true,
		Progress:   c.progress,
	}
	if repo.Ref != "" {
		opts.Tags = git.AllTags
	} else if c.buildCfg.ShallowDepth > 0 {
		opts.Depth = c.buildCfg.ShallowDepth
	}
	auth, err := getAuthentication(repo.Auth)
	if err != nil {
		return &AuthError{Op: "fetch", URL: repo.URL, Err: err}
	}
	opts.Auth = auth
	if err := repository.FetchContext(ctx, opts); err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("fetch: %w", err)
	}
	return nil
}

// resolveTargetBranch follows: configured branch, remote default branch, "main".
func resolveTargetBranch(repository *git.Repository, repo config.Repository) (string, error) {
	if repo.Branch != "" {
		return repo.Branch, nil
	}
	if def, err := resolveRemoteDefaultBranch(repository); err == nil && def != "" {
		return def, nil
	}
	if headRef, err := repository.Head(); err == nil && headRef.Name().IsBranch() {
		return headRef.Name().Short(), nil
	}
	return "main", nil
}

func resolveRemoteDefaultBranch(repository *git.Repository) (string, error) {
	ref, err := repository.Reference(plumbing.ReferenceName("refs/remotes/origin/HEAD"), false)
	if err != nil {
		return "", err
	}
	target := ref.Target()
	if target == "" {
		return "", fmt.Errorf("origin/HEAD target empty")
	}
	return strings.TrimPrefix(target.Short(), "origin/"), nil
}
