package build

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/substra/docpipeline/internal/config"
	derrors "github.com/substra/docpipeline/internal/errors"
	"github.com/substra/docpipeline/internal/fsutil"
	"github.com/substra/docpipeline/internal/git"
	"github.com/substra/docpipeline/internal/linkverify"
	"github.com/substra/docpipeline/internal/logfields"
	"github.com/substra/docpipeline/internal/pipeline"
	"github.com/substra/docpipeline/internal/python"
	"github.com/substra/docpipeline/internal/sphinx"
)

type stages struct {
	req       Request
	cfg       *config.Config
	git       *git.Client
	installer *python.Installer
	renderer  sphinx.Renderer
}

func (s *stages) defs() []pipeline.StageDef {
	p := pipeline.New().
		Add(pipeline.StageCheckoutSelf, s.checkoutSelf).
		Add(pipeline.StageCheckoutRepos, s.checkoutRepos).
		AddIf(!s.req.SkipInstall, pipeline.StageInstallPackages, s.installPackages).
		Add(pipeline.StageCopyReferences, s.copyReferences).
		AddIf(!s.req.SkipInstall, pipeline.StageInstallRequirements, s.installRequirements)
	for _, target := range s.cfg.Sphinx.Targets {
		p.Add(targetStage(target), s.render(target))
	}
	p.AddIf(s.cfg.Sphinx.VerifyLinks, pipeline.StageVerifyLinks, s.verifyLinks)
	return p.Build()
}

// targetStage names the stage running a generator target.
func targetStage(target string) pipeline.StageName {
	switch target {
	case sphinx.TargetClean:
		return pipeline.StageSphinxClean
	case sphinx.TargetHTML:
		return pipeline.StageSphinxHTML
	default:
		return pipeline.StageName("sphinx_" + target)
	}
}

// checkoutSelf verifies the working tree the pipeline runs in.
func (s *stages) checkoutSelf(_ context.Context, st *pipeline.State) error {
	if err := fsutil.RequireDir(s.cfg.Root); err != nil {
		return derrors.PathMissing(s.cfg.Root, err)
	}
	if err := fsutil.RequireDir(s.cfg.DocsDir()); err != nil {
		return derrors.PathMissing(s.cfg.DocsDir(), err)
	}
	if head, err := git.Head(s.cfg.Root); err == nil {
		st.Report.Checkouts = append(st.Report.Checkouts, pipeline.Checkout{Name: ".", Path: s.cfg.Root, Commit: head})
	}
	return nil
}

func (s *stages) checkoutRepos(ctx context.Context, st *pipeline.State) error {
	incremental := s.req.Incremental || s.cfg.Build.Incremental
	for _, repo := range s.cfg.Repositories {
		res, err := s.git.Checkout(ctx, repo, incremental)
		if err != nil {
			return git.ToPipelineError(repo.Name, err)
		}
		st.Report.Checkouts = append(st.Report.Checkouts, pipeline.Checkout{Name: res.Name, Path: res.Path, Commit: res.Commit, Branch: res.Branch})
	}
	return nil
}

func (s *stages) installPackages(ctx context.Context, st *pipeline.State) error {
	for _, repo := range s.cfg.Repositories {
		st.Logger.Debug("Installing repository", logfields.Repository(repo.Name), logfields.Path(repo.Path))
		if err := s.installer.InstallPath(ctx, repo.Path, repo.Extras, repo.IsEditable()); err != nil {
			return err
		}
	}
	return nil
}

// copyReferences replaces each destination with its source tree, so a
// re-run converges on the same docs source.
func (s *stages) copyReferences(_ context.Context, st *pipeline.State) error {
	for _, ref := range s.cfg.References {
		src, dst := s.cfg.Resolve(ref)
		if _, err := os.Stat(src); err != nil {
			return derrors.PathMissing(src, err)
		}
		if err := fsutil.CopyTree(src, dst); err != nil {
			return derrors.FileSystemError("copy", dst, err)
		}
		st.Logger.Info("Copied reference tree", logfields.Path(src), logfields.Target(dst))
	}
	if digest, err := fsutil.TreeDigest(s.cfg.SourceDir()); err == nil {
		st.Report.SourceDigest = digest
	} else if !errors.Is(err, fs.ErrNotExist) {
		st.Logger.Warn("Could not digest docs source", logfields.Error(err))
	}
	return nil
}

func (s *stages) installRequirements(ctx context.Context, st *pipeline.State) error {
	manifest := s.cfg.Abs(s.cfg.Requirements)
	if _, err := os.Stat(manifest); err != nil {
		return derrors.PathMissing(manifest, err)
	}
	if reqs, err := python.ParseFile(manifest); err == nil {
		st.Logger.Debug("Documentation requirements", logfields.Path(manifest), logfields.Name(fmt.Sprint(python.Names(reqs))))
	} else {
		st.Logger.Warn("Could not parse requirements manifest", logfields.Path(manifest), logfields.Error(err))
	}
	return s.installer.InstallRequirements(ctx, s.cfg.Requirements)
}

func (s *stages) render(target string) pipeline.Stage {
	return func(ctx context.Context, _ *pipeline.State) error {
		if err := s.renderer.Run(ctx, target); err != nil {
			return err
		}
		if target != sphinx.TargetHTML {
			return nil
		}
		if err := fsutil.RequireDir(s.cfg.HTMLDir()); err != nil {
			return derrors.SphinxFailed(target, fmt.Errorf("no HTML output at %s: %w", s.cfg.HTMLDir(), err))
		}
		return nil
	}
}

func (s *stages) verifyLinks(ctx context.Context, st *pipeline.State) error {
	res, err := linkverify.Check(ctx, s.cfg.HTMLDir())
	if err != nil {
		return err
	}
	st.Report.BrokenLinks = len(res.Broken)
	for _, b := range res.Broken {
		st.Logger.Warn("Broken internal link", logfields.Path(b.Page), logfields.URL(b.URL))
	}
	if len(res.Broken) == 0 {
		return nil
	}
	err = derrors.New(derrors.CategoryBuild, derrors.SeverityWarning, fmt.Sprintf("%d broken internal links", len(res.Broken))).
		WithContext("html_dir", s.cfg.HTMLDir())
	if s.cfg.Sphinx.FailOnBrokenLinks {
		return pipeline.NewFatalStageError(pipeline.StageVerifyLinks, err)
	}
	return pipeline.NewWarnStageError(pipeline.StageVerifyLinks, err)
}
