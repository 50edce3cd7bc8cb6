package packaging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/substra/docpipeline/internal/config"
	derrors "github.com/substra/docpipeline/internal/errors"
	"github.com/substra/docpipeline/internal/fsutil"
	"github.com/substra/docpipeline/internal/logfields"
	"github.com/substra/docpipeline/internal/pipeline"
	"github.com/substra/docpipeline/internal/python"
	"github.com/substra/docpipeline/internal/sphinx"
)

type stages struct {
	req       Request
	cfg       *config.Config
	installer *python.Installer
	renderer  sphinx.Renderer
}

func (s *stages) defs() []pipeline.StageDef {
	return pipeline.New().
		AddIf(!s.req.SkipBuild, pipeline.StageBuildHTML, s.buildHTML).
		Add(pipeline.StageUninstallRequirements, s.uninstallRequirements).
		Add(pipeline.StageRelocateNotebooks, s.relocateNotebooks).
		Add(pipeline.StageMoveAssets, s.moveAssets).
		Add(pipeline.StageRemoveDotfiles, s.removeDotfiles).
		Add(pipeline.StagePruneRoot, s.pruneRoot).
		Add(pipeline.StagePruneDocs, s.pruneDocs).
		Build()
}

func (s *stages) buildHTML(ctx context.Context, _ *pipeline.State) error {
	if err := s.renderer.Run(ctx, sphinx.TargetHTML); err != nil {
		return err
	}
	if err := fsutil.RequireDir(s.cfg.HTMLDir()); err != nil {
		return derrors.SphinxFailed(sphinx.TargetHTML, fmt.Errorf("no HTML output at %s: %w", s.cfg.HTMLDir(), err))
	}
	return nil
}

func (s *stages) uninstallRequirements(ctx context.Context, st *pipeline.State) error {
	rel := s.cfg.Packaging.UninstallRequirements
	manifest := s.cfg.Abs(rel)
	if _, err := os.Stat(manifest); err != nil {
		return derrors.PathMissing(manifest, err)
	}
	if err := s.installer.UninstallRequirements(ctx, rel); err != nil {
		return err
	}
	if !s.cfg.Packaging.ShouldVerifyUninstall() {
		return nil
	}
	reqs, err := python.ParseFile(manifest)
	if err != nil {
		return derrors.Wrap(err, derrors.CategoryPython, derrors.SeverityFatal, "cannot read uninstall manifest").
			WithContext("path", manifest)
	}
	names := python.Names(reqs)
	st.Logger.Debug("Verifying uninstall", logfields.Path(manifest), logfields.Name(strings.Join(names, ",")))
	return s.installer.VerifyAbsent(ctx, names)
}

func (s *stages) relocateNotebooks(_ context.Context, st *pipeline.State) error {
	src := s.cfg.Abs(s.cfg.Packaging.NotebooksDir)
	dst := s.cfg.Abs(s.cfg.Packaging.NotebooksDest)
	if err := fsutil.RequireDir(src); err != nil {
		return derrors.PathMissing(src, err)
	}
	if err := fsutil.Move(src, dst); err != nil {
		return derrors.FileSystemError("move", dst, err)
	}
	st.Logger.Info("Relocated notebooks", logfields.Path(src), logfields.Target(dst))
	return nil
}

// moveAssets checks every source before moving anything, so a missing asset
// leaves the tree untouched and no later deletion runs.
func (s *stages) moveAssets(_ context.Context, st *pipeline.State) error {
	type move struct{ src, dst string }
	moves := make([]move, 0, len(s.cfg.Packaging.Assets))
	for _, a := range s.cfg.Packaging.Assets {
		src, dst := s.cfg.Resolve(a)
		if _, err := os.Stat(src); err != nil {
			return derrors.PathMissing(src, err)
		}
		moves = append(moves, move{src, dst})
	}
	for _, m := range moves {
		if err := fsutil.Move(m.src, m.dst); err != nil {
			return derrors.FileSystemError("move", m.dst, err)
		}
		st.Logger.Info("Moved assets", logfields.Path(m.src), logfields.Target(m.dst))
	}
	return nil
}

func (s *stages) removeDotfiles(_ context.Context, st *pipeline.State) error {
	removed, err := fsutil.RemoveDotEntries(s.cfg.Root)
	st.Report.Removed = append(st.Report.Removed, removed...)
	if err != nil {
		return derrors.FileSystemError("remove", s.cfg.Root, err)
	}
	return nil
}

func (s *stages) pruneRoot(_ context.Context, st *pipeline.State) error {
	keep := []string{s.cfg.Packaging.NotebooksDest, topLevel(s.cfg.Sphinx.DocsDir)}
	removed, err := fsutil.RemoveAllExcept(s.cfg.Root, keep)
	st.Report.Removed = append(st.Report.Removed, removed...)
	if err != nil {
		return derrors.FileSystemError("remove", s.cfg.Root, err)
	}
	return nil
}

func (s *stages) pruneDocs(_ context.Context, st *pipeline.State) error {
	docs := s.cfg.DocsDir()
	removed, err := fsutil.RemoveAllExcept(docs, s.cfg.Packaging.DocsKeep)
	for _, r := range removed {
		st.Report.Removed = append(st.Report.Removed, filepath.ToSlash(filepath.Join(s.cfg.Sphinx.DocsDir, r)))
	}
	if err != nil {
		return derrors.FileSystemError("remove", docs, err)
	}
	return s.checkLayout()
}

// checkLayout asserts the bundle contains nothing beyond the kept entries.
func (s *stages) checkLayout() error {
	check := func(dir string, allowed []string) error {
		names, err := fsutil.Entries(dir)
		if err != nil {
			return derrors.FileSystemError("list", dir, err)
		}
		set := make(map[string]bool, len(allowed))
		for _, a := range allowed {
			set[a] = true
		}
		for _, n := range names {
			if !set[n] {
				return derrors.New(derrors.CategoryFileSystem, derrors.SeverityFatal, "unexpected entry left in bundle").
					WithContext("path", filepath.Join(dir, n))
			}
		}
		return nil
	}
	if err := check(s.cfg.Root, []string{s.cfg.Packaging.NotebooksDest, topLevel(s.cfg.Sphinx.DocsDir)}); err != nil {
		return err
	}
	return check(s.cfg.DocsDir(), s.cfg.Packaging.DocsKeep)
}

// topLevel returns the first element of a slash-separated relative path.
func topLevel(p string) string {
	p = strings.TrimPrefix(filepath.ToSlash(filepath.Clean(p)), "./")
	if i := strings.Index(p, "/"); i >= 0 {
		return p[:i]
	}
	return p
}
