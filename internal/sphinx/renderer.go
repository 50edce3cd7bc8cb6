// Package sphinx invokes the documentation generator's build targets.
package sphinx

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/substra/docpipeline/internal/command"
	"github.com/substra/docpipeline/internal/config"
	derrors "github.com/substra/docpipeline/internal/errors"
	"github.com/substra/docpipeline/internal/fsutil"
	"github.com/substra/docpipeline/internal/logfields"
)

// Common generator targets.
const (
	TargetClean = "clean"
	TargetHTML  = "html"
)

// Renderer runs one generator target (clean, html, linkcheck, ...) against
// the documentation directory.
type Renderer interface {
	Run(ctx context.Context, target string) error
}

// New returns the renderer selected by cfg.Sphinx.Mode.
func New(cfg *config.Config, runner command.Runner) Renderer {
	if cfg.Sphinx.Mode == config.SphinxModeSphinxBuild {
		return &SphinxBuildRenderer{
			Command:   cfg.Sphinx.SphinxBuild,
			DocsDir:   cfg.DocsDir(),
			SourceDir: cfg.Sphinx.SourceDir,
			BuildDir:  cfg.Sphinx.BuildDir,
			Runner:    runner,
		}
	}
	return &MakeRenderer{Command: cfg.Sphinx.MakeCommand, DocsDir: cfg.DocsDir(), Runner: runner}
}

// MakeRenderer runs `make <target>` inside the docs directory, relying on
// the Sphinx-generated Makefile.
type MakeRenderer struct {
	Command string
	DocsDir string
	Runner  command.Runner
}

func (m *MakeRenderer) Run(ctx context.Context, target string) error {
	if err := fsutil.RequireDir(m.DocsDir); err != nil {
		return derrors.PathMissing(m.DocsDir, err)
	}
	name := m.Command
	if name == "" {
		name = "make"
	}
	slog.Debug("MakeRenderer invoking target", logfields.Target(target), logfields.Path(m.DocsDir))
	if err := m.Runner.Run(ctx, command.Cmd{Name: name, Args: []string{target}, Dir: m.DocsDir}); err != nil {
		return derrors.SphinxFailed(target, err)
	}
	return nil
}

// SphinxBuildRenderer calls sphinx-build in make mode directly, for trees
// without a Makefile.
type SphinxBuildRenderer struct {
	Command   string
	DocsDir   string
	SourceDir string
	BuildDir  string
	Runner    command.Runner
}

func (s *SphinxBuildRenderer) Run(ctx context.Context, target string) error {
	if err := fsutil.RequireDir(filepath.Join(s.DocsDir, s.SourceDir)); err != nil {
		return derrors.PathMissing(filepath.Join(s.DocsDir, s.SourceDir), err)
	}
	name := s.Command
	if name == "" {
		name = "sphinx-build"
	}
	cmd := command.Cmd{Name: name, Args: []string{"-M", target, s.SourceDir, s.BuildDir}, Dir: s.DocsDir}
	if err := s.Runner.Run(ctx, cmd); err != nil {
		return derrors.SphinxFailed(target, err)
	}
	return nil
}

// NoopRenderer records targets without running anything; useful in tests
// and dry runs.
type NoopRenderer struct {
	mu      sync.Mutex
	targets []string
}

func (n *NoopRenderer) Run(ctx context.Context, target string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.targets = append(n.targets, target)
	slog.Debug("NoopRenderer skipping target", logfields.Target(target))
	return nil
}

// Targets returns the targets requested so far.
func (n *NoopRenderer) Targets() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.targets...)
}
