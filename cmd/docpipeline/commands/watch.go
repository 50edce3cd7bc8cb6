package commands

import (
	"context"
	"path/filepath"
	"time"

	"github.com/substra/docpipeline/internal/command"
	"github.com/substra/docpipeline/internal/sphinx"
	"github.com/substra/docpipeline/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Root      string        `help:"Working tree root (overrides configuration)"`
	Debounce  time.Duration `default:"300ms" help:"Quiet period before a rebuild starts"`
	NoInitial bool          `name:"no-initial" help:"Do not build once before watching"`
}

func (w *WatchCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root, w.Root)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	renderer := sphinx.New(cfg, command.NewExecRunner(nil))
	rebuild := func(ctx context.Context) error { return renderer.Run(ctx, sphinx.TargetHTML) }

	if !w.NoInitial {
		if err := rebuild(ctx); err != nil {
			return err
		}
	}
	return watch.New(rebuild, cfg.SourceDir()).
		Skip(filepath.Join(cfg.DocsDir(), cfg.Sphinx.BuildDir)).
		WithDebounce(w.Debounce).
		Run(ctx)
}
