package commands

import (
	"fmt"
	"log/slog"

	"github.com/substra/docpipeline/internal/command"
	"github.com/substra/docpipeline/internal/logfields"
	"github.com/substra/docpipeline/internal/packaging"
)

// PackageCmd implements the 'package' command.
type PackageCmd struct {
	Root      string `help:"Working tree root (overrides configuration)"`
	SkipBuild bool   `name:"skip-build" help:"Reuse the existing HTML output instead of rebuilding it"`
}

func (p *PackageCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root, p.Root)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	rec := newRecorder(cfg)
	slog.Info("Packaging Binder bundle", logfields.Path(cfg.Root))
	res, err := packaging.NewService(command.NewExecRunner(rec), rec).
		Run(ctx, packaging.Request{Config: cfg, SkipBuild: p.SkipBuild})
	persist(cfg, res.Report, rec)
	_, _ = fmt.Fprintln(g.out(), res.Report.Summary())
	if err != nil {
		return err
	}
	slog.Info("Bundle ready", slog.Int("removed", len(res.Report.Removed)))
	return nil
}
