package commands

import (
	"fmt"
	"log/slog"

	"github.com/substra/docpipeline/internal/build"
	"github.com/substra/docpipeline/internal/command"
	"github.com/substra/docpipeline/internal/logfields"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Incremental bool   `short:"i" help:"Update existing checkouts instead of recloning them"`
	SkipInstall bool   `name:"skip-install" help:"Skip pip installation of packages and requirements"`
	Root        string `help:"Working tree root (overrides configuration)"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root, b.Root)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	rec := newRecorder(cfg)
	req := build.Request{
		Config:      cfg,
		Incremental: b.Incremental || cfg.Build.Incremental,
		SkipInstall: b.SkipInstall,
	}
	slog.Info("Starting documentation build",
		logfields.Path(cfg.Root),
		slog.Int("repositories", len(cfg.Repositories)),
		slog.Bool("incremental", req.Incremental))

	res, err := build.NewService(command.NewExecRunner(rec), rec).Run(ctx, req)
	persist(cfg, res.Report, rec)
	_, _ = fmt.Fprintln(g.out(), res.Report.Summary())
	if err != nil {
		return err
	}
	slog.Info("Documentation built", logfields.Path(res.HTMLDir), logfields.Duration(res.Duration))
	return nil
}
