package commands

import (
	"fmt"
	"log/slog"

	derrors "github.com/substra/docpipeline/internal/errors"
	"github.com/substra/docpipeline/internal/linkverify"
	"github.com/substra/docpipeline/internal/logfields"
)

// VerifyCmd implements the 'verify' command.
type VerifyCmd struct {
	Root string `help:"Working tree root (overrides configuration)"`
	Dir  string `help:"HTML directory to check (defaults to the generator output)"`
}

func (v *VerifyCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root, v.Root)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	dir := cfg.HTMLDir()
	if v.Dir != "" {
		dir = cfg.Abs(v.Dir)
	}
	res, err := linkverify.Check(ctx, dir)
	if err != nil {
		return err
	}

	out := g.out()
	for _, b := range res.Broken {
		_, _ = fmt.Fprintf(out, "%s:%d: broken %s link %s\n", b.Page, b.Line, b.Tag, b.URL)
	}
	slog.Info("Link verification finished", logfields.Path(dir),
		slog.Int("pages", res.Pages), slog.Int("links", res.Links), slog.Int("broken", len(res.Broken)))
	if len(res.Broken) > 0 {
		return derrors.New(derrors.CategoryBuild, derrors.SeverityError,
			fmt.Sprintf("%d broken internal links", len(res.Broken))).WithContext("dir", dir)
	}
	return nil
}
