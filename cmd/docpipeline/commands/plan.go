package commands

import (
	"encoding/json"
	"fmt"

	"github.com/substra/docpipeline/internal/build"
	"github.com/substra/docpipeline/internal/command"
	derrors "github.com/substra/docpipeline/internal/errors"
	"github.com/substra/docpipeline/internal/packaging"
	"github.com/substra/docpipeline/internal/pipeline"
)

// PlanCmd implements the 'plan' command.
type PlanCmd struct {
	Kind        string `arg:"" optional:"" enum:"build,package" default:"build" help:"Pipeline to describe (build|package)"`
	Format      string `short:"f" enum:"text,json" default:"text" help:"Output format (text|json)"`
	SkipInstall bool   `name:"skip-install" help:"Plan a build without pip installation"`
	SkipBuild   bool   `name:"skip-build" help:"Plan packaging without the html build"`
}

type planStep struct {
	Index int    `json:"index"`
	Stage string `json:"stage"`
}

func (p *PlanCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root, "")
	if err != nil {
		return err
	}
	runner := command.NewExecRunner(nil)

	var defs []pipeline.StageDef
	switch p.Kind {
	case "package":
		defs = packaging.NewService(runner, nil).Stages(packaging.Request{Config: cfg, SkipBuild: p.SkipBuild})
	default:
		defs = build.NewService(runner, nil).Stages(build.Request{Config: cfg, SkipInstall: p.SkipInstall})
	}

	steps := make([]planStep, 0, len(defs))
	for i, name := range pipeline.Names(defs) {
		steps = append(steps, planStep{Index: i + 1, Stage: string(name)})
	}

	out := g.out()
	if p.Format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(steps); err != nil {
			return derrors.InternalError("encode plan", err)
		}
		return nil
	}
	for _, s := range steps {
		_, _ = fmt.Fprintf(out, "%2d. %s\n", s.Index, s.Stage)
	}
	return nil
}
