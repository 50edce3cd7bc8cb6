// Package packaging turns a built documentation checkout into the Binder
// bundle: notebooks and their assets at the top level, documentation
// sources under docs/src, everything else removed.
package packaging

import (
	"context"

	"github.com/substra/docpipeline/internal/command"
	"github.com/substra/docpipeline/internal/config"
	"github.com/substra/docpipeline/internal/metrics"
	"github.com/substra/docpipeline/internal/pipeline"
	"github.com/substra/docpipeline/internal/python"
	"github.com/substra/docpipeline/internal/sphinx"
)

// Request contains the inputs of one packaging run.
type Request struct {
	Config *config.Config

	// SkipBuild reuses existing HTML output instead of running the html target.
	SkipBuild bool
}

// Result contains the outcome of a packaging run.
type Result struct {
	Outcome pipeline.Outcome
	Report  *pipeline.Report
}

// Service executes packaging runs.
type Service struct {
	runner   command.Runner
	recorder metrics.Recorder
	renderer sphinx.Renderer
}

// NewService creates a packaging service running external tools through runner.
func NewService(runner command.Runner, recorder metrics.Recorder) *Service {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Service{runner: runner, recorder: recorder}
}

// WithRenderer overrides the generator front-end selected by configuration.
func (s *Service) WithRenderer(r sphinx.Renderer) *Service {
	if r != nil {
		s.renderer = r
	}
	return s
}

// Stages returns the ordered stage plan for req.
func (s *Service) Stages(req Request) []pipeline.StageDef {
	renderer := s.renderer
	if renderer == nil {
		renderer = sphinx.New(req.Config, s.runner)
	}
	st := &stages{
		req:       req,
		cfg:       req.Config,
		installer: python.NewInstaller(req.Config.Python, req.Config.Root, s.runner),
		renderer:  renderer,
	}
	return st.defs()
}

// Run executes the packaging pipeline. Result is always populated.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	st := pipeline.NewState(pipeline.KindPackage, req.Config, s.recorder)
	err := pipeline.Run(ctx, st, s.Stages(req))
	return &Result{Outcome: st.Report.Outcome, Report: st.Report}, err
}
