// Package build runs the CI documentation build: check out the sibling
// repositories, install them, copy their API references into the docs tree,
// install the documentation tooling and run the generator.
package build

import (
	"context"
	"io"
	"time"

	"github.com/substra/docpipeline/internal/command"
	"github.com/substra/docpipeline/internal/config"
	"github.com/substra/docpipeline/internal/git"
	"github.com/substra/docpipeline/internal/metrics"
	"github.com/substra/docpipeline/internal/pipeline"
	"github.com/substra/docpipeline/internal/python"
	"github.com/substra/docpipeline/internal/sphinx"
)

// Request contains the inputs of one build.
type Request struct {
	Config *config.Config

	// Incremental updates existing checkouts instead of recloning them.
	Incremental bool

	// SkipInstall omits the editable package installation.
	SkipInstall bool
}

// Status represents the outcome of a build execution.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusWarning  Status = "warning"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
)

// IsSuccess returns true if the build produced its output.
func (s Status) IsSuccess() bool { return s == StatusSuccess || s == StatusWarning }

// Result contains the outcome of a build execution.
type Result struct {
	Status   Status
	Report   *pipeline.Report
	HTMLDir  string
	Duration time.Duration
}

// Service executes builds. Dependencies default to the real implementations.
type Service struct {
	runner   command.Runner
	recorder metrics.Recorder
	renderer sphinx.Renderer
	progress io.Writer
}

// NewService creates a build service running external tools through runner.
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

// WithGitProgress streams clone progress to w.
func (s *Service) WithGitProgress(w io.Writer) *Service { s.progress = w; return s }

// Stages returns the ordered stage plan for req without running it.
func (s *Service) Stages(req Request) []pipeline.StageDef {
	return s.newStages(req).defs()
}

// Run executes the build pipeline. The returned error is the aborting stage
// error; Result is always populated.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	st := pipeline.NewState(pipeline.KindBuild, req.Config, s.recorder)
	err := pipeline.Run(ctx, st, s.Stages(req))
	return &Result{
		Status:   statusFor(st.Report.Outcome),
		Report:   st.Report,
		HTMLDir:  req.Config.HTMLDir(),
		Duration: st.Report.Duration(),
	}, err
}

func (s *Service) newStages(req Request) *stages {
	cfg := req.Config
	renderer := s.renderer
	if renderer == nil {
		renderer = sphinx.New(cfg, s.runner)
	}
	return &stages{
		req:       req,
		cfg:       cfg,
		git:       git.NewClient(cfg.Root).WithBuildConfig(cfg.Build).WithRecorder(s.recorder).WithProgress(s.progress),
		installer: python.NewInstaller(cfg.Python, cfg.Root, s.runner),
		renderer:  renderer,
	}
}

func statusFor(o pipeline.Outcome) Status {
	switch o {
	case pipeline.OutcomeSuccess:
		return StatusSuccess
	case pipeline.OutcomeWarning:
		return StatusWarning
	case pipeline.OutcomeCanceled:
		return StatusCanceled
	default:
		return StatusFailed
	}
}
