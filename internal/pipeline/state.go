package pipeline

import (
	"log/slog"

	"github.com/substra/docpipeline/internal/config"
	"github.com/substra/docpipeline/internal/logfields"
	"github.com/substra/docpipeline/internal/metrics"
)

// Kind names a pipeline; it labels metrics and reports.
type Kind string

const (
	KindBuild   Kind = "build"
	KindPackage Kind = "package"
)

// State is shared by the stages of one run.
type State struct {
	Config   *config.Config
	Report   *Report
	Recorder metrics.Recorder
	Logger   *slog.Logger
}

// NewState prepares a run of the given kind.
func NewState(kind Kind, cfg *config.Config, recorder metrics.Recorder) *State {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	report := NewReport(kind)
	return &State{
		Config:   cfg,
		Report:   report,
		Recorder: recorder,
		Logger:   slog.Default().With(logfields.BuildID(report.BuildID), logfields.Pipeline(string(kind))),
	}
}
