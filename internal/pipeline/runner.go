package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/substra/docpipeline/internal/logfields"
	"github.com/substra/docpipeline/internal/metrics"
)

// Run executes defs in order, recording timing and results in st.Report.
// The first fatal or canceled stage aborts the run; warnings are recorded
// and the run continues. The returned error is the aborting *StageError.
func Run(ctx context.Context, st *State, defs []StageDef) error {
	kind := string(st.Report.Kind)
	defer func() {
		st.Report.DeriveOutcome()
		st.Report.Finish()
		st.Recorder.ObserveBuildDuration(kind, st.Report.Duration())
		st.Recorder.IncBuildOutcome(kind, string(st.Report.Outcome))
	}()

	for _, def := range defs {
		if err := ctx.Err(); err != nil {
			se := NewCanceledStageError(def.Name, err)
			st.Report.RecordStage(def.Name, StageResultCanceled, 0)
			st.Report.AddIssue(def.Name, SeverityError, se.Error())
			st.Recorder.IncStageResult(kind, string(def.Name), metrics.ResultCanceled)
			st.Logger.Warn("Run canceled", logfields.Stage(string(def.Name)))
			return se
		}

		st.Logger.Info("Stage started", logfields.Stage(string(def.Name)))
		t0 := time.Now()
		err := def.Fn(ctx, st)
		dur := time.Since(t0)
		st.Recorder.ObserveStageDuration(kind, string(def.Name), dur)

		se := classify(ctx, def.Name, err)
		res := resultFor(se)
		st.Report.RecordStage(def.Name, res, dur)
		st.Recorder.IncStageResult(kind, string(def.Name), metrics.ResultLabel(res))

		if se == nil {
			st.Logger.Info("Stage finished", logfields.Stage(string(def.Name)), logfields.Duration(dur))
			continue
		}
		if se.Kind == StageErrorWarning {
			st.Report.AddIssue(def.Name, SeverityWarning, se.Err.Error())
			st.Logger.Warn("Stage finished with warnings", logfields.Stage(string(def.Name)), logfields.Duration(dur), logfields.Error(se.Err))
			continue
		}
		st.Report.AddIssue(def.Name, SeverityError, se.Err.Error())
		st.Logger.Error("Stage failed", logfields.Stage(string(def.Name)), logfields.Duration(dur), logfields.Error(se.Err))
		return se
	}
	return nil
}

// classify normalizes a stage's error. Foreign errors are fatal unless the
// context was canceled underneath them (a killed child reports a plain exit status).
func classify(ctx context.Context, name StageName, err error) *StageError {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return se
	}
	if ctx.Err() != nil {
		return NewCanceledStageError(name, err)
	}
	return NewFatalStageError(name, err)
}

func resultFor(se *StageError) StageResult {
	if se == nil {
		return StageResultSuccess
	}
	switch se.Kind {
	case StageErrorWarning:
		return StageResultWarning
	case StageErrorCanceled:
		return StageResultCanceled
	default:
		return StageResultFatal
	}
}
