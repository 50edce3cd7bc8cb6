package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/substra/docpipeline/internal/config"
	"github.com/substra/docpipeline/internal/metrics"
)

func okStage(trace *[]StageName, name StageName) Stage {
	return func(context.Context, *State) error {
		*trace = append(*trace, name)
		return nil
	}
}

func TestRunExecutesInOrder(t *testing.T) {
	var trace []StageName
	defs := New().
		Add(StageCheckoutSelf, okStage(&trace, StageCheckoutSelf)).
		Add(StageCheckoutRepos, okStage(&trace, StageCheckoutRepos)).
		AddIf(false, StageVerifyLinks, okStage(&trace, StageVerifyLinks)).
		Add(StageSphinxHTML, okStage(&trace, StageSphinxHTML)).
		Build()

	st := NewState(KindBuild, &config.Config{}, nil)
	require.NoError(t, Run(context.Background(), st, defs))

	assert.Equal(t, []StageName{StageCheckoutSelf, StageCheckoutRepos, StageSphinxHTML}, trace)
	assert.Equal(t, OutcomeSuccess, st.Report.Outcome)
	assert.Len(t, st.Report.Stages, 3)
	assert.False(t, st.Report.End.IsZero())
}

func TestRunAbortsOnFirstFailure(t *testing.T) {
	var trace []StageName
	boom := errors.New("exit status 1")
	defs := New().
		Add(StageInstallPackages, okStage(&trace, StageInstallPackages)).
		Add(StageCopyReferences, func(context.Context, *State) error { return boom }).
		Add(StageInstallRequirements, okStage(&trace, StageInstallRequirements)).
		Build()

	st := NewState(KindBuild, &config.Config{}, nil)
	err := Run(context.Background(), st, defs)
	require.Error(t, err)

	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StageCopyReferences, se.Stage)
	assert.Equal(t, StageErrorFatal, se.Kind)
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, []StageName{StageInstallPackages}, trace, "later stages must not run")
	assert.Equal(t, OutcomeFailed, st.Report.Outcome)
	res, ok := st.Report.StageResult(StageInstallRequirements)
	assert.False(t, ok)
	assert.Empty(t, res)
	require.Len(t, st.Report.Issues, 1)
	assert.Equal(t, SeverityError, st.Report.Issues[0].Severity)
}

func TestRunContinuesAfterWarning(t *testing.T) {
	var trace []StageName
	defs := New().
		Add(StageSphinxHTML, okStage(&trace, StageSphinxHTML)).
		Add(StageVerifyLinks, func(context.Context, *State) error {
			return NewWarnStageError(StageVerifyLinks, errors.New("2 broken links"))
		}).
		Add(StagePruneDocs, okStage(&trace, StagePruneDocs)).
		Build()

	st := NewState(KindBuild, &config.Config{}, nil)
	require.NoError(t, Run(context.Background(), st, defs))
	assert.Equal(t, []StageName{StageSphinxHTML, StagePruneDocs}, trace)
	assert.Equal(t, OutcomeWarning, st.Report.Outcome)
}

func TestRunStopsWhenCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var trace []StageName
	defs := New().
		Add(StageBuildHTML, func(context.Context, *State) error { cancel(); return nil }).
		Add(StageUninstallRequirements, okStage(&trace, StageUninstallRequirements)).
		Build()

	st := NewState(KindPackage, &config.Config{}, nil)
	err := Run(ctx, st, defs)

	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StageErrorCanceled, se.Kind)
	assert.Equal(t, StageUninstallRequirements, se.Stage)
	assert.Empty(t, trace)
	assert.Equal(t, OutcomeCanceled, st.Report.Outcome)
}

func TestRunEmitsMetrics(t *testing.T) {
	rec := metrics.NewPrometheusRecorder(nil)
	defs := New().Add(StageBuildHTML, func(context.Context, *State) error { return nil }).Build()

	st := NewState(KindPackage, &config.Config{}, rec)
	require.NoError(t, Run(context.Background(), st, defs))

	n, err := testutil.GatherAndCount(rec.Registry(), "docpipeline_stage_results_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = testutil.GatherAndCount(rec.Registry(), "docpipeline_run_outcomes_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReportSaveAndLoad(t *testing.T) {
	r := NewReport(KindBuild)
	r.RecordStage(StageCheckoutRepos, StageResultSuccess, 1500*time.Millisecond)
	r.Checkouts = append(r.Checkouts, Checkout{Name: "substra", Commit: "abc123"})
	r.DeriveOutcome()
	r.Finish()

	path := filepath.Join(t.TempDir(), "reports", "build.yaml")
	require.NoError(t, r.Save(path))

	loaded, err := LoadReport(path)
	require.NoError(t, err)
	assert.Equal(t, r.BuildID, loaded.BuildID)
	assert.Equal(t, OutcomeSuccess, loaded.Outcome)
	assert.Equal(t, 1500*time.Millisecond, loaded.Stages[0].Duration)
	assert.Equal(t, "abc123", loaded.Checkouts[0].Commit)
	assert.Contains(t, r.Summary(), "checkout_repos=success")
}

func TestPipelineBuildCopies(t *testing.T) {
	p := New().Add(StageBuildHTML, nil)
	defs := p.Build()
	p.Add(StagePruneDocs, nil)
	assert.Equal(t, []StageName{StageBuildHTML}, Names(defs))
}
