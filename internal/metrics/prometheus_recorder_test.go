package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorderCounts(t *testing.T) {
	r := NewPrometheusRecorder(nil)
	r.IncStageResult("build", "sphinx_html", ResultSuccess)
	r.IncStageResult("build", "sphinx_html", ResultSuccess)
	r.IncStageResult("package", "move_assets", ResultFatal)
	r.IncBuildOutcome("build", "success")
	r.ObserveStageDuration("build", "sphinx_html", 2*time.Second)
	r.ObserveCheckoutDuration("substra", time.Second, true)
	r.ObserveCommandDuration("pip", time.Second, false)
	r.ObserveBuildDuration("build", time.Minute)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.stageResults.WithLabelValues("build", "sphinx_html", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.stageResults.WithLabelValues("package", "move_assets", "fatal")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.buildOutcome.WithLabelValues("build", "success")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.checkoutSeconds))
}

func TestWriteTextfile(t *testing.T) {
	r := NewPrometheusRecorder(nil)
	r.IncBuildOutcome("package", "failed")

	path := filepath.Join(t.TempDir(), "textfile", "docpipeline.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `docpipeline_run_outcomes_total{outcome="failed",pipeline="package"} 1`), string(data))
}

func TestNoopRecorderSatisfiesInterface(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.IncStageResult("build", "x", ResultWarning)
	r.ObserveBuildDuration("build", time.Second)
}
