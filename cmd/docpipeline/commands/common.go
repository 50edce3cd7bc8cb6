package commands

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/substra/docpipeline/internal/config"
	derrors "github.com/substra/docpipeline/internal/errors"
	"github.com/substra/docpipeline/internal/logfields"
	"github.com/substra/docpipeline/internal/metrics"
	"github.com/substra/docpipeline/internal/pipeline"
)

// Global is shared state bound into every command's Run method.
type Global struct {
	Logger *slog.Logger
	Out    io.Writer
}

func (g *Global) out() io.Writer {
	if g == nil || g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"docpipeline.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build   BuildCmd   `cmd:"" help:"Check out, install and build the documentation"`
	Package PackageCmd `cmd:"" help:"Repackage a built checkout into the Binder notebook bundle"`
	Init    InitCmd    `cmd:"" help:"Write the default configuration file"`
	Plan    PlanCmd    `cmd:"" help:"Print the ordered stages of a run without executing them"`
	Watch   WatchCmd   `cmd:"" help:"Rebuild the HTML output whenever documentation sources change"`
	Verify  VerifyCmd  `cmd:"" help:"Check the built HTML for broken internal links"`
}

// AfterApply runs after flag parsing; it installs a logger before the
// configuration is known. loadConfig replaces it with the configured one.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	slog.SetDefault(config.LoggingConfig{}.NewLogger(os.Stderr, c.Verbose))
	return nil
}

// loadConfig reads the configuration (built-in defaults when the file is
// absent), applies a --root override and reconfigures logging.
func loadConfig(root *CLI, rootOverride string) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(root.Config)
	if err != nil {
		return nil, err
	}
	if rootOverride != "" {
		abs, err := filepath.Abs(rootOverride)
		if err != nil {
			return nil, derrors.ValidationFailed("root", err.Error())
		}
		cfg.Root = abs
		if err := config.ValidateConfig(cfg); err != nil {
			return nil, err
		}
	}
	slog.SetDefault(cfg.Logging.NewLogger(os.Stderr, root.Verbose))
	return cfg, nil
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// newRecorder returns a Prometheus recorder when a textfile export is
// configured and a no-op recorder otherwise.
func newRecorder(cfg *config.Config) metrics.Recorder {
	if cfg.Metrics.Textfile == "" {
		return metrics.NoopRecorder{}
	}
	return metrics.NewPrometheusRecorder(nil)
}

// persist writes the run report and the metrics textfile when configured.
// Failures are logged; they never change the run's outcome.
func persist(cfg *config.Config, report *pipeline.Report, rec metrics.Recorder) {
	if cfg.Report.Path != "" && report != nil {
		path := cfg.Abs(cfg.Report.Path)
		if err := report.Save(path); err != nil {
			slog.Warn("Failed to save run report", logfields.Path(path), logfields.Error(err))
		} else {
			slog.Debug("Run report saved", logfields.Path(path))
		}
	}
	if pr, ok := rec.(*metrics.PrometheusRecorder); ok {
		path := cfg.Abs(cfg.Metrics.Textfile)
		if err := pr.WriteTextfile(path); err != nil {
			slog.Warn("Failed to write metrics textfile", logfields.Path(path), logfields.Error(err))
		}
	}
}
