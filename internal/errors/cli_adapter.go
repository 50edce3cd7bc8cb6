package errors

import (
	"context"
	stdErrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// exitCoder is satisfied by *exec.ExitError and command.ExitError.
type exitCoder interface {
	ExitCode() int
}

// CLIErrorAdapter handles error presentation and exit code determination for CLI applications.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
	out     io.Writer
	exit    func(int)
}

// NewCLIErrorAdapter creates a new CLI error adapter.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{
		verbose: verbose,
		logger:  logger,
		out:     os.Stderr,
		exit:    os.Exit,
	}
}

// ExitCodeFor determines the appropriate exit code for an error. A failing
// child process keeps its own exit status, mirroring shell `set -e` behaviour.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}

	var ec exitCoder
	if stdErrors.As(err, &ec) {
		if code := ec.ExitCode(); code > 0 {
			return code
		}
	}

	if pe, ok := As(err); ok {
		return a.exitCodeFromCategory(pe.Category)
	}

	return 1
}

func (a *CLIErrorAdapter) exitCodeFromCategory(c ErrorCategory) int {
	switch c {
	case CategoryValidation:
		return 2 // Invalid usage
	case CategoryConfig:
		return 7 // Configuration error
	case CategoryAuth:
		return 5 // Auth error
	case CategoryNetwork, CategoryGit, CategoryPython:
		return 8 // External system error
	case CategoryBuild, CategorySphinx, CategoryFileSystem:
		return 11 // Build error
	case CategoryRuntime:
		return 12 // Runtime error
	case CategoryInternal:
		return 10 // Internal error
	default:
		return 1
	}
}

// FormatError formats an error for user-friendly display.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}

	if pe, ok := As(err); ok && !a.verbose {
		switch pe.Category {
		case CategoryConfig, CategoryValidation, CategoryAuth:
			return pe.Message
		default:
			return fmt.Sprintf("%s: %s", pe.Category, pe.Message)
		}
	}

	return fmt.Sprintf("Error: %v", err)
}

// HandleError processes an error and exits the program with appropriate code.
func (a *CLIErrorAdapter) HandleError(err error) {
	if err == nil {
		return
	}

	a.logError(err)
	_, _ = fmt.Fprintln(a.out, a.FormatError(err))
	a.exit(a.ExitCodeFor(err))
}

func (a *CLIErrorAdapter) logError(err error) {
	pe, ok := As(err)
	if !ok {
		a.logger.Error("Unclassified error", "error", err)
		return
	}
	attrs := []slog.Attr{slog.String("category", string(pe.Category))}
	for k, v := range pe.Context {
		attrs = append(attrs, slog.Any(k, v))
	}
	if pe.Retryable {
		attrs = append(attrs, slog.Bool("retryable", true))
	}
	if a.verbose && pe.Cause != nil {
		attrs = append(attrs, slog.String("cause", pe.Cause.Error()))
	}
	a.logger.LogAttrs(context.Background(), levelFor(pe.Severity), pe.Message, attrs...)
}

func levelFor(severity ErrorSeverity) slog.Level {
	switch severity {
	case SeverityInfo:
		return slog.LevelInfo
	case SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
