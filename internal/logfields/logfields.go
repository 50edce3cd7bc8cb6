package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyPipeline   = "pipeline"
	KeyStage      = "stage"
	KeyDurationMS = "duration_ms"
	KeyRepo       = "repository"
	KeyURL        = "url"
	KeyName       = "name"
	KeyPath       = "path"
	KeyTarget     = "target"
	KeyCommand    = "command"
	KeyCommit     = "commit"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func Pipeline(kind string) slog.Attr  { return slog.String(KeyPipeline, kind) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Repository(r string) slog.Attr   { return slog.String(KeyRepo, r) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func Name(n string) slog.Attr         { return slog.String(KeyName, n) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Target(t string) slog.Attr       { return slog.String(KeyTarget, t) }
func Command(c string) slog.Attr      { return slog.String(KeyCommand, c) }
func Commit(c string) slog.Attr       { return slog.String(KeyCommit, c) }
func Duration(d time.Duration) slog.Attr {
	return DurationMS(float64(d) / float64(time.Millisecond))
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
