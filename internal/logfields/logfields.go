package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyStep       = "step"
	KeyVersion    = "version"
	KeyAlias      = "alias"
	KeyBranch     = "branch"
	KeyCommand    = "command"
	KeyPath       = "path"
	KeyDurationMS = "duration_ms"
	KeyOutcome    = "outcome"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func Step(name string) slog.Attr      { return slog.String(KeyStep, name) }
func Version(v string) slog.Attr      { return slog.String(KeyVersion, v) }
func Alias(a string) slog.Attr        { return slog.String(KeyAlias, a) }
func Branch(b string) slog.Attr       { return slog.String(KeyBranch, b) }
func Command(c string) slog.Attr      { return slog.String(KeyCommand, c) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Outcome(o string) slog.Attr      { return slog.String(KeyOutcome, o) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
