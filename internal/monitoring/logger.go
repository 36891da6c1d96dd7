// Package monitoring carries the run-scoped logger and clock that every
// pipeline component receives at construction.
package monitoring

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/banshee-data/synthgen/internal/timeutil"
)

// nopHandler discards every record; Enabled returns false so callers skip
// attribute formatting.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// Runtime is shared by the components of one generation or annotation run.
type Runtime struct {
	Log   *slog.Logger
	Clock timeutil.Clock
}

// NewRuntime builds a runtime. A nil logger discards output and a nil clock
// uses wall time.
func NewRuntime(log *slog.Logger, clock timeutil.Clock) *Runtime {
	if log == nil {
		log = slog.New(nopHandler{})
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Runtime{Log: log, Clock: clock}
}

// Nop returns a silent runtime on wall time, for tests.
func Nop() *Runtime { return NewRuntime(nil, nil) }

// With returns a runtime whose logger carries the given attributes.
func (r *Runtime) With(args ...any) *Runtime {
	return &Runtime{Log: r.Log.With(args...), Clock: r.Clock}
}

// NewLogger returns a text logger on w at the named level: debug, info,
// warn or error. Unknown names fall back to info.
func NewLogger(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
