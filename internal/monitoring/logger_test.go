package monitoring

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/banshee-data/synthgen/internal/timeutil"
)

func TestNopRuntimeDiscards(t *testing.T) {
	rt := Nop()
	if rt.Log.Enabled(t.Context(), slog.LevelError) {
		t.Error("nop logger should not be enabled")
	}
	// Must not panic.
	rt.Log.Info("discarded", "k", 1)
	rt.With("iteration", 3).Log.Warn("discarded")
	if _, ok := rt.Clock.(timeutil.RealClock); !ok {
		t.Errorf("expected RealClock, got %T", rt.Clock)
	}
}

func TestNewLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&buf, "warn")
	log.Info("hidden")
	log.Warn("shown", "path", "mask/a.png")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record written at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "path=mask/a.png") {
		t.Errorf("warn record missing: %q", out)
	}
}

func TestWithCarriesAttrs(t *testing.T) {
	var buf bytes.Buffer
	clock := timeutil.NewMockClock(timeutil.RealClock{}.Now())
	rt := NewRuntime(NewLogger(&buf, "debug"), clock).With("run", "abc")
	rt.Log.Debug("tick")
	if !strings.Contains(buf.String(), "run=abc") {
		t.Errorf("missing attr: %q", buf.String())
	}
	if rt.Clock != clock {
		t.Error("clock not carried through With")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" INFO ":  slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
