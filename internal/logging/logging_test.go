package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestHandlerFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := New(&buf, slog.LevelDebug)
	logger.With("scan", "abc").WithGroup("parse").Info("file parsed", "path", "src/a.ts", "nodes", 3)

	line := buf.String()
	if !strings.Contains(line, "[info] file parsed") {
		t.Errorf("missing level/message: %q", line)
	}
	if !strings.Contains(line, "scan=abc") {
		t.Errorf("missing pre-set attr: %q", line)
	}
	if !strings.Contains(line, "parse.path=src/a.ts") {
		t.Errorf("missing grouped attr: %q", line)
	}
	if !strings.Contains(line, "parse.nodes=3") {
		t.Errorf("missing int attr: %q", line)
	}
}

func TestHandlerLevelFilter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := New(&buf, slog.LevelWarn)
	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(out, "shown") {
		t.Error("warn message missing")
	}
}

func TestQuotedValues(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	New(&buf, slog.LevelInfo).Info("msg", "err", "read failed: no such file")
	if !strings.Contains(buf.String(), `err="read failed: no such file"`) {
		t.Errorf("expected quoted value, got %q", buf.String())
	}
}

func TestLevelFromVerbosity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		verbosity int
		quiet     bool
		want      slog.Level
	}{
		{0, false, slog.LevelWarn},
		{1, false, slog.LevelInfo},
		{2, false, slog.LevelDebug},
		{5, false, slog.LevelDebug},
		{2, true, Silent},
	}
	for _, tt := range tests {
		if got := LevelFromVerbosity(tt.verbosity, tt.quiet); got != tt.want {
			t.Errorf("LevelFromVerbosity(%d, %v) = %v, want %v", tt.verbosity, tt.quiet, got, tt.want)
		}
	}
}

func TestLevelFromString(t *testing.T) {
	t.Parallel()

	if LevelFromString("DEBUG") != slog.LevelDebug {
		t.Error("DEBUG should map to debug")
	}
	if LevelFromString("warning") != slog.LevelWarn {
		t.Error("warning should map to warn")
	}
	if LevelFromString("nonsense") != slog.LevelInfo {
		t.Error("unknown should map to info")
	}
}
