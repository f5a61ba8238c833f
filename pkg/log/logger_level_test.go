package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  LogLevel
	}{
		{name: "debug lower", input: "debug", want: LevelDebug},
		{name: "info upper", input: "INFO", want: LevelInfo},
		{name: "warn mixed", input: "WaRn", want: LevelWarn},
		{name: "error", input: "error", want: LevelError},
		{name: "fatal", input: "fatal", want: LevelFatal},
		{name: "trim spaces", input: "  debug  ", want: LevelDebug},
		{name: "unknown fallback", input: "verbose", want: LevelInfo},
		{name: "empty fallback", input: "", want: LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Fatalf("ParseLevel(%q)=%v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLogger_SetLevel(t *testing.T) {
	l := NewLogger(LevelInfo)
	if l.Enabled(LevelDebug) {
		t.Fatal("debug should be disabled at info level")
	}

	l.SetLevel(LevelDebug)
	if !l.Enabled(LevelDebug) {
		t.Fatal("debug should be enabled after SetLevel(LevelDebug)")
	}
}

func TestFileLogger_WritesEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "lexiguard.log")

	fl, err := NewFileLogger(path, LevelInfo)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	fl.Info("grounded answer for %s", "req-1")
	fl.Debug("suppressed")
	if err := fl.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "grounded answer for req-1") {
		t.Fatalf("log file missing info entry: %s", data)
	}
	if strings.Contains(string(data), "suppressed") {
		t.Fatalf("debug entry should not be written at info level: %s", data)
	}
}

func TestLogger_ReportsCallSite(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := newLoggerWithCore(core, zap.NewAtomicLevelAt(zapcore.DebugLevel))

	prev := GetLogger()
	SetLogger(l)
	t.Cleanup(func() { SetLogger(prev) })

	l.Info("from method")
	Warn("from package function")
	l.With("request_id", "req-1").Error("from child")

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	for _, e := range entries {
		if !e.Caller.Defined {
			t.Fatalf("%q: caller not recorded", e.Message)
		}
		if got := filepath.Base(e.Caller.File); got != "logger_level_test.go" {
			t.Fatalf("%q: caller reported as %s:%d, want logger_level_test.go", e.Message, got, e.Caller.Line)
		}
	}
}
