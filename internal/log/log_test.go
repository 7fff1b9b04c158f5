package log

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewLogger_TextAndJSON(t *testing.T) {
	var text bytes.Buffer
	newLogger(&text, slog.LevelInfo, false).Info("tick", "loop", "strategy")
	if !strings.Contains(text.String(), "loop=strategy") {
		t.Errorf("text output = %q, want key=value pairs", text.String())
	}

	var js bytes.Buffer
	newLogger(&js, slog.LevelInfo, true).Info("tick", "loop", "comms")
	if !strings.Contains(js.String(), `"loop":"comms"`) {
		t.Errorf("json output = %q, want JSON attributes", js.String())
	}
}

func TestNewLogger_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, slog.LevelWarn, false)
	l.Info("hidden")
	l.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(out, "shown") {
		t.Error("warn message should be logged")
	}
}

func TestDiscard(t *testing.T) {
	// must not panic and must not be nil
	l := Discard()
	if l == nil {
		t.Fatal("Discard() returned nil")
	}
	l.Error("dropped")
}

func TestFor_ConcurrentFirstUse(t *testing.T) {
	var wg sync.WaitGroup
	loggers := make([]*slog.Logger, 8)
	for i := range loggers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			loggers[i] = For("loop")
		}()
	}
	wg.Wait()
	for i, l := range loggers {
		if l == nil {
			t.Fatalf("For returned nil in goroutine %d", i)
		}
	}
}
