package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestLoggerInit(t *testing.T) {
	var buf bytes.Buffer
	Init(&buf)

	l := Get()
	if l == nil {
		t.Fatal("logger is nil after initialization")
	}
	l.Info(context.Background(), "hello", String("k", "v"))
	out := buf.String()
	if !strings.Contains(out, "msg=hello") || !strings.Contains(out, "k=v") {
		t.Errorf("unexpected output: %q", out)
	}
	if !strings.Contains(out, "source=") {
		t.Errorf("global logger should tag records with their source: %q", out)
	}
}

func TestLoggerNamed(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, slog.LevelDebug).Named("deriver")
	l.Debug(context.Background(), "substituted", Int("rows", 3), Float64("value", 0.5))

	out := buf.String()
	for _, want := range []string{"component=deriver", "rows=3", "value=0.5"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestSetLevelString(t *testing.T) {
	var buf bytes.Buffer
	Init(&buf)
	defer SetLevel(slog.LevelInfo)

	if err := SetLevelString("WARN"); err != nil {
		t.Fatalf("SetLevelString: %v", err)
	}
	Get().Info(context.Background(), "hidden")
	Get().Warn(context.Background(), "shown")
	if strings.Contains(buf.String(), "hidden") {
		t.Error("info record should be filtered at warn level")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("warn record missing")
	}

	if err := SetLevelString("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestNop(t *testing.T) {
	// must not panic
	Nop().Error(context.Background(), "dropped", Any("x", struct{}{}))
}
