package logging

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestDefaultLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, WarnLevel)

	logger.Info("hidden")
	logger.Warn("shown", Fields{"window_id": 3})

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be filtered: %q", out)
	}
	if !strings.Contains(out, "[WARN] shown window_id=3") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestDefaultLoggerFieldsAndErrors(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, DebugLevel).WithFields(Fields{"component": "baseline"})

	ctx := ContextWithFields(context.Background(), Fields{"sample": "A1"})
	logger.WithContext(ctx).Error(errors.New("boom"), "fit failed", Fields{"window_id": 1})

	out := buf.String()
	for _, want := range []string{"[ERROR] fit failed: boom", "component=baseline", "sample=A1", "window_id=1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output %q missing %q", out, want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   DebugLevel,
		"warn":    WarnLevel,
		"error":   ErrorLevel,
		"info":    InfoLevel,
		"unknown": InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSetGlobalLoggerNil(t *testing.T) {
	prev := GetGlobalLogger()
	defer SetGlobalLogger(prev)

	SetGlobalLogger(nil)
	if _, ok := GetGlobalLogger().(*NoOpLogger); !ok {
		t.Fatalf("nil logger should install NoOpLogger, got %T", GetGlobalLogger())
	}
}

func TestZapLogger(t *testing.T) {
	atom := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	core, logs := observer.New(atom)
	logger := NewZapLoggerWithCore(core, atom).WithFields(Fields{"component": "deconvolver"})

	logger.Debug("hidden")
	logger.Warn("crowded window", Fields{"window_id": 4, "peaks": 12})
	logger.Error(errors.New("boom"), "fit failed")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["component"] != "deconvolver" || ctx["window_id"] != int64(4) {
		t.Fatalf("context = %v", ctx)
	}
	if entries[1].ContextMap()["error"] != "boom" {
		t.Fatalf("error field = %v", entries[1].ContextMap()["error"])
	}

	logger.SetLevel(DebugLevel)
	logger.Debug("now visible")
	if logs.Len() != 3 {
		t.Fatalf("entries after SetLevel = %d, want 3", logs.Len())
	}
}
