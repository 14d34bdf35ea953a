package zap

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/unkn0wn-root/cacheaside"
)

func TestZapLoggerLevelsAndFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := ZapLogger{L: zap.New(core)}

	l.Debug("d", nil)
	l.Info("i", cacheaside.Fields{"key": "students"})
	l.Warn("w", cacheaside.Fields{"n": 3})
	l.Error("e", cacheaside.Fields{"err": errors.New("boom")})

	entries := logs.All()
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
	wantLevels := []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel}
	for i, e := range entries {
		if e.Level != wantLevels[i] {
			t.Fatalf("entry %d level %v, want %v", i, e.Level, wantLevels[i])
		}
	}
	if got := entries[1].ContextMap()["key"]; got != "students" {
		t.Fatalf("key field = %v", got)
	}
	if got := entries[3].ContextMap()["err"]; got != "boom" {
		t.Fatalf("err field = %v", got)
	}
}
