package sloghooks

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func newBufLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func TestRedactsKeysByDefault(t *testing.T) {
	l, buf := newBufLogger()
	h := New(l, Options{})
	h.Miss("user:42", "absent")

	out := buf.String()
	if strings.Contains(out, "user:42") {
		t.Fatalf("raw key leaked: %s", out)
	}
	if !strings.Contains(out, "reason=absent") {
		t.Fatalf("missing reason: %s", out)
	}
}

func TestCustomRedactor(t *testing.T) {
	l, buf := newBufLogger()
	h := New(l, Options{Redact: func(k string) string { return "k:" + k }})
	h.WriteFailed("GetAllStudents", errors.New("down"))
	out := buf.String()
	if !strings.Contains(out, "key=k:GetAllStudents") || !strings.Contains(out, "level=WARN") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestHitSampling(t *testing.T) {
	l, buf := newBufLogger()
	h := New(l, Options{HitEvery: 3})
	for i := 0; i < 9; i++ {
		h.Hit("k")
	}
	if n := strings.Count(buf.String(), "cacheaside.hit"); n != 3 {
		t.Fatalf("expected 3 sampled hits, got %d", n)
	}
}

func TestGroupDoneLevel(t *testing.T) {
	l, buf := newBufLogger()
	h := New(l, Options{})
	h.GroupDone("run-1", 0, 10, 0, time.Millisecond)
	h.GroupDone("run-1", 1, 5, 2, time.Millisecond)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", buf.String())
	}
	if !strings.Contains(lines[0], "level=DEBUG") || !strings.Contains(lines[1], "level=WARN") {
		t.Fatalf("unexpected levels: %q", lines)
	}
	if !strings.Contains(lines[1], "failed=2") {
		t.Fatalf("missing failed count: %q", lines[1])
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	h := New(nil, Options{})
	h.Hit("k")
	h.Miss("k", "absent")
	h.SourceRun("k", time.Second, errors.New("x"))
	h.Coalesced("k")
	h.WriteFailed("k", errors.New("x"))
	h.GroupDone("r", 0, 1, 1, 0)
	h.SelfHeal("k", "corrupt")
}
