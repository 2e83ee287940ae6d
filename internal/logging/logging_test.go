package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "test")
	l.SetLevel(WARN)
	l.Info("should not appear")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below configured level, got %q", buf.String())
	}
	l.Warn("should appear")
	if buf.Len() == 0 {
		t.Fatalf("expected output at configured level")
	}
}

func TestKVLoggerAttachesFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "test")
	kv := l.With(F("peer", "alice"))
	kv.Info("hello")
	if !strings.Contains(buf.String(), "alice") {
		t.Fatalf("expected structured field in output, got %q", buf.String())
	}
}

func TestClosedLoggerDropsLines(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "test")
	l.Close()
	l.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("expected no output after Close, got %q", buf.String())
	}
}
