package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesToRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "procview.log")
	l, closer, err := New(Config{File: path, Level: "debug"})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	l.Debug("hello", "key", "k1")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not created: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Fatalf("unexpected log content %q", data)
	}
}

func TestConsoleHandlerColorsLevel(t *testing.T) {
	var buf bytes.Buffer
	l, _, err := New(Config{Console: &buf, Level: "warn"})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	l.Info("dropped")
	l.With("provider", "processes").Warn("scan failed")
	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Fatalf("info record passed a warn level: %q", out)
	}
	if !strings.Contains(out, "\033[33mWARN") || !strings.Contains(out, "provider=processes") {
		t.Fatalf("expected colored warn with attrs, got %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]bool{"": true, "debug": true, "WARN": true, "error": true, "loud": false}
	for in, ok := range cases {
		_, err := ParseLevel(in)
		if (err == nil) != ok {
			t.Fatalf("ParseLevel(%q) err=%v", in, err)
		}
	}
}
