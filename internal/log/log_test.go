package log

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)
	SetLevel(LevelWarn)
	defer SetLevel(LevelInfo)

	Debug("debug line")
	Info("info line")
	Warn("warn line", "source", "main")
	Error("error line", errors.New("boom"), "source", "main")

	out := buf.String()
	if strings.Contains(out, "debug line") || strings.Contains(out, "info line") {
		t.Fatalf("lines below WARN should be dropped, got:\n%s", out)
	}
	if !strings.Contains(out, "[WARN] warn line source=main") {
		t.Errorf("missing warn line, got:\n%s", out)
	}
	if !strings.Contains(out, "[ERROR] error line err=boom source=main") {
		t.Errorf("missing error line, got:\n%s", out)
	}
}

func TestQuotedValuesAndOddPairs(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	Info("fetch", "title", "Dutch Design Week", "dangling")

	out := buf.String()
	if !strings.Contains(out, `title="Dutch Design Week"`) {
		t.Errorf("expected quoted value, got %q", out)
	}
	if strings.Contains(out, "dangling") {
		t.Errorf("dangling key should be dropped, got %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		" Warn ":  LevelWarn,
		"warning": LevelWarn,
		"ERROR":   LevelError,
		"":        LevelInfo,
		"verbose": LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
