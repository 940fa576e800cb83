package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", DebugLevel},
		{"INFO", InfoLevel},
		{"warn", WarnLevel},
		{"warning", WarnLevel},
		{"error", ErrorLevel},
		{"bogus", InfoLevel},
		{"", InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	t.Cleanup(func() { defaultLogger = nil })

	var buf bytes.Buffer
	InitWithWriter(&buf, "warn", "json")

	Debug("hidden %d", 1)
	Info("hidden %d", 2)
	Warn("shown %d", 3)
	Error("shown %d", 4)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 log lines, got %d: %q", len(lines), buf.String())
	}

	var rec map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if rec["msg"] != "shown 3" || rec["level"] != "WARN" {
		t.Errorf("unexpected record %v", rec)
	}
	if rec["app"] != "ldarsim" {
		t.Errorf("Expected app attribute, got %v", rec["app"])
	}
}

func TestTextFormat(t *testing.T) {
	t.Cleanup(func() { defaultLogger = nil })

	var buf bytes.Buffer
	InitWithWriter(&buf, "debug", "text")
	Debug("clusters:%d", 3)

	if !strings.Contains(buf.String(), `msg=clusters:3`) {
		t.Errorf("unexpected text output %q", buf.String())
	}
}

func TestNoopBeforeInit(t *testing.T) {
	defaultLogger = nil
	// must not panic
	Debug("x")
	Info("x")
	Warn("x")
	Error("x")
}
