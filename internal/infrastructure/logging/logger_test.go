package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/nerrad567/blue-hydra/internal/infrastructure/config"
)

func TestNew_Formats(t *testing.T) {
	for _, format := range []string{"json", "text", ""} {
		logger := New(config.LoggingConfig{Level: "info", Format: format, Output: "stderr"}, "1.0.0")
		if logger == nil {
			t.Fatalf("New() with format %q returned nil", format)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"DEBUG", slog.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNewWithWriter_DefaultFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, config.LoggingConfig{Level: "info", Format: "json"}, "test-1")

	logger.With("component", "chunker").Info("chunk emitted", "lines", 4)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON output: %v", err)
	}

	want := map[string]any{
		"service":   ServiceName,
		"version":   "test-1",
		"component": "chunker",
		"msg":       "chunk emitted",
		"lines":     float64(4),
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("entry[%q] = %v, want %v", k, entry[k], v)
		}
	}
}

func TestNewWithWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, config.LoggingConfig{Level: "warn", Format: "text"}, "test")

	logger.Debug("dropped")
	logger.Info("dropped too")
	logger.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("output contains filtered records: %q", out)
	}
	if !strings.Contains(out, "kept") {
		t.Errorf("output missing warn record: %q", out)
	}
}

func TestDefaultAndDiscard(t *testing.T) {
	if Default() == nil {
		t.Fatal("Default() returned nil")
	}
	d := Discard()
	if d == nil {
		t.Fatal("Discard() returned nil")
	}
	d.Error("goes nowhere")
}
