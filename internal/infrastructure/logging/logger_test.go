package logging

import (
	"log/slog"
	"testing"

	"github.com/facegate/facegate-core/internal/infrastructure/config"
)

func TestNew_Formats(t *testing.T) {
	tests := []struct {
		name   string
		format string
		output string
	}{
		{name: "json to stdout", format: "json", output: "stdout"},
		{name: "text to stderr", format: "text", output: "stderr"},
		{name: "unknown format falls back to json", format: "xml", output: "stdout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New(config.LoggingConfig{
				Level:  "info",
				Format: tt.format,
				Output: tt.output,
			}, "1.0.0")
			if logger == nil {
				t.Fatal("expected non-nil logger")
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{input: "debug", expected: slog.LevelDebug},
		{input: "info", expected: slog.LevelInfo},
		{input: "warn", expected: slog.LevelWarn},
		{input: "warning", expected: slog.LevelWarn},
		{input: "error", expected: slog.LevelError},
		{input: "nonsense", expected: slog.LevelInfo},
		{input: "", expected: slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.expected {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestWith_AddsAttributes(t *testing.T) {
	logger := Default()
	child := logger.With("component", "gateway")
	if child == nil || child.Logger == nil {
		t.Fatal("expected non-nil child logger")
	}
	if child == logger {
		t.Error("With() should return a new logger")
	}
}
