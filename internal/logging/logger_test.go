package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	t.Run("creates log file in log directory", func(t *testing.T) {
		dir := t.TempDir()

		logger, err := NewLogger(dir, LevelDebug)
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		defer logger.Close()

		logPath := filepath.Join(dir, "vmindex.log")
		if _, err := os.Stat(logPath); os.IsNotExist(err) {
			t.Errorf("log file was not created at %s", logPath)
		}
	})

	t.Run("writes to stderr when logDir is empty", func(t *testing.T) {
		logger, err := NewLogger("", LevelInfo)
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		defer logger.Close()

		if logger.file != nil {
			t.Error("expected file to be nil when logDir is empty")
		}
	})

	t.Run("defaults to INFO level for invalid level string", func(t *testing.T) {
		dir := t.TempDir()

		logger, err := NewLogger(dir, "invalid")
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		defer logger.Close()

		if logger.logger == nil {
			t.Error("expected logger to be created")
		}
	})
}

func TestLogLevels(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, LevelDebug)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	logger.Debug("debug message", "key", "value")
	logger.Info("info message", "key", "value")
	logger.Warn("warn message", "key", "value")
	logger.Error("error message", "key", "value")

	logger.Close()

	content, err := os.ReadFile(filepath.Join(dir, "vmindex.log"))
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 log lines, got %d", len(lines))
	}

	for _, line := range lines {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Errorf("log line is not valid JSON: %v", err)
		}
		if entry["key"] != "value" {
			t.Errorf("expected key=value in entry: %v", entry)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, LevelWarn)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	logger.Debug("should be filtered")
	logger.Info("should be filtered")
	logger.Warn("should appear")
	logger.Error("should appear")

	logger.Close()

	content, err := os.ReadFile(filepath.Join(dir, "vmindex.log"))
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines at WARN level, got %d", len(lines))
	}
}

func TestContextPropagation(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, LevelDebug)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	child := logger.WithMachine("0a1b2c").WithOperation("get")
	child.Info("checked out")

	logger.Close()

	content, err := os.ReadFile(filepath.Join(dir, "vmindex.log"))
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(content))), &entry); err != nil {
		t.Fatalf("log line is not valid JSON: %v", err)
	}

	if entry["machine_id"] != "0a1b2c" {
		t.Errorf("machine_id = %v, want 0a1b2c", entry["machine_id"])
	}
	if entry["operation"] != "get" {
		t.Errorf("operation = %v, want get", entry["operation"])
	}
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger()

	// Should not panic or error
	logger.Info("discarded")
	logger.WithMachine("x").Error("also discarded")

	if err := logger.Close(); err != nil {
		t.Errorf("Close on NopLogger: %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"Warn", LevelWarn},
		{"ERROR", LevelError},
		{"bogus", LevelInfo},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
