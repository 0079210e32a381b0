package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLogger_InvalidLevel(t *testing.T) {
	_, err := NewLogger(LoggerConfig{Level: "loud"})
	if err == nil {
		t.Error("NewLogger() with bogus level succeeded, want error")
	}
}

func TestNewLogger_DefaultsToInfo(t *testing.T) {
	logger, err := NewLogger(LoggerConfig{})
	if err != nil {
		t.Fatalf("NewLogger() error: %v", err)
	}

	if !logger.Core().Enabled(zapcore.InfoLevel) {
		t.Error("info level disabled by default")
	}
	if logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug level enabled by default")
	}
}

func TestNewLogger_FileSinkCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "server.log")

	logger, err := NewLogger(LoggerConfig{Level: "info", OutputPath: path, Format: "json"})
	if err != nil {
		t.Fatalf("NewLogger() error: %v", err)
	}

	logger.Info("startup complete")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "startup complete") {
		t.Errorf("log file = %q, missing entry", data)
	}
}
