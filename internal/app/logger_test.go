package app

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/five82/labbcat/internal/config"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(config.Config{LogLevel: "info", LogFormat: "json"}, false, &buf)
	logger.Debug("hidden")
	logger.Info("visible")
	_ = logger.Sync()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["msg"] != "visible" || entry["level"] != "info" {
		t.Fatalf("entry = %v", entry)
	}
}

func TestNewLogger_VerboseEnablesDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(config.Config{LogLevel: "warn", LogFormat: "console"}, true, &buf)
	logger.Debug("request traced")
	_ = logger.Sync()

	if !strings.Contains(buf.String(), "request traced") {
		t.Fatalf("debug line missing from %q", buf.String())
	}
}

func TestNewLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(config.Config{LogLevel: "error", LogFormat: "console"}, false, &buf)
	logger.Warn("quiet")
	_ = logger.Sync()

	if buf.Len() != 0 {
		t.Fatalf("unexpected output %q", buf.String())
	}
}
