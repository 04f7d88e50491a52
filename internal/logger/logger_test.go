package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
)

func TestConfigureJSON(t *testing.T) {
	var buf bytes.Buffer
	Configure("debug", "json", &buf)
	defer Configure("info", "json", os.Stderr)

	Error("Failed to fetch", errors.New("timeout"), "source", "feed-a", "attempt", 2)

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected JSON line, got %q: %v", buf.String(), err)
	}
	if entry["message"] != "Failed to fetch" {
		t.Errorf("unexpected message: %v", entry["message"])
	}
	if entry["error"] != "timeout" {
		t.Errorf("unexpected error field: %v", entry["error"])
	}
	if entry["source"] != "feed-a" {
		t.Errorf("unexpected source field: %v", entry["source"])
	}
	if entry["level"] != "error" {
		t.Errorf("unexpected level: %v", entry["level"])
	}
}

func TestConfigureLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	Configure("warn", "json", &buf)
	defer Configure("info", "json", os.Stderr)

	Info("hidden")
	Debug("hidden too")
	Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info/debug should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn should be written: %q", out)
	}
}

func TestConfigureTextFormat(t *testing.T) {
	var buf bytes.Buffer
	Configure("info", "text", &buf)
	defer Configure("info", "json", os.Stderr)

	Info("Run finished", "success", 3)

	out := buf.String()
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Errorf("text format should not emit JSON: %q", out)
	}
	if !strings.Contains(out, "Run finished") || !strings.Contains(out, "success=") {
		t.Errorf("unexpected console output: %q", out)
	}
}
