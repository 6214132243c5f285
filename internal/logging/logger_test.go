package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/smukkama/env-monitor/pkg/config"
)

func TestNew_ProdWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter(&buf, config.AppConfig{Env: "prod", LogLevel: slog.LevelInfo}, "monitor")

	logger.Info("cache miss", "key", "stats_data")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["service"] != "monitor" || entry["env"] != "prod" || entry["key"] != "stats_data" {
		t.Errorf("Unexpected log entry: %v", entry)
	}
}

func TestNew_DevRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter(&buf, config.AppConfig{Env: "dev", LogLevel: slog.LevelWarn}, "monitor")

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("Info line should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("Warn line missing: %q", out)
	}
}
