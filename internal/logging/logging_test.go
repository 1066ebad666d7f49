package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestLevel(t *testing.T) {
	tests := []struct {
		verbosity int
		expected  zerolog.Level
	}{
		{-1, zerolog.WarnLevel},
		{0, zerolog.WarnLevel},
		{1, zerolog.InfoLevel},
		{2, zerolog.DebugLevel},
		{3, zerolog.TraceLevel},
		{7, zerolog.TraceLevel},
	}

	for _, tt := range tests {
		if got := Level(tt.verbosity); got != tt.expected {
			t.Errorf("verbosity %d: expected %v, got %v", tt.verbosity, tt.expected, got)
		}
	}
}

func TestNew_FiltersByVerbosity(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, 0, false)

	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("expected info to be filtered at verbosity 0, got %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("expected warn to be written, got %q", out)
	}
}

func TestNew_NonTerminalWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, 1, false)

	logger.Info().Str("tenant", "app").Msg("created table")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
	}
	if entry["tenant"] != "app" {
		t.Errorf("expected tenant 'app', got %v", entry["tenant"])
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected timestamp field")
	}
}

func TestNew_CallerAtDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, 2, true)

	logger.Debug().Msg("x")

	if !strings.Contains(buf.String(), `"caller"`) {
		t.Errorf("expected caller field at debug verbosity, got %q", buf.String())
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := WithComponent(New(&buf, 1, true), "store")

	logger.Info().Msg("x")

	if !strings.Contains(buf.String(), `"component":"store"`) {
		t.Errorf("expected component field, got %q", buf.String())
	}
}
