package observability

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{" error ", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"warn", zerolog.WarnLevel},
		{"", zerolog.WarnLevel},
		{"verbose", zerolog.WarnLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(LogConfig{Level: "info", Output: &buf})

	log.Debug().Msg("hidden")
	log.Info().Int("documents", 3).Msg("validation finished")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line at info level, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["message"] != "validation finished" {
		t.Errorf("message = %v", entry["message"])
	}
	if entry["service"] != "lmay" {
		t.Errorf("service = %v, want lmay", entry["service"])
	}
	if entry["documents"] != float64(3) {
		t.Errorf("documents = %v, want 3", entry["documents"])
	}
}

func TestNewLogger_Pretty(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(LogConfig{Level: "warn", Pretty: true, Output: &buf})

	log.Warn().Str("root", "root.lmay").Msg("root document failed to load")

	out := buf.String()
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Errorf("pretty output should not be JSON: %q", out)
	}
	if !strings.Contains(out, "root document failed to load") {
		t.Errorf("output %q missing message", out)
	}
}
