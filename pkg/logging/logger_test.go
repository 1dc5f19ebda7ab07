package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != "info" {
		t.Errorf("Level = %q, want info", cfg.Level)
	}
	if cfg.Pretty {
		t.Error("Pretty should default to false")
	}
	if cfg.Service != "problem-harvester" {
		t.Errorf("Service = %q, want problem-harvester", cfg.Service)
	}
}

func TestSetup_JSONEntry(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := Setup(Config{Level: "info", Output: buf, Service: "harvest-test"})
	logger.Info().Int("cursor", 50).Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Entry is not JSON: %v (%q)", err, buf.String())
	}
	if entry["service"] != "harvest-test" {
		t.Errorf("service = %v, want harvest-test", entry["service"])
	}
	if entry["cursor"] != float64(50) {
		t.Errorf("cursor = %v, want 50", entry["cursor"])
	}
	if _, ok := entry["time"]; !ok {
		t.Error("Entry has no timestamp")
	}
}

func TestSetup_Pretty(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := Setup(Config{Level: "info", Output: buf, Pretty: true})
	logger.Info().Int("cursor", 50).Msg("pretty message")

	output := buf.String()
	if strings.HasPrefix(output, "{") {
		t.Errorf("Expected console output, got JSON %q", output)
	}
	if !strings.Contains(output, "pretty message") {
		t.Errorf("Expected output to contain message, got %q", output)
	}
}

func TestSetup_UnknownLevelWarns(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: "verbose", Output: buf})

	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Errorf("GlobalLevel = %v, want info", zerolog.GlobalLevel())
	}
	if !strings.Contains(buf.String(), `unknown log level \"verbose\"`) {
		t.Errorf("Expected fallback warning, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input       string
		expected    zerolog.Level
		expectError bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"info", zerolog.InfoLevel, false},
		{"warn", zerolog.WarnLevel, false},
		{"WARNING", zerolog.WarnLevel, false},
		{" error ", zerolog.ErrorLevel, false},
		{"trace", zerolog.TraceLevel, false},
		{"", zerolog.InfoLevel, false},
		{"verbose", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := ParseLevel(tt.input)
			if level != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, level, tt.expected)
			}
			if (err != nil) != tt.expectError {
				t.Errorf("ParseLevel(%q) error = %v, expectError %v", tt.input, err, tt.expectError)
			}
		})
	}
}

func TestNewLogger_Component(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: "info", Output: buf})

	logger := NewLogger("harvester")
	logger.Info().Msg("test message")

	if !strings.Contains(buf.String(), `"component":"harvester"`) {
		t.Errorf("Expected component field, got %q", buf.String())
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: "warn", Output: buf})

	logger := NewLogger("test")
	logger.Debug().Msg("debug message")
	logger.Info().Msg("info message")
	logger.Warn().Msg("warn message")
	logger.Error().Msg("error message")

	output := buf.String()
	for _, dropped := range []string{"debug message", "info message"} {
		if strings.Contains(output, dropped) {
			t.Errorf("%q should be filtered out at warn level", dropped)
		}
	}
	for _, kept := range []string{"warn message", "error message"} {
		if !strings.Contains(output, kept) {
			t.Errorf("%q should be logged at warn level", kept)
		}
	}
}
