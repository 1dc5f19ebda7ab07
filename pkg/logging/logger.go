// Package logging sets up the zerolog logger shared by the harvester packages.
//
// Entries carry a "component" field (harvester, leetcode-source, artifact)
// and, when configured, a "service" field. The fields used across packages
// are cursor, page_size, total, fetched, records, error_class, status_code,
// artifact, outcome and reason.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config selects level, format and destination of log output.
type Config struct {
	// Level is a zerolog level name. Empty means info.
	Level string

	// Pretty switches from JSON lines to zerolog's console writer.
	Pretty bool

	// Output defaults to os.Stderr so stdout stays free for the run summary.
	Output io.Writer

	// Service is added to every entry when set.
	Service string
}

// DefaultConfig returns JSON output at info level on stderr.
func DefaultConfig() Config {
	return Config{
		Level:   "info",
		Output:  os.Stderr,
		Service: "problem-harvester",
	}
}

// Setup installs the global logger and returns it. An unknown level falls
// back to info and is reported as a warning.
func Setup(cfg Config) zerolog.Logger {
	level, levelErr := ParseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	ctx := zerolog.New(out).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	log.Logger = ctx.Logger()

	if levelErr != nil {
		log.Warn().Err(levelErr).Msg("Falling back to info level")
	}
	return log.Logger
}

// ParseLevel maps a level name to a zerolog level. Names are case-insensitive
// and "warning" is accepted for warn.
func ParseLevel(name string) (zerolog.Level, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "":
		return zerolog.InfoLevel, nil
	case "warning":
		return zerolog.WarnLevel, nil
	}

	level, err := zerolog.ParseLevel(name)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel, fmt.Errorf("unknown log level %q", name)
	}
	return level, nil
}

// NewLogger returns a child of the global logger tagged with component.
// Call it after Setup; the logger does not follow later Setup calls.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}
