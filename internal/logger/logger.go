// Package logger builds the zerolog loggers shared by the server and the CLI.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Output formats
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config holds logger configuration
type Config struct {
	Level   string
	Format  string
	Service string
	Output  io.Writer
}

// New returns a root logger. JSON output is meant for log aggregation,
// console output for development.
func New(cfg Config) zerolog.Logger {
	var output io.Writer = os.Stdout
	if cfg.Output != nil {
		output = cfg.Output
	}
	if cfg.Service == "" {
		cfg.Service = "shwan-ortho"
	}

	var log zerolog.Logger
	if strings.EqualFold(strings.TrimSpace(cfg.Format), FormatJSON) {
		zerolog.TimeFieldFormat = time.RFC3339Nano
		log = zerolog.New(output).With().Timestamp().Str("service", cfg.Service).Logger()
	} else {
		log = zerolog.New(zerolog.ConsoleWriter{Out: output, TimeFormat: "15:04:05", NoColor: cfg.Output != nil}).
			With().Timestamp().Logger()
	}
	return log.Level(ParseLevel(cfg.Level))
}

// ParseLevel maps a level name onto zerolog, defaulting to info.
func ParseLevel(raw string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil || raw == "" {
		return zerolog.InfoLevel
	}
	return level
}

// Component returns a sub-logger tagged with the component name.
func Component(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
