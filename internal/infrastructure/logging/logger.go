// Package logging builds the zerolog logger every component shares.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Canonical field names.
const (
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldBackend   = "backend"
	FieldPath      = "path"
	FieldID        = "id"
)

// Config captures options for the CLI logger.
type Config struct {
	Level   string    // zerolog level name, "warn" when empty
	Output  io.Writer // defaults to os.Stderr; stdout carries command output
	NoColor bool
	// JSON switches from the console writer to raw JSON lines
	JSON bool
}

// New builds a logger. An unparsable level falls back to warn.
func New(cfg Config) zerolog.Logger {
	level := zerolog.WarnLevel
	if cfg.Level != "" {
		if parsed, err := zerolog.ParseLevel(cfg.Level); err == nil {
			level = parsed
		}
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if !cfg.JSON {
		out = zerolog.ConsoleWriter{
			Out:        out,
			NoColor:    cfg.NoColor,
			TimeFormat: time.TimeOnly,
		}
	}

	return zerolog.New(out).Level(level).With().
		Timestamp().
		Str("service", "gitty").
		Logger()
}

// WithComponent returns a child logger annotated with the given component name.
func WithComponent(base zerolog.Logger, component string) zerolog.Logger {
	return base.With().Str(FieldComponent, component).Logger()
}
