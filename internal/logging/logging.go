// Package logging builds the zerolog.Logger shared by every component.
// Output is always ASCII-safe: no emoji prefixes, bracketed level tags
// only ([OK]/[WARN]/[FAIL] belong to call sites, not the formatter).
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config controls the logger's level and console formatting.
type Config struct {
	Level  string // debug, info, warn, error
	Pretty bool   // human-readable console output instead of JSON lines
}

// New builds a root zerolog.Logger. Callers attach a "component" field
// per subsystem via logger.With().Str("component", name).Logger().
func New(cfg Config) zerolog.Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var output io.Writer = os.Stdout
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05", NoColor: true}
	}

	return zerolog.New(output).With().Timestamp().Logger()
}
