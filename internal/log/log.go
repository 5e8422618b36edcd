// Package log configures structured logging for termcore.
package log

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logger configuration.
type Config struct {
	Level  string // debug, info, warn, error
	Pretty bool   // console output for development
	Output io.Writer
}

// New creates a zerolog logger from the configuration.
func New(cfg Config) zerolog.Logger {
	level := zerolog.InfoLevel
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}

	return zerolog.New(output).Level(level).With().
		Timestamp().
		Str("service", "termcore").
		Logger()
}

// FromEnv builds a logger from TERMCORE_LOG_LEVEL and TERMCORE_LOG_PRETTY.
func FromEnv() zerolog.Logger {
	return New(Config{
		Level:  os.Getenv("TERMCORE_LOG_LEVEL"),
		Pretty: os.Getenv("TERMCORE_LOG_PRETTY") == "1",
	})
}

// Nop returns a disabled logger for components that were not handed one.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
