// Package logging configures the process-wide zerolog logger. JSON output by
// default, console output for local development.
package logging

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Config struct {
	// Level is the minimum level: debug, info, warn, error.
	Level string
	// Format is "json" or "console".
	Format string
}

// Init sets up the global logger. Call once at startup, before anything logs.
func Init(cfg Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if cfg.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// With returns a logger tagged with the component name, for per-package use:
//
//	var logger = logging.With("notifier")
func With(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}
