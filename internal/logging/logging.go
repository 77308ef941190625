// Package logging builds the process-wide zerolog logger.
package logging

import (
	"os"

	"github.com/rs/zerolog"
)

// Options configures the process logger.
type Options struct {
	Level       string
	Environment string
}

// New builds a logger from Options. Development gets the console writer,
// anything else writes JSON to stderr. Unknown levels fall back to info.
func New(opts Options) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(opts.Level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if opts.Environment == "production" {
		logger = zerolog.New(os.Stderr)
	} else {
		logger = zerolog.New(zerolog.NewConsoleWriter())
	}
	return logger.With().Timestamp().Logger().Level(lvl)
}
