// Package logging builds the zerolog loggers used by the binaries.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New returns a timestamped JSON logger writing to w at the given level.
// Unknown or empty levels fall back to info; a nil w writes to stderr.
func New(level string, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).With().Timestamp().Logger().Level(lvl)
}

// NewConsole returns a human-readable logger for interactive CLI use.
func NewConsole(level string, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return New(level, zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"})
}
