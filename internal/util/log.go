// Package util hosts small helpers shared across the SDK.
package util

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// NewLogger builds a zerolog logger writing JSON lines to stdout at the given level.
func NewLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger().Level(lvl)
}

// NewComponentLogger tags a logger with the SDK component emitting it.
func NewComponentLogger(level, component string) zerolog.Logger {
	return NewLogger(level).With().Str("component", component).Logger()
}
