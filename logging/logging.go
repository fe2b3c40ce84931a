// Package logging builds the zerolog loggers used by the runner and CLI.
package logging

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// ParseLevel maps "debug", "info", "warn" and "error" to zerolog levels.
// Anything else is info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// New returns a logger writing to w. Format "json" emits one JSON object
// per line and "console" the human readable writer. "auto" (or empty)
// picks console when w is a terminal and JSON otherwise.
func New(level, format string, w io.Writer) zerolog.Logger {
	out := w
	if Console(format, w) {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(out).Level(ParseLevel(level)).With().Timestamp().Logger()
}

type fder interface {
	Fd() uintptr
}

// Console reports whether format resolves to the console writer for w.
func Console(format string, w io.Writer) bool {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		return false
	case "auto", "":
		f, ok := w.(fder)
		return ok && term.IsTerminal(int(f.Fd()))
	default:
		return true
	}
}
