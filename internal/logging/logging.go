package logging

import (
	"io"
	"log/slog"
)

// New returns a text logger writing to w. Warnings and errors are always
// written; debug and info lines only when debug is set.
func New(w io.Writer, debug bool) *slog.Logger {
	level := new(slog.LevelVar)
	level.Set(slog.LevelWarn)
	if debug {
		level.Set(slog.LevelDebug)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Discard returns a logger that writes nothing.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
