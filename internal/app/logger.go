package app

import (
	"io"
	"log/slog"
)

// NewLogger returns a text logger at debug level for development
// and a JSON logger at info level otherwise.
func NewLogger(w io.Writer, development bool) *slog.Logger {
	if development {
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
