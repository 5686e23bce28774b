// Package logging builds the process logger.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger returns a text logger writing to w at level. A nil w writes to
// stderr so stdout stays free for report lines.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler)
}
