package main

import (
	"io"
	"log/slog"
	"os"
)

// newLogger creates a text logger writing to path. The terminal belongs to
// the UI, so when the file cannot be opened logs are discarded.
func newLogger(level slog.Level, path string) (*slog.Logger, io.Closer) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return slog.New(slog.DiscardHandler), io.NopCloser(nil)
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}
	return slog.New(slog.NewTextHandler(f, opts)), f
}
