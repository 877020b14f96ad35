package logger

import (
	"log/slog"
	"os"
)

// New returns the engine logger. MEMENGINE_DEBUG=true lowers the level
// to debug.
func New() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("MEMENGINE_DEBUG") == "true" {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
