package logger

import (
	"os"

	"golang.org/x/exp/slog"
)

// New builds the process logger. Output goes to stderr so it never mixes
// with report output. The default level is Warn, which keeps a successful
// run silent; verbose raises it to Info and debug to Debug.
func New(verbose, debug bool) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case debug:
		level = slog.LevelDebug
	case verbose:
		level = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}
