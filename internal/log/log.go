// Package log owns the process-wide slog logger. main calls Init once
// with the configured level; subsystems derive their own loggers with
// With("component", ...).
package log

import (
	"log/slog"
	"os"
	"sync"
)

var (
	logger *slog.Logger
	once   sync.Once
)

// Init initializes the logger with the specified level.
// Valid levels: "debug", "info", "warn", "error".
// VOICELOOP_LOG_FORMAT=json switches to JSON output for log shippers.
func Init(level string) {
	once.Do(func() {
		var lvl slog.Level
		switch level {
		case "debug":
			lvl = slog.LevelDebug
		case "warn":
			lvl = slog.LevelWarn
		case "error":
			lvl = slog.LevelError
		default:
			lvl = slog.LevelInfo
		}

		opts := &slog.HandlerOptions{
			Level: lvl,
		}

		var h slog.Handler
		if os.Getenv("VOICELOOP_LOG_FORMAT") == "json" {
			h = slog.NewJSONHandler(os.Stdout, opts)
		} else {
			h = slog.NewTextHandler(os.Stdout, opts)
		}
		logger = slog.New(h).With("app", "voiceloop")

		slog.SetDefault(logger)
	})
}

// L returns the global logger, initializing at info level when Init was
// never called. Tests rely on that fallback.
func L() *slog.Logger {
	if logger == nil {
		Init("info")
	}
	return logger
}
