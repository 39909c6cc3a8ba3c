package logger

import (
	"log/slog"
	"os"
	"strings"
)

// Init sets up the global logger with a JSON handler. The level can be
// overridden with LOG_LEVEL (debug, info, warn, error).
func Init() {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
}
