// Package logger configures log/slog for the server and the terminal client.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/medannot/medannot/internal/config"
)

// Level derives the log level from the environment and LOG_LEVEL.
func Level(cfg *config.Config) slog.Level {
	logLevel := slog.LevelInfo
	if cfg.Env == config.EnvDevelopment {
		logLevel = slog.LevelDebug
	}

	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	return logLevel
}

// SetupLogger configures structured JSON logging to stdout for the server.
func SetupLogger(cfg *config.Config) *slog.Logger {
	return install(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: Level(cfg),
	}))
}

// SetupFileLogger sends text logs to path. The terminal belongs to the TUI,
// so the client never logs to stdout or stderr. The returned closer flushes
// the file.
func SetupFileLogger(cfg *config.Config, path string) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	logger := install(slog.NewTextHandler(f, &slog.HandlerOptions{
		Level: Level(cfg),
	}))

	return logger, f, nil
}

func install(handler slog.Handler) *slog.Logger {
	logger := slog.New(handler)

	// Set as default logger
	slog.SetDefault(logger)

	return logger
}
