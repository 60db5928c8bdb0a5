package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/alexr72/wpcv/internal/config"
)

// SetupLogging installs a text handler writing to the session log.
// The returned closer releases the log file; stderr is used when the file cannot be opened.
func SetupLogging(cfg config.Config) io.Closer {
	level := ParseLevel(cfg.Debug.LogLevel)

	path := filepath.Join(cfg.LogsDir(), "session.log")
	file, err := openLogFile(path)
	if err != nil {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		slog.Warn("session log unavailable, logging to stderr", "path", path, "error", err)
		return io.NopCloser(nil)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(file, &slog.HandlerOptions{Level: level})))
	return file
}

// SetupStderrLogging is used by the foreground server so operators see logs directly.
func SetupStderrLogging(cfg config.Config) {
	level := ParseLevel(cfg.Debug.LogLevel)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("open log: mkdir: %w", err)
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}
