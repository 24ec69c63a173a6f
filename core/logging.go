package core

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// SetupLogging configures log output to stdout and, when cfg.LogDir is set, a
// file in cfg.LogDir. It installs the slog default logger and points gin's
// writers at the same destination.
// Caller should close the returned io.Closer on shutdown.
func SetupLogging(cfg Config, filename string) (io.Closer, error) {
	var (
		out    io.Writer = os.Stdout
		closer io.Closer = nopCloser{}
	)

	if cfg.LogDir != "" {
		if filename == "" {
			filename = "app.log"
		}
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log dir %s: %w", cfg.LogDir, err)
		}

		path := filepath.Join(cfg.LogDir, filename)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
		}
		out = io.MultiWriter(os.Stdout, f)
		closer = f
	}

	log.SetOutput(out)
	gin.DefaultWriter = out
	gin.DefaultErrorWriter = out
	slog.SetDefault(NewLogger(out, cfg.LogLevel, cfg.LogFormat))

	return closer, nil
}

// NewLogger builds a slog.Logger writing to w.
// level: "debug", "info", "warn", "error" (defaults to "info")
// format: "json" or "text" (defaults to "text")
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
