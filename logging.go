package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// newLogger builds the diagnostics logger.  The text format uses tint for
// readable, coloured output on a console; json is meant for journald or a
// log shipper.
func newLogger(w io.Writer, cfg LogConfig, debug bool, board string) *slog.Logger {
	level, err := parseLogLevel(cfg.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	if debug {
		level = slog.LevelDebug
	}

	if cfg.Format == "json" {
		h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
		return slog.New(h).With("app", appName, "board", board)
	}
	h := tint.NewHandler(w, &tint.Options{
		Level:      level,
		AddSource:  debug,
		TimeFormat: time.Kitchen,
	})
	return slog.New(h).With("board", board)
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q (allowed: debug, info, warn, error)", s)
	}
}
