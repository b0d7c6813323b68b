package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mitchellh/go-homedir"
)

// EventLogger writes timestamped audit events (motion, logins, display
// changes) to a file.  It is safe for concurrent use.
type EventLogger struct {
	filePath string
	mu       sync.Mutex
}

// NewEventLogger creates a logger writing to filePath.  "~" is expanded and
// the parent directory is created on first write.
func NewEventLogger(filePath string) *EventLogger {
	if expanded, err := homedir.Expand(filePath); err == nil {
		filePath = expanded
	}
	return &EventLogger{filePath: filePath}
}

// Log writes a single event with timestamp.  Errors are reported through
// slog and otherwise ignored.
func (el *EventLogger) Log(format string, args ...any) {
	el.mu.Lock()
	defer el.mu.Unlock()
	msg := fmt.Sprintf(format, args...)
	line := fmt.Sprintf("%s - %s\n", time.Now().Format(time.RFC3339), msg)
	if dir := filepath.Dir(el.filePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			slog.Error("event log", "err", err)
			return
		}
	}
	f, err := os.OpenFile(el.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		slog.Error("event log open", "path", el.filePath, "err", err)
		return
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		slog.Error("event log write", "path", el.filePath, "err", err)
	}
}

// Tail returns at most limit lines from the end of the log, oldest first.
func (el *EventLogger) Tail(limit int) ([]string, error) {
	el.mu.Lock()
	data, err := os.ReadFile(el.filePath)
	el.mu.Unlock()
	if err != nil {
		return nil, err
	}
	lines := strings.Split(string(data), "\n")
	// Drop empty trailing line
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if limit > 0 && len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	return lines, nil
}
