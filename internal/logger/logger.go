// Package logger builds the slog loggers used by the CLI, the daemon and the TUI.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default rotation settings
const (
	DefaultMaxSizeMB  = 10
	DefaultMaxBackups = 3
	DefaultMaxAgeDays = 7
)

// Config describes where logs go. An empty File logs to Console, or
// nowhere when Console is nil.
type Config struct {
	File       string
	Level      string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool

	// Console receives colored text when File is empty.
	Console io.Writer
}

// New returns a logger and a closer for the underlying file, if any.
func New(cfg Config) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.File != "" {
		w := &lj.Logger{
			Filename:   cfg.File,
			MaxSize:    valOr(cfg.MaxSizeMB, DefaultMaxSizeMB),
			MaxBackups: valOr(cfg.MaxBackups, DefaultMaxBackups),
			MaxAge:     valOr(cfg.MaxAgeDays, DefaultMaxAgeDays),
			Compress:   cfg.Compress,
		}
		return slog.New(slog.NewJSONHandler(w, opts)), w, nil
	}
	if cfg.Console != nil {
		return slog.New(NewColorTextHandler(cfg.Console, opts, true)), nopCloser{}, nil
	}
	return slog.New(slog.NewTextHandler(io.Discard, opts)), nopCloser{}, nil
}

// Stderr is a shortcut for console logging at the given level.
func Stderr(level string) *slog.Logger {
	l, _, err := New(Config{Level: level, Console: os.Stderr})
	if err != nil {
		l, _, _ = New(Config{Console: os.Stderr})
	}
	return l
}

// ParseLevel accepts debug, info, warn and error. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
