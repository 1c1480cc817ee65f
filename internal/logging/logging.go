// internal/logging/logging.go

// Package logging configures slog for the daemon: JSON to stdout for
// machines, text to stderr for operators, and optional rotating files.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu                  sync.RWMutex
	structuredLogger    *slog.Logger
	humanReadableLogger *slog.Logger
	level               = new(slog.LevelVar)
)

// Init sets up the structured and human-readable loggers at lvl and makes the
// structured one the slog default.
func Init(lvl slog.Level) {
	SetOutput(os.Stdout, os.Stderr)
	SetLevel(lvl)
}

// SetOutput rebuilds both loggers over the given writers. Tests use it to
// capture output.
func SetOutput(structuredOutput, humanReadableOutput io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	structuredLogger = slog.New(slog.NewJSONHandler(structuredOutput, &slog.HandlerOptions{Level: level}))
	humanReadableLogger = slog.New(slog.NewTextHandler(humanReadableOutput, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(structuredLogger)
}

// SetLevel changes the level of every logger created by this package.
func SetLevel(lvl slog.Level) {
	level.Set(lvl)
}

// ParseLevel maps "debug", "info", "warn" and "error" to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("logging: unknown level %q", s)
}

// Structured returns the JSON logger, or nil before Init.
func Structured() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return structuredLogger
}

// HumanReadable returns the text logger, or nil before Init.
func HumanReadable() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return humanReadableLogger
}

// ForService returns the structured logger tagged with service.
// Returns nil if Init has not been called.
func ForService(serviceName string) *slog.Logger {
	l := Structured()
	if l == nil {
		return nil
	}
	return l.With("service", serviceName)
}

// OrDefault returns l, or slog.Default() tagged with service when l is nil.
func OrDefault(l *slog.Logger, serviceName string) *slog.Logger {
	if l != nil {
		return l
	}
	if s := ForService(serviceName); s != nil {
		return s
	}
	return slog.Default().With("service", serviceName)
}

// FileRotation holds lumberjack rotation limits.
type FileRotation struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// NewFileLogger creates a JSON logger writing to filePath with rotation.
// The returned closer flushes and closes the file.
func NewFileLogger(filePath, serviceName string, lvl slog.Leveler, rot FileRotation) (*slog.Logger, func() error, error) {
	dir := filepath.Dir(filePath)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
		}
	}

	w := &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   rot.Compress,
	}
	if rot.MaxSizeMB > 0 {
		w.MaxSize = rot.MaxSizeMB
	}
	if rot.MaxBackups > 0 {
		w.MaxBackups = rot.MaxBackups
	}
	if rot.MaxAgeDays > 0 {
		w.MaxAge = rot.MaxAgeDays
	}

	if lvl == nil {
		lvl = level
	}
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
	if serviceName != "" {
		logger = logger.With("service", serviceName)
	}
	return logger, w.Close, nil
}

// Tee returns a logger that writes every record to both a and b.
func Tee(a, b *slog.Logger) *slog.Logger {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return slog.New(teeHandler{a.Handler(), b.Handler()})
}
