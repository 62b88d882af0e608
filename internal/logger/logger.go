// Package logger is the process-wide leveled logger used by the relay server.
//
// The API mirrors the printf-style helpers used across the codebase
// (Tracef/Debugf/Infof/Warnf/Errorf) and is backed by charmbracelet/log.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	charmlog "github.com/charmbracelet/log"
)

// Level is the verbosity threshold used by the logger.
//
// Lower values are more verbose.
type Level = charmlog.Level

const (
	// LevelTrace enables extremely verbose logs (every inbound channel event).
	LevelTrace Level = charmlog.DebugLevel - 4
	// LevelDebug enables verbose logs intended for debugging.
	LevelDebug = charmlog.DebugLevel
	// LevelInfo enables informational logs (default).
	LevelInfo = charmlog.InfoLevel
	// LevelWarn enables only warnings and errors.
	LevelWarn = charmlog.WarnLevel
	// LevelError enables only error logs.
	LevelError = charmlog.ErrorLevel
)

var (
	mu  sync.RWMutex
	std = newLogger(os.Stderr)
)

func newLogger(w io.Writer) *charmlog.Logger {
	l := charmlog.NewWithOptions(w, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
		Level:           LevelInfo,
	})
	return l
}

func current() *charmlog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return std
}

// ParseLevel parses a log level string into a Level.
func ParseLevel(raw string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", raw)
	}
}

// SetOutput replaces the writer used by the global logger. The current level
// is preserved.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	level := std.GetLevel()
	std = newLogger(w)
	std.SetLevel(level)
}

// SetLevel sets the global log level threshold.
func SetLevel(level Level) {
	current().SetLevel(level)
}

// Enabled reports whether a level would be emitted by the current configuration.
func Enabled(level Level) bool {
	return level >= current().GetLevel()
}

// Tracef logs at TRACE level.
func Tracef(format string, args ...any) {
	if !Enabled(LevelTrace) {
		return
	}
	current().Logf(LevelTrace, "TRACE "+format, args...)
}

// Debugf logs at DEBUG level.
func Debugf(format string, args ...any) {
	current().Debugf(format, args...)
}

// Infof logs at INFO level.
func Infof(format string, args ...any) {
	current().Infof(format, args...)
}

// Warnf logs at WARN level.
func Warnf(format string, args ...any) {
	current().Warnf(format, args...)
}

// Errorf logs at ERROR level.
func Errorf(format string, args ...any) {
	current().Errorf(format, args...)
}
