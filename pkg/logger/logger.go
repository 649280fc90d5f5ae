// Package logger provides component-tagged leveled logging for the whole
// process. Every log line carries a component tag ("session", "relay",
// "api", ...) so the mixed output of the event loop, the HTTP server and
// the enrichment workers stays attributable.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	mu    sync.RWMutex
	level = new(slog.LevelVar)
	log   = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
)

// SetLevel adjusts the global log level ("debug", "info", "warn", "error").
// Unknown values fall back to info.
func SetLevel(name string) {
	switch strings.ToLower(name) {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn", "warning":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
}

// SetJSON switches the output format to JSON lines (for log collectors).
func SetJSON() {
	mu.Lock()
	defer mu.Unlock()
	log = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func logWith(lvl slog.Level, component, msg string, fields map[string]interface{}) {
	mu.RLock()
	l := log
	mu.RUnlock()

	attrs := make([]any, 0, 2+2*len(fields))
	attrs = append(attrs, "component", component)
	for k, v := range fields {
		attrs = append(attrs, k, v)
	}
	l.Log(context.Background(), lvl, msg, attrs...)
}

// DebugC logs a debug message for a component.
func DebugC(component, msg string) { logWith(slog.LevelDebug, component, msg, nil) }

// DebugCF logs a debug message with structured fields.
func DebugCF(component, msg string, fields map[string]interface{}) {
	logWith(slog.LevelDebug, component, msg, fields)
}

// InfoC logs an info message for a component.
func InfoC(component, msg string) { logWith(slog.LevelInfo, component, msg, nil) }

// InfoCF logs an info message with structured fields.
func InfoCF(component, msg string, fields map[string]interface{}) {
	logWith(slog.LevelInfo, component, msg, fields)
}

// WarnC logs a warning for a component.
func WarnC(component, msg string) { logWith(slog.LevelWarn, component, msg, nil) }

// WarnCF logs a warning with structured fields.
func WarnCF(component, msg string, fields map[string]interface{}) {
	logWith(slog.LevelWarn, component, msg, fields)
}

// ErrorC logs an error message for a component.
func ErrorC(component, msg string) { logWith(slog.LevelError, component, msg, nil) }

// ErrorCF logs an error message with structured fields.
func ErrorCF(component, msg string, fields map[string]interface{}) {
	logWith(slog.LevelError, component, msg, fields)
}
