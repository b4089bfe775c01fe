// Package logging provides the daemon's package-level structured logger,
// grounded on the teacher's initLogger in node.go.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Logger is the process-wide structured logger. Set by Init; defaults to an
// info-level logger so packages can log before Init runs in tests.
var Logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// Init initializes Logger based on the spec's five-level log enum
// (debug|minor|normal|warning|error), mapping the WoT-specific "minor" and
// "normal" levels onto slog's four levels.
func Init(logLevel string) {
	var level slog.Level
	switch strings.ToLower(logLevel) {
	case "debug", "minor":
		level = slog.LevelDebug
	case "normal", "info":
		level = slog.LevelInfo
	case "warning", "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	Logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
}
