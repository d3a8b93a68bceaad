package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mineichen/rigcore/internal/infrastructure/config"
)

// levelNames maps config strings to slog levels. Unknown names fall
// back to info so a typo in config.yaml degrades loudly, not silently.
var levelNames = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// Logger is the structured logger handed to every rigcore component.
// It embeds slog.Logger, so the call surface is Debug/Info/Warn/Error
// with alternating key-value args.
//
// Every record carries the service name and build version so log
// aggregation can tell rigcore instances apart.
type Logger struct {
	*slog.Logger
}

// New builds a Logger from the logging section of config.yaml.
//
// Format "text" produces human-readable output for development;
// anything else selects JSON for machine ingestion. Output may be
// "stdout" (default), "stderr" or "discard".
//
// Parameters:
//   - cfg: Logging configuration
//   - version: Build version stamped on every record
//
// Returns:
//   - *Logger: Ready-to-use logger
func New(cfg config.LoggingConfig, version string) *Logger {
	return newWithWriter(cfg, version, outputWriter(cfg.Output))
}

// newWithWriter is New with an explicit destination. Tests use it to
// capture records in a buffer.
func newWithWriter(cfg config.LoggingConfig, version string, w io.Writer) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "rigcore"),
		slog.String("version", version),
	})

	return &Logger{Logger: slog.New(handler)}
}

// outputWriter resolves a configured output name to a destination.
func outputWriter(name string) io.Writer {
	switch strings.ToLower(name) {
	case "stderr":
		return os.Stderr
	case "discard":
		return io.Discard
	default:
		return os.Stdout
	}
}

// parseLevel converts a config string to a slog.Level, defaulting to
// info for unknown or empty values.
func parseLevel(name string) slog.Level {
	if level, ok := levelNames[strings.ToLower(name)]; ok {
		return level
	}
	return slog.LevelInfo
}

// With returns a child logger carrying additional default attributes.
//
// Example:
//
//	eventLog := logger.With("component", "events")
//	eventLog.Info("connected") // includes component=events
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default returns the early-startup logger used before config.yaml is
// loaded: JSON to stdout at info level, version "dev".
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}, "dev")
}
