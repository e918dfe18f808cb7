package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	once   sync.Once
	logger *slog.Logger
)

// Options controls how the process-wide logger is built.
type Options struct {
	// Level is one of DEBUG, INFO, WARN, ERROR (case-insensitive). Anything else means INFO.
	Level string
	// Format is "json" (default) or "text".
	Format string
	// File, when set, receives a copy of every record and is rotated by size.
	File string
	// FileMaxSizeMB and FileMaxAgeDays tune rotation; zero keeps lumberjack
	// defaults (100 MB, no age limit).
	FileMaxSizeMB  int
	FileMaxAgeDays int
}

// Setup initializes the global logger.
// logic: default to INFO. If level is invalid, fallback to INFO.
func Setup(opts Options) {
	once.Do(func() {
		logger = build(opts, os.Stdout)
		slog.SetDefault(logger)
	})
}

func build(opts Options, stdout io.Writer) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{
		Level: parseLevel(opts.Level),
	}

	out := stdout
	if opts.File != "" {
		out = io.MultiWriter(stdout, &lumberjack.Logger{
			Filename: opts.File,
			MaxSize:  opts.FileMaxSizeMB,
			MaxAge:   opts.FileMaxAgeDays,
		})
	}

	var handler slog.Handler
	if strings.EqualFold(opts.Format, "text") {
		handler = slog.NewTextHandler(out, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(out, handlerOpts)
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Get returns the configured logger, or a default one if Setup hasn't been called.
func Get() *slog.Logger {
	if logger == nil {
		Setup(Options{Level: "INFO"})
	}
	return logger
}

// WithComponent returns a logger with the component field set.
func WithComponent(name string) *slog.Logger {
	return Get().With(slog.String("component", name))
}

// WithEvent returns l with the event_id field set, so every record for one
// delivery can be correlated.
func WithEvent(l *slog.Logger, id string) *slog.Logger {
	return l.With(slog.String("event_id", id))
}
