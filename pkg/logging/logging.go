// Package logging builds the slog loggers used across bindparty.
//
// Usage:
//
//	logger := logging.New(logging.WithFormat(logging.FormatJSON), logging.WithLevel(slog.LevelDebug))
//	logger.Info("registry started", "interval", interval)
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format specifies the output format for logs.
type Format string

const (
	// FormatText outputs logs as key=value pairs.
	FormatText Format = "text"
	// FormatJSON outputs logs as JSON objects.
	FormatJSON Format = "json"
)

// Options configures the logger behavior.
type Options struct {
	Format    Format     // Output format: text or json
	Level     slog.Level // Minimum log level
	Writer    io.Writer  // Output writer (default: os.Stderr)
	AddSource bool       // Include caller information
}

// Option configures logger behavior.
type Option func(*Options)

// WithFormat sets the output format.
func WithFormat(format Format) Option {
	return func(o *Options) {
		o.Format = format
	}
}

// WithLevel sets the minimum log level.
func WithLevel(level slog.Level) Option {
	return func(o *Options) {
		o.Level = level
	}
}

// WithWriter sets the output writer.
func WithWriter(w io.Writer) Option {
	return func(o *Options) {
		o.Writer = w
	}
}

// WithSource enables caller information.
func WithSource(enabled bool) Option {
	return func(o *Options) {
		o.AddSource = enabled
	}
}

// New creates a logger with the given options.
func New(opts ...Option) *slog.Logger {
	options := Options{
		Format: FormatText,
		Level:  slog.LevelInfo,
		Writer: os.Stderr,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Writer == nil {
		options.Writer = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     options.Level,
		AddSource: options.AddSource,
	}

	var h slog.Handler
	switch options.Format {
	case FormatJSON:
		h = slog.NewJSONHandler(options.Writer, handlerOpts)
	default:
		h = slog.NewTextHandler(options.Writer, handlerOpts)
	}
	return slog.New(h)
}

// ParseLevel converts debug, info, warn or error into a slog.Level.
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
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
