package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tomvsndev/webscaffold/internal/config"
)

// LoggerFactory produces named component loggers sharing one handler
// chain. It is constructed once at process start and threaded through
// constructors; there is no ambient global registry.
type LoggerFactory struct {
	handler slog.Handler
	files   []*os.File
}

// NewLoggerFactory builds the handler chain from configuration: JSON
// output to stdout and/or the app log file, optionally fanned out to
// one file per severity under the configured directory.
func NewLoggerFactory(cfg config.LoggingConfig) (*LoggerFactory, error) {
	f := &LoggerFactory{}

	level := ParseLogLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level}

	var out io.Writer
	switch strings.ToLower(cfg.Output) {
	case "file":
		file, err := f.openLogFile(cfg.FilePath)
		if err != nil {
			f.Close()
			return nil, err
		}
		out = file
	case "both":
		file, err := f.openLogFile(cfg.FilePath)
		if err != nil {
			f.Close()
			return nil, err
		}
		out = io.MultiWriter(os.Stdout, file)
	default:
		out = os.Stdout
	}

	handlers := []slog.Handler{slog.NewJSONHandler(out, opts)}

	if cfg.SeverityFiles {
		severityHandlers, err := f.severityHandlers(cfg.SeverityDir)
		if err != nil {
			f.Close()
			return nil, err
		}
		handlers = append(handlers, severityHandlers...)
	}

	f.handler = &traceHandler{Handler: newFanoutHandler(handlers)}
	return f, nil
}

// Logger returns a logger named for the given component.
func (f *LoggerFactory) Logger(component string) *slog.Logger {
	return slog.New(f.handler).With(slog.String("component", component))
}

// Root returns a logger without a component attribute, for callers
// that tag themselves.
func (f *LoggerFactory) Root() *slog.Logger {
	return slog.New(f.handler)
}

// Close closes every log file the factory opened.
func (f *LoggerFactory) Close() error {
	var errs []error
	for _, file := range f.files {
		if err := file.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	f.files = nil
	return errors.Join(errs...)
}

// severityHandlers opens one log file per severity and returns a
// handler for each that accepts only records of exactly that level.
func (f *LoggerFactory) severityHandlers(dir string) ([]slog.Handler, error) {
	severities := []struct {
		name  string
		level slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}

	handlers := make([]slog.Handler, 0, len(severities))
	for _, sev := range severities {
		file, err := f.openLogFile(filepath.Join(dir, sev.name+".log"))
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, &exactLevelHandler{
			level:   sev.level,
			Handler: slog.NewJSONHandler(file, &slog.HandlerOptions{Level: sev.level}),
		})
	}
	return handlers, nil
}

// openLogFile opens or creates a log file in append mode, creating the
// parent directory if needed, and registers it for Close.
func (f *LoggerFactory) openLogFile(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	f.files = append(f.files, file)
	return file, nil
}

// fanoutHandler dispatches each record to every handler that accepts
// its level.
type fanoutHandler struct {
	handlers []slog.Handler
}

func newFanoutHandler(handlers []slog.Handler) slog.Handler {
	if len(handlers) == 1 {
		return handlers[0]
	}
	return &fanoutHandler{handlers: handlers}
}

func (h *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &fanoutHandler{handlers: handlers}
}

func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &fanoutHandler{handlers: handlers}
}

// exactLevelHandler forwards only records of exactly its level, so a
// severity file holds one severity.
type exactLevelHandler struct {
	slog.Handler
	level slog.Level
}

func (h *exactLevelHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level == h.level
}

func (h *exactLevelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &exactLevelHandler{level: h.level, Handler: h.Handler.WithAttrs(attrs)}
}

func (h *exactLevelHandler) WithGroup(name string) slog.Handler {
	return &exactLevelHandler{level: h.level, Handler: h.Handler.WithGroup(name)}
}

// traceHandler wraps a slog.Handler to automatically inject trace_id
// from context.
type traceHandler struct {
	slog.Handler
}

func (h *traceHandler) Handle(ctx context.Context, r slog.Record) error {
	if traceID := GetTraceID(ctx); traceID != "" {
		r.AddAttrs(slog.String("trace_id", traceID))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *traceHandler) WithGroup(name string) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithGroup(name)}
}

// ParseLogLevel converts a configured log level to slog.Level.
// "critical" maps to the error level; slog has no higher severity.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "critical":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
