package infrastructure

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// contextKey is a type for context keys.
type contextKey string

// TraceIDContextKey is the key for storing trace ID in context.
const TraceIDContextKey contextKey = "trace_id"

// GenerateTraceID creates a new unique trace ID using UUID v4.
func GenerateTraceID() string {
	return uuid.New().String()
}

// WithTraceID adds a trace ID to the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDContextKey, traceID)
}

// GetTraceID retrieves the trace ID from context.
func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDContextKey).(string); ok {
		return traceID
	}
	return ""
}

// EnsureTraceID ensures the context has a trace ID, generating one if needed.
func EnsureTraceID(ctx context.Context) context.Context {
	if GetTraceID(ctx) == "" {
		return WithTraceID(ctx, GenerateTraceID())
	}
	return ctx
}

// WithComponent creates a logger with a component field.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With("component", component)
}

// WithError creates a logger with an error field.
func WithError(logger *slog.Logger, err error) *slog.Logger {
	if err == nil {
		return logger
	}
	return logger.With("error", err.Error())
}
