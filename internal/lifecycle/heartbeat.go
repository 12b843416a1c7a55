package lifecycle

import (
	"context"
	"log/slog"
	"time"
)

// Heartbeat is a demo background task: it logs a message, waits one
// interval, and repeats until cancelled.
type Heartbeat struct {
	name     string
	message  string
	interval time.Duration
	logger   *slog.Logger
}

// NewHeartbeat creates a heartbeat task logging message every interval.
func NewHeartbeat(name, message string, interval time.Duration, logger *slog.Logger) *Heartbeat {
	if logger == nil {
		logger = slog.Default()
	}
	return &Heartbeat{
		name:     name,
		message:  message,
		interval: interval,
		logger:   logger.With(slog.String("component", name)),
	}
}

func (h *Heartbeat) Name() string { return h.name }

// Run logs the configured message once per interval. The timed wait is
// the task's suspension point; cancellation is acknowledged with a
// single log line and ctx.Err().
func (h *Heartbeat) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.logger.InfoContext(ctx, h.message)
	for {
		select {
		case <-ctx.Done():
			h.logger.InfoContext(ctx, "heartbeat stopped")
			return ctx.Err()
		case <-ticker.C:
			h.logger.InfoContext(ctx, h.message)
		}
	}
}
