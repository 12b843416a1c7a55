package lifecycle

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer is a goroutine-safe log sink for tests.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestHeartbeatLogsAndStopsOnCancel(t *testing.T) {
	buf := &syncBuffer{}
	logger := slog.New(slog.NewJSONHandler(buf, nil))

	hb := NewHeartbeat("demo", "hello world", 10*time.Millisecond, logger)
	assert.Equal(t, "demo", hb.Name())

	m := NewManager(testLogger(), hb)
	handles := m.Start(context.Background())

	// Let a few beats land.
	time.Sleep(35 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Stop(ctx, handles))
	assert.ErrorIs(t, handles[0].Err(), context.Canceled)

	out := buf.String()
	assert.GreaterOrEqual(t, strings.Count(out, "hello world"), 2)
	assert.Equal(t, 1, strings.Count(out, "heartbeat stopped"),
		"exactly one log line confirms cancellation")
}

func TestHeartbeatLogsImmediately(t *testing.T) {
	buf := &syncBuffer{}
	logger := slog.New(slog.NewJSONHandler(buf, nil))

	hb := NewHeartbeat("demo", "hello world", time.Hour, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hb.Run(ctx) }()

	// First message is emitted before the first interval elapses.
	require.Eventually(t, func() bool {
		return strings.Contains(buf.String(), "hello world")
	}, time.Second, time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
