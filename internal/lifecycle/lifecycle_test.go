package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// blockUntilCancelled is a well-behaved task: it parks on the context
// and acknowledges cancellation.
func blockUntilCancelled(name string) Task {
	return TaskFunc{
		TaskName: name,
		Fn: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}
}

func TestStartReturnsOrderedHandles(t *testing.T) {
	const k = 5

	tasks := make([]Task, 0, k)
	for i := 0; i < k; i++ {
		tasks = append(tasks, blockUntilCancelled(fmt.Sprintf("task-%d", i)))
	}

	m := NewManager(testLogger(), tasks...)
	handles := m.Start(context.Background())

	require.Len(t, handles, k)
	for i, h := range handles {
		assert.Equal(t, fmt.Sprintf("task-%d", i), h.Name())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Stop(ctx, handles))
}

func TestStartWithNoTasks(t *testing.T) {
	m := NewManager(testLogger())
	handles := m.Start(context.Background())
	assert.Empty(t, handles)
	assert.NoError(t, m.Stop(context.Background(), handles))
}

func TestTasksObservablyRunningBeforeStartReturns(t *testing.T) {
	const k = 8

	var running atomic.Int32
	tasks := make([]Task, 0, k)
	for i := 0; i < k; i++ {
		tasks = append(tasks, TaskFunc{
			TaskName: fmt.Sprintf("task-%d", i),
			Fn: func(ctx context.Context) error {
				running.Add(1)
				<-ctx.Done()
				return ctx.Err()
			},
		})
	}

	m := NewManager(testLogger(), tasks...)
	handles := m.Start(context.Background())

	// Every goroutine was scheduled by the time Start returned; give
	// the task bodies a moment to reach their suspension point.
	assert.Eventually(t, func() bool {
		return running.Load() == k
	}, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Stop(ctx, handles))
}

func TestStopCollectsAllOutcomes(t *testing.T) {
	taskErr := errors.New("boom")

	tasks := []Task{
		// Completes normally, ignoring cancellation.
		TaskFunc{TaskName: "completes", Fn: func(ctx context.Context) error {
			return nil
		}},
		// Acknowledges cancellation.
		blockUntilCancelled("cancelled"),
		// Fails on its own.
		TaskFunc{TaskName: "fails", Fn: func(ctx context.Context) error {
			return taskErr
		}},
		// Panics.
		TaskFunc{TaskName: "panics", Fn: func(ctx context.Context) error {
			panic("kaboom")
		}},
	}

	m := NewManager(testLogger(), tasks...)
	handles := m.Start(context.Background())
	require.Len(t, handles, 4)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Stop(ctx, handles), "individual task failures must not fail Stop")

	assert.NoError(t, handles[0].Err())
	assert.ErrorIs(t, handles[1].Err(), context.Canceled)
	assert.ErrorIs(t, handles[2].Err(), taskErr)
	require.Error(t, handles[3].Err())
	assert.Contains(t, handles[3].Err().Error(), "task panic")

	for _, h := range handles {
		select {
		case <-h.Done():
		default:
			t.Fatalf("task %q not terminated after Stop", h.Name())
		}
	}
}

func TestStopIdempotentOverCompletedTasks(t *testing.T) {
	m := NewManager(testLogger(), TaskFunc{TaskName: "quick", Fn: func(ctx context.Context) error {
		return nil
	}})
	handles := m.Start(context.Background())

	// Let the task finish before stopping.
	<-handles[0].Done()

	require.NoError(t, m.Stop(context.Background(), handles))
	require.NoError(t, m.Stop(context.Background(), handles))
}

func TestStopTimesOutOnNonYieldingTask(t *testing.T) {
	// A task that never observes its context: Stop cannot converge and
	// must surface the wait context's expiry instead.
	stuck := make(chan struct{})
	t.Cleanup(func() { close(stuck) })

	m := NewManager(testLogger(), TaskFunc{TaskName: "stuck", Fn: func(ctx context.Context) error {
		<-stuck
		return nil
	}})
	handles := m.Start(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := m.Stop(ctx, handles)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), `"stuck"`)
}

func TestRegisterAfterStartFails(t *testing.T) {
	m := NewManager(testLogger())
	require.NoError(t, m.Register(blockUntilCancelled("early")))

	handles := m.Start(context.Background())
	assert.Equal(t, 1, m.TaskCount())

	err := m.Register(blockUntilCancelled("late"))
	require.Error(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Stop(ctx, handles))
}

func TestParentContextCancelsTasks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	m := NewManager(testLogger(), blockUntilCancelled("bound"))
	handles := m.Start(ctx)

	cancel()

	select {
	case <-handles[0].Done():
		assert.ErrorIs(t, handles[0].Err(), context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("task did not terminate on parent cancellation")
	}
}

func TestHandleCancelSafeToRepeat(t *testing.T) {
	m := NewManager(testLogger(), blockUntilCancelled("repeat"))
	handles := m.Start(context.Background())

	handles[0].Cancel()
	handles[0].Cancel()
	<-handles[0].Done()
	handles[0].Cancel()

	require.NoError(t, m.Stop(context.Background(), handles))
}
