package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// Task is a polymorphic unit of repeating background work. Run executes
// until its context is cancelled; it must periodically observe the
// context so that shutdown converges in bounded time. Returning
// ctx.Err() on cancellation is the conventional acknowledgment.
type Task interface {
	Name() string
	Run(ctx context.Context) error
}

// TaskFunc adapts a function to the Task interface.
type TaskFunc struct {
	TaskName string
	Fn       func(ctx context.Context) error
}

func (t TaskFunc) Name() string { return t.TaskName }

func (t TaskFunc) Run(ctx context.Context) error { return t.Fn(ctx) }

// Handle is an opaque reference to a running task's goroutine, used
// only to request cancellation and await termination.
type Handle struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Name returns the task name the handle belongs to.
func (h *Handle) Name() string { return h.name }

// Cancel requests cooperative cancellation. Safe to call more than
// once and after the task has already terminated.
func (h *Handle) Cancel() { h.cancel() }

// Done is closed once the task has reached a terminal state.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Err returns the task's terminal outcome. Only valid after Done is
// closed: nil for normal completion, context.Canceled for an
// acknowledged cancellation, anything else for a failure.
func (h *Handle) Err() error { return h.err }

// Manager owns the registered background tasks for the application's
// lifetime and coordinates their startup and shutdown.
type Manager struct {
	logger *slog.Logger

	mu      sync.Mutex
	tasks   []Task
	started bool
}

// NewManager creates a manager owning the given tasks.
func NewManager(logger *slog.Logger, tasks ...Task) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger: logger.With(slog.String("component", "lifecycle")),
		tasks:  append([]Task(nil), tasks...),
	}
}

// Register adds a task. Registration is only allowed before Start.
func (m *Manager) Register(t Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return errors.New("lifecycle: cannot register a task after start")
	}
	m.tasks = append(m.tasks, t)
	return nil
}

// Start spawns one goroutine per registered task, in registration
// order, and returns one handle per task in the same order. All task
// goroutines are running when Start returns; Start itself does not
// block on any task's work. The parent context bounds every task: its
// cancellation cancels them all.
func (m *Manager) Start(ctx context.Context) []*Handle {
	m.mu.Lock()
	tasks := m.tasks
	m.started = true
	m.mu.Unlock()

	handles := make([]*Handle, 0, len(tasks))

	var running sync.WaitGroup
	for _, t := range tasks {
		taskCtx, cancel := context.WithCancel(ctx)
		h := &Handle{
			name:   t.Name(),
			cancel: cancel,
			done:   make(chan struct{}),
		}
		handles = append(handles, h)

		running.Add(1)
		go m.run(taskCtx, t, h, &running)

		m.logger.Info("background task started", slog.String("task", t.Name()))
	}

	// All goroutines have begun executing before the host may serve.
	running.Wait()

	return handles
}

// run executes a single task, recording its terminal outcome. A panic
// is recovered and treated as a task failure; it never takes down the
// process.
func (m *Manager) run(ctx context.Context, t Task, h *Handle, running *sync.WaitGroup) {
	defer close(h.done)
	defer func() {
		if r := recover(); r != nil {
			h.err = fmt.Errorf("task panic: %v", r)
			m.logger.Error("background task panicked",
				slog.String("task", t.Name()),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
	}()

	running.Done()
	h.err = t.Run(ctx)
}

// Stop requests cancellation of every handle, then waits for all of
// them to reach a terminal state. Each task's outcome is logged;
// an individual task failure never fails Stop. Stop returns an error
// only if ctx expires while waiting, which is the escape hatch for a
// task that never yields.
func (m *Manager) Stop(ctx context.Context, handles []*Handle) error {
	for _, h := range handles {
		h.Cancel()
	}

	for _, h := range handles {
		select {
		case <-h.done:
			m.logOutcome(h)
		case <-ctx.Done():
			return fmt.Errorf("lifecycle: aborted waiting for task %q: %w", h.name, ctx.Err())
		}
	}

	return nil
}

func (m *Manager) logOutcome(h *Handle) {
	switch {
	case h.err == nil:
		m.logger.Info("background task completed", slog.String("task", h.name))
	case errors.Is(h.err, context.Canceled):
		m.logger.Info("background task cancelled", slog.String("task", h.name))
	default:
		m.logger.Error("background task failed",
			slog.String("task", h.name),
			slog.String("error", h.err.Error()))
	}
}

// TaskCount returns the number of registered tasks.
func (m *Manager) TaskCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}
