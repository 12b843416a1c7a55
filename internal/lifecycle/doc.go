// Package lifecycle binds a set of background tasks to the host
// application's startup/shutdown window.
//
// A Task is a unit of indefinitely repeating work that honors
// cooperative cancellation: it must periodically reach a point where it
// observes its context, and it treats cancellation as terminal. The
// Manager spawns one goroutine per registered task at startup and, at
// shutdown, cancels them all and waits for every one to reach a
// terminal state, collecting each task's outcome instead of letting a
// single failure abort the wait.
//
// There is no supervision: a task that returns an error or panics is
// logged and stays terminated until the next process restart. Liveness
// of Stop depends on tasks yielding; a task that busy-loops without
// ever observing its context keeps Stop blocked until the caller's
// wait context expires.
package lifecycle
