// Package app provides application initialization and lifecycle
// management for the web scaffold. It wires configuration, logging,
// telemetry, the HTTP router, and the background-task lifecycle
// together at startup using dependency injection.
//
// # Initialization Flow
//
//	1. Load and validate configuration from environment and file
//	2. Initialize the logger factory and telemetry providers
//	3. Build the middleware chain and routes
//	4. Start background tasks, then the HTTP listener
//
// # Graceful Shutdown
//
// Run handles SIGINT and SIGTERM. Shutdown drains active requests
// within the configured timeout, cancels every background task and
// waits for it to yield, then flushes telemetry and closes log files.
//
// All initialization errors are returned to the caller; the package
// never calls os.Exit, so main controls the exit process.
package app
