package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/tomvsndev/webscaffold/internal/app"
	"github.com/tomvsndev/webscaffold/internal/lifecycle"
)

func main() {
	// Configuration or logging failures abort before any background
	// task starts.
	application, err := app.NewApplication()
	if err != nil {
		slog.Error("failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	heartbeat := lifecycle.NewHeartbeat(
		"heartbeat",
		"hello world",
		5*time.Second,
		application.LoggerFactory.Root(),
	)
	if err := application.Lifecycle.Register(heartbeat); err != nil {
		slog.Error("failed to register background task", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		application.Logger.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
