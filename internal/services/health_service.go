package services

import (
	"context"
	"log/slog"
	"runtime"
	"time"
)

// TaskState describes one background task for the health report.
type TaskState struct {
	Name    string `json:"name"`
	Running bool   `json:"running"`
	Error   string `json:"error,omitempty"`
}

// HealthStatus is the health check response.
type HealthStatus struct {
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Version   string         `json:"version"`
	Runtime   map[string]any `json:"runtime,omitempty"`
	Tasks     []TaskState    `json:"tasks,omitempty"`
}

// VersionInfo is the version endpoint response.
type VersionInfo struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`
}

// HealthService provides process health and version information.
type HealthService struct {
	title       string
	description string
	version     string
	startTime   time.Time
	taskStates  func() []TaskState
	logger      *slog.Logger
}

// NewHealthService creates a health service. taskStates may be nil
// when no background tasks are registered.
func NewHealthService(title, description, version string, taskStates func() []TaskState, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		title:       title,
		description: description,
		version:     version,
		startTime:   time.Now(),
		taskStates:  taskStates,
		logger:      logger.With(slog.String("component", "health")),
	}
}

// HealthCheck reports overall process health, runtime details, and the
// state of every background task.
func (s *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   s.version,
		Runtime: map[string]any{
			"go_version":     runtime.Version(),
			"os":             runtime.GOOS,
			"arch":           runtime.GOARCH,
			"goroutines":     runtime.NumGoroutine(),
			"uptime_seconds": time.Since(s.startTime).Seconds(),
		},
	}

	if s.taskStates != nil {
		status.Tasks = s.taskStates()
		for _, task := range status.Tasks {
			if task.Error != "" {
				status.Status = "degraded"
			}
		}
	}

	return status
}

// LivenessCheck reports that the process is alive.
func (s *HealthService) LivenessCheck(ctx context.Context) map[string]string {
	return map[string]string{"status": "alive"}
}

// ReadinessCheck reports readiness to serve. The scaffold is ready as
// soon as it serves, since background tasks are started first.
func (s *HealthService) ReadinessCheck(ctx context.Context) map[string]string {
	return map[string]string{"status": "ready"}
}

// Version returns the application identity.
func (s *HealthService) Version() VersionInfo {
	return VersionInfo{
		Title:       s.title,
		Description: s.description,
		Version:     s.version,
	}
}
