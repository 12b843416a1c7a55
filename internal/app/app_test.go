package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomvsndev/webscaffold/internal/config"
	"github.com/tomvsndev/webscaffold/internal/lifecycle"
	"github.com/tomvsndev/webscaffold/internal/services"
)

// testConfig returns a configuration suitable for tests: logs go to a
// temp file, traces stay off, and the listener binds an ephemeral port.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Server.Production = true
	cfg.Server.ShutdownTimeout = 5 * time.Second
	cfg.Logging.Output = "file"
	cfg.Logging.FilePath = filepath.Join(t.TempDir(), "app.log")
	cfg.Logging.SeverityFiles = false
	return cfg
}

func newTestApp(t *testing.T, tasks ...lifecycle.Task) *Application {
	t.Helper()
	app, err := NewApplicationWithConfig(testConfig(t), tasks...)
	require.NoError(t, err)
	t.Cleanup(func() { app.LoggerFactory.Close() })
	return app
}

func TestNewApplicationWiring(t *testing.T) {
	app := newTestApp(t)

	assert.NotNil(t, app.Router)
	assert.NotNil(t, app.Server)
	assert.NotNil(t, app.HealthService)
	assert.NotNil(t, app.Lifecycle)
	assert.Equal(t, app.Config.Server.Addr(), app.Server.Addr)
}

func TestHealthEndpoint(t *testing.T) {
	app := newTestApp(t)

	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var status services.HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, app.Config.HTTP.Version, status.Version)
}

func TestVersionEndpoint(t *testing.T) {
	app := newTestApp(t)

	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/version", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var info services.VersionInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, app.Config.HTTP.Title, info.Title)
}

func TestMetricsEndpoint(t *testing.T) {
	app := newTestApp(t)

	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSWildcardByDefault(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://example.com")
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSExplicitOrigins(t *testing.T) {
	cfg := testConfig(t)
	cfg.HTTP.CORSOrigins = "http://localhost:3000,https://app.example.com"
	app, err := NewApplicationWithConfig(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { app.LoggerFactory.Close() })

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://evil.example.com")
	rec = httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStartRunsTasksBeforeListening(t *testing.T) {
	var running atomic.Int32
	task := lifecycle.TaskFunc{
		TaskName: "probe",
		Fn: func(ctx context.Context) error {
			running.Add(1)
			<-ctx.Done()
			return ctx.Err()
		},
	}
	app := newTestApp(t, task)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, app.Start(ctx, cancel))
	assert.Equal(t, int32(1), running.Load(), "task must be running when Start returns")

	states := app.taskStates()
	require.Len(t, states, 1)
	assert.Equal(t, "probe", states[0].Name)
	assert.True(t, states[0].Running)

	require.NoError(t, app.Stop(context.Background()))

	states = app.taskStates()
	require.Len(t, states, 1)
	assert.False(t, states[0].Running)
	assert.Empty(t, states[0].Error, "acknowledged cancellation is not a failure")
}

func TestStopReportsFailedTask(t *testing.T) {
	boom := lifecycle.TaskFunc{
		TaskName: "boom",
		Fn: func(ctx context.Context) error {
			return assert.AnError
		},
	}
	app := newTestApp(t, boom)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, app.Start(ctx, cancel))
	require.NoError(t, app.Stop(context.Background()))

	states := app.taskStates()
	require.Len(t, states, 1)
	assert.False(t, states[0].Running)
	assert.Equal(t, assert.AnError.Error(), states[0].Error)
}

func TestHealthDegradedAfterTaskFailure(t *testing.T) {
	boom := lifecycle.TaskFunc{
		TaskName: "boom",
		Fn: func(ctx context.Context) error {
			return assert.AnError
		},
	}
	app := newTestApp(t, boom)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	app.handles = app.Lifecycle.Start(ctx)

	require.Eventually(t, func() bool {
		states := app.taskStates()
		return len(states) == 1 && !states[0].Running
	}, time.Second, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var status services.HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "degraded", status.Status)
}
