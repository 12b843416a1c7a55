package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"golang.org/x/sync/errgroup"

	"github.com/tomvsndev/webscaffold/internal/config"
	"github.com/tomvsndev/webscaffold/internal/infrastructure"
	"github.com/tomvsndev/webscaffold/internal/lifecycle"
	customMiddleware "github.com/tomvsndev/webscaffold/internal/middleware"
	"github.com/tomvsndev/webscaffold/internal/services"
	handlers "github.com/tomvsndev/webscaffold/internal/transport/http"
)

// Application is the main application container. It owns the
// configuration, the HTTP server, the logger factory, the telemetry
// providers, and the background-task lifecycle.
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	LoggerFactory *infrastructure.LoggerFactory
	OTelProviders *infrastructure.OTelProviders
	HealthService *services.HealthService
	Lifecycle     *lifecycle.Manager

	requestMetrics *infrastructure.RequestMetrics
	handles        []*lifecycle.Handle
}

// NewApplication creates an application instance with dependency
// injection. The given tasks run for the server's lifetime: they are
// started during Start and cancelled during Stop.
func NewApplication(tasks ...lifecycle.Task) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return NewApplicationWithConfig(cfg, tasks...)
}

// NewApplicationWithConfig is NewApplication with an already-validated
// configuration.
func NewApplicationWithConfig(cfg *config.Config, tasks ...lifecycle.Task) (*Application, error) {
	factory, err := infrastructure.NewLoggerFactory(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger := factory.Logger("app")
	logger.Info("application starting",
		slog.String("title", cfg.HTTP.Title),
		slog.String("version", cfg.HTTP.Version),
		slog.String("addr", cfg.Server.Addr()),
		slog.Bool("production", cfg.Server.Production))

	if cfg.Server.Reload {
		// Binary restarts are an external concern; the flag is accepted
		// for parity but has no in-process effect.
		logger.Warn("reload requested but not handled in-process")
	}

	setProcessTitle(cfg.HTTP.Title)

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.NewOTelConfig(cfg), logger)
	if err != nil {
		factory.Close()
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	requestMetrics, err := infrastructure.CreateRequestMetrics(otelProviders.Meter)
	if err != nil {
		logger.Warn("request metrics unavailable", slog.String("error", err.Error()))
	}

	app := &Application{
		Config:         cfg,
		Logger:         logger,
		LoggerFactory:  factory,
		OTelProviders:  otelProviders,
		Lifecycle:      lifecycle.NewManager(factory.Root(), tasks...),
		requestMetrics: requestMetrics,
	}

	app.HealthService = services.NewHealthService(
		cfg.HTTP.Title,
		cfg.HTTP.Description,
		cfg.HTTP.Version,
		app.taskStates,
		factory.Logger("health"),
	)

	app.setupRouter()
	app.createServer()

	return app, nil
}

// taskStates reports the current state of every background task for
// the health endpoint.
func (a *Application) taskStates() []services.TaskState {
	states := make([]services.TaskState, 0, len(a.handles))
	for _, h := range a.handles {
		state := services.TaskState{Name: h.Name(), Running: true}
		select {
		case <-h.Done():
			state.Running = false
			// An acknowledged cancellation is a clean exit, not a failure.
			if err := h.Err(); err != nil && !errors.Is(err, context.Canceled) {
				state.Error = err.Error()
			}
		default:
		}
		states = append(states, state)
	}
	return states
}

// setupRouter configures the HTTP router with middleware and routes.
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// Ordering: RequestID → RealIP → metrics → logger → recoverer,
	// then response-shaping middleware.
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(customMiddleware.RequestMetrics(a.requestMetrics))
	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(customMiddleware.Recoverer(a.Logger))
	r.Use(customMiddleware.SecurityHeaders)
	r.Use(customMiddleware.CORS(a.corsConfig()))
	r.Use(customMiddleware.Compress(5))

	if a.Config.HTTP.RateLimit.Enabled {
		r.Use(customMiddleware.NewRateLimiter(
			a.Config.HTTP.RateLimit.RPS,
			a.Config.HTTP.RateLimit.Burst,
			a.Logger,
		).Handler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(customMiddleware.Timeout(a.Config.Server.ReadTimeout, a.Logger))

		healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
		r.Get("/health", healthHandler.HealthCheck)
		r.Get("/health/ready", healthHandler.ReadinessCheck)
		r.Get("/health/live", healthHandler.LivenessCheck)
		r.Get("/version", healthHandler.Version)
	})

	// Prometheus endpoint stays outside the middleware chain.
	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
}

// corsConfig builds the CORS middleware configuration from the
// configured origins. Credentials are only allowed when origins are
// explicit; a wildcard with credentials would be rejected by browsers.
func (a *Application) corsConfig() customMiddleware.CORSConfig {
	cfg := customMiddleware.CORSConfig{
		AllowedOrigins: a.Config.HTTP.Origins(),
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Request-ID",
			"X-Requested-With",
		},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: !a.Config.HTTP.AllowAllOrigins(),
		MaxAge:           300,
		Logger:           a.Logger,
	}

	a.Logger.Info("CORS configured",
		slog.Any("allowed_origins", cfg.AllowedOrigins),
		slog.Bool("allow_credentials", cfg.AllowCredentials))

	return cfg
}

// createServer creates the HTTP server.
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         a.Config.Server.Addr(),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// Start starts the background tasks and then the HTTP listener. Every
// task is observably running before the server begins accepting
// connections. A listener error cancels the supplied context via
// cancel.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.handles = a.Lifecycle.Start(ctx)

	a.Logger.InfoContext(ctx, "background tasks started",
		slog.Int("count", len(a.handles)))

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "application started",
		slog.String("address", fmt.Sprintf("http://%s", a.Config.Server.Addr())))

	return nil
}

// Stop gracefully stops the application: HTTP server first so no new
// requests arrive, then the background tasks, then telemetry and the
// log files.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var firstErr error

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		firstErr = fmt.Errorf("server shutdown error: %w", err)
		a.Logger.ErrorContext(ctx, "server shutdown error", slog.String("error", err.Error()))
	}

	if err := a.Lifecycle.Stop(shutdownCtx, a.handles); err != nil {
		if firstErr == nil {
			firstErr = err
		}
		a.Logger.ErrorContext(ctx, "background task shutdown error", slog.String("error", err.Error()))
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "error shutting down telemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "application shutdown complete")

	if err := a.LoggerFactory.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Run runs the application until interrupted by SIGINT or SIGTERM,
// then shuts it down gracefully.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case sig := <-sigChan:
			a.Logger.Info("received signal", slog.String("signal", sig.String()))
		case <-gctx.Done():
		}
		cancel()
		return nil
	})

	<-ctx.Done()
	g.Wait()

	// The run context is cancelled; shut down on a fresh one so the
	// graceful timeout still applies.
	stopCtx, stopCancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout+5*time.Second)
	defer stopCancel()
	return a.Stop(stopCtx)
}
