// Package services implements the logic layer between HTTP handlers
// and the rest of the scaffold.
//
// Services are interface-friendly, take their dependencies through
// constructors, and propagate context for cancellation and tracing:
//
//	type ServiceName struct {
//	    logger *slog.Logger
//	}
//
//	func NewServiceName(logger *slog.Logger) *ServiceName {
//	    return &ServiceName{logger: logger}
//	}
//
// The scaffold ships one service, HealthService, which reports process
// health, build information, and the state of the registered
// background tasks.
package services
