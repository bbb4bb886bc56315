package di

import (
	"go.uber.org/zap"

	"qdesign-backend/application/ports"
	"qdesign-backend/infrastructure/config"
	"qdesign-backend/interfaces/http/rest"
	"qdesign-backend/interfaces/websocket"
	"qdesign-backend/pkg/auth"
	"qdesign-backend/pkg/observability"
)

// Container holds all application dependencies
type Container struct {
	Config    *config.Config
	LogLevel  zap.AtomicLevel
	Logger    *zap.Logger
	Metrics   *observability.Collector
	Tracer    *observability.TracerProvider
	Store     ports.ProjectStore
	Validator *auth.JWTValidator
	Services  rest.Services
	Ready     rest.ReadinessCheck
	Hub       *websocket.Hub
	Router    *rest.Router
	Watcher   *config.Watcher
}
