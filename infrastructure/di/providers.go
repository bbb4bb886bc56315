package di

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"qdesign-backend/application/ports"
	"qdesign-backend/application/services"
	"qdesign-backend/infrastructure/blob/gcs"
	blobmemory "qdesign-backend/infrastructure/blob/memory"
	"qdesign-backend/infrastructure/config"
	"qdesign-backend/infrastructure/messaging/eventbridge"
	"qdesign-backend/infrastructure/persistence/badger"
	"qdesign-backend/infrastructure/persistence/dynamodb"
	"qdesign-backend/infrastructure/persistence/memory"
	"qdesign-backend/infrastructure/retrieval"
	"qdesign-backend/interfaces/http/rest"
	"qdesign-backend/interfaces/websocket"
	"qdesign-backend/pkg/auth"
	apperrors "qdesign-backend/pkg/errors"
	"qdesign-backend/pkg/observability"
)

// readinessProbeID is looked up by the readiness check; NotFound proves the
// store answered
const readinessProbeID = "__readiness__"

// ProvideLogLevel creates the adjustable level shared by the logger and the
// config watcher
func ProvideLogLevel(cfg *config.Config) (zap.AtomicLevel, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return zap.AtomicLevel{}, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	return zap.NewAtomicLevelAt(level), nil
}

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config, level zap.AtomicLevel) (*zap.Logger, func(), error) {
	var zcfg zap.Config
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = level

	logger, err := zcfg.Build()
	if err != nil {
		return nil, nil, err
	}
	logger = logger.With(zap.String("environment", string(cfg.Environment)))
	return logger, func() { _ = logger.Sync() }, nil
}

// ProvideMetrics returns the Prometheus collector, or nil when metrics are off
func ProvideMetrics(cfg *config.Config) *observability.Collector {
	if !cfg.Observability.MetricsEnabled {
		return nil
	}
	return observability.NewCollector("qdesign")
}

// ProvideTracer installs the tracer provider
func ProvideTracer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*observability.TracerProvider, func(), error) {
	tp, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Observability.TracingEnabled,
		ServiceName: "qdesign-backend",
		Environment: string(cfg.Environment),
		Endpoint:    cfg.Observability.OTLPEndpoint,
		SampleRate:  cfg.Observability.SampleRate,
		Insecure:    !cfg.IsProduction(),
	})
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Warn("Tracer shutdown failed", zap.Error(err))
		}
	}
	return tp, cleanup, nil
}

// ProvideProjectStore opens the configured project store
func ProvideProjectStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ports.ProjectStore, func(), error) {
	switch cfg.Store.Provider {
	case "dynamodb":
		client, err := dynamodb.NewClient(ctx, cfg.Store.Region, cfg.Store.Endpoint)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Using DynamoDB project store", zap.String("table", cfg.Store.TableName))
		return dynamodb.NewProjectStore(client, cfg.Store.TableName, logger), func() {}, nil

	case "badger":
		store, err := badger.Open(badger.Options{
			Path:     cfg.Store.BadgerPath,
			InMemory: cfg.Store.InMemory,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Using Badger project store",
			zap.String("path", cfg.Store.BadgerPath),
			zap.Bool("inMemory", cfg.Store.InMemory))
		cleanup := func() {
			if err := store.Close(); err != nil {
				logger.Error("Failed to close badger store", zap.Error(err))
			}
		}
		return store, cleanup, nil

	default:
		logger.Warn("Using in-memory project store; data is lost on restart")
		return memory.NewProjectStore(), func() {}, nil
	}
}

// ProvideBlobStore opens the configured artifact store
func ProvideBlobStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ports.BlobStore, func(), error) {
	if cfg.Blob.Provider != "gcs" {
		return blobmemory.NewStore(), func() {}, nil
	}

	client, err := gcs.NewClient(ctx, "")
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := client.Close(); err != nil {
			logger.Warn("Failed to close GCS client", zap.Error(err))
		}
	}
	return gcs.NewStore(client, cfg.Blob.Bucket, cfg.Blob.Prefix, logger), cleanup, nil
}

// ProvideEventPublisher creates the lifecycle event publisher
func ProvideEventPublisher(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ports.EventPublisher, error) {
	if !cfg.Events.Enabled {
		return eventbridge.NewNopPublisher(logger), nil
	}
	client, err := eventbridge.NewClient(ctx, cfg.Store.Region)
	if err != nil {
		return nil, err
	}
	return eventbridge.NewPublisher(client, cfg.Events.BusName, cfg.Events.Source, logger), nil
}

// ProvideRetrievalClient creates the retrieval service client. Without a base
// URL the retrieval feature is disabled and nil is returned.
func ProvideRetrievalClient(cfg *config.Config, logger *zap.Logger) (*retrieval.Client, error) {
	if cfg.Retrieval.BaseURL == "" {
		return nil, nil
	}
	return retrieval.NewClient(retrieval.Config{
		BaseURL:          cfg.Retrieval.BaseURL,
		RequestTimeout:   cfg.Retrieval.RequestTimeout,
		BreakerFailures:  cfg.Retrieval.BreakerFailures,
		BreakerOpenDelay: cfg.Retrieval.BreakerOpenDelay,
	}, nil, logger)
}

// ProvideJWTValidator creates the token validator shared by REST and websocket
func ProvideJWTValidator(cfg *config.Config) (*auth.JWTValidator, error) {
	var audience []string
	if cfg.Auth.Audience != "" {
		audience = []string{cfg.Auth.Audience}
	}
	return auth.NewJWTValidator(auth.JWTConfig{
		SigningMethod: "HS256",
		SecretKey:     cfg.Auth.JWTSecret,
		Issuer:        cfg.Auth.Issuer,
		Audience:      audience,
	})
}

// ProvideRealtimeConfig maps the realtime section onto session settings
func ProvideRealtimeConfig(cfg *config.Config) websocket.Config {
	rc := cfg.Realtime
	wc := websocket.DefaultConfig()
	wc.SendBuffer = rc.SendBuffer
	wc.MaxMessageSize = rc.MaxMessageSize
	wc.PingInterval = rc.PingInterval
	wc.PongWait = rc.PongWait
	wc.WriteWait = rc.WriteWait
	wc.InboundRate = rc.InboundRate
	wc.InboundBurst = rc.InboundBurst
	wc.MaxSessionsPerUser = rc.MaxSessionsPerUser
	return wc
}

// ProvideHub creates the room registry
func ProvideHub(wc websocket.Config, metrics *observability.Collector, logger *zap.Logger) *websocket.Hub {
	return websocket.NewHub(wc.MaxSessionsPerUser, metrics, logger)
}

// ProvideRoomNotifier exposes the hub to the application services
func ProvideRoomNotifier(hub *websocket.Hub) ports.RoomNotifier {
	return hub
}

// ProvideWebSocketServer creates the /ws handler
func ProvideWebSocketServer(
	ctx context.Context,
	hub *websocket.Hub,
	store ports.ProjectStore,
	validator *auth.JWTValidator,
	wc websocket.Config,
	cfg *config.Config,
	logger *zap.Logger,
) *websocket.Server {
	return websocket.NewServer(ctx, hub, store, validator, wc, cfg.Server.AllowedOrigins, logger)
}

// ProvideDocuments creates the shared load/mutate/save helper
func ProvideDocuments(
	store ports.ProjectStore,
	metrics *observability.Collector,
	tracer *observability.TracerProvider,
	logger *zap.Logger,
) *services.Documents {
	return services.NewDocuments(store, metrics, tracer, logger)
}

// ProvideProjectService creates the project service
func ProvideProjectService(
	docs *services.Documents,
	notifier ports.RoomNotifier,
	publisher ports.EventPublisher,
	logger *zap.Logger,
) *services.ProjectService {
	return services.NewProjectService(docs, notifier, publisher, logger)
}

// ProvideCheckpointService creates the checkpoint service
func ProvideCheckpointService(
	docs *services.Documents,
	notifier ports.RoomNotifier,
	publisher ports.EventPublisher,
	logger *zap.Logger,
) *services.CheckpointService {
	return services.NewCheckpointService(docs, notifier, publisher, logger)
}

// ProvidePoolService creates the data pool service
func ProvidePoolService(
	docs *services.Documents,
	blobs ports.BlobStore,
	cfg *config.Config,
	logger *zap.Logger,
) *services.PoolService {
	return services.NewPoolService(docs, blobs, cfg.Blob.InlineThreshold, logger)
}

// ProvideGraphService creates the knowledge graph service
func ProvideGraphService(docs *services.Documents, logger *zap.Logger) *services.GraphService {
	return services.NewGraphService(docs, logger)
}

// ProvideStepService creates the co-scientist step service
func ProvideStepService(docs *services.Documents, logger *zap.Logger) *services.StepService {
	return services.NewStepService(docs, logger)
}

// ProvideRetrievalService creates the retrieval task service, or nil when no
// retrieval client is configured
func ProvideRetrievalService(
	docs *services.Documents,
	pool *services.PoolService,
	client *retrieval.Client,
	notifier ports.RoomNotifier,
	cfg *config.Config,
	logger *zap.Logger,
) (*services.RetrievalService, func()) {
	if client == nil {
		logger.Info("Retrieval service disabled, no base URL configured")
		return nil, func() {}
	}
	svc := services.NewRetrievalService(docs, pool, client, notifier, services.RetrievalConfig{
		PollInterval: cfg.Retrieval.PollInterval,
		Timeout:      cfg.Retrieval.Timeout,
	}, logger)
	return svc, svc.Close
}

// ProvideReadinessCheck reports whether the project store answers
func ProvideReadinessCheck(store ports.ProjectStore) rest.ReadinessCheck {
	return func(ctx context.Context) error {
		_, err := store.GetByID(ctx, readinessProbeID)
		if err == nil || apperrors.IsNotFound(err) {
			return nil
		}
		return err
	}
}

// ProvideRouter creates the HTTP router with the websocket endpoint mounted
func ProvideRouter(
	svc rest.Services,
	validator *auth.JWTValidator,
	metrics *observability.Collector,
	ws *websocket.Server,
	ready rest.ReadinessCheck,
	cfg *config.Config,
	logger *zap.Logger,
) *rest.Router {
	return rest.NewRouter(svc, validator, metrics, cfg.Server.AllowedOrigins, ws, ready, logger)
}

// ProvideConfigWatcher creates the hot-reload watcher for the config file
func ProvideConfigWatcher(cfg *config.Config, logger *zap.Logger) *config.Watcher {
	return config.NewWatcher(cfg, logger)
}
