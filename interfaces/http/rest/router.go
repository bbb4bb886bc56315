package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"qdesign-backend/application/services"
	"qdesign-backend/interfaces/http/rest/handlers"
	"qdesign-backend/interfaces/http/rest/middleware"
	"qdesign-backend/pkg/auth"
	"qdesign-backend/pkg/observability"
)

// Services are the application services the REST surface exposes
type Services struct {
	Projects    *services.ProjectService
	Checkpoints *services.CheckpointService
	Pool        *services.PoolService
	Graph       *services.GraphService
	Steps       *services.StepService
	Retrieval   *services.RetrievalService
}

// ReadinessCheck reports whether a dependency can serve traffic
type ReadinessCheck func(ctx context.Context) error

// Router creates and configures the HTTP router
type Router struct {
	services       Services
	validator      *auth.JWTValidator
	metrics        *observability.Collector
	allowedOrigins []string
	realtime       http.Handler
	ready          ReadinessCheck
	logger         *zap.Logger
}

// NewRouter creates a new router instance. realtime may be nil when the
// process only serves REST (Lambda).
func NewRouter(
	svc Services,
	validator *auth.JWTValidator,
	metrics *observability.Collector,
	allowedOrigins []string,
	realtime http.Handler,
	ready ReadinessCheck,
	logger *zap.Logger,
) *Router {
	return &Router{
		services:       svc,
		validator:      validator,
		metrics:        metrics,
		allowedOrigins: allowedOrigins,
		realtime:       realtime,
		ready:          ready,
		logger:         logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))
	router.Use(middleware.Metrics(rt.metrics))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", handlers.SessionHeader},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.metrics != nil {
		router.Handle("/metrics", rt.metrics.Handler())
	}
	if rt.realtime != nil {
		router.Handle("/ws", rt.realtime)
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Authenticate(rt.validator, rt.logger))

		projectHandler := handlers.NewProjectHandler(rt.services.Projects, rt.logger)
		checkpointHandler := handlers.NewCheckpointHandler(rt.services.Checkpoints, rt.logger)
		poolHandler := handlers.NewPoolHandler(rt.services.Pool, rt.logger)
		graphHandler := handlers.NewGraphHandler(rt.services.Graph, rt.logger)
		stepHandler := handlers.NewStepHandler(rt.services.Steps, rt.logger)

		r.Route("/projects", func(r chi.Router) {
			r.Post("/", projectHandler.CreateProject)
			r.Get("/", projectHandler.ListProjects)
			r.Post("/join", projectHandler.JoinProject)

			r.Route("/{projectID}", func(r chi.Router) {
				r.Get("/", projectHandler.GetProject)
				r.Patch("/", projectHandler.UpdateProject)
				r.Delete("/", projectHandler.DeleteProject)

				r.Get("/checkpoints", checkpointHandler.ListCheckpoints)
				r.Post("/checkpoints", checkpointHandler.CreateCheckpoint)
				r.Post("/checkpoints/{checkpointID}/restore", checkpointHandler.RestoreCheckpoint)

				r.Route("/pool", func(r chi.Router) {
					r.Post("/", poolHandler.AddItem)
					r.Patch("/{itemID}", poolHandler.UpdateItem)
					r.Delete("/{itemID}", poolHandler.RemoveItem)
					r.Get("/{itemID}/content", poolHandler.ItemContent)
					r.Post("/{itemID}/comments", poolHandler.AddComment)
					r.Delete("/{itemID}/comments/{commentID}", poolHandler.DeleteComment)
				})

				r.Route("/graph", func(r chi.Router) {
					r.Post("/nodes", graphHandler.AddNode)
					r.Patch("/nodes/{nodeID}", graphHandler.UpdateNode)
					r.Delete("/nodes/{nodeID}", graphHandler.DeleteNode)
					r.Post("/nodes/{nodeID}/notes", graphHandler.AddNote)
					r.Post("/edges", graphHandler.AddEdge)
					r.Delete("/edges/{edgeID}", graphHandler.DeleteEdge)
				})

				r.Route("/steps", func(r chi.Router) {
					r.Post("/", stepHandler.AddStep)
					r.Post("/{stepID}/status", stepHandler.SetStatus)
					r.Post("/{stepID}/comments", stepHandler.AddComment)
				})

				if rt.services.Retrieval != nil {
					retrievalHandler := handlers.NewRetrievalHandler(rt.services.Retrieval, rt.logger)
					r.Post("/retrieval", retrievalHandler.Start)
					r.Get("/retrieval/{taskID}", retrievalHandler.Get)
					r.Delete("/retrieval/{taskID}", retrievalHandler.Cancel)
				}
			})
		})
	})

	return router
}

func (rt *Router) healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

// readinessCheck runs the configured dependency check with a short deadline
func (rt *Router) readinessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if rt.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := rt.ready(ctx); err != nil {
			rt.logger.Warn("Readiness check failed", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ready"}`))
}
