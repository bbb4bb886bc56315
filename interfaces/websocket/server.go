// Package websocket is the realtime channel: project rooms with presence,
// and best-effort fan-out of typed events to the other sessions of a room.
package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"qdesign-backend/application/ports"
	"qdesign-backend/interfaces/http/rest/middleware"
	"qdesign-backend/pkg/auth"
)

// Server upgrades authenticated requests to realtime sessions
type Server struct {
	hub       *Hub
	router    *Router
	validator *auth.JWTValidator
	upgrader  websocket.Upgrader
	cfg       Config
	// base is the parent context of every session; cancelling it aborts
	// in-flight join lookups
	base   context.Context
	logger *zap.Logger
}

// NewServer creates a websocket server. allowedOrigins follows the CORS
// list; "*" accepts any origin.
func NewServer(
	ctx context.Context,
	hub *Hub,
	store ports.ProjectStore,
	validator *auth.JWTValidator,
	cfg Config,
	allowedOrigins []string,
	logger *zap.Logger,
) *Server {
	cfg = cfg.withDefaults()
	logger = logger.With(zap.String("component", "websocket"))
	return &Server{
		hub:       hub,
		router:    NewRouter(hub, store, cfg, logger),
		validator: validator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		cfg:    cfg,
		base:   ctx,
		logger: logger,
	}
}

// ServeHTTP authenticates, enforces the per-user session cap and runs the
// session until it disconnects
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := middleware.ExtractToken(r)
	if token == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	claims, err := s.validator.ValidateToken(token)
	if err != nil {
		s.logger.Debug("WebSocket authentication failed",
			zap.Error(err),
			zap.String("remoteAddr", r.RemoteAddr))
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	user := auth.FromClaims(claims)

	if s.cfg.MaxSessionsPerUser > 0 && s.hub.SessionCount(user.UserID) >= s.cfg.MaxSessionsPerUser {
		s.logger.Warn("Session limit exceeded", zap.String("userID", user.UserID))
		http.Error(w, "Session limit exceeded", http.StatusTooManyRequests)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		s.logger.Debug("Failed to upgrade connection", zap.Error(err))
		return
	}

	client := newClient(user.UserID, user.DisplayName(), s.hub, s.router, conn, s.cfg, s.logger)
	if err := s.hub.register(client); err != nil {
		if errors.Is(err, ErrSessionLimit) {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "session limit exceeded"))
		}
		_ = conn.Close()
		return
	}

	s.logger.Info("Session connected",
		zap.String("userID", user.UserID),
		zap.String("sessionID", client.ID()),
		zap.String("remoteAddr", r.RemoteAddr))
	client.run(s.base)
}

func originChecker(allowed []string) func(r *http.Request) bool {
	allowAll := false
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			allowAll = true
		}
		set[strings.ToLower(strings.TrimRight(o, "/"))] = true
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || allowAll {
			return true
		}
		if set[strings.ToLower(origin)] {
			return true
		}
		// same host is always fine
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}
