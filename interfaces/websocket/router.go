package websocket

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"qdesign-backend/application/ports"
	"qdesign-backend/domain/access"
	"qdesign-backend/domain/events"
	apperrors "qdesign-backend/pkg/errors"
)

// Router dispatches inbound frames: room control goes to the hub, presence
// and mutation events are fanned out to the sender's room. It checks frame
// shape only; the REST write path owns persistence and business rules.
type Router struct {
	hub         *Hub
	store       ports.ProjectStore
	joinTimeout time.Duration
	logger      *zap.Logger
}

// NewRouter creates a frame router
func NewRouter(hub *Hub, store ports.ProjectStore, cfg Config, logger *zap.Logger) *Router {
	cfg = cfg.withDefaults()
	return &Router{
		hub:         hub,
		store:       store,
		joinTimeout: cfg.JoinTimeout,
		logger:      logger.With(zap.String("component", "router")),
	}
}

// Route handles one frame from c
func (rt *Router) Route(ctx context.Context, c *Client, frame events.Inbound) {
	payload, err := events.Parse(frame)
	if errors.Is(err, events.ErrUnknownType) {
		rt.logger.Debug("Unknown event ignored", zap.String("type", string(frame.Type)))
		return
	}
	if err != nil {
		c.replyError(frame.Type, frame.ProjectID, err)
		return
	}

	switch frame.Type {
	case events.JoinProject:
		rt.join(ctx, c, frame.ProjectID, payload.(events.JoinProjectData))
	case events.LeaveProject:
		if c.Room() == frame.ProjectID {
			rt.hub.Leave(c)
		}
	default:
		if c.Room() != frame.ProjectID {
			c.replyError(frame.Type, frame.ProjectID, apperrors.NewValidation("join the project room before sending events to it"))
			return
		}
		rt.hub.Broadcast(frame.ProjectID, frame.Type, payload, c.origin(rt.displayName(c)))
	}
}

// join admits c to the room only if the caller is a member of the project
func (rt *Router) join(ctx context.Context, c *Client, projectID string, data events.JoinProjectData) {
	lookupCtx, cancel := context.WithTimeout(ctx, rt.joinTimeout)
	defer cancel()

	p, err := rt.store.GetByID(lookupCtx, projectID)
	if err == nil {
		_, err = access.RequireRead(p, c.userID)
	}
	if err != nil {
		if !apperrors.IsNotFound(err) && !apperrors.IsAccessDenied(err) {
			rt.logger.Warn("Join lookup failed", zap.String("projectID", projectID), zap.Error(err))
		}
		c.replyError(events.JoinProject, projectID, err)
		return
	}

	name := data.UserName
	if name == "" {
		name = c.userName
	}
	rt.hub.Join(c, projectID, name)
}

// displayName is the name the session joined its room with
func (rt *Router) displayName(c *Client) string {
	if r := c.currentRoom(); r != nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		if m, ok := r.members[c.id]; ok {
			return m.userName
		}
	}
	return c.userName
}
