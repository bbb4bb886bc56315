package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"qdesign-backend/application/ports"
	"qdesign-backend/domain/events"
	"qdesign-backend/pkg/observability"
)

// ErrSessionLimit is returned when a user already holds the maximum number
// of sessions
var ErrSessionLimit = errors.New("session limit reached")

// Hub is the room registry. The registry lock only guards the maps; each
// room carries its own lock so rooms never contend with each other.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]*room
	sessions map[string]*Client
	perUser  map[string]int

	maxPerUser int
	metrics    *observability.Collector
	logger     *zap.Logger
}

// NewHub creates an empty registry. maxPerUser <= 0 disables the cap.
func NewHub(maxPerUser int, metrics *observability.Collector, logger *zap.Logger) *Hub {
	return &Hub{
		rooms:      make(map[string]*room),
		sessions:   make(map[string]*Client),
		perUser:    make(map[string]int),
		maxPerUser: maxPerUser,
		metrics:    metrics,
		logger:     logger.With(zap.String("component", "hub")),
	}
}

// Run refreshes gauges periodically and closes every session when ctx ends
func (h *Hub) Run(ctx context.Context) error {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("Hub shutting down")
			h.closeAll()
			return nil
		case <-ticker.C:
			h.updateGauges()
		}
	}
}

func (h *Hub) register(c *Client) error {
	h.mu.Lock()
	if h.maxPerUser > 0 && h.perUser[c.userID] >= h.maxPerUser {
		h.mu.Unlock()
		return ErrSessionLimit
	}
	h.sessions[c.id] = c
	h.perUser[c.userID]++
	h.mu.Unlock()

	h.logger.Debug("Session registered", zap.String("sessionID", c.id), zap.String("userID", c.userID))
	h.updateGauges()
	return nil
}

// unregister leaves the session's room and forgets it. Safe to call twice.
func (h *Hub) unregister(c *Client) {
	h.Leave(c)

	h.mu.Lock()
	if _, ok := h.sessions[c.id]; ok {
		delete(h.sessions, c.id)
		if h.perUser[c.userID]--; h.perUser[c.userID] <= 0 {
			delete(h.perUser, c.userID)
		}
	}
	h.mu.Unlock()

	h.logger.Debug("Session unregistered", zap.String("sessionID", c.id))
	h.updateGauges()
}

// SessionCount returns how many sessions userID holds
func (h *Hub) SessionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.perUser[userID]
}

// RoomCount returns the number of rooms with at least one session
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// RoomSize returns the number of sessions joined to projectID
func (h *Hub) RoomSize(projectID string) int {
	r := h.lookup(projectID)
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

func (h *Hub) lookup(projectID string) *room {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[projectID]
}

func (h *Hub) getOrCreate(projectID string) *room {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[projectID]
	if !ok {
		r = newRoom(projectID)
		h.rooms[projectID] = r
	}
	return r
}

// collect removes r from the registry if it is still empty. The registry
// lock is taken before the room lock, so a room is never reachable through
// h.rooms once closed.
func (h *Hub) collect(r *room) bool {
	h.mu.Lock()
	r.mu.Lock()
	collected := len(r.members) == 0 && !r.closed
	if collected {
		r.closed = true
		if h.rooms[r.id] == r {
			delete(h.rooms, r.id)
		}
	}
	r.mu.Unlock()
	h.mu.Unlock()

	if collected {
		h.updateGauges()
	}
	return collected
}

// Join moves the session into projectID's room. A session is in at most
// one room; joining another leaves the current one first. The joiner gets
// the roster, everyone else a user-joined notice.
func (h *Hub) Join(c *Client, projectID, userName string) {
	if current := c.Room(); current != "" && current != projectID {
		h.Leave(c)
	}

	var (
		r      *room
		self   *member
		roster []events.RoomUser
	)
	for {
		r = h.getOrCreate(projectID)
		r.mu.Lock()
		if r.closed {
			// emptied between lookup and lock
			r.mu.Unlock()
			continue
		}
		if existing, ok := r.members[c.id]; ok {
			existing.userName = userName
			self = existing
		} else {
			self = &member{client: c, userName: userName, color: assignColor(c.id, r.takenColors())}
			r.members[c.id] = self
		}
		c.setRoom(r)
		roster = r.roster()
		r.mu.Unlock()
		break
	}

	h.logger.Debug("Session joined room",
		zap.String("projectID", projectID),
		zap.String("sessionID", c.id),
		zap.Int("roomSize", len(roster)))

	h.fanout(r, events.UserJoined, events.RoomUser{
		SessionID: c.id,
		UserID:    c.userID,
		UserName:  userName,
		Color:     self.color,
	}, c.origin(userName))
	c.reply(events.RoomUsers, projectID, events.RoomUsersData{Users: roster})
}

// Leave removes the session from its room, garbage-collecting the room
// once empty, and tells the remaining members
func (h *Hub) Leave(c *Client) {
	r := c.currentRoom()
	if r == nil {
		return
	}
	projectID := r.id

	r.mu.Lock()
	m, ok := r.members[c.id]
	if ok {
		delete(r.members, c.id)
	}
	empty := len(r.members) == 0
	r.mu.Unlock()
	c.clearRoom(r)

	// a session may have joined since the room lock was released
	if empty && h.collect(r) {
		h.logger.Debug("Room removed", zap.String("projectID", projectID))
		return
	}
	if ok {
		h.fanout(r, events.UserLeft, events.RoomUser{
			SessionID: c.id,
			UserID:    c.userID,
			UserName:  m.userName,
			Color:     m.color,
		}, c.origin(m.userName))
	}
}

// Broadcast fans an event out to every session in the room except
// origin.SessionID. It never blocks on a recipient and never fails; an
// empty origin session reaches everyone.
func (h *Hub) Broadcast(projectID string, eventType events.Type, data interface{}, origin ports.Origin) {
	if r := h.lookup(projectID); r != nil {
		h.fanout(r, eventType, data, origin)
	}
}

func (h *Hub) fanout(r *room, eventType events.Type, data interface{}, origin ports.Origin) {
	projectID := r.id
	frame := events.NewOutbound(eventType, projectID, data)
	frame.SessionID = origin.SessionID
	frame.UserID = origin.UserID
	frame.UserName = origin.UserName
	msg, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error("Failed to marshal broadcast",
			zap.String("type", string(eventType)),
			zap.Error(err))
		return
	}

	delivered, dropped := 0, 0
	r.mu.Lock()
	for id, m := range r.members {
		if id == origin.SessionID {
			continue
		}
		if m.client.enqueue(msg) {
			delivered++
		} else {
			dropped++
		}
	}
	r.mu.Unlock()

	h.metrics.Delivered(delivered)
	h.metrics.Dropped(dropped)
	if dropped > 0 {
		h.logger.Warn("Broadcast partially dropped",
			zap.String("projectID", projectID),
			zap.String("type", string(eventType)),
			zap.Int("delivered", delivered),
			zap.Int("dropped", dropped))
	}
}

// CloseRoom detaches every session from the room. Sessions stay connected.
func (h *Hub) CloseRoom(projectID string) {
	h.mu.Lock()
	r, ok := h.rooms[projectID]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.rooms, projectID)
	r.mu.Lock()
	r.closed = true
	members := r.members
	r.members = make(map[string]*member)
	r.mu.Unlock()
	h.mu.Unlock()

	for _, m := range members {
		m.client.clearRoom(r)
	}
	h.logger.Info("Room closed", zap.String("projectID", projectID), zap.Int("detached", len(members)))
	h.updateGauges()
}

func (h *Hub) closeAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.sessions))
	for _, c := range h.sessions {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.close()
	}
}

func (h *Hub) updateGauges() {
	h.mu.RLock()
	sessions, rooms := len(h.sessions), len(h.rooms)
	h.mu.RUnlock()
	h.metrics.SetRealtime(sessions, rooms)
}

var _ ports.RoomNotifier = (*Hub)(nil)
