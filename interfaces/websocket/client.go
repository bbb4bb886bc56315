package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"qdesign-backend/application/ports"
	"qdesign-backend/domain/events"
	apperrors "qdesign-backend/pkg/errors"
)

// Config tunes sessions
type Config struct {
	SendBuffer     int
	MaxMessageSize int64
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	// inbound frames per second and burst allowed per session
	InboundRate        float64
	InboundBurst       int
	MaxSessionsPerUser int
	// deadline for the store lookup behind join-project
	JoinTimeout time.Duration
}

// DefaultConfig returns the settings used when none are configured
func DefaultConfig() Config {
	return Config{
		SendBuffer:         256,
		MaxMessageSize:     512 << 10,
		PingInterval:       54 * time.Second,
		PongWait:           60 * time.Second,
		WriteWait:          10 * time.Second,
		InboundRate:        30,
		InboundBurst:       60,
		MaxSessionsPerUser: 8,
		JoinTimeout:        5 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SendBuffer <= 0 {
		c.SendBuffer = d.SendBuffer
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = d.MaxMessageSize
	}
	if c.PongWait <= 0 {
		c.PongWait = d.PongWait
	}
	if c.PingInterval <= 0 || c.PingInterval >= c.PongWait {
		c.PingInterval = c.PongWait * 9 / 10
	}
	if c.WriteWait <= 0 {
		c.WriteWait = d.WriteWait
	}
	if c.InboundRate <= 0 {
		c.InboundRate = d.InboundRate
	}
	if c.InboundBurst <= 0 {
		c.InboundBurst = d.InboundBurst
	}
	if c.JoinTimeout <= 0 {
		c.JoinTimeout = d.JoinTimeout
	}
	return c
}

// Client is one realtime session
type Client struct {
	id       string
	userID   string
	userName string
	hub      *Hub
	router   *Router
	conn     *websocket.Conn
	send     chan []byte
	limiter  *rate.Limiter
	cfg      Config
	logger   *zap.Logger

	mu   sync.Mutex
	room *room

	closeOnce sync.Once
	done      chan struct{}
}

func newClient(userID, userName string, hub *Hub, router *Router, conn *websocket.Conn, cfg Config, logger *zap.Logger) *Client {
	id := uuid.New().String()
	return &Client{
		id:       id,
		userID:   userID,
		userName: userName,
		hub:      hub,
		router:   router,
		conn:     conn,
		send:     make(chan []byte, cfg.SendBuffer),
		limiter:  rate.NewLimiter(rate.Limit(cfg.InboundRate), cfg.InboundBurst),
		cfg:      cfg,
		done:     make(chan struct{}),
		logger: logger.With(
			zap.String("userID", userID),
			zap.String("sessionID", id),
		),
	}
}

// ID returns the session id
func (c *Client) ID() string { return c.id }

// Room returns the project room the session is joined to, or ""
func (c *Client) Room() string {
	if r := c.currentRoom(); r != nil {
		return r.id
	}
	return ""
}

func (c *Client) currentRoom() *room {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

func (c *Client) setRoom(r *room) {
	c.mu.Lock()
	c.room = r
	c.mu.Unlock()
}

// clearRoom detaches the session if it is still in r. A session that has
// since joined a newer room for the same project keeps it.
func (c *Client) clearRoom(r *room) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.room != r {
		return false
	}
	c.room = nil
	return true
}

func (c *Client) origin(name string) ports.Origin {
	return ports.Origin{SessionID: c.id, UserID: c.userID, UserName: name}
}

// run starts both pumps and blocks until the session ends
func (c *Client) run(ctx context.Context) {
	go c.writePump()
	c.reply(events.Connected, "", map[string]string{"sessionId": c.id, "userId": c.userID})
	c.readPump(ctx)
}

// enqueue hands msg to the write pump without blocking. A session whose
// buffer is full is closed.
func (c *Client) enqueue(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		c.logger.Warn("Closing slow session", zap.Int("buffered", len(c.send)))
		c.close()
		return false
	}
}

// close ends the session once; the read pump then unregisters it
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// reply sends a frame to this session alone
func (c *Client) reply(t events.Type, projectID string, data interface{}) {
	frame := events.NewOutbound(t, projectID, data)
	frame.SessionID = c.id
	frame.UserID = c.userID
	frame.UserName = c.userName
	msg, err := json.Marshal(frame)
	if err != nil {
		c.logger.Error("Failed to marshal frame", zap.String("type", string(t)), zap.Error(err))
		return
	}
	c.enqueue(msg)
}

func (c *Client) replyError(event events.Type, projectID string, err error) {
	c.reply(events.Error, projectID, events.ErrorData{
		Code:    string(apperrors.TypeOf(err)),
		Message: apperrors.PublicMessage(err),
		Event:   event,
	})
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.unregister(c)
		c.close()
		c.logger.Debug("Read pump stopped")
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.logger.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}
		if messageType != websocket.TextMessage {
			c.logger.Debug("Binary frame ignored")
			continue
		}
		if !c.limiter.Allow() {
			c.replyError("", "", apperrors.NewValidation("rate limit exceeded, frame dropped"))
			continue
		}

		var frame events.Inbound
		if err := json.Unmarshal(message, &frame); err != nil {
			c.replyError("", "", apperrors.NewValidation("frame is not valid JSON"))
			continue
		}
		c.router.Route(ctx, c, frame)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.cfg.WriteWait))
			return

		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logger.Debug("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("Failed to send ping", zap.Error(err))
				return
			}
		}
	}
}
