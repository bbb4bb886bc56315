package websocket

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"qdesign-backend/application/ports"
	"qdesign-backend/domain/events"
	"qdesign-backend/domain/project"
	"qdesign-backend/infrastructure/persistence/memory"
	"qdesign-backend/pkg/auth"
	"qdesign-backend/pkg/auth/authtest"
)

type testEnv struct {
	hub       *Hub
	srv       *httptest.Server
	tokens    map[string]string
	projectID string
	// owned by bob alone
	otherID string
}

// frame mirrors events.Outbound with a raw body
type frame struct {
	Type      events.Type     `json:"type"`
	ProjectID string          `json:"projectId"`
	SessionID string          `json:"sessionId"`
	UserID    string          `json:"userId"`
	UserName  string          `json:"userName"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	logger := zap.NewNop()

	signer := authtest.Signer{Secret: "ws-secret"}
	validator, err := auth.NewJWTValidator(auth.JWTConfig{SigningMethod: "HS256", SecretKey: "ws-secret"})
	require.NoError(t, err)

	tokens := map[string]string{}
	for _, u := range []string{"alice", "bob", "mallory"} {
		tokens[u] = signer.Token(t, u, strings.ToUpper(u[:1])+u[1:])
	}

	store := memory.NewProjectStore()
	now := time.Now()
	p, err := project.New("Spike Study", "map binding", project.UserRef{ID: "alice", Name: "Alice"}, "SPIKE001", now)
	require.NoError(t, err)
	require.NoError(t, p.AddMember(project.UserRef{ID: "bob", Name: "Bob"}, project.RoleEditor, now))
	require.NoError(t, store.Create(context.Background(), p))
	other, err := project.New("Side Study", "", project.UserRef{ID: "bob", Name: "Bob"}, "SIDE0001", now)
	require.NoError(t, err)
	require.NoError(t, store.Create(context.Background(), other))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub(cfg.MaxSessionsPerUser, nil, logger)
	server := NewServer(ctx, hub, store, validator, cfg, []string{"*"}, logger)
	srv := httptest.NewServer(server)
	t.Cleanup(srv.Close)

	return &testEnv{hub: hub, srv: srv, tokens: tokens, projectID: p.ID, otherID: other.ID}
}

func (e *testEnv) url(user string) string {
	u := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws"
	if user != "" {
		u += "?token=" + e.tokens[user]
	}
	return u
}

// dial connects as user and returns the connection and its session id
func (e *testEnv) dial(t *testing.T, user string) (*websocket.Conn, string) {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(e.url(user), nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })

	f := readFrame(t, conn)
	require.Equal(t, events.Connected, f.Type)
	return conn, f.SessionID
}

func send(t *testing.T, conn *websocket.Conn, eventType events.Type, projectID string, data interface{}) {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{"type": eventType, "projectId": projectID, "data": data})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, raw))
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var f frame
	require.NoError(t, json.Unmarshal(raw, &f))
	return f
}

// expectSilence asserts nothing arrives for a short while. The connection
// cannot be read from afterwards.
func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, raw, err := conn.ReadMessage()
	require.Error(t, err, "unexpected frame %s", raw)
	var netErr net.Error
	if assert.ErrorAs(t, err, &netErr) {
		assert.True(t, netErr.Timeout())
	}
}

// joinBoth puts alice and bob into the project room and drains the
// presence frames that produces
func (e *testEnv) joinBoth(t *testing.T) (a *websocket.Conn, sessA string, b *websocket.Conn, sessB string) {
	t.Helper()
	a, sessA = e.dial(t, "alice")
	b, sessB = e.dial(t, "bob")

	send(t, a, events.JoinProject, e.projectID, nil)
	require.Equal(t, events.RoomUsers, readFrame(t, a).Type)

	send(t, b, events.JoinProject, e.projectID, nil)
	roster := readFrame(t, b)
	require.Equal(t, events.RoomUsers, roster.Type)
	var users events.RoomUsersData
	require.NoError(t, json.Unmarshal(roster.Data, &users))
	require.Len(t, users.Users, 2)
	assert.NotEqual(t, users.Users[0].Color, users.Users[1].Color)

	joined := readFrame(t, a)
	require.Equal(t, events.UserJoined, joined.Type)
	assert.Equal(t, sessB, joined.SessionID)
	return a, sessA, b, sessB
}

func TestNodeAddedReachesOtherSessionsOnly(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	a, sessA, b, _ := env.joinBoth(t)

	send(t, a, events.NodeAdded, env.projectID, map[string]interface{}{
		"node": map[string]string{"id": "n1", "type": "protein", "label": "Spike"},
	})

	got := readFrame(t, b)
	assert.Equal(t, events.NodeAdded, got.Type)
	assert.Equal(t, sessA, got.SessionID)
	assert.Equal(t, "alice", got.UserID)
	assert.Equal(t, env.projectID, got.ProjectID)
	var data events.NodeData
	require.NoError(t, json.Unmarshal(got.Data, &data))
	assert.Equal(t, "n1", data.Node.ID)

	expectSilence(t, b)
	expectSilence(t, a)
}

func TestLeaveNotifiesAndEmptyRoomIsCollected(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	a, _, b, sessB := env.joinBoth(t)

	send(t, b, events.LeaveProject, env.projectID, nil)
	left := readFrame(t, a)
	assert.Equal(t, events.UserLeft, left.Type)
	assert.Equal(t, sessB, left.SessionID)
	assert.Eventually(t, func() bool { return env.hub.RoomSize(env.projectID) == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, a.Close())
	assert.Eventually(t, func() bool {
		return env.hub.RoomCount() == 0 && env.hub.SessionCount("alice") == 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, env.hub.SessionCount("bob"))
}

func TestJoiningAnotherRoomLeavesThePreviousOne(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	a, _, b, sessB := env.joinBoth(t)

	send(t, b, events.JoinProject, env.otherID, nil)
	roster := readFrame(t, b)
	require.Equal(t, events.RoomUsers, roster.Type)
	assert.Equal(t, env.otherID, roster.ProjectID)

	left := readFrame(t, a)
	assert.Equal(t, events.UserLeft, left.Type)
	assert.Equal(t, sessB, left.SessionID)
	assert.Equal(t, 1, env.hub.RoomSize(env.projectID))
	assert.Equal(t, 1, env.hub.RoomSize(env.otherID))
}

func TestFailedJoinKeepsCurrentRoom(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	a, _, b, sessB := env.joinBoth(t)

	send(t, b, events.JoinProject, "elsewhere", nil)
	errFrame := readFrame(t, b)
	require.Equal(t, events.Error, errFrame.Type)

	assert.Equal(t, 2, env.hub.RoomSize(env.projectID))

	send(t, b, events.LeaveProject, env.projectID, nil)
	left := readFrame(t, a)
	assert.Equal(t, events.UserLeft, left.Type)
	assert.Equal(t, sessB, left.SessionID)
}

func TestJoinIsGatedByMembership(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	m, _ := env.dial(t, "mallory")

	tests := []struct {
		name      string
		projectID string
		wantCode  string
	}{
		{name: "not a member", projectID: env.projectID, wantCode: "ACCESS_DENIED"},
		{name: "no such project", projectID: "missing", wantCode: "NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			send(t, m, events.JoinProject, tt.projectID, nil)
			got := readFrame(t, m)
			require.Equal(t, events.Error, got.Type)
			var data events.ErrorData
			require.NoError(t, json.Unmarshal(got.Data, &data))
			assert.Equal(t, tt.wantCode, data.Code)
			assert.Equal(t, events.JoinProject, data.Event)
		})
	}
	assert.Equal(t, 0, env.hub.RoomCount())
}

func TestEventsRequireJoinedRoom(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	a, _ := env.dial(t, "alice")
	b, _ := env.dial(t, "bob")
	send(t, b, events.JoinProject, env.projectID, nil)
	require.Equal(t, events.RoomUsers, readFrame(t, b).Type)

	send(t, a, events.NodeRemoved, env.projectID, map[string]string{"nodeId": "n1"})
	got := readFrame(t, a)
	require.Equal(t, events.Error, got.Type)
	var data events.ErrorData
	require.NoError(t, json.Unmarshal(got.Data, &data))
	assert.Equal(t, "VALIDATION", data.Code)

	expectSilence(t, b)
}

func TestMalformedFramesGetErrorsAndUnknownTypesAreIgnored(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	a, _ := env.dial(t, "alice")
	send(t, a, events.JoinProject, env.projectID, nil)
	require.Equal(t, events.RoomUsers, readFrame(t, a).Type)

	send(t, a, "graph:node-exploded", env.projectID, nil)
	send(t, a, events.ProjectDeleted, env.projectID, nil)
	send(t, a, events.CursorMove, env.projectID, map[string]string{"x": "left"})

	got := readFrame(t, a)
	require.Equal(t, events.Error, got.Type)
	var data events.ErrorData
	require.NoError(t, json.Unmarshal(got.Data, &data))
	assert.Equal(t, "VALIDATION", data.Code)
	assert.Equal(t, events.CursorMove, data.Event)

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte("not json")))
	assert.Equal(t, events.Error, readFrame(t, a).Type)
}

func TestServerNoticesAndCloseRoom(t *testing.T) {
	env := newTestEnv(t, DefaultConfig())
	a, _, b, _ := env.joinBoth(t)

	env.hub.Broadcast(env.projectID, events.ProjectDeleted, events.ProjectDeletedData{DeletedBy: "alice"}, ports.Origin{UserID: "alice"})
	for _, conn := range []*websocket.Conn{a, b} {
		got := readFrame(t, conn)
		assert.Equal(t, events.ProjectDeleted, got.Type)
	}

	env.hub.CloseRoom(env.projectID)
	assert.Equal(t, 0, env.hub.RoomCount())

	// detached sessions stay connected but are no longer in the room
	send(t, b, events.CursorMove, env.projectID, map[string]float64{"x": 1, "y": 2})
	assert.Equal(t, events.Error, readFrame(t, b).Type)
	expectSilence(t, a)
}

func TestConnectionAdmission(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSessionsPerUser = 1
	env := newTestEnv(t, cfg)

	_, resp, err := websocket.DefaultDialer.Dial(env.url(""), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	env.dial(t, "alice")
	_, resp, err = websocket.DefaultDialer.Dial(env.url("alice"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	// other users are unaffected
	env.dial(t, "bob")
}
