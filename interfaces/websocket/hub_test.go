package websocket

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// newDetachedClient builds a session with no connection; its buffer is
// large enough that nothing in these tests overflows it
func newDetachedClient(hub *Hub, userID string) *Client {
	cfg := DefaultConfig()
	cfg.SendBuffer = 1 << 14
	return newClient(userID, userID, hub, nil, nil, cfg, zap.NewNop())
}

func TestConcurrentJoinAndLeave(t *testing.T) {
	const (
		sessions = 8
		rounds   = 300
	)
	hub := NewHub(0, nil, zap.NewNop())

	clients := make([]*Client, sessions)
	for i := range clients {
		clients[i] = newDetachedClient(hub, fmt.Sprintf("user-%d", i))
	}

	var wg sync.WaitGroup
	for _, c := range clients {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				hub.Join(c, "p1", c.userName)
				hub.Leave(c)
			}
		}(c)
	}
	wg.Wait()

	assert.Equal(t, 0, hub.RoomCount())
	assert.Equal(t, 0, hub.RoomSize("p1"))
	for _, c := range clients {
		assert.Empty(t, c.Room())
	}
}

func TestConcurrentJoinSurvivesCloseRoom(t *testing.T) {
	hub := NewHub(0, nil, zap.NewNop())
	clients := make([]*Client, 4)
	for i := range clients {
		clients[i] = newDetachedClient(hub, fmt.Sprintf("user-%d", i))
	}

	var wg sync.WaitGroup
	for _, c := range clients {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				hub.Join(c, "p1", c.userName)
			}
		}(c)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			hub.CloseRoom("p1")
		}
	}()
	wg.Wait()

	// every session still claiming the room must be a member of the live one
	joined := 0
	for _, c := range clients {
		if c.Room() == "p1" {
			joined++
		}
	}
	assert.Equal(t, joined, hub.RoomSize("p1"))

	for _, c := range clients {
		hub.Leave(c)
	}
	assert.Equal(t, 0, hub.RoomCount())
}

func TestRejoinAfterRoomCollected(t *testing.T) {
	hub := NewHub(0, nil, zap.NewNop())
	a := newDetachedClient(hub, "alice")

	hub.Join(a, "p1", "Alice")
	hub.Leave(a)
	assert.Equal(t, 0, hub.RoomCount())

	hub.Join(a, "p1", "Alice")
	assert.Equal(t, 1, hub.RoomCount())
	assert.Equal(t, 1, hub.RoomSize("p1"))
	assert.Equal(t, "p1", a.Room())
}
