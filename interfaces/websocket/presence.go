package websocket

import (
	"fmt"
	"hash/fnv"
	"sort"
	"sync"

	"qdesign-backend/domain/events"
)

// palette holds the cursor colors handed out first
var palette = []string{
	"#E6194B", "#3CB44B", "#4363D8", "#F58231",
	"#911EB4", "#42D4F4", "#F032E6", "#BFEF45",
	"#469990", "#9A6324", "#800000", "#000075",
}

// assignColor picks a color for sessionID that no one in taken holds,
// probing from a position derived from the session id
func assignColor(sessionID string, taken map[string]bool) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	sum := h.Sum32()

	n := uint32(len(palette))
	for i := uint32(0); i < n; i++ {
		c := palette[(sum+i)%n]
		if !taken[c] {
			return c
		}
	}

	// palette exhausted; derive from the hash and step past collisions
	for i := uint32(0); ; i++ {
		c := fmt.Sprintf("#%06X", (sum+i*0x9E3779)&0xFFFFFF)
		if !taken[c] {
			return c
		}
	}
}

// member is one session's presence in a room
type member struct {
	client   *Client
	userName string
	color    string
}

// room is the set of sessions subscribed to one project. mu also
// serializes fan-out so every recipient sees the same order.
type room struct {
	id      string
	mu      sync.Mutex
	members map[string]*member
	// closed is written with both the hub and room locks held, at the same
	// moment the room leaves the registry; read it under mu
	closed bool
}

func newRoom(id string) *room {
	return &room{id: id, members: make(map[string]*member)}
}

func (r *room) takenColors() map[string]bool {
	taken := make(map[string]bool, len(r.members))
	for _, m := range r.members {
		taken[m.color] = true
	}
	return taken
}

// roster lists the room's sessions ordered by user name then session id.
// Callers hold mu.
func (r *room) roster() []events.RoomUser {
	users := make([]events.RoomUser, 0, len(r.members))
	for id, m := range r.members {
		users = append(users, events.RoomUser{
			SessionID: id,
			UserID:    m.client.userID,
			UserName:  m.userName,
			Color:     m.color,
		})
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].UserName != users[j].UserName {
			return users[i].UserName < users[j].UserName
		}
		return users[i].SessionID < users[j].SessionID
	})
	return users
}
