// Package events defines the closed catalog of realtime room events and the
// lifecycle events published to the outbound bus.
package events

// Type names one realtime event
type Type string

// Room control and presence
const (
	JoinProject  Type = "join-project"
	LeaveProject Type = "leave-project"
	UserJoined   Type = "user-joined"
	UserLeft     Type = "user-left"
	RoomUsers    Type = "room-users"
	CursorMove   Type = "cursor-move"
	TypingStart  Type = "typing-start"
	TypingStop   Type = "typing-stop"
)

// Document mutations
const (
	PoolItemAdded   Type = "pool:item-added"
	PoolItemUpdated Type = "pool:item-updated"
	PoolItemRemoved Type = "pool:item-removed"

	NodeAdded   Type = "graph:node-added"
	NodeUpdated Type = "graph:node-updated"
	NodeRemoved Type = "graph:node-removed"
	EdgeAdded   Type = "graph:edge-added"
	EdgeRemoved Type = "graph:edge-removed"

	StepAdded        Type = "coscientist:step-added"
	StepUpdated      Type = "coscientist:step-updated"
	StepCommentAdded Type = "coscientist:comment-added"

	CheckpointCreated  Type = "checkpoint:created"
	CheckpointRestored Type = "checkpoint:restored"
	ModeChanged        Type = "mode:changed"
)

// Server notices
const (
	ProjectDeleted Type = "project:deleted"
	Error          Type = "error"
	Connected      Type = "connected"
)

type kind int

const (
	kindControl kind = iota + 1
	kindPresence
	kindMutation
	kindServer
)

var catalog = map[Type]kind{
	JoinProject:  kindControl,
	LeaveProject: kindControl,

	CursorMove:  kindPresence,
	TypingStart: kindPresence,
	TypingStop:  kindPresence,

	PoolItemAdded:      kindMutation,
	PoolItemUpdated:    kindMutation,
	PoolItemRemoved:    kindMutation,
	NodeAdded:          kindMutation,
	NodeUpdated:        kindMutation,
	NodeRemoved:        kindMutation,
	EdgeAdded:          kindMutation,
	EdgeRemoved:        kindMutation,
	StepAdded:          kindMutation,
	StepUpdated:        kindMutation,
	StepCommentAdded:   kindMutation,
	CheckpointCreated:  kindMutation,
	CheckpointRestored: kindMutation,
	ModeChanged:        kindMutation,

	UserJoined:     kindServer,
	UserLeft:       kindServer,
	RoomUsers:      kindServer,
	ProjectDeleted: kindServer,
	Error:          kindServer,
	Connected:      kindServer,
}

// Known reports whether t is part of the catalog
func (t Type) Known() bool {
	_, ok := catalog[t]
	return ok
}

// IsMutation reports whether t carries a document change
func (t Type) IsMutation() bool { return catalog[t] == kindMutation }

// IsPresence reports whether t is an ephemeral presence signal
func (t Type) IsPresence() bool { return catalog[t] == kindPresence }

// IsControl reports whether t changes room membership
func (t Type) IsControl() bool { return catalog[t] == kindControl }

// ClientSendable reports whether a client may emit t. Server notices are
// only ever produced by the server itself.
func (t Type) ClientSendable() bool {
	k := catalog[t]
	return k == kindControl || k == kindPresence || k == kindMutation
}
