package events

import (
	"time"
)

// DomainEvent is a fact about a project published outside the process
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string { return e.AggregateID }
func (e BaseEvent) GetEventType() string { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int { return e.Version }

func base(projectID, eventType string, ts time.Time) BaseEvent {
	return BaseEvent{AggregateID: projectID, EventType: eventType, Timestamp: ts, Version: 1}
}

// ProjectCreatedEvent is raised when a project is created
type ProjectCreatedEvent struct {
	BaseEvent
	Name    string `json:"name"`
	OwnerID string `json:"owner_id"`
}

func NewProjectCreated(projectID, name, ownerID string, ts time.Time) ProjectCreatedEvent {
	return ProjectCreatedEvent{BaseEvent: base(projectID, "project.created", ts), Name: name, OwnerID: ownerID}
}

// ProjectDeletedEvent is raised when the owner deletes a project
type ProjectDeletedEvent struct {
	BaseEvent
	DeletedBy string `json:"deleted_by"`
}

func NewProjectDeleted(projectID, deletedBy string, ts time.Time) ProjectDeletedEvent {
	return ProjectDeletedEvent{BaseEvent: base(projectID, "project.deleted", ts), DeletedBy: deletedBy}
}

// MemberJoinedEvent is raised when a user joins by code
type MemberJoinedEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

func NewMemberJoined(projectID, userID, role string, ts time.Time) MemberJoinedEvent {
	return MemberJoinedEvent{BaseEvent: base(projectID, "member.joined", ts), UserID: userID, Role: role}
}

// CheckpointEvent is raised when a checkpoint is created or restored
type CheckpointEvent struct {
	BaseEvent
	CheckpointID string `json:"checkpoint_id"`
	Name         string `json:"name"`
	UserID       string `json:"user_id"`
}

func NewCheckpointCreated(projectID, checkpointID, name, userID string, ts time.Time) CheckpointEvent {
	return CheckpointEvent{
		BaseEvent:    base(projectID, "checkpoint.created", ts),
		CheckpointID: checkpointID,
		Name:         name,
		UserID:       userID,
	}
}

func NewCheckpointRestored(projectID, checkpointID, name, userID string, ts time.Time) CheckpointEvent {
	return CheckpointEvent{
		BaseEvent:    base(projectID, "checkpoint.restored", ts),
		CheckpointID: checkpointID,
		Name:         name,
		UserID:       userID,
	}
}
