package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"qdesign-backend/domain/project"
	apperrors "qdesign-backend/pkg/errors"
	"qdesign-backend/pkg/utils"
)

// ErrUnknownType is returned by Parse for types outside the catalog.
// Callers ignore such frames.
var ErrUnknownType = errors.New("unknown event type")

// Inbound is a frame received from a client
type Inbound struct {
	Type      Type            `json:"type"`
	ProjectID string          `json:"projectId"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Outbound is a frame delivered to a client
type Outbound struct {
	Type      Type        `json:"type"`
	ProjectID string      `json:"projectId,omitempty"`
	SessionID string      `json:"sessionId,omitempty"`
	UserID    string      `json:"userId,omitempty"`
	UserName  string      `json:"userName,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// NewOutbound stamps a frame with the current time in unix millis
func NewOutbound(t Type, projectID string, data interface{}) Outbound {
	return Outbound{Type: t, ProjectID: projectID, Data: data, Timestamp: time.Now().UnixMilli()}
}

// Payload is a typed event body
type Payload interface {
	Validate() error
}

// JoinProjectData may override the display name for the session
type JoinProjectData struct {
	UserName string `json:"userName,omitempty" validate:"max=100"`
}

func (d JoinProjectData) Validate() error { return utils.ValidateStruct(d) }

// EmptyData is used by events without a body
type EmptyData struct{}

func (EmptyData) Validate() error { return nil }

// CursorData is a cursor position in the shared view
type CursorData struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	View    string  `json:"view,omitempty" validate:"max=64"`
	Element string  `json:"element,omitempty" validate:"max=128"`
}

func (d CursorData) Validate() error { return utils.ValidateStruct(d) }

// TypingData names what the user is typing into
type TypingData struct {
	Target string `json:"target,omitempty" validate:"max=128"`
}

func (d TypingData) Validate() error { return utils.ValidateStruct(d) }

// PoolItemData carries a whole data pool item
type PoolItemData struct {
	Item project.DataPoolItem `json:"item"`
}

func (d PoolItemData) Validate() error {
	if d.Item.ID == "" {
		return apperrors.NewValidation("item.id is required")
	}
	return nil
}

// PoolItemRemovedData identifies a removed item
type PoolItemRemovedData struct {
	ItemID string `json:"itemId" validate:"required"`
}

func (d PoolItemRemovedData) Validate() error { return utils.ValidateStruct(d) }

// NodeData carries a whole graph node
type NodeData struct {
	Node project.GraphNode `json:"node"`
}

func (d NodeData) Validate() error {
	if d.Node.ID == "" {
		return apperrors.NewValidation("node.id is required")
	}
	return nil
}

// NodeRemovedData identifies a removed node and the edges removed with it
type NodeRemovedData struct {
	NodeID         string   `json:"nodeId" validate:"required"`
	RemovedEdgeIDs []string `json:"removedEdgeIds,omitempty"`
}

func (d NodeRemovedData) Validate() error { return utils.ValidateStruct(d) }

// EdgeData carries a whole graph edge
type EdgeData struct {
	Edge project.GraphEdge `json:"edge"`
}

func (d EdgeData) Validate() error {
	if d.Edge.ID == "" || d.Edge.Source == "" || d.Edge.Target == "" {
		return apperrors.NewValidation("edge.id, edge.source and edge.target are required")
	}
	return nil
}

// EdgeRemovedData identifies a removed edge
type EdgeRemovedData struct {
	EdgeID string `json:"edgeId" validate:"required"`
}

func (d EdgeRemovedData) Validate() error { return utils.ValidateStruct(d) }

// StepData carries a whole co-scientist step
type StepData struct {
	Step project.CoScientistStep `json:"step"`
}

func (d StepData) Validate() error {
	if d.Step.ID == "" {
		return apperrors.NewValidation("step.id is required")
	}
	return nil
}

// StepCommentData carries a comment added to a step
type StepCommentData struct {
	StepID  string          `json:"stepId" validate:"required"`
	Comment project.Comment `json:"comment"`
}

func (d StepCommentData) Validate() error {
	if err := utils.ValidateStruct(d); err != nil {
		return err
	}
	if d.Comment.ID == "" {
		return apperrors.NewValidation("comment.id is required")
	}
	return nil
}

// CheckpointData carries checkpoint metadata, never the captured state
type CheckpointData struct {
	Checkpoint project.CheckpointSummary `json:"checkpoint"`
}

func (d CheckpointData) Validate() error {
	if d.Checkpoint.ID == "" {
		return apperrors.NewValidation("checkpoint.id is required")
	}
	return nil
}

// ModeData carries the project's new mode
type ModeData struct {
	Mode project.Mode `json:"mode" validate:"required"`
}

func (d ModeData) Validate() error {
	if !d.Mode.IsValid() {
		return apperrors.NewValidationf("invalid mode %q", d.Mode)
	}
	return nil
}

// RoomUser is one entry of the room roster
type RoomUser struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	Color     string `json:"color"`
}

// RoomUsersData is the roster sent to a session when it joins
type RoomUsersData struct {
	Users []RoomUser `json:"users"`
}

// ErrorData is sent back to a session whose frame was rejected
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Event   Type   `json:"event,omitempty"`
}

// ProjectDeletedData tells room members the project is gone
type ProjectDeletedData struct {
	DeletedBy string `json:"deletedBy"`
}

// CheckpointRestoredData tells room members to reload
type CheckpointRestoredData struct {
	Checkpoint project.CheckpointSummary `json:"checkpoint"`
	Mode       project.Mode              `json:"mode"`
}

func (d CheckpointRestoredData) Validate() error {
	if d.Checkpoint.ID == "" {
		return apperrors.NewValidation("checkpoint.id is required")
	}
	return nil
}

func newPayload(t Type) Payload {
	switch t {
	case JoinProject:
		return &JoinProjectData{}
	case LeaveProject:
		return &EmptyData{}
	case CursorMove:
		return &CursorData{}
	case TypingStart, TypingStop:
		return &TypingData{}
	case PoolItemAdded, PoolItemUpdated:
		return &PoolItemData{}
	case PoolItemRemoved:
		return &PoolItemRemovedData{}
	case NodeAdded, NodeUpdated:
		return &NodeData{}
	case NodeRemoved:
		return &NodeRemovedData{}
	case EdgeAdded:
		return &EdgeData{}
	case EdgeRemoved:
		return &EdgeRemovedData{}
	case StepAdded, StepUpdated:
		return &StepData{}
	case StepCommentAdded:
		return &StepCommentData{}
	case CheckpointCreated:
		return &CheckpointData{}
	case CheckpointRestored:
		return &CheckpointRestoredData{}
	case ModeChanged:
		return &ModeData{}
	}
	return nil
}

// Parse decodes and structurally validates a client frame. Unknown or
// server-only types yield ErrUnknownType; a malformed body of a known type
// yields a Validation error. Payload contents are not checked against the
// project.
func Parse(frame Inbound) (Payload, error) {
	if !frame.Type.ClientSendable() {
		return nil, ErrUnknownType
	}
	if strings.TrimSpace(frame.ProjectID) == "" {
		return nil, apperrors.NewValidation("projectId is required")
	}

	payload := newPayload(frame.Type)
	data := bytes.TrimSpace(frame.Data)
	if len(data) > 0 && !bytes.Equal(data, []byte("null")) {
		dec := json.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(payload); err != nil {
			return nil, apperrors.NewValidationf("invalid %s payload: %v", frame.Type, err)
		}
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	return derefPayload(payload), nil
}

// derefPayload returns payloads by value so consumers can switch on the
// concrete type without pointer cases
func derefPayload(p Payload) Payload {
	switch v := p.(type) {
	case *JoinProjectData:
		return *v
	case *EmptyData:
		return *v
	case *CursorData:
		return *v
	case *TypingData:
		return *v
	case *PoolItemData:
		return *v
	case *PoolItemRemovedData:
		return *v
	case *NodeData:
		return *v
	case *NodeRemovedData:
		return *v
	case *EdgeData:
		return *v
	case *EdgeRemovedData:
		return *v
	case *StepData:
		return *v
	case *StepCommentData:
		return *v
	case *CheckpointData:
		return *v
	case *CheckpointRestoredData:
		return *v
	case *ModeData:
		return *v
	}
	return p
}
