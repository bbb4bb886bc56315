package events

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qdesign-backend/domain/project"
	apperrors "qdesign-backend/pkg/errors"
)

func frame(t Type, data string) Inbound {
	f := Inbound{Type: t, ProjectID: "p-1"}
	if data != "" {
		f.Data = json.RawMessage(data)
	}
	return f
}

func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		frame       Inbound
		want        Payload
		wantUnknown bool
		wantInvalid bool
	}{
		{
			name:  "node added",
			frame: frame(NodeAdded, `{"node":{"id":"n1","type":"protein","label":"Spike"}}`),
			want:  NodeData{Node: project.GraphNode{ID: "n1", Type: "protein", Label: "Spike"}},
		},
		{
			name:  "edge removed",
			frame: frame(EdgeRemoved, `{"edgeId":"e1"}`),
			want:  EdgeRemovedData{EdgeID: "e1"},
		},
		{
			name:  "cursor move",
			frame: frame(CursorMove, `{"x":10.5,"y":3}`),
			want:  CursorData{X: 10.5, Y: 3},
		},
		{
			name:  "leave without body",
			frame: frame(LeaveProject, ""),
			want:  EmptyData{},
		},
		{
			name:  "mode changed",
			frame: frame(ModeChanged, `{"mode":"coscientist"}`),
			want:  ModeData{Mode: project.ModeCoScientist},
		},
		{
			name:        "unknown type is ignored",
			frame:       frame(Type("graph:node-exploded"), `{}`),
			wantUnknown: true,
		},
		{
			name:        "server notices cannot be sent by clients",
			frame:       frame(RoomUsers, `{"users":[]}`),
			wantUnknown: true,
		},
		{
			name:        "node without id",
			frame:       frame(NodeAdded, `{"node":{"label":"x"}}`),
			wantInvalid: true,
		},
		{
			name:        "edge removed without id",
			frame:       frame(EdgeRemoved, `{}`),
			wantInvalid: true,
		},
		{
			name:        "wrong shape",
			frame:       frame(PoolItemRemoved, `["i1"]`),
			wantInvalid: true,
		},
		{
			name:        "invalid mode",
			frame:       frame(ModeChanged, `{"mode":"chaos"}`),
			wantInvalid: true,
		},
		{
			name:        "missing project id",
			frame:       Inbound{Type: TypingStart},
			wantInvalid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.frame)

			switch {
			case tt.wantUnknown:
				assert.True(t, errors.Is(err, ErrUnknownType))
			case tt.wantInvalid:
				assert.True(t, apperrors.IsValidation(err), "got %v", err)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestCatalogKinds(t *testing.T) {
	assert.True(t, NodeAdded.IsMutation())
	assert.True(t, CursorMove.IsPresence())
	assert.True(t, JoinProject.IsControl())
	assert.False(t, UserJoined.ClientSendable())
	assert.True(t, ProjectDeleted.Known())
	assert.False(t, Type("nope").Known())
}

func TestOutboundWireFormat(t *testing.T) {
	out := NewOutbound(NodeRemoved, "p-1", NodeRemovedData{NodeID: "n1", RemovedEdgeIDs: []string{"e1"}})
	out.SessionID = "s-1"
	out.UserID = "u-1"

	raw, err := json.Marshal(out)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "graph:node-removed", decoded["type"])
	assert.Equal(t, "p-1", decoded["projectId"])
	assert.Equal(t, "s-1", decoded["sessionId"])
	assert.NotZero(t, decoded["timestamp"])
	assert.Equal(t, "n1", decoded["data"].(map[string]interface{})["nodeId"])
}
