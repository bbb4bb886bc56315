package project

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "qdesign-backend/pkg/errors"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestProject(t *testing.T) *Project {
	t.Helper()
	p, err := New("Spike Study", "map the spike protein", Ref("alice", "Alice"), "ABCD1234", testNow)
	require.NoError(t, err)
	return p
}

func addNode(t *testing.T, p *Project, id string) {
	t.Helper()
	require.NoError(t, p.KnowledgeGraph.AddNode(GraphNode{ID: id, Type: "protein", Label: id}))
}

func addEdge(t *testing.T, p *Project, id, source, target string) {
	t.Helper()
	require.NoError(t, p.KnowledgeGraph.AddEdge(GraphEdge{
		ID: id, Source: source, Target: target, CorrelationType: CorrelationSupports, Strength: 0.5,
	}))
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		pName    string
		owner    UserRef
		joinCode string
		wantErr  bool
	}{
		{name: "valid project", pName: "Spike Study", owner: Ref("alice", ""), joinCode: "abcd1234"},
		{name: "empty name", pName: "  ", owner: Ref("alice", ""), joinCode: "ABCD1234", wantErr: true},
		{name: "missing owner", pName: "Spike Study", joinCode: "ABCD1234", wantErr: true},
		{name: "short join code", pName: "Spike Study", owner: Ref("alice", ""), joinCode: "ABC", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.pName, "", tt.owner, tt.joinCode, testNow)
			if tt.wantErr {
				assert.True(t, apperrors.IsValidation(err))
				assert.Nil(t, p)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "ABCD1234", p.JoinCode)
			assert.Equal(t, ModePool, p.CurrentMode)

			owners := 0
			for _, m := range p.Members {
				if m.Role == RoleOwner {
					owners++
				}
			}
			assert.Equal(t, 1, owners)
		})
	}
}

func TestAddMember(t *testing.T) {
	p := newTestProject(t)

	require.NoError(t, p.AddMember(Ref("bob", "Bob"), RoleEditor, testNow))

	err := p.AddMember(Ref("bob", ""), RoleEditor, testNow)
	assert.True(t, apperrors.IsConflict(err))

	err = p.AddMember(Ref("carol", ""), RoleOwner, testNow)
	assert.True(t, apperrors.IsValidation(err))

	m, ok := p.FindMember("bob")
	require.True(t, ok)
	assert.Equal(t, RoleEditor, m.Role)
}

func TestUserRefDecodesBothRepresentations(t *testing.T) {
	var doc struct {
		Members []Member `json:"members"`
	}
	raw := `{"members":[
		{"user":"u-1","role":"owner"},
		{"user":{"_id":"u-2","name":"Bea"},"role":"editor"},
		{"user":{"id":" u-3 ","email":"c@example.com"},"role":"viewer"}
	]}`
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))

	require.Len(t, doc.Members, 3)
	assert.True(t, doc.Members[0].User.Is("u-1"))
	assert.True(t, doc.Members[1].User.Is("u-2"))
	assert.Equal(t, "Bea", doc.Members[1].User.Name)
	assert.True(t, doc.Members[2].User.Is("u-3"))

	bare, err := json.Marshal(Ref("u-1", ""))
	require.NoError(t, err)
	assert.JSONEq(t, `"u-1"`, string(bare))

	populated, err := json.Marshal(Ref("u-2", "Bea"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"u-2","name":"Bea"}`, string(populated))
}

func TestJoinCode(t *testing.T) {
	code, err := GenerateJoinCode()
	require.NoError(t, err)
	assert.True(t, IsValidJoinCode(code))
	assert.Equal(t, "AB12CD34", NormalizeJoinCode(" ab12cd34 "))
	assert.False(t, IsValidJoinCode("ab12cd34"))
	assert.False(t, IsValidJoinCode("AB12-D34"))
}

func TestRemoveNodeCascadesOnlyIncidentEdges(t *testing.T) {
	p := newTestProject(t)
	addNode(t, p, "a")
	addNode(t, p, "b")
	addNode(t, p, "c")
	addEdge(t, p, "ab", "a", "b")
	addEdge(t, p, "ca", "c", "a")
	addEdge(t, p, "bc", "b", "c")

	removed, err := p.KnowledgeGraph.RemoveNode("a")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"ab", "ca"}, removed)
	require.Len(t, p.KnowledgeGraph.Edges, 1)
	assert.Equal(t, "bc", p.KnowledgeGraph.Edges[0].ID)
	assert.Len(t, p.KnowledgeGraph.Nodes, 2)

	_, err = p.KnowledgeGraph.RemoveNode("a")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestAddEdgeRejectsUnknownEndpoints(t *testing.T) {
	p := newTestProject(t)
	addNode(t, p, "a")

	err := p.KnowledgeGraph.AddEdge(GraphEdge{ID: "e1", Source: "a", Target: "ghost", CorrelationType: CorrelationCites, Strength: 1})
	assert.True(t, apperrors.IsValidation(err))

	err = p.KnowledgeGraph.AddEdge(GraphEdge{ID: "e2", Source: "a", Target: "a", CorrelationType: CorrelationCites, Strength: 1.5})
	assert.True(t, apperrors.IsValidation(err))
	assert.Empty(t, p.KnowledgeGraph.Edges)
}

func TestUpdateNodeIsAllOrNothing(t *testing.T) {
	p := newTestProject(t)
	addNode(t, p, "a")

	label := "renamed"
	bad := TrustLevel("absolute")
	_, err := p.KnowledgeGraph.UpdateNode("a", NodePatch{Label: &label, TrustLevel: &bad})
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, "a", p.KnowledgeGraph.Nodes[0].Label)

	high := TrustHigh
	node, err := p.KnowledgeGraph.UpdateNode("a", NodePatch{Label: &label, TrustLevel: &high})
	require.NoError(t, err)
	assert.Equal(t, "renamed", node.Label)
	assert.Equal(t, TrustHigh, p.KnowledgeGraph.Nodes[0].TrustLevel)
}

func TestNotesAreAppendOnly(t *testing.T) {
	p := newTestProject(t)
	addNode(t, p, "a")

	note, err := NewNote(Ref("alice", ""), "check residue 614", testNow)
	require.NoError(t, err)
	require.NoError(t, p.KnowledgeGraph.AddNote("a", note))

	_, err = NewNote(Ref("alice", ""), "   ", testNow)
	assert.True(t, apperrors.IsValidation(err))

	err = p.KnowledgeGraph.AddNote("ghost", note)
	assert.True(t, apperrors.IsNotFound(err))
	assert.Len(t, p.KnowledgeGraph.Nodes[0].Notes, 1)
}

func TestCheckpointIsIndependentOfLiveState(t *testing.T) {
	p := newTestProject(t)
	addNode(t, p, "a")
	p.KnowledgeGraph.Nodes[0].Metadata = map[string]interface{}{"tags": []interface{}{"x"}}
	require.NoError(t, p.AddPoolItem(DataPoolItem{ID: "i1", Type: ItemTypeText, Name: "notes.txt"}))

	cp, err := p.CreateCheckpoint("baseline", "", Ref("alice", ""), testNow)
	require.NoError(t, err)
	stored, err := p.Checkpoint(cp.ID)
	require.NoError(t, err)
	before := stored.Clone()

	addNode(t, p, "b")
	p.KnowledgeGraph.Nodes[0].Label = "mutated"
	p.KnowledgeGraph.Nodes[0].Metadata["tags"].([]interface{})[0] = "y"
	comment, _ := NewComment(Ref("alice", ""), "hello", testNow)
	require.NoError(t, p.AddPoolComment("i1", comment))

	stored, err = p.Checkpoint(cp.ID)
	require.NoError(t, err)
	assert.Equal(t, before, *stored)
}

func TestRestoreCheckpoint(t *testing.T) {
	p := newTestProject(t)
	addNode(t, p, "a")
	first, err := p.CreateCheckpoint("first", "", Ref("alice", ""), testNow)
	require.NoError(t, err)

	addNode(t, p, "b")
	p.CurrentMode = ModeCoScientist
	require.NoError(t, p.AddStep(CoScientistStep{ID: "s1", Type: StepHypothesis, Title: "h1"}))
	second, err := p.CreateCheckpoint("second", "", Ref("alice", ""), testNow)
	require.NoError(t, err)

	restored, err := p.RestoreCheckpoint(first.ID, testNow)
	require.NoError(t, err)

	assert.Equal(t, ModePool, p.CurrentMode)
	assert.Equal(t, restored.KnowledgeGraph, p.KnowledgeGraph)
	assert.Empty(t, p.CoScientistSteps)
	require.Len(t, p.Checkpoints, 2)
	assert.Equal(t, first.ID, p.Checkpoints[0].ID)
	assert.Equal(t, second.ID, p.Checkpoints[1].ID)

	// mutating after restore must not leak into the checkpoint used
	addNode(t, p, "c")
	cp, err := p.Checkpoint(first.ID)
	require.NoError(t, err)
	assert.Len(t, cp.KnowledgeGraph.Nodes, 1)

	_, err = p.RestoreCheckpoint("missing", testNow)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestStepStatusTransitions(t *testing.T) {
	tests := []struct {
		from StepStatus
		to   StepStatus
		ok   bool
	}{
		{StepPending, StepApproved, true},
		{StepPending, StepRejected, true},
		{StepApproved, StepApproved, true},
		{StepRejected, StepRejected, true},
		{StepApproved, StepRejected, false},
		{StepRejected, StepApproved, false},
		{StepPending, StepPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.ok, CanTransition(tt.from, tt.to))
		})
	}

	p := newTestProject(t)
	require.NoError(t, p.AddStep(CoScientistStep{ID: "s1", Type: StepEvidence, Title: "assay"}))
	_, err := p.SetStepStatus("s1", StepApproved)
	require.NoError(t, err)
	_, err = p.SetStepStatus("s1", StepRejected)
	assert.True(t, apperrors.IsConflict(err))
}

func TestApplyPatchTouchesOnlyProvidedFields(t *testing.T) {
	p := newTestProject(t)
	addNode(t, p, "a")
	p.Notes = "keep me"

	name := "Spike Study v2"
	mode := ModeRetrieval
	require.NoError(t, p.Apply(Patch{Name: &name, CurrentMode: &mode}, testNow))

	assert.Equal(t, "Spike Study v2", p.Name)
	assert.Equal(t, ModeRetrieval, p.CurrentMode)
	assert.Equal(t, "keep me", p.Notes)
	assert.Len(t, p.KnowledgeGraph.Nodes, 1)
}

func TestApplyPatchRejectsInvalidGraphWithoutMutation(t *testing.T) {
	p := newTestProject(t)
	name := "changed"
	graph := NewKnowledgeGraph()
	graph.Edges = append(graph.Edges, GraphEdge{ID: "e", Source: "x", Target: "y", CorrelationType: CorrelationCites})

	err := p.Apply(Patch{Name: &name, KnowledgeGraph: &graph}, testNow)

	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, "Spike Study", p.Name)
}

func TestPoolComments(t *testing.T) {
	p := newTestProject(t)
	require.NoError(t, p.AddPoolItem(DataPoolItem{ID: "i1", Type: ItemTypePDB, Name: "6VXX"}))

	c, err := NewComment(Ref("bob", ""), "nice structure", testNow)
	require.NoError(t, err)
	require.NoError(t, p.AddPoolComment("i1", c))

	got, err := p.PoolComment("i1", c.ID)
	require.NoError(t, err)
	assert.True(t, got.Author.Is("bob"))

	require.NoError(t, p.RemovePoolComment("i1", c.ID))
	_, err = p.PoolComment("i1", c.ID)
	assert.True(t, apperrors.IsNotFound(err))

	err = p.AddPoolItem(DataPoolItem{ID: "i2", Type: "spreadsheet", Name: "x"})
	assert.True(t, apperrors.IsValidation(err))
}
