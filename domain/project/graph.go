package project

import (
	"strings"
	"time"

	apperrors "qdesign-backend/pkg/errors"
)

// KnowledgeGraph holds the nodes, edges and groups of a project.
// Ids are unique within each collection.
type KnowledgeGraph struct {
	Nodes  []GraphNode  `json:"nodes"`
	Edges  []GraphEdge  `json:"edges"`
	Groups []GraphGroup `json:"groups"`
}

// Position is a 2-D layout coordinate
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// GraphNode is an entity in the knowledge graph
type GraphNode struct {
	ID          string                 `json:"id"`
	Type        string                 `json:"type"`
	Label       string                 `json:"label"`
	Description string                 `json:"description,omitempty"`
	Content     string                 `json:"content,omitempty"`
	FileRef     string                 `json:"fileRef,omitempty"`
	Position    Position               `json:"position"`
	TrustLevel  TrustLevel             `json:"trustLevel"`
	Notes       []Note                 `json:"notes"`
	GroupID     string                 `json:"groupId,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// GraphEdge links two nodes
type GraphEdge struct {
	ID              string                 `json:"id"`
	Source          string                 `json:"source"`
	Target          string                 `json:"target"`
	CorrelationType CorrelationType        `json:"correlationType"`
	Strength        float64                `json:"strength"`
	Explanation     string                 `json:"explanation,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}

// GraphGroup clusters nodes visually
type GraphGroup struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// Note is an append-only annotation on a node
type Note struct {
	ID        string    `json:"id"`
	Author    UserRef   `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewKnowledgeGraph returns an empty graph with non-nil collections
func NewKnowledgeGraph() KnowledgeGraph {
	return KnowledgeGraph{Nodes: []GraphNode{}, Edges: []GraphEdge{}, Groups: []GraphGroup{}}
}

// NewNote builds a note authored by author
func NewNote(author UserRef, text string, now time.Time) (Note, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Note{}, apperrors.NewValidation("note text is required")
	}
	return Note{ID: NewID(), Author: author, Text: text, CreatedAt: now}, nil
}

// Validate checks a node's own fields
func (n GraphNode) Validate() error {
	if n.ID == "" {
		return apperrors.NewValidation("node id is required")
	}
	if strings.TrimSpace(n.Type) == "" {
		return apperrors.NewValidation("node type is required")
	}
	if strings.TrimSpace(n.Label) == "" {
		return apperrors.NewValidation("node label is required")
	}
	if !n.TrustLevel.IsValid() {
		return apperrors.NewValidationf("invalid trust level %q", n.TrustLevel)
	}
	return nil
}

// Validate checks an edge's own fields
func (e GraphEdge) Validate() error {
	if e.ID == "" {
		return apperrors.NewValidation("edge id is required")
	}
	if e.Source == "" || e.Target == "" {
		return apperrors.NewValidation("edge source and target are required")
	}
	if !e.CorrelationType.IsValid() {
		return apperrors.NewValidationf("invalid correlation type %q", e.CorrelationType)
	}
	if e.Strength < 0 || e.Strength > 1 {
		return apperrors.NewValidation("edge strength must be between 0 and 1")
	}
	return nil
}

// Validate checks the whole graph: unique ids, known endpoints and groups
func (g KnowledgeGraph) Validate() error {
	groups := make(map[string]struct{}, len(g.Groups))
	for _, grp := range g.Groups {
		if grp.ID == "" {
			return apperrors.NewValidation("group id is required")
		}
		if _, dup := groups[grp.ID]; dup {
			return apperrors.NewValidationf("duplicate group id %q", grp.ID)
		}
		groups[grp.ID] = struct{}{}
	}

	nodes := make(map[string]struct{}, len(g.Nodes))
	for _, n := range g.Nodes {
		if err := n.Validate(); err != nil {
			return err
		}
		if _, dup := nodes[n.ID]; dup {
			return apperrors.NewValidationf("duplicate node id %q", n.ID)
		}
		if n.GroupID != "" {
			if _, ok := groups[n.GroupID]; !ok {
				return apperrors.NewValidationf("node %q references unknown group %q", n.ID, n.GroupID)
			}
		}
		nodes[n.ID] = struct{}{}
	}

	edges := make(map[string]struct{}, len(g.Edges))
	for _, e := range g.Edges {
		if err := e.Validate(); err != nil {
			return err
		}
		if _, dup := edges[e.ID]; dup {
			return apperrors.NewValidationf("duplicate edge id %q", e.ID)
		}
		if _, ok := nodes[e.Source]; !ok {
			return apperrors.NewValidationf("edge %q references unknown source node %q", e.ID, e.Source)
		}
		if _, ok := nodes[e.Target]; !ok {
			return apperrors.NewValidationf("edge %q references unknown target node %q", e.ID, e.Target)
		}
		edges[e.ID] = struct{}{}
	}
	return nil
}

func (g *KnowledgeGraph) nodeIndex(nodeID string) int {
	for i := range g.Nodes {
		if g.Nodes[i].ID == nodeID {
			return i
		}
	}
	return -1
}

func (g *KnowledgeGraph) hasGroup(groupID string) bool {
	for _, grp := range g.Groups {
		if grp.ID == groupID {
			return true
		}
	}
	return false
}

// Node returns the node with the given id
func (g *KnowledgeGraph) Node(nodeID string) (*GraphNode, error) {
	if i := g.nodeIndex(nodeID); i >= 0 {
		return &g.Nodes[i], nil
	}
	return nil, apperrors.NewNotFound("node not found")
}

// Edge returns the edge with the given id
func (g *KnowledgeGraph) Edge(edgeID string) (*GraphEdge, error) {
	for i := range g.Edges {
		if g.Edges[i].ID == edgeID {
			return &g.Edges[i], nil
		}
	}
	return nil, apperrors.NewNotFound("edge not found")
}

// AddNode inserts a node
func (g *KnowledgeGraph) AddNode(node GraphNode) error {
	if node.TrustLevel == "" {
		node.TrustLevel = TrustMedium
	}
	if node.Notes == nil {
		node.Notes = []Note{}
	}
	if err := node.Validate(); err != nil {
		return err
	}
	if g.nodeIndex(node.ID) >= 0 {
		return apperrors.NewConflict("node already exists")
	}
	if node.GroupID != "" && !g.hasGroup(node.GroupID) {
		return apperrors.NewValidationf("unknown group %q", node.GroupID)
	}
	g.Nodes = append(g.Nodes, node)
	return nil
}

// NodePatch lists the mutable fields of a node. Notes are only ever
// appended through AddNote.
type NodePatch struct {
	Type        *string                 `json:"type,omitempty"`
	Label       *string                 `json:"label,omitempty"`
	Description *string                 `json:"description,omitempty"`
	Content     *string                 `json:"content,omitempty"`
	Position    *Position               `json:"position,omitempty"`
	TrustLevel  *TrustLevel             `json:"trustLevel,omitempty"`
	GroupID     *string                 `json:"groupId,omitempty"`
	Metadata    *map[string]interface{} `json:"metadata,omitempty"`
}

// UpdateNode validates and applies a patch to an existing node
func (g *KnowledgeGraph) UpdateNode(nodeID string, patch NodePatch) (*GraphNode, error) {
	node, err := g.Node(nodeID)
	if err != nil {
		return nil, err
	}

	next := node.Clone()
	if patch.Type != nil {
		next.Type = strings.TrimSpace(*patch.Type)
	}
	if patch.Label != nil {
		next.Label = strings.TrimSpace(*patch.Label)
	}
	if patch.Description != nil {
		next.Description = *patch.Description
	}
	if patch.Content != nil {
		next.Content = *patch.Content
	}
	if patch.Position != nil {
		next.Position = *patch.Position
	}
	if patch.TrustLevel != nil {
		next.TrustLevel = *patch.TrustLevel
	}
	if patch.GroupID != nil {
		next.GroupID = *patch.GroupID
	}
	if patch.Metadata != nil {
		next.Metadata = cloneMetadata(*patch.Metadata)
	}

	if err := next.Validate(); err != nil {
		return nil, err
	}
	if next.GroupID != "" && !g.hasGroup(next.GroupID) {
		return nil, apperrors.NewValidationf("unknown group %q", next.GroupID)
	}

	*node = next
	return node, nil
}

// RemoveNode deletes a node together with every edge touching it and
// returns the ids of the removed edges
func (g *KnowledgeGraph) RemoveNode(nodeID string) ([]string, error) {
	i := g.nodeIndex(nodeID)
	if i < 0 {
		return nil, apperrors.NewNotFound("node not found")
	}
	g.Nodes = append(g.Nodes[:i], g.Nodes[i+1:]...)

	removed := []string{}
	kept := g.Edges[:0]
	for _, e := range g.Edges {
		if e.Source == nodeID || e.Target == nodeID {
			removed = append(removed, e.ID)
			continue
		}
		kept = append(kept, e)
	}
	g.Edges = kept
	return removed, nil
}

// AddEdge inserts an edge whose endpoints must already exist
func (g *KnowledgeGraph) AddEdge(edge GraphEdge) error {
	if edge.CorrelationType == "" {
		edge.CorrelationType = CorrelationCustom
	}
	if err := edge.Validate(); err != nil {
		return err
	}
	if g.nodeIndex(edge.Source) < 0 {
		return apperrors.NewValidationf("edge source node %q does not exist", edge.Source)
	}
	if g.nodeIndex(edge.Target) < 0 {
		return apperrors.NewValidationf("edge target node %q does not exist", edge.Target)
	}
	if _, err := g.Edge(edge.ID); err == nil {
		return apperrors.NewConflict("edge already exists")
	}
	g.Edges = append(g.Edges, edge)
	return nil
}

// RemoveEdge deletes an edge
func (g *KnowledgeGraph) RemoveEdge(edgeID string) error {
	for i := range g.Edges {
		if g.Edges[i].ID == edgeID {
			g.Edges = append(g.Edges[:i], g.Edges[i+1:]...)
			return nil
		}
	}
	return apperrors.NewNotFound("edge not found")
}

// AddNote appends a note to a node
func (g *KnowledgeGraph) AddNote(nodeID string, note Note) error {
	node, err := g.Node(nodeID)
	if err != nil {
		return err
	}
	node.Notes = append(node.Notes, note)
	return nil
}
