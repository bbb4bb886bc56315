package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"qdesign-backend/domain/access"
	"qdesign-backend/domain/project"
)

// GraphService handles knowledge graph mutations. Every change is applied
// to the loaded document and saved in one write, including the edge
// cascade of a node delete.
type GraphService struct {
	docs   *Documents
	logger *zap.Logger
}

// NewGraphService creates a new graph service
func NewGraphService(docs *Documents, logger *zap.Logger) *GraphService {
	return &GraphService{docs: docs, logger: logger.With(zap.String("service", "graph"))}
}

// AddNode inserts a node; an empty id gets a generated one
func (s *GraphService) AddNode(ctx context.Context, caller Caller, projectID string, node project.GraphNode) (project.GraphNode, error) {
	if node.ID == "" {
		node.ID = project.NewID()
	}
	var added project.GraphNode
	_, err := s.docs.Mutate(ctx, "GraphService.AddNode", caller, projectID, access.Edit,
		func(p *project.Project, _ time.Time) error {
			if err := p.KnowledgeGraph.AddNode(node); err != nil {
				return err
			}
			n, err := p.KnowledgeGraph.Node(node.ID)
			if err != nil {
				return err
			}
			added = n.Clone()
			return nil
		})
	return added, err
}

// UpdateNode applies a patch to a node
func (s *GraphService) UpdateNode(ctx context.Context, caller Caller, projectID, nodeID string, patch project.NodePatch) (project.GraphNode, error) {
	var updated project.GraphNode
	_, err := s.docs.Mutate(ctx, "GraphService.UpdateNode", caller, projectID, access.Edit,
		func(p *project.Project, _ time.Time) error {
			n, err := p.KnowledgeGraph.UpdateNode(nodeID, patch)
			if err != nil {
				return err
			}
			updated = n.Clone()
			return nil
		})
	return updated, err
}

// DeleteNode removes a node with all incident edges and returns the ids of
// those edges
func (s *GraphService) DeleteNode(ctx context.Context, caller Caller, projectID, nodeID string) ([]string, error) {
	var removed []string
	_, err := s.docs.Mutate(ctx, "GraphService.DeleteNode", caller, projectID, access.Edit,
		func(p *project.Project, _ time.Time) error {
			var err error
			removed, err = p.KnowledgeGraph.RemoveNode(nodeID)
			return err
		})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Node deleted",
		zap.String("projectID", projectID),
		zap.String("nodeID", nodeID),
		zap.Int("cascadedEdges", len(removed)))
	return removed, nil
}

// AddNote appends a note to a node
func (s *GraphService) AddNote(ctx context.Context, caller Caller, projectID, nodeID, text string) (project.Note, error) {
	var note project.Note
	_, err := s.docs.Mutate(ctx, "GraphService.AddNote", caller, projectID, access.Edit,
		func(p *project.Project, now time.Time) error {
			var err error
			if note, err = project.NewNote(caller.Ref(), text, now); err != nil {
				return err
			}
			return p.KnowledgeGraph.AddNote(nodeID, note)
		})
	return note, err
}

// AddEdge links two existing nodes
func (s *GraphService) AddEdge(ctx context.Context, caller Caller, projectID string, edge project.GraphEdge) (project.GraphEdge, error) {
	if edge.ID == "" {
		edge.ID = project.NewID()
	}
	var added project.GraphEdge
	_, err := s.docs.Mutate(ctx, "GraphService.AddEdge", caller, projectID, access.Edit,
		func(p *project.Project, _ time.Time) error {
			if err := p.KnowledgeGraph.AddEdge(edge); err != nil {
				return err
			}
			e, err := p.KnowledgeGraph.Edge(edge.ID)
			if err != nil {
				return err
			}
			added = e.Clone()
			return nil
		})
	return added, err
}

// DeleteEdge removes an edge
func (s *GraphService) DeleteEdge(ctx context.Context, caller Caller, projectID, edgeID string) error {
	_, err := s.docs.Mutate(ctx, "GraphService.DeleteEdge", caller, projectID, access.Edit,
		func(p *project.Project, _ time.Time) error {
			return p.KnowledgeGraph.RemoveEdge(edgeID)
		})
	return err
}
