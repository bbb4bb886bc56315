package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"qdesign-backend/application/services"
	"qdesign-backend/domain/project"
	"qdesign-backend/pkg/utils"
)

// GraphHandler handles knowledge graph requests
type GraphHandler struct {
	responder
	graph *services.GraphService
}

// NewGraphHandler creates a new graph handler
func NewGraphHandler(graph *services.GraphService, logger *zap.Logger) *GraphHandler {
	return &GraphHandler{
		responder: responder{logger: logger.With(zap.String("handler", "graph"))},
		graph:     graph,
	}
}

// AddNodeRequest is the body of POST /graph/nodes
type AddNodeRequest struct {
	ID          string                 `json:"id" validate:"omitempty,max=100"`
	Type        string                 `json:"type" validate:"required,max=100"`
	Label       string                 `json:"label" validate:"required,max=500"`
	Description string                 `json:"description" validate:"max=5000"`
	Content     string                 `json:"content"`
	FileRef     string                 `json:"fileRef"`
	Position    project.Position       `json:"position"`
	TrustLevel  project.TrustLevel     `json:"trustLevel"`
	GroupID     string                 `json:"groupId"`
	Metadata    map[string]interface{} `json:"metadata"`
}

// AddEdgeRequest is the body of POST /graph/edges. Strength is a pointer
// so an explicit 0 is distinguishable from an omitted value.
type AddEdgeRequest struct {
	ID              string                  `json:"id" validate:"omitempty,max=100"`
	Source          string                  `json:"source" validate:"required"`
	Target          string                  `json:"target" validate:"required"`
	CorrelationType project.CorrelationType `json:"correlationType"`
	Strength        *float64                `json:"strength" validate:"omitempty,gte=0,lte=1"`
	Explanation     string                  `json:"explanation" validate:"max=5000"`
	Metadata        map[string]interface{}  `json:"metadata"`
}

// DeleteNodeResponse lists the edges removed along with the node
type DeleteNodeResponse struct {
	NodeID         string   `json:"nodeId"`
	RemovedEdgeIDs []string `json:"removedEdgeIds"`
}

// AddNode handles POST /projects/{projectID}/graph/nodes
func (h *GraphHandler) AddNode(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var req AddNodeRequest
	if err := decode(w, r, uploadBodyLimit, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.respondError(w, r, err)
		return
	}

	node, err := h.graph.AddNode(r.Context(), c, chi.URLParam(r, "projectID"), project.GraphNode{
		ID:          req.ID,
		Type:        req.Type,
		Label:       req.Label,
		Description: req.Description,
		Content:     req.Content,
		FileRef:     req.FileRef,
		Position:    req.Position,
		TrustLevel:  req.TrustLevel,
		GroupID:     req.GroupID,
		Metadata:    req.Metadata,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, node)
}

// UpdateNode handles PATCH /projects/{projectID}/graph/nodes/{nodeID}
func (h *GraphHandler) UpdateNode(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var patch project.NodePatch
	if err := decode(w, r, uploadBodyLimit, &patch); err != nil {
		h.respondError(w, r, err)
		return
	}

	node, err := h.graph.UpdateNode(r.Context(), c, chi.URLParam(r, "projectID"), chi.URLParam(r, "nodeID"), patch)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, node)
}

// DeleteNode handles DELETE /projects/{projectID}/graph/nodes/{nodeID}
func (h *GraphHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	nodeID := chi.URLParam(r, "nodeID")
	removed, err := h.graph.DeleteNode(r.Context(), c, chi.URLParam(r, "projectID"), nodeID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if removed == nil {
		removed = []string{}
	}
	h.respondJSON(w, http.StatusOK, DeleteNodeResponse{NodeID: nodeID, RemovedEdgeIDs: removed})
}

// AddNote handles POST /projects/{projectID}/graph/nodes/{nodeID}/notes
func (h *GraphHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var req CommentRequest
	if err := decode(w, r, defaultBodyLimit, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.respondError(w, r, err)
		return
	}

	note, err := h.graph.AddNote(r.Context(), c, chi.URLParam(r, "projectID"), chi.URLParam(r, "nodeID"), req.Text)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, note)
}

// AddEdge handles POST /projects/{projectID}/graph/edges
func (h *GraphHandler) AddEdge(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var req AddEdgeRequest
	if err := decode(w, r, defaultBodyLimit, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.respondError(w, r, err)
		return
	}

	strength := 0.5
	if req.Strength != nil {
		strength = *req.Strength
	}
	edge, err := h.graph.AddEdge(r.Context(), c, chi.URLParam(r, "projectID"), project.GraphEdge{
		ID:              req.ID,
		Source:          req.Source,
		Target:          req.Target,
		CorrelationType: req.CorrelationType,
		Strength:        strength,
		Explanation:     req.Explanation,
		Metadata:        req.Metadata,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, edge)
}

// DeleteEdge handles DELETE /projects/{projectID}/graph/edges/{edgeID}
func (h *GraphHandler) DeleteEdge(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.graph.DeleteEdge(r.Context(), c, chi.URLParam(r, "projectID"), chi.URLParam(r, "edgeID")); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
