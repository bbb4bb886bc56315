package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"qdesign-backend/application/services"
	"qdesign-backend/domain/project"
	"qdesign-backend/pkg/utils"
)

// CheckpointHandler handles checkpoint requests
type CheckpointHandler struct {
	responder
	checkpoints *services.CheckpointService
}

// NewCheckpointHandler creates a new checkpoint handler
func NewCheckpointHandler(checkpoints *services.CheckpointService, logger *zap.Logger) *CheckpointHandler {
	return &CheckpointHandler{
		responder:   responder{logger: logger.With(zap.String("handler", "checkpoint"))},
		checkpoints: checkpoints,
	}
}

// CreateCheckpointRequest is the body of POST /checkpoints
type CreateCheckpointRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

// CheckpointListResponse wraps checkpoint metadata
type CheckpointListResponse struct {
	Checkpoints []project.CheckpointSummary `json:"checkpoints"`
	Count       int                         `json:"count"`
}

// ListCheckpoints handles GET /projects/{projectID}/checkpoints
func (h *CheckpointHandler) ListCheckpoints(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	list, err := h.checkpoints.List(r.Context(), c, chi.URLParam(r, "projectID"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if list == nil {
		list = []project.CheckpointSummary{}
	}
	h.respondJSON(w, http.StatusOK, CheckpointListResponse{Checkpoints: list, Count: len(list)})
}

// CreateCheckpoint handles POST /projects/{projectID}/checkpoints and
// returns the new checkpoint's metadata
func (h *CheckpointHandler) CreateCheckpoint(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var req CreateCheckpointRequest
	if err := decode(w, r, defaultBodyLimit, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.respondError(w, r, err)
		return
	}

	_, cp, err := h.checkpoints.Create(r.Context(), c, chi.URLParam(r, "projectID"), req.Name, req.Description)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, cp.Summary())
}

// RestoreCheckpoint handles POST /projects/{projectID}/checkpoints/{checkpointID}/restore
func (h *CheckpointHandler) RestoreCheckpoint(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	p, err := h.checkpoints.Restore(r.Context(), c, chi.URLParam(r, "projectID"), chi.URLParam(r, "checkpointID"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, p)
}
