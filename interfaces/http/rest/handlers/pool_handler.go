package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"qdesign-backend/application/services"
	"qdesign-backend/domain/project"
	"qdesign-backend/pkg/utils"
)

// PoolHandler handles data pool requests
type PoolHandler struct {
	responder
	pool *services.PoolService
}

// NewPoolHandler creates a new pool handler
func NewPoolHandler(pool *services.PoolService, logger *zap.Logger) *PoolHandler {
	return &PoolHandler{
		responder: responder{logger: logger.With(zap.String("handler", "pool"))},
		pool:      pool,
	}
}

// AddPoolItemRequest is the body of POST /pool
type AddPoolItemRequest struct {
	Type        project.ItemType `json:"type" validate:"required"`
	Name        string           `json:"name" validate:"required,max=500"`
	Description string           `json:"description" validate:"max=5000"`
	Content     string           `json:"content"`
	ContentType string           `json:"contentType" validate:"max=200"`
}

// CommentRequest is the body of every comment and note endpoint
type CommentRequest struct {
	Text string `json:"text" validate:"required,max=10000"`
}

// AddItem handles POST /projects/{projectID}/pool
func (h *PoolHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var req AddPoolItemRequest
	if err := decode(w, r, uploadBodyLimit, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.respondError(w, r, err)
		return
	}

	item, err := h.pool.AddItem(r.Context(), c, chi.URLParam(r, "projectID"), services.NewPoolItem{
		Type:        req.Type,
		Name:        req.Name,
		Description: req.Description,
		Content:     req.Content,
		ContentType: req.ContentType,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, item)
}

// UpdateItem handles PATCH /projects/{projectID}/pool/{itemID}
func (h *PoolHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var patch project.PoolItemPatch
	if err := decode(w, r, uploadBodyLimit, &patch); err != nil {
		h.respondError(w, r, err)
		return
	}

	item, err := h.pool.UpdateItem(r.Context(), c, chi.URLParam(r, "projectID"), chi.URLParam(r, "itemID"), patch)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, item)
}

// RemoveItem handles DELETE /projects/{projectID}/pool/{itemID}
func (h *PoolHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.pool.RemoveItem(r.Context(), c, chi.URLParam(r, "projectID"), chi.URLParam(r, "itemID")); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ItemContent handles GET /projects/{projectID}/pool/{itemID}/content and
// streams the raw artifact
func (h *PoolHandler) ItemContent(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	body, obj, err := h.pool.ItemContent(r.Context(), c, chi.URLParam(r, "projectID"), chi.URLParam(r, "itemID"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	defer body.Close()

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("Content stream interrupted",
			zap.String("itemID", chi.URLParam(r, "itemID")),
			zap.Error(err))
	}
}

// AddComment handles POST /projects/{projectID}/pool/{itemID}/comments
func (h *PoolHandler) AddComment(w http.ResponseWriter, r *http.Request) {
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

	comment, err := h.pool.AddComment(r.Context(), c, chi.URLParam(r, "projectID"), chi.URLParam(r, "itemID"), req.Text)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, comment)
}

// DeleteComment handles DELETE /projects/{projectID}/pool/{itemID}/comments/{commentID}
func (h *PoolHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	err = h.pool.DeleteComment(r.Context(), c,
		chi.URLParam(r, "projectID"), chi.URLParam(r, "itemID"), chi.URLParam(r, "commentID"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
