package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"qdesign-backend/application/ports"
	"qdesign-backend/application/services"
	"qdesign-backend/pkg/utils"
)

// RetrievalHandler starts and tracks retrieval tasks
type RetrievalHandler struct {
	responder
	retrieval *services.RetrievalService
}

// NewRetrievalHandler creates a new retrieval handler
func NewRetrievalHandler(retrieval *services.RetrievalService, logger *zap.Logger) *RetrievalHandler {
	return &RetrievalHandler{
		responder: responder{logger: logger.With(zap.String("handler", "retrieval"))},
		retrieval: retrieval,
	}
}

// StartRetrievalRequest is the body of POST /retrieval
type StartRetrievalRequest struct {
	Query      string   `json:"query" validate:"required,max=2000"`
	Sources    []string `json:"sources" validate:"max=20,dive,max=200"`
	MaxResults int      `json:"maxResults" validate:"gte=0,lte=100"`
}

// Start handles POST /projects/{projectID}/retrieval. The task runs in the
// background; the response carries its id.
func (h *RetrievalHandler) Start(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var req StartRetrievalRequest
	if err := decode(w, r, defaultBodyLimit, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.respondError(w, r, err)
		return
	}

	task, err := h.retrieval.Start(r.Context(), c, chi.URLParam(r, "projectID"), ports.RetrievalQuery{
		Query:      req.Query,
		Sources:    req.Sources,
		MaxResults: req.MaxResults,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusAccepted, task)
}

// Get handles GET /projects/{projectID}/retrieval/{taskID}
func (h *RetrievalHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	task, err := h.retrieval.Get(r.Context(), c, chi.URLParam(r, "projectID"), chi.URLParam(r, "taskID"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, task)
}

// Cancel handles DELETE /projects/{projectID}/retrieval/{taskID}
func (h *RetrievalHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	task, err := h.retrieval.Cancel(r.Context(), c, chi.URLParam(r, "projectID"), chi.URLParam(r, "taskID"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, task)
}
