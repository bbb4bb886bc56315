package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"qdesign-backend/application/services"
	"qdesign-backend/domain/project"
	"qdesign-backend/pkg/utils"
)

// StepHandler handles co-scientist step requests
type StepHandler struct {
	responder
	steps *services.StepService
}

// NewStepHandler creates a new step handler
func NewStepHandler(steps *services.StepService, logger *zap.Logger) *StepHandler {
	return &StepHandler{
		responder: responder{logger: logger.With(zap.String("handler", "step"))},
		steps:     steps,
	}
}

// AddStepRequest is the body of POST /steps
type AddStepRequest struct {
	ID          string               `json:"id" validate:"omitempty,max=100"`
	Type        project.StepType     `json:"type" validate:"required"`
	Title       string               `json:"title" validate:"required,max=500"`
	Content     string               `json:"content"`
	Attachments []project.Attachment `json:"attachments" validate:"max=100"`
}

// StepStatusRequest is the body of POST /steps/{stepID}/status
type StepStatusRequest struct {
	Status project.StepStatus `json:"status" validate:"required,oneof=approved rejected"`
}

// AddStep handles POST /projects/{projectID}/steps
func (h *StepHandler) AddStep(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var req AddStepRequest
	if err := decode(w, r, uploadBodyLimit, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.respondError(w, r, err)
		return
	}

	step, err := h.steps.AddStep(r.Context(), c, chi.URLParam(r, "projectID"), project.CoScientistStep{
		ID:          req.ID,
		Type:        req.Type,
		Title:       req.Title,
		Content:     req.Content,
		Attachments: req.Attachments,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, step)
}

// SetStatus handles POST /projects/{projectID}/steps/{stepID}/status
func (h *StepHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var req StepStatusRequest
	if err := decode(w, r, defaultBodyLimit, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.respondError(w, r, err)
		return
	}

	step, err := h.steps.SetStatus(r.Context(), c, chi.URLParam(r, "projectID"), chi.URLParam(r, "stepID"), req.Status)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, step)
}

// AddComment handles POST /projects/{projectID}/steps/{stepID}/comments
func (h *StepHandler) AddComment(w http.ResponseWriter, r *http.Request) {
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

	comment, err := h.steps.AddComment(r.Context(), c, chi.URLParam(r, "projectID"), chi.URLParam(r, "stepID"), req.Text)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, comment)
}
