package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"qdesign-backend/application/services"
	"qdesign-backend/domain/project"
	"qdesign-backend/pkg/utils"
)

// ProjectHandler handles project lifecycle requests
type ProjectHandler struct {
	responder
	projects *services.ProjectService
}

// NewProjectHandler creates a new project handler
func NewProjectHandler(projects *services.ProjectService, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{
		responder: responder{logger: logger.With(zap.String("handler", "project"))},
		projects:  projects,
	}
}

// CreateProjectRequest is the body of POST /projects
type CreateProjectRequest struct {
	Name                string   `json:"name" validate:"required,max=200"`
	Description         string   `json:"description" validate:"max=5000"`
	MainObjective       string   `json:"mainObjective" validate:"max=5000"`
	SecondaryObjectives []string `json:"secondaryObjectives" validate:"max=50,dive,max=1000"`
	Constraints         []string `json:"constraints" validate:"max=50,dive,max=1000"`
	Notes               string   `json:"notes"`
}

// JoinProjectRequest is the body of POST /projects/join
type JoinProjectRequest struct {
	JoinCode string `json:"joinCode" validate:"required"`
}

// ProjectListResponse wraps the caller's projects
type ProjectListResponse struct {
	Projects []*project.Project `json:"projects"`
	Count    int                `json:"count"`
}

// CreateProject handles POST /projects
func (h *ProjectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var req CreateProjectRequest
	if err := decode(w, r, defaultBodyLimit, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.respondError(w, r, err)
		return
	}

	p, err := h.projects.Create(r.Context(), c, services.CreateProjectInput{
		Name:                req.Name,
		Description:         req.Description,
		MainObjective:       req.MainObjective,
		SecondaryObjectives: req.SecondaryObjectives,
		Constraints:         req.Constraints,
		Notes:               req.Notes,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, p)
}

// ListProjects handles GET /projects
func (h *ProjectHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	projects, err := h.projects.List(r.Context(), c)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if projects == nil {
		projects = []*project.Project{}
	}
	h.respondJSON(w, http.StatusOK, ProjectListResponse{Projects: projects, Count: len(projects)})
}

// JoinProject handles POST /projects/join
func (h *ProjectHandler) JoinProject(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var req JoinProjectRequest
	if err := decode(w, r, defaultBodyLimit, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.respondError(w, r, err)
		return
	}

	p, err := h.projects.Join(r.Context(), c, req.JoinCode)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, p)
}

// GetProject handles GET /projects/{projectID}
func (h *ProjectHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	p, err := h.projects.Get(r.Context(), c, chi.URLParam(r, "projectID"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, p)
}

// UpdateProject handles PATCH /projects/{projectID}. Fields outside the
// update allow-list are dropped by the decoder.
func (h *ProjectHandler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var patch project.Patch
	if err := decode(w, r, uploadBodyLimit, &patch); err != nil {
		h.respondError(w, r, err)
		return
	}

	p, err := h.projects.Update(r.Context(), c, chi.URLParam(r, "projectID"), patch)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, p)
}

// DeleteProject handles DELETE /projects/{projectID}
func (h *ProjectHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	c, err := caller(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.projects.Delete(r.Context(), c, chi.URLParam(r, "projectID")); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
