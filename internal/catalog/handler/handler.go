// Package handler exposes the catalog API over HTTP.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"reqtrace/internal/catalog/models"
	"reqtrace/internal/catalog/service"
	"reqtrace/pkg/domain"
	dErrors "reqtrace/pkg/domain-errors"
	"reqtrace/pkg/platform/httputil"
)

// Handler wires catalog endpoints to the catalog service.
type Handler struct {
	service *service.Service
	logger  *slog.Logger
}

// New constructs a catalog handler.
func New(s *service.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: s, logger: logger}
}

// Register mounts catalog endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/projects", func(r chi.Router) {
		r.Post("/", h.HandleCreateProject)
		r.Get("/", h.HandleListProjects)
		r.Get("/active", h.HandleActiveProject)
		r.Put("/{id}/activate", h.HandleActivateProject)
		r.Delete("/{id}", h.HandleDeleteProject)
	})
	r.Route("/groups", func(r chi.Router) {
		r.Post("/", h.HandleCreateGroup)
		r.Get("/", h.HandleListGroups)
		r.Get("/active", h.HandleActiveGroup)
		r.Put("/{id}/activate", h.HandleActivateGroup)
		r.Put("/{id}/reorder", h.HandleReorderGroup)
		r.Delete("/{id}", h.HandleDeleteGroup)
	})
	r.Route("/chapters", func(r chi.Router) {
		r.Post("/", h.HandleCreateChapter)
		r.Get("/", h.HandleListChapters)
		r.Put("/{id}/reorder", h.HandleReorderChapter)
		r.Delete("/{id}", h.HandleDeleteChapter)
	})
}

// HandleCreateProject handles POST /projects.
func (h *Handler) HandleCreateProject(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[models.CreateProjectRequest](w, r)
	if !ok {
		return
	}
	p, err := h.service.CreateProject(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, p)
}

// HandleListProjects handles GET /projects.
func (h *Handler) HandleListProjects(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.ListProjects(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// HandleActiveProject handles GET /projects/active. Responds with null when
// no project is active.
func (h *Handler) HandleActiveProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.ActiveProject(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

// HandleActivateProject handles PUT /projects/{id}/activate.
func (h *Handler) HandleActivateProject(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseProjectID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid project id"))
		return
	}
	if err := h.service.ActivateProject(r.Context(), id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "Project activated"})
}

// HandleDeleteProject handles DELETE /projects/{id}.
func (h *Handler) HandleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseProjectID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid project id"))
		return
	}
	if err := h.service.DeleteProject(r.Context(), id); err != nil {
		h.logger.ErrorContext(r.Context(), "delete project failed",
			"project_id", id.String(), "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "Project deleted"})
}

// HandleCreateGroup handles POST /groups.
func (h *Handler) HandleCreateGroup(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[models.CreateGroupRequest](w, r)
	if !ok {
		return
	}
	g, err := h.service.CreateGroup(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, g)
}

// HandleListGroups handles GET /groups?project_id=.
func (h *Handler) HandleListGroups(w http.ResponseWriter, r *http.Request) {
	var projectID *domain.ProjectID
	if v := r.URL.Query().Get("project_id"); v != "" {
		id, err := domain.ParseProjectID(v)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid project_id"))
			return
		}
		projectID = &id
	}
	out, err := h.service.ListGroups(r.Context(), projectID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// HandleActiveGroup handles GET /groups/active. Responds with null when no
// group is active in the active project.
func (h *Handler) HandleActiveGroup(w http.ResponseWriter, r *http.Request) {
	g, err := h.service.ActiveGroup(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, g)
}

// HandleActivateGroup handles PUT /groups/{id}/activate.
func (h *Handler) HandleActivateGroup(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseGroupID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid group id"))
		return
	}
	if err := h.service.ActivateGroup(r.Context(), id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "Group activated"})
}

// HandleReorderGroup handles PUT /groups/{id}/reorder.
func (h *Handler) HandleReorderGroup(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseGroupID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid group id"))
		return
	}
	req, ok := httputil.Decode[models.ReorderRequest](w, r)
	if !ok {
		return
	}
	if err := h.service.ReorderGroup(r.Context(), id, req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "Group reordered"})
}

// HandleDeleteGroup handles DELETE /groups/{id}.
func (h *Handler) HandleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseGroupID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid group id"))
		return
	}
	if err := h.service.DeleteGroup(r.Context(), id); err != nil {
		h.logger.ErrorContext(r.Context(), "delete group failed",
			"group_id", id.String(), "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "Group deleted"})
}

// HandleCreateChapter handles POST /chapters.
func (h *Handler) HandleCreateChapter(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[models.CreateChapterRequest](w, r)
	if !ok {
		return
	}
	c, err := h.service.CreateChapter(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, c)
}

// HandleListChapters handles GET /chapters?group_id=.
func (h *Handler) HandleListChapters(w http.ResponseWriter, r *http.Request) {
	var groupID *domain.GroupID
	if v := r.URL.Query().Get("group_id"); v != "" {
		id, err := domain.ParseGroupID(v)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid group_id"))
			return
		}
		groupID = &id
	}
	out, err := h.service.ListChapters(r.Context(), groupID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// HandleReorderChapter handles PUT /chapters/{id}/reorder.
func (h *Handler) HandleReorderChapter(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseChapterID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid chapter id"))
		return
	}
	req, ok := httputil.Decode[models.ReorderRequest](w, r)
	if !ok {
		return
	}
	if err := h.service.ReorderChapter(r.Context(), id, req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "Chapter reordered"})
}

// HandleDeleteChapter handles DELETE /chapters/{id}.
func (h *Handler) HandleDeleteChapter(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseChapterID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid chapter id"))
		return
	}
	if err := h.service.DeleteChapter(r.Context(), id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "Chapter deleted"})
}
