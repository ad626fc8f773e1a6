// Package handler exposes the requirement API over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"reqtrace/internal/requirement/graph"
	"reqtrace/internal/requirement/models"
	"reqtrace/internal/requirement/store"
	"reqtrace/pkg/domain"
	dErrors "reqtrace/pkg/domain-errors"
	"reqtrace/pkg/platform/httputil"
	"reqtrace/pkg/requestcontext"
)

// Service defines the requirement operations the handler depends on.
type Service interface {
	Create(ctx context.Context, req models.CreateRequirementRequest) (*models.Requirement, error)
	Get(ctx context.Context, id domain.RequirementID) (*models.Requirement, error)
	List(ctx context.Context, f store.Filter) ([]*models.Requirement, error)
	Search(ctx context.Context, projectID domain.ProjectID, query string) ([]*models.Requirement, error)
	Update(ctx context.Context, id domain.RequirementID, req models.UpdateRequirementRequest) (*models.Requirement, error)
	Delete(ctx context.Context, id domain.RequirementID) error
	BatchUpdateStatus(ctx context.Context, req models.BatchUpdateRequest) (int, error)
	ChangeLog(ctx context.Context, id domain.RequirementID) ([]*models.ChangeLogEntry, error)
	AddEdge(ctx context.Context, parentID, childID domain.RequirementID) (*graph.EdgeResult, error)
	RemoveEdge(ctx context.Context, parentID, childID domain.RequirementID) (*graph.EdgeResult, error)
	Neighbors(ctx context.Context, id domain.RequirementID, dir graph.Direction) ([]*models.Requirement, error)
}

// Handler wires requirement endpoints to the requirement service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a requirement handler.
func New(service Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Register mounts requirement endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/requirements", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Get("/", h.HandleList)
		r.Get("/search", h.HandleSearch)
		r.Put("/batch", h.HandleBatchUpdate)
		r.Post("/relationships", h.HandleAddRelationship)
		r.Delete("/relationships/{parentID}/{childID}", h.HandleRemoveRelationship)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGet)
			r.Put("/", h.HandleUpdate)
			r.Delete("/", h.HandleDelete)
			r.Get("/changelog", h.HandleChangeLog)
			r.Get("/{direction}", h.HandleNeighbors)
		})
	})
}

// HandleCreate handles POST /requirements.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[models.CreateRequirementRequest](w, r)
	if !ok {
		return
	}

	created, err := h.service.Create(ctx, req)
	if err != nil {
		h.logError(ctx, "create requirement failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

// HandleList handles GET /requirements with optional filters.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	var f store.Filter
	if v := q.Get("project_id"); v != "" {
		id, err := domain.ParseProjectID(v)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid project_id"))
			return
		}
		f.ProjectID = &id
	}
	if v := q.Get("group_id"); v != "" {
		id, err := domain.ParseGroupID(v)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid group_id"))
			return
		}
		f.GroupID = &id
	}
	if v := q.Get("chapter_id"); v != "" {
		id, err := domain.ParseChapterID(v)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid chapter_id"))
			return
		}
		f.ChapterID = &id
	}
	if v := q.Get("status"); v != "" {
		status, err := models.ParseStatus(v)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		f.Status = &status
	}

	out, err := h.service.List(ctx, f)
	if err != nil {
		h.logError(ctx, "list requirements failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// HandleSearch handles GET /requirements/search?project_id=&q=.
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	projectID, err := domain.ParseProjectID(r.URL.Query().Get("project_id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid project_id"))
		return
	}

	out, err := h.service.Search(ctx, projectID, r.URL.Query().Get("q"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// HandleGet handles GET /requirements/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	found, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, found)
}

// HandleUpdate handles PUT /requirements/{id}.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	req, ok := httputil.Decode[models.UpdateRequirementRequest](w, r)
	if !ok {
		return
	}

	updated, err := h.service.Update(ctx, id, req)
	if err != nil {
		h.logError(ctx, "update requirement failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

// HandleDelete handles DELETE /requirements/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(ctx, id); err != nil {
		h.logError(ctx, "delete requirement failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "Requirement deleted"})
}

// HandleBatchUpdate handles PUT /requirements/batch.
func (h *Handler) HandleBatchUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[models.BatchUpdateRequest](w, r)
	if !ok {
		return
	}

	updated, err := h.service.BatchUpdateStatus(ctx, req)
	if err != nil {
		h.logError(ctx, "batch update failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"updated": updated})
}

// HandleChangeLog handles GET /requirements/{id}/changelog.
func (h *Handler) HandleChangeLog(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	entries, err := h.service.ChangeLog(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entries)
}

// HandleNeighbors handles GET /requirements/{id}/parents and
// /requirements/{id}/children.
func (h *Handler) HandleNeighbors(w http.ResponseWriter, r *http.Request) {
	dir, err := graph.ParseDirection(chi.URLParam(r, "direction"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.neighbors(w, r, dir)
}

// HandleAddRelationship handles POST /requirements/relationships.
func (h *Handler) HandleAddRelationship(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[models.RelationshipRequest](w, r)
	if !ok {
		return
	}

	res, err := h.service.AddEdge(ctx, req.ParentID, req.ChildID)
	if err != nil {
		h.logError(ctx, "add relationship failed", err)
		httputil.WriteError(w, err)
		return
	}
	status := http.StatusCreated
	if !res.Created {
		status = http.StatusOK
	}
	httputil.WriteJSON(w, status, map[string]any{
		"created": res.Created,
		"parent":  res.Parent,
		"child":   res.Child,
	})
}

// HandleRemoveRelationship handles DELETE /requirements/relationships/{parentID}/{childID}.
func (h *Handler) HandleRemoveRelationship(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	parentID, ok := h.pathID(w, r, "parentID")
	if !ok {
		return
	}
	childID, ok := h.pathID(w, r, "childID")
	if !ok {
		return
	}

	res, err := h.service.RemoveEdge(ctx, parentID, childID)
	if err != nil {
		h.logError(ctx, "remove relationship failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"removed": res.Removed,
		"parent":  res.Parent,
		"child":   res.Child,
	})
}

func (h *Handler) neighbors(w http.ResponseWriter, r *http.Request, dir graph.Direction) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	out, err := h.service.Neighbors(r.Context(), id, dir)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, param string) (domain.RequirementID, bool) {
	id, err := domain.ParseRequirementID(chi.URLParam(r, param))
	if err != nil {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeValidation, "invalid %s", param))
		return domain.RequirementID{}, false
	}
	return id, true
}

func (h *Handler) logError(ctx context.Context, msg string, err error) {
	if dErrors.HasCode(err, dErrors.CodeInternal) {
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestcontext.RequestID(ctx),
			"error", err)
	}
}
