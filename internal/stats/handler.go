package stats

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"reqtrace/pkg/domain"
	dErrors "reqtrace/pkg/domain-errors"
	"reqtrace/pkg/platform/httputil"
)

// Handler serves the dashboard endpoint.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler constructs a stats handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Register mounts the dashboard endpoint on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/dashboard/stats", h.HandleStats)
}

// HandleStats handles GET /dashboard/stats?project_id=.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	projectID, err := domain.ParseProjectID(r.URL.Query().Get("project_id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid project_id"))
		return
	}

	snapshot, err := h.service.Snapshot(ctx, projectID)
	if err != nil {
		h.logger.ErrorContext(ctx, "compute dashboard stats",
			"project_id", projectID.String(), "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snapshot)
}
