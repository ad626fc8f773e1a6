package transfer

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"reqtrace/pkg/domain"
	dErrors "reqtrace/pkg/domain-errors"
	"reqtrace/pkg/platform/httputil"
)

// 10 MiB cap on uploaded CSV files.
const maxImportSize = 10 << 20

// Handler serves project export and import endpoints.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler constructs a transfer handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Register mounts export/import endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/projects/{projectID}/export", h.HandleExport)
	r.Post("/projects/{projectID}/import", h.HandleImport)
}

// HandleExport handles GET /projects/{projectID}/export.
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	projectID, err := domain.ParseProjectID(chi.URLParam(r, "projectID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid project id"))
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=requirements-%s.csv", projectID))

	if err := h.service.Export(ctx, projectID, w); err != nil {
		// headers are already out; all we can do is log
		h.logger.ErrorContext(ctx, "export failed",
			"project_id", projectID.String(), "error", err)
	}
}

// HandleImport handles POST /projects/{projectID}/import. The CSV comes in
// either as a multipart "file" field or as the raw request body.
func (h *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	projectID, err := domain.ParseProjectID(chi.URLParam(r, "projectID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid project id"))
		return
	}

	body, err := h.importBody(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	defer body.Close()

	report, err := h.service.Import(ctx, projectID, body)
	if err != nil {
		h.logger.ErrorContext(ctx, "import failed",
			"project_id", projectID.String(), "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) importBody(r *http.Request) (io.ReadCloser, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxImportSize)

	if err := r.ParseMultipartForm(maxImportSize); err == nil {
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, dErrors.New(dErrors.CodeValidation, "missing file field")
		}
		return file, nil
	}
	return r.Body, nil
}
