package transfer

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"reqtrace/internal/requirement/models"
	"reqtrace/internal/requirement/store"
	"reqtrace/pkg/domain"
	dErrors "reqtrace/pkg/domain-errors"
)

// RequirementLister supplies the export set.
type RequirementLister interface {
	List(ctx context.Context, f store.Filter) ([]*models.Requirement, error)
}

// RequirementWriter creates imported requirements, allocating fresh
// identifiers.
type RequirementWriter interface {
	Create(ctx context.Context, req models.CreateRequirementRequest) (*models.Requirement, error)
}

// GroupResolver maps a raw group cell to a group in the target project,
// falling back to the project's active group and then to its first group
// when the cell is empty or unknown.
type GroupResolver interface {
	ResolveGroup(ctx context.Context, projectID domain.ProjectID, raw string) (domain.GroupID, error)
}

// ImportReport summarizes one import run. Failed rows carry their line
// number and reason; a partial import is still an import.
type ImportReport struct {
	SuccessCount int      `json:"successCount"`
	FailCount    int      `json:"failCount"`
	Errors       []string `json:"errors,omitempty"`
}

// Service implements CSV export and import for a project.
type Service struct {
	lister RequirementLister
	writer RequirementWriter
	groups GroupResolver
	logger *slog.Logger
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService constructs a transfer service.
func NewService(lister RequirementLister, writer RequirementWriter, groups GroupResolver, opts ...Option) *Service {
	s := &Service{
		lister: lister,
		writer: writer,
		groups: groups,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Export writes all of the project's requirements to w as CSV.
func (s *Service) Export(ctx context.Context, projectID domain.ProjectID, w io.Writer) error {
	requirements, err := s.lister.List(ctx, store.Filter{ProjectID: &projectID})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "list requirements for export")
	}
	if err := WriteCSV(w, requirements); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "write export")
	}
	return nil
}

// Import creates one requirement per valid row. Row failures are collected,
// not fatal; only a structurally broken file fails the whole call.
// Relationship columns are ignored: imported records start unlinked.
func (s *Service) Import(ctx context.Context, projectID domain.ProjectID, r io.Reader) (*ImportReport, error) {
	rows, err := ReadCSV(r)
	if err != nil {
		return nil, err
	}

	report := &ImportReport{}
	for _, row := range rows {
		if err := s.importRow(ctx, projectID, row); err != nil {
			report.FailCount++
			report.Errors = append(report.Errors,
				fmt.Sprintf("line %d: %s", row.Line, dErrors.MessageOf(err)))
			continue
		}
		report.SuccessCount++
	}

	s.logger.InfoContext(ctx, "import finished",
		"project_id", projectID.String(),
		"succeeded", report.SuccessCount,
		"failed", report.FailCount)
	return report, nil
}

func (s *Service) importRow(ctx context.Context, projectID domain.ProjectID, row Row) error {
	if row.Err != nil {
		return row.Err
	}
	if row.Title == "" {
		return dErrors.New(dErrors.CodeValidation, "title is required")
	}
	if row.Text == "" {
		return dErrors.New(dErrors.CodeValidation, "text is required")
	}

	groupID, err := s.groups.ResolveGroup(ctx, projectID, row.GroupID)
	if err != nil {
		return err
	}

	req := models.CreateRequirementRequest{
		Title:               row.Title,
		Text:                row.Text,
		Status:              row.Status,
		VerificationMethods: row.VerificationMethods,
		ProjectID:           projectID,
		GroupID:             groupID,
	}
	if row.ChapterID != "" {
		chapterID, err := domain.ParseChapterID(row.ChapterID)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "invalid chapter_id")
		}
		req.ChapterID = &chapterID
	}

	_, err = s.writer.Create(ctx, req)
	return err
}
