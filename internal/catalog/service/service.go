// Package service orchestrates the project/group/chapter registries and the
// cascades that keep requirements consistent with them.
package service

import (
	"context"
	"errors"
	"log/slog"

	"reqtrace/internal/catalog/models"
	"reqtrace/internal/catalog/store"
	"reqtrace/pkg/domain"
	dErrors "reqtrace/pkg/domain-errors"
	"reqtrace/pkg/platform/sentinel"
	"reqtrace/pkg/requestcontext"
)

// RequirementPurger removes the requirements owned by a deleted container.
type RequirementPurger interface {
	PurgeProject(ctx context.Context, projectID domain.ProjectID) (int, error)
	PurgeGroup(ctx context.Context, groupID domain.GroupID) (int, error)
	PurgeChapter(ctx context.Context, chapterID domain.ChapterID) (int, error)
}

// Service orchestrates catalog management.
type Service struct {
	store  store.Store
	purger RequirementPurger
	logger *slog.Logger
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// New constructs a catalog service. The purger handles requirement cascades
// on container deletion.
func New(st store.Store, purger RequirementPurger, opts ...Option) *Service {
	s := &Service{
		store:  st,
		purger: purger,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateProject creates a project and makes it the active one.
func (s *Service) CreateProject(ctx context.Context, req models.CreateProjectRequest) (*models.Project, error) {
	p, err := models.NewProject(domain.NewProjectID(), req, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateProject(ctx, p); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create project")
	}
	s.logger.InfoContext(ctx, "project created", "project_id", p.ID.String(), "name", p.Name)
	return p, nil
}

// ListProjects returns all projects in creation order.
func (s *Service) ListProjects(ctx context.Context) ([]*models.Project, error) {
	out, err := s.store.ListProjects(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list projects")
	}
	if out == nil {
		out = []*models.Project{}
	}
	return out, nil
}

// ActiveProject returns the currently selected project, or nil when none is.
func (s *Service) ActiveProject(ctx context.Context) (*models.Project, error) {
	p, err := s.store.ActiveProject(ctx)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find active project")
	}
	return p, nil
}

// ActivateProject makes one project active and deactivates the rest.
func (s *Service) ActivateProject(ctx context.Context, id domain.ProjectID) error {
	if err := s.store.ActivateProject(ctx, id); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "project not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "activate project")
	}
	return nil
}

// DeleteProject removes a project with its groups, chapters and
// requirements.
func (s *Service) DeleteProject(ctx context.Context, id domain.ProjectID) error {
	purged, err := s.purger.PurgeProject(ctx, id)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "purge project requirements")
	}
	if err := s.store.DeleteProject(ctx, id); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "delete project")
	}
	s.logger.InfoContext(ctx, "project deleted",
		"project_id", id.String(), "requirements_purged", purged)
	return nil
}

// CreateGroup creates a group and makes it the active one in its project.
func (s *Service) CreateGroup(ctx context.Context, req models.CreateGroupRequest) (*models.Group, error) {
	if _, err := s.store.FindProject(ctx, req.ProjectID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "project not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find project")
	}
	g, err := models.NewGroup(domain.NewGroupID(), req, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateGroup(ctx, g); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create group")
	}
	return g, nil
}

// ListGroups returns groups, optionally scoped to a project, in display
// order.
func (s *Service) ListGroups(ctx context.Context, projectID *domain.ProjectID) ([]*models.Group, error) {
	out, err := s.store.ListGroups(ctx, projectID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list groups")
	}
	if out == nil {
		out = []*models.Group{}
	}
	return out, nil
}

// ActiveGroup returns the active group of the active project, or nil when
// either is missing.
func (s *Service) ActiveGroup(ctx context.Context) (*models.Group, error) {
	p, err := s.ActiveProject(ctx)
	if err != nil || p == nil {
		return nil, err
	}
	g, err := s.store.ActiveGroup(ctx, p.ID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find active group")
	}
	return g, nil
}

// ActivateGroup makes one group active within its project.
func (s *Service) ActivateGroup(ctx context.Context, id domain.GroupID) error {
	if err := s.store.ActivateGroup(ctx, id); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "group not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "activate group")
	}
	return nil
}

// ReorderGroup moves a group and optionally reparents it. An empty
// new_parent_id string clears the parent.
func (s *Service) ReorderGroup(ctx context.Context, id domain.GroupID, req models.ReorderRequest) error {
	parentID, err := parseGroupParent(req.NewParentID)
	if err != nil {
		return err
	}
	if err := s.store.ReorderGroup(ctx, id, req.NewOrder, parentID, requestcontext.Now(ctx)); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "group not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "reorder group")
	}
	return nil
}

// DeleteGroup removes a group with its chapters and requirements.
func (s *Service) DeleteGroup(ctx context.Context, id domain.GroupID) error {
	purged, err := s.purger.PurgeGroup(ctx, id)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "purge group requirements")
	}
	if err := s.store.DeleteGroup(ctx, id); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "delete group")
	}
	s.logger.InfoContext(ctx, "group deleted",
		"group_id", id.String(), "requirements_purged", purged)
	return nil
}

// CreateChapter creates a chapter inside a group.
func (s *Service) CreateChapter(ctx context.Context, req models.CreateChapterRequest) (*models.Chapter, error) {
	if _, err := s.store.FindGroup(ctx, req.GroupID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "group not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find group")
	}
	c, err := models.NewChapter(domain.NewChapterID(), req, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateChapter(ctx, c); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create chapter")
	}
	return c, nil
}

// ListChapters returns chapters, optionally scoped to a group, in display
// order.
func (s *Service) ListChapters(ctx context.Context, groupID *domain.GroupID) ([]*models.Chapter, error) {
	out, err := s.store.ListChapters(ctx, groupID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list chapters")
	}
	if out == nil {
		out = []*models.Chapter{}
	}
	return out, nil
}

// ReorderChapter moves a chapter and optionally reparents it.
func (s *Service) ReorderChapter(ctx context.Context, id domain.ChapterID, req models.ReorderRequest) error {
	parentID, err := parseChapterParent(req.NewParentID)
	if err != nil {
		return err
	}
	if err := s.store.ReorderChapter(ctx, id, req.NewOrder, parentID, requestcontext.Now(ctx)); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "chapter not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "reorder chapter")
	}
	return nil
}

// DeleteChapter removes a chapter and the requirements filed under it.
func (s *Service) DeleteChapter(ctx context.Context, id domain.ChapterID) error {
	purged, err := s.purger.PurgeChapter(ctx, id)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "purge chapter requirements")
	}
	if err := s.store.DeleteChapter(ctx, id); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "delete chapter")
	}
	s.logger.InfoContext(ctx, "chapter deleted",
		"chapter_id", id.String(), "requirements_purged", purged)
	return nil
}

// ResolveGroup maps a raw group cell from an import file to a group in the
// target project. Resolution order: a valid cell naming a group in the
// project, then the project's active group, then its first group by display
// order.
func (s *Service) ResolveGroup(ctx context.Context, projectID domain.ProjectID, raw string) (domain.GroupID, error) {
	if raw != "" {
		if id, err := domain.ParseGroupID(raw); err == nil {
			g, err := s.store.FindGroup(ctx, id)
			if err == nil && g.ProjectID == projectID {
				return g.ID, nil
			}
		}
	}

	if g, err := s.store.ActiveGroup(ctx, projectID); err == nil {
		return g.ID, nil
	}

	groups, err := s.store.ListGroups(ctx, &projectID)
	if err != nil {
		return domain.GroupID{}, dErrors.Wrap(err, dErrors.CodeInternal, "list groups")
	}
	if len(groups) == 0 {
		return domain.GroupID{}, dErrors.New(dErrors.CodeNotFound, "project has no groups")
	}
	return groups[0].ID, nil
}

func parseGroupParent(raw *string) (*domain.GroupID, error) {
	if raw == nil {
		return nil, nil
	}
	if *raw == "" {
		return &domain.GroupID{}, nil
	}
	id, err := domain.ParseGroupID(*raw)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid new_parent_id")
	}
	return &id, nil
}

func parseChapterParent(raw *string) (*domain.ChapterID, error) {
	if raw == nil {
		return nil, nil
	}
	if *raw == "" {
		return &domain.ChapterID{}, nil
	}
	id, err := domain.ParseChapterID(*raw)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid new_parent_id")
	}
	return &id, nil
}
