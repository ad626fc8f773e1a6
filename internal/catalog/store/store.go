// Package store persists the project/group/chapter registries.
package store

import (
	"context"
	"time"

	"reqtrace/internal/catalog/models"
	"reqtrace/pkg/domain"
)

// Store is the catalog persistence contract. Implementations return
// sentinel.ErrNotFound for missing records; creation of a project or group
// atomically deactivates its siblings.
type Store interface {
	CreateProject(ctx context.Context, p *models.Project) error
	FindProject(ctx context.Context, id domain.ProjectID) (*models.Project, error)
	ListProjects(ctx context.Context) ([]*models.Project, error)
	ActiveProject(ctx context.Context) (*models.Project, error)
	ActivateProject(ctx context.Context, id domain.ProjectID) error
	// DeleteProject removes the project and all its groups and chapters.
	// Deleting an absent project is a no-op.
	DeleteProject(ctx context.Context, id domain.ProjectID) error

	CreateGroup(ctx context.Context, g *models.Group) error
	FindGroup(ctx context.Context, id domain.GroupID) (*models.Group, error)
	// ListGroups returns a project's groups ordered by their display order;
	// a nil projectID lists all groups.
	ListGroups(ctx context.Context, projectID *domain.ProjectID) ([]*models.Group, error)
	ActiveGroup(ctx context.Context, projectID domain.ProjectID) (*models.Group, error)
	ActivateGroup(ctx context.Context, id domain.GroupID) error
	ReorderGroup(ctx context.Context, id domain.GroupID, order int, parentID *domain.GroupID, now time.Time) error
	// DeleteGroup removes the group and its chapters. Idempotent.
	DeleteGroup(ctx context.Context, id domain.GroupID) error

	CreateChapter(ctx context.Context, c *models.Chapter) error
	FindChapter(ctx context.Context, id domain.ChapterID) (*models.Chapter, error)
	// ListChapters returns a group's chapters ordered by their display
	// order; a nil groupID lists all chapters.
	ListChapters(ctx context.Context, groupID *domain.GroupID) ([]*models.Chapter, error)
	ReorderChapter(ctx context.Context, id domain.ChapterID, order int, parentID *domain.ChapterID, now time.Time) error
	// DeleteChapter removes the chapter. Idempotent.
	DeleteChapter(ctx context.Context, id domain.ChapterID) error
}
