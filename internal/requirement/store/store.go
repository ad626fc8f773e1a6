// Package store persists requirement records, their dependency edges and
// the append-only change log.
//
// Stores are interface-driven so the in-memory and PostgreSQL
// implementations can be swapped without rewiring business code. Edge
// mutations (LinkPair, UnlinkPair, Delete) update both endpoints and write
// their change-log entries as one unit: under the store mutex in memory,
// inside one transaction in PostgreSQL. No caller ever observes a one-sided
// edge.
package store

import (
	"context"
	"time"

	"reqtrace/internal/requirement/models"
	"reqtrace/pkg/domain"
)

// Filter narrows List results. All set fields are conjunctive; a nil field
// leaves that dimension unconstrained. Query is a case-insensitive substring
// match over title, text and req_id.
type Filter struct {
	ProjectID *domain.ProjectID
	GroupID   *domain.GroupID
	ChapterID *domain.ChapterID
	Status    *models.Status
	Query     string
}

// Store is the persistence contract for requirements.
type Store interface {
	// Create inserts a new record and its "created" change-log entry.
	// Returns sentinel.ErrConflict when the (project, req_id) pair is taken.
	Create(ctx context.Context, r *models.Requirement, entry *models.ChangeLogEntry) error

	// FindByID returns a copy of the record, edges included.
	FindByID(ctx context.Context, id domain.RequirementID) (*models.Requirement, error)

	// List returns records matching the filter, ordered by creation time.
	List(ctx context.Context, f Filter) ([]*models.Requirement, error)

	// CountByProject counts a project's requirements; feeds req_id assignment.
	CountByProject(ctx context.Context, projectID domain.ProjectID) (int, error)

	// Execute atomically loads the record, runs validate, applies mutate and
	// persists the result. The lock (mutex or FOR UPDATE) is held across all
	// three steps.
	Execute(ctx context.Context, id domain.RequirementID, validate func(*models.Requirement) error, mutate func(*models.Requirement)) (*models.Requirement, error)

	// Delete removes the record and strips its id from every neighbor's edge
	// set in the same unit of work. Returns the final snapshot of the deleted
	// record, edges as they stood at deletion.
	Delete(ctx context.Context, id domain.RequirementID) (*models.Requirement, error)

	// LinkPair inserts the parent→child edge on both endpoints. Reports
	// false without touching the change log when the edge already exists.
	// Entries are written only alongside a newly created edge.
	LinkPair(ctx context.Context, parentID, childID domain.RequirementID, now time.Time, entries []*models.ChangeLogEntry) (bool, error)

	// UnlinkPair removes the edge from both endpoints. Reports false without
	// touching the change log when the edge does not exist.
	UnlinkPair(ctx context.Context, parentID, childID domain.RequirementID, entries []*models.ChangeLogEntry) (bool, error)

	// AppendChange records one change-log entry.
	AppendChange(ctx context.Context, entry *models.ChangeLogEntry) error

	// ListChanges returns a requirement's change log, oldest first.
	ListChanges(ctx context.Context, id domain.RequirementID) ([]*models.ChangeLogEntry, error)
}
