// Package service orchestrates requirement lifecycle operations: creation
// with sequential req_id allocation, partial updates with field level change
// logging, deletion with edge cleanup, and relationship management.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"reqtrace/internal/events"
	"reqtrace/internal/requirement/graph"
	"reqtrace/internal/requirement/metrics"
	"reqtrace/internal/requirement/models"
	"reqtrace/internal/requirement/store"
	"reqtrace/pkg/domain"
	dErrors "reqtrace/pkg/domain-errors"
	"reqtrace/pkg/platform/sentinel"
	"reqtrace/pkg/requestcontext"
)

// reqIDAttempts bounds the search for a free sequential identifier when
// deletions have left gaps behind the project count.
const reqIDAttempts = 100

// StatsInvalidator drops cached dashboard snapshots for a project after a
// mutation.
type StatsInvalidator interface {
	Invalidate(ctx context.Context, projectID domain.ProjectID)
}

// Service orchestrates requirement management.
type Service struct {
	store     store.Store
	graph     *graph.Graph
	logger    *slog.Logger
	metrics   *metrics.Metrics
	publisher events.Publisher
	stats     StatsInvalidator
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithPublisher(publisher events.Publisher) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

func WithStatsInvalidator(inv StatsInvalidator) Option {
	return func(s *Service) {
		s.stats = inv
	}
}

// New constructs a Service.
func New(st store.Store, g *graph.Graph, opts ...Option) *Service {
	s := &Service{
		store:     st,
		graph:     g,
		logger:    slog.Default(),
		publisher: events.Noop{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create allocates the next sequential req_id within the project and
// persists the requirement together with its created change-log entry.
func (s *Service) Create(ctx context.Context, req models.CreateRequirementRequest) (*models.Requirement, error) {
	start := time.Now()

	count, err := s.store.CountByProject(ctx, req.ProjectID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "count requirements")
	}

	now := requestcontext.Now(ctx)
	actor := requestcontext.Actor(ctx)
	req.CreatedBy = actor

	var r *models.Requirement
	for attempt := 0; attempt < reqIDAttempts; attempt++ {
		reqID := fmt.Sprintf("REQ-%03d", count+1+attempt)
		candidate, err := models.NewRequirement(domain.NewRequirementID(), reqID, req, now)
		if err != nil {
			return nil, err
		}
		entry := models.NewChange(candidate.ID, models.ChangeCreated, "Requirement created", actor, now)

		err = s.store.Create(ctx, candidate, entry)
		if err == nil {
			r = candidate
			break
		}
		if errors.Is(err, sentinel.ErrConflict) {
			continue
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create requirement")
	}
	if r == nil {
		return nil, dErrors.New(dErrors.CodeConflict, "could not allocate a requirement identifier")
	}

	s.logger.InfoContext(ctx, "requirement created",
		"req_id", r.ReqID, "project_id", r.ProjectID.String())
	if s.metrics != nil {
		s.metrics.IncrementCreated()
		s.metrics.ObserveCreate(start)
	}
	s.publish(ctx, r, "requirement.created", actor, now)
	s.invalidate(ctx, r.ProjectID)

	return r, nil
}

// Get returns a requirement by ID.
func (s *Service) Get(ctx context.Context, id domain.RequirementID) (*models.Requirement, error) {
	r, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, s.storeError(err, "find requirement")
	}
	return r, nil
}

// List returns requirements matching the filter, ordered by creation time.
func (s *Service) List(ctx context.Context, f store.Filter) ([]*models.Requirement, error) {
	start := time.Now()
	out, err := s.store.List(ctx, f)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list requirements")
	}
	if s.metrics != nil {
		s.metrics.ObserveList(start)
	}
	if out == nil {
		out = []*models.Requirement{}
	}
	return out, nil
}

// Search matches the query against req_id, title and text within a project.
func (s *Service) Search(ctx context.Context, projectID domain.ProjectID, query string) ([]*models.Requirement, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "query is required")
	}
	return s.List(ctx, store.Filter{ProjectID: &projectID, Query: query})
}

// Update applies a partial patch and appends one change-log entry per field
// that actually changed.
func (s *Service) Update(ctx context.Context, id domain.RequirementID, req models.UpdateRequirementRequest) (*models.Requirement, error) {
	if req.IsEmpty() {
		return nil, dErrors.New(dErrors.CodeValidation, "no fields to update")
	}

	var status models.Status
	if req.Status != nil {
		parsed, err := models.ParseStatus(*req.Status)
		if err != nil {
			return nil, err
		}
		status = parsed
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "title cannot be empty")
	}
	if req.Text != nil && strings.TrimSpace(*req.Text) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "text cannot be empty")
	}

	now := requestcontext.Now(ctx)
	actor := requestcontext.Actor(ctx)
	var entries []*models.ChangeLogEntry

	updated, err := s.store.Execute(ctx, id, nil, func(r *models.Requirement) {
		if req.Title != nil {
			if title := strings.TrimSpace(*req.Title); title != r.Title {
				entries = append(entries, models.NewFieldChange(id, "title", r.Title, title, actor, now))
				r.Title = title
			}
		}
		if req.Text != nil {
			if text := strings.TrimSpace(*req.Text); text != r.Text {
				entries = append(entries, models.NewFieldChange(id, "text", r.Text, text, actor, now))
				r.Text = text
			}
		}
		if req.Status != nil && status != r.Status {
			entries = append(entries, models.NewFieldChange(id, "status", string(r.Status), string(status), actor, now))
			r.Status = status
		}
		if req.VerificationMethods != nil {
			methods := models.NormalizeVerificationMethods(*req.VerificationMethods)
			oldJoined := strings.Join(r.VerificationMethodStrings(), ", ")
			newJoined := strings.Join(models.VerificationMethodStrings(methods), ", ")
			if oldJoined != newJoined {
				entries = append(entries, models.NewFieldChange(id, "verification_methods", oldJoined, newJoined, actor, now))
				r.VerificationMethods = methods
			}
		}
		if len(entries) > 0 {
			r.UpdatedAt = now
			r.UpdatedBy = actor
		}
	})
	if err != nil {
		return nil, s.storeError(err, "update requirement")
	}

	for _, entry := range entries {
		if err := s.store.AppendChange(ctx, entry); err != nil {
			s.logger.ErrorContext(ctx, "append change entry",
				"req_id", updated.ReqID, "field", entry.FieldName, "error", err)
		}
	}
	if len(entries) > 0 {
		s.publish(ctx, updated, "requirement.updated", actor, now)
		s.invalidate(ctx, updated.ProjectID)
	}
	return updated, nil
}

// Delete removes the requirement and all its edges, and records the edge
// removals in the change logs of the surviving neighbors.
func (s *Service) Delete(ctx context.Context, id domain.RequirementID) error {
	snapshot, err := s.store.Delete(ctx, id)
	if err != nil {
		return s.storeError(err, "delete requirement")
	}

	now := requestcontext.Now(ctx)
	actor := requestcontext.Actor(ctx)
	for _, parentID := range snapshot.ParentIDs {
		entry := models.NewChange(parentID, models.ChangeRelationshipRemoved,
			"Removed child "+snapshot.ReqID, actor, now)
		if err := s.store.AppendChange(ctx, entry); err != nil {
			s.logger.ErrorContext(ctx, "append removal entry", "error", err)
		}
	}
	for _, childID := range snapshot.ChildIDs {
		entry := models.NewChange(childID, models.ChangeRelationshipRemoved,
			"Removed parent "+snapshot.ReqID, actor, now)
		if err := s.store.AppendChange(ctx, entry); err != nil {
			s.logger.ErrorContext(ctx, "append removal entry", "error", err)
		}
	}

	s.logger.InfoContext(ctx, "requirement deleted",
		"req_id", snapshot.ReqID, "project_id", snapshot.ProjectID.String())
	if s.metrics != nil {
		s.metrics.IncrementDeleted()
	}
	s.publish(ctx, snapshot, "requirement.deleted", actor, now)
	s.invalidate(ctx, snapshot.ProjectID)
	return nil
}

// BatchUpdateStatus sets one status on many requirements. Unknown ids are
// skipped. Returns the number actually updated.
func (s *Service) BatchUpdateStatus(ctx context.Context, req models.BatchUpdateRequest) (int, error) {
	if len(req.IDs) == 0 {
		return 0, dErrors.New(dErrors.CodeValidation, "requirement_ids is required")
	}
	status, err := models.ParseStatus(req.Status)
	if err != nil {
		return 0, err
	}

	now := requestcontext.Now(ctx)
	actor := requestcontext.Actor(ctx)
	updated := 0

	for _, id := range req.IDs {
		var entry *models.ChangeLogEntry
		r, err := s.store.Execute(ctx, id, nil, func(r *models.Requirement) {
			if r.Status == status {
				return
			}
			entry = models.NewFieldChange(id, "status", string(r.Status), string(status), actor, now)
			r.Status = status
			r.UpdatedAt = now
			r.UpdatedBy = actor
		})
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				continue
			}
			return updated, dErrors.Wrap(err, dErrors.CodeInternal, "batch update")
		}
		if entry == nil {
			continue
		}
		updated++
		if err := s.store.AppendChange(ctx, entry); err != nil {
			s.logger.ErrorContext(ctx, "append change entry",
				"req_id", r.ReqID, "error", err)
		}
		s.invalidate(ctx, r.ProjectID)
	}
	return updated, nil
}

// PurgeProject deletes every requirement in a project. Part of the project
// deletion cascade.
func (s *Service) PurgeProject(ctx context.Context, projectID domain.ProjectID) (int, error) {
	return s.purge(ctx, store.Filter{ProjectID: &projectID})
}

// PurgeGroup deletes every requirement in a group.
func (s *Service) PurgeGroup(ctx context.Context, groupID domain.GroupID) (int, error) {
	return s.purge(ctx, store.Filter{GroupID: &groupID})
}

// PurgeChapter deletes every requirement filed under a chapter.
func (s *Service) PurgeChapter(ctx context.Context, chapterID domain.ChapterID) (int, error) {
	return s.purge(ctx, store.Filter{ChapterID: &chapterID})
}

func (s *Service) purge(ctx context.Context, f store.Filter) (int, error) {
	doomed, err := s.store.List(ctx, f)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "list requirements for purge")
	}
	purged := 0
	for _, r := range doomed {
		if err := s.Delete(ctx, r.ID); err != nil {
			// another purge racing on the same container may win a delete
			if dErrors.HasCode(err, dErrors.CodeNotFound) {
				continue
			}
			return purged, err
		}
		purged++
	}
	return purged, nil
}

// ChangeLog returns the full chronological history of a requirement.
func (s *Service) ChangeLog(ctx context.Context, id domain.RequirementID) ([]*models.ChangeLogEntry, error) {
	if _, err := s.store.FindByID(ctx, id); err != nil {
		return nil, s.storeError(err, "find requirement")
	}
	entries, err := s.store.ListChanges(ctx, id)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list changes")
	}
	if entries == nil {
		entries = []*models.ChangeLogEntry{}
	}
	return entries, nil
}

// AddEdge links a parent to a child.
func (s *Service) AddEdge(ctx context.Context, parentID, childID domain.RequirementID) (*graph.EdgeResult, error) {
	res, err := s.graph.AddEdge(ctx, parentID, childID)
	if err != nil {
		return nil, err
	}
	if res.Created {
		if s.metrics != nil {
			s.metrics.IncrementEdgesAdded()
		}
		now := requestcontext.Now(ctx)
		actor := requestcontext.Actor(ctx)
		s.publish(ctx, res.Parent, "relationship.added", actor, now)
		s.invalidate(ctx, res.Parent.ProjectID)
	}
	return res, nil
}

// RemoveEdge unlinks a parent from a child.
func (s *Service) RemoveEdge(ctx context.Context, parentID, childID domain.RequirementID) (*graph.EdgeResult, error) {
	res, err := s.graph.RemoveEdge(ctx, parentID, childID)
	if err != nil {
		return nil, err
	}
	if res.Removed {
		if s.metrics != nil {
			s.metrics.IncrementEdgesRemoved()
		}
		now := requestcontext.Now(ctx)
		actor := requestcontext.Actor(ctx)
		s.publish(ctx, res.Parent, "relationship.removed", actor, now)
		s.invalidate(ctx, res.Parent.ProjectID)
	}
	return res, nil
}

// Neighbors resolves a requirement's parents or children.
func (s *Service) Neighbors(ctx context.Context, id domain.RequirementID, dir graph.Direction) ([]*models.Requirement, error) {
	return s.graph.Neighbors(ctx, id, dir)
}

func (s *Service) publish(ctx context.Context, r *models.Requirement, eventType, actor string, now time.Time) {
	s.publisher.Emit(ctx, events.ChangeEvent{
		RequirementID: r.ID,
		ProjectID:     r.ProjectID,
		ReqID:         r.ReqID,
		Type:          eventType,
		Actor:         actor,
		OccurredAt:    now,
	})
}

func (s *Service) invalidate(ctx context.Context, projectID domain.ProjectID) {
	if s.stats != nil {
		s.stats.Invalidate(ctx, projectID)
	}
}

func (s *Service) storeError(err error, op string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "requirement not found")
	}
	if errors.Is(err, sentinel.ErrConflict) {
		return dErrors.New(dErrors.CodeConflict, "requirement already exists")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, op)
}
