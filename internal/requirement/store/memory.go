package store

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"reqtrace/internal/requirement/models"
	"reqtrace/pkg/domain"
	"reqtrace/pkg/platform/sentinel"
)

// InMemory keeps requirements and their change log behind one mutex, which
// makes every unit operation (including both-endpoint edge mutations)
// trivially atomic. It favors clarity over performance.
type InMemory struct {
	mu           sync.RWMutex
	requirements map[domain.RequirementID]*models.Requirement
	changes      map[domain.RequirementID][]*models.ChangeLogEntry
}

// NewInMemory constructs an empty in-memory store.
func NewInMemory() *InMemory {
	return &InMemory{
		requirements: make(map[domain.RequirementID]*models.Requirement),
		changes:      make(map[domain.RequirementID][]*models.ChangeLogEntry),
	}
}

func (s *InMemory) Create(_ context.Context, r *models.Requirement, entry *models.ChangeLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.requirements {
		if existing.ProjectID == r.ProjectID && existing.ReqID == r.ReqID {
			return sentinel.ErrConflict
		}
	}
	s.requirements[r.ID] = r.Clone()
	if entry != nil {
		s.appendChangeLocked(entry)
	}
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.RequirementID) (*models.Requirement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.requirements[id]; ok {
		return r.Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) List(_ context.Context, f Filter) ([]*models.Requirement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Requirement, 0)
	for _, r := range s.requirements {
		if matches(r, f) {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ReqID < out[j].ReqID
	})
	return out, nil
}

func matches(r *models.Requirement, f Filter) bool {
	if f.ProjectID != nil && r.ProjectID != *f.ProjectID {
		return false
	}
	if f.GroupID != nil && r.GroupID != *f.GroupID {
		return false
	}
	if f.ChapterID != nil && (r.ChapterID == nil || *r.ChapterID != *f.ChapterID) {
		return false
	}
	if f.Status != nil && r.Status != *f.Status {
		return false
	}
	if f.Query != "" {
		q := strings.ToLower(f.Query)
		if !strings.Contains(strings.ToLower(r.Title), q) &&
			!strings.Contains(strings.ToLower(r.Text), q) &&
			!strings.Contains(strings.ToLower(r.ReqID), q) {
			return false
		}
	}
	return true
}

func (s *InMemory) CountByProject(_ context.Context, projectID domain.ProjectID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, r := range s.requirements {
		if r.ProjectID == projectID {
			count++
		}
	}
	return count, nil
}

func (s *InMemory) Execute(_ context.Context, id domain.RequirementID, validate func(*models.Requirement) error, mutate func(*models.Requirement)) (*models.Requirement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requirements[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if validate != nil {
		if err := validate(r.Clone()); err != nil {
			return nil, err
		}
	}
	if mutate != nil {
		mutate(r)
	}
	return r.Clone(), nil
}

func (s *InMemory) Delete(_ context.Context, id domain.RequirementID) (*models.Requirement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requirements[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	snapshot := r.Clone()

	// Cascade over the snapshot captured above; the deleted node itself no
	// longer needs to exist for cleanup to proceed.
	for _, parentID := range snapshot.ParentIDs {
		if parent, ok := s.requirements[parentID]; ok {
			parent.ChildIDs = removeID(parent.ChildIDs, id)
		}
	}
	for _, childID := range snapshot.ChildIDs {
		if child, ok := s.requirements[childID]; ok {
			child.ParentIDs = removeID(child.ParentIDs, id)
		}
	}
	delete(s.requirements, id)
	return snapshot, nil
}

func (s *InMemory) LinkPair(_ context.Context, parentID, childID domain.RequirementID, _ time.Time, entries []*models.ChangeLogEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	parent, ok := s.requirements[parentID]
	if !ok {
		return false, sentinel.ErrNotFound
	}
	child, ok := s.requirements[childID]
	if !ok {
		return false, sentinel.ErrNotFound
	}
	if parent.HasChild(childID) {
		return false, nil
	}
	parent.ChildIDs = append(parent.ChildIDs, childID)
	child.ParentIDs = append(child.ParentIDs, parentID)
	for _, entry := range entries {
		s.appendChangeLocked(entry)
	}
	return true, nil
}

func (s *InMemory) UnlinkPair(_ context.Context, parentID, childID domain.RequirementID, entries []*models.ChangeLogEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	parent, ok := s.requirements[parentID]
	if !ok {
		return false, sentinel.ErrNotFound
	}
	child, ok := s.requirements[childID]
	if !ok {
		return false, sentinel.ErrNotFound
	}
	if !parent.HasChild(childID) {
		return false, nil
	}
	parent.ChildIDs = removeID(parent.ChildIDs, childID)
	child.ParentIDs = removeID(child.ParentIDs, parentID)
	for _, entry := range entries {
		s.appendChangeLocked(entry)
	}
	return true, nil
}

func (s *InMemory) AppendChange(_ context.Context, entry *models.ChangeLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendChangeLocked(entry)
	return nil
}

func (s *InMemory) ListChanges(_ context.Context, id domain.RequirementID) ([]*models.ChangeLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.changes[id]
	out := make([]*models.ChangeLogEntry, len(entries))
	for i, e := range entries {
		cp := *e
		out[i] = &cp
	}
	return out, nil
}

func (s *InMemory) appendChangeLocked(entry *models.ChangeLogEntry) {
	cp := *entry
	s.changes[entry.RequirementID] = append(s.changes[entry.RequirementID], &cp)
}

func removeID(ids []domain.RequirementID, id domain.RequirementID) []domain.RequirementID {
	return slices.DeleteFunc(ids, func(x domain.RequirementID) bool { return x == id })
}
