package store

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"reqtrace/internal/catalog/models"
	"reqtrace/pkg/domain"
	"reqtrace/pkg/platform/sentinel"
)

// InMemory keeps the catalog in maps behind one mutex. All returned records
// are copies.
type InMemory struct {
	mu       sync.RWMutex
	projects map[domain.ProjectID]*models.Project
	groups   map[domain.GroupID]*models.Group
	chapters map[domain.ChapterID]*models.Chapter
}

// NewInMemory constructs an empty in-memory catalog store.
func NewInMemory() *InMemory {
	return &InMemory{
		projects: make(map[domain.ProjectID]*models.Project),
		groups:   make(map[domain.GroupID]*models.Group),
		chapters: make(map[domain.ChapterID]*models.Chapter),
	}
}

func (s *InMemory) CreateProject(_ context.Context, p *models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.projects {
		other.IsActive = false
	}
	cp := *p
	s.projects[p.ID] = &cp
	return nil
}

func (s *InMemory) FindProject(_ context.Context, id domain.ProjectID) (*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *InMemory) ListProjects(_ context.Context) ([]*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Project, 0, len(s.projects))
	for _, p := range s.projects {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemory) ActiveProject(_ context.Context) (*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.projects {
		if p.IsActive {
			cp := *p
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) ActivateProject(_ context.Context, id domain.ProjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	target, ok := s.projects[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	for _, p := range s.projects {
		p.IsActive = false
	}
	target.IsActive = true
	return nil
}

func (s *InMemory) DeleteProject(_ context.Context, id domain.ProjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.projects, id)
	for gid, g := range s.groups {
		if g.ProjectID != id {
			continue
		}
		for cid, c := range s.chapters {
			if c.GroupID == gid {
				delete(s.chapters, cid)
			}
		}
		delete(s.groups, gid)
	}
	return nil
}

func (s *InMemory) CreateGroup(_ context.Context, g *models.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.groups {
		if other.ProjectID == g.ProjectID {
			other.IsActive = false
		}
	}
	cp := *g
	s.groups[g.ID] = &cp
	return nil
}

func (s *InMemory) FindGroup(_ context.Context, id domain.GroupID) (*models.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (s *InMemory) ListGroups(_ context.Context, projectID *domain.ProjectID) ([]*models.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Group
	for _, g := range s.groups {
		if projectID != nil && g.ProjectID != *projectID {
			continue
		}
		cp := *g
		out = append(out, &cp)
	}
	sortGroups(out)
	return out, nil
}

func (s *InMemory) ActiveGroup(_ context.Context, projectID domain.ProjectID) (*models.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.groups {
		if g.ProjectID == projectID && g.IsActive {
			cp := *g
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) ActivateGroup(_ context.Context, id domain.GroupID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	target, ok := s.groups[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	for _, g := range s.groups {
		if g.ProjectID == target.ProjectID {
			g.IsActive = false
		}
	}
	target.IsActive = true
	return nil
}

func (s *InMemory) ReorderGroup(_ context.Context, id domain.GroupID, order int, parentID *domain.GroupID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	g.Order = order
	if parentID != nil {
		if parentID.IsNil() {
			g.ParentID = nil
		} else {
			pid := *parentID
			g.ParentID = &pid
		}
	}
	g.UpdatedAt = now
	return nil
}

func (s *InMemory) DeleteGroup(_ context.Context, id domain.GroupID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.groups, id)
	for cid, c := range s.chapters {
		if c.GroupID == id {
			delete(s.chapters, cid)
		}
	}
	return nil
}

func (s *InMemory) CreateChapter(_ context.Context, c *models.Chapter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.chapters[c.ID] = &cp
	return nil
}

func (s *InMemory) FindChapter(_ context.Context, id domain.ChapterID) (*models.Chapter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chapters[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *InMemory) ListChapters(_ context.Context, groupID *domain.GroupID) ([]*models.Chapter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Chapter
	for _, c := range s.chapters {
		if groupID != nil && c.GroupID != *groupID {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *models.Chapter) int {
		if a.Order != b.Order {
			return a.Order - b.Order
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

func (s *InMemory) ReorderChapter(_ context.Context, id domain.ChapterID, order int, parentID *domain.ChapterID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chapters[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	c.Order = order
	if parentID != nil {
		if parentID.IsNil() {
			c.ParentID = nil
		} else {
			pid := *parentID
			c.ParentID = &pid
		}
	}
	c.UpdatedAt = now
	return nil
}

func (s *InMemory) DeleteChapter(_ context.Context, id domain.ChapterID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chapters, id)
	return nil
}

func sortGroups(groups []*models.Group) {
	slices.SortFunc(groups, func(a, b *models.Group) int {
		if a.Order != b.Order {
			return a.Order - b.Order
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}
