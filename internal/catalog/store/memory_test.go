package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"reqtrace/internal/catalog/models"
	"reqtrace/pkg/domain"
	"reqtrace/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func (s *MemoryStoreSuite) newProject(name string) *models.Project {
	p, err := models.NewProject(domain.NewProjectID(),
		models.CreateProjectRequest{Name: name}, time.Now().UTC())
	s.Require().NoError(err)
	return p
}

func (s *MemoryStoreSuite) newGroup(name string, projectID domain.ProjectID, order int) *models.Group {
	g, err := models.NewGroup(domain.NewGroupID(), models.CreateGroupRequest{
		Name:      name,
		ProjectID: projectID,
		Order:     order,
	}, time.Now().UTC())
	s.Require().NoError(err)
	return g
}

func (s *MemoryStoreSuite) TestCreateProjectDeactivatesOthers() {
	first := s.newProject("first")
	s.Require().NoError(s.store.CreateProject(s.ctx, first))

	second := s.newProject("second")
	s.Require().NoError(s.store.CreateProject(s.ctx, second))

	active, err := s.store.ActiveProject(s.ctx)
	s.Require().NoError(err)
	s.Equal(second.ID, active.ID)

	found, err := s.store.FindProject(s.ctx, first.ID)
	s.Require().NoError(err)
	s.False(found.IsActive)
}

func (s *MemoryStoreSuite) TestActivateProject() {
	first := s.newProject("first")
	s.Require().NoError(s.store.CreateProject(s.ctx, first))
	second := s.newProject("second")
	s.Require().NoError(s.store.CreateProject(s.ctx, second))

	s.Require().NoError(s.store.ActivateProject(s.ctx, first.ID))

	active, err := s.store.ActiveProject(s.ctx)
	s.Require().NoError(err)
	s.Equal(first.ID, active.ID)

	err = s.store.ActivateProject(s.ctx, domain.NewProjectID())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *MemoryStoreSuite) TestDeleteProjectCascades() {
	p := s.newProject("doomed")
	s.Require().NoError(s.store.CreateProject(s.ctx, p))
	g := s.newGroup("g", p.ID, 0)
	s.Require().NoError(s.store.CreateGroup(s.ctx, g))

	c, err := models.NewChapter(domain.NewChapterID(), models.CreateChapterRequest{
		Name:    "c",
		GroupID: g.ID,
	}, time.Now().UTC())
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateChapter(s.ctx, c))

	s.Require().NoError(s.store.DeleteProject(s.ctx, p.ID))

	_, err = s.store.FindProject(s.ctx, p.ID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.FindGroup(s.ctx, g.ID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.FindChapter(s.ctx, c.ID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *MemoryStoreSuite) TestGroupActivationScopedToProject() {
	p1 := s.newProject("p1")
	s.Require().NoError(s.store.CreateProject(s.ctx, p1))
	p2 := s.newProject("p2")
	s.Require().NoError(s.store.CreateProject(s.ctx, p2))

	g1 := s.newGroup("g1", p1.ID, 0)
	s.Require().NoError(s.store.CreateGroup(s.ctx, g1))
	g2 := s.newGroup("g2", p2.ID, 0)
	s.Require().NoError(s.store.CreateGroup(s.ctx, g2))

	// each project keeps its own active group
	active1, err := s.store.ActiveGroup(s.ctx, p1.ID)
	s.Require().NoError(err)
	s.Equal(g1.ID, active1.ID)
	active2, err := s.store.ActiveGroup(s.ctx, p2.ID)
	s.Require().NoError(err)
	s.Equal(g2.ID, active2.ID)

	// a sibling creation only deactivates within its project
	g3 := s.newGroup("g3", p1.ID, 1)
	s.Require().NoError(s.store.CreateGroup(s.ctx, g3))
	active1, err = s.store.ActiveGroup(s.ctx, p1.ID)
	s.Require().NoError(err)
	s.Equal(g3.ID, active1.ID)
	active2, err = s.store.ActiveGroup(s.ctx, p2.ID)
	s.Require().NoError(err)
	s.Equal(g2.ID, active2.ID)
}

func (s *MemoryStoreSuite) TestListGroupsOrdered() {
	p := s.newProject("p")
	s.Require().NoError(s.store.CreateProject(s.ctx, p))

	s.Require().NoError(s.store.CreateGroup(s.ctx, s.newGroup("late", p.ID, 2)))
	s.Require().NoError(s.store.CreateGroup(s.ctx, s.newGroup("early", p.ID, 0)))
	s.Require().NoError(s.store.CreateGroup(s.ctx, s.newGroup("middle", p.ID, 1)))

	groups, err := s.store.ListGroups(s.ctx, &p.ID)
	s.Require().NoError(err)
	s.Require().Len(groups, 3)
	s.Equal("early", groups[0].Name)
	s.Equal("middle", groups[1].Name)
	s.Equal("late", groups[2].Name)
}

func (s *MemoryStoreSuite) TestReorderGroup() {
	p := s.newProject("p")
	s.Require().NoError(s.store.CreateProject(s.ctx, p))
	g := s.newGroup("g", p.ID, 0)
	s.Require().NoError(s.store.CreateGroup(s.ctx, g))
	parent := s.newGroup("parent", p.ID, 1)
	s.Require().NoError(s.store.CreateGroup(s.ctx, parent))

	now := time.Now().UTC()
	s.Require().NoError(s.store.ReorderGroup(s.ctx, g.ID, 5, &parent.ID, now))

	found, err := s.store.FindGroup(s.ctx, g.ID)
	s.Require().NoError(err)
	s.Equal(5, found.Order)
	s.Require().NotNil(found.ParentID)
	s.Equal(parent.ID, *found.ParentID)

	// a zero parent id clears the parent
	s.Require().NoError(s.store.ReorderGroup(s.ctx, g.ID, 5, &domain.GroupID{}, now))
	found, err = s.store.FindGroup(s.ctx, g.ID)
	s.Require().NoError(err)
	s.Nil(found.ParentID)
}

func (s *MemoryStoreSuite) TestDeleteGroupCascadesChapters() {
	p := s.newProject("p")
	s.Require().NoError(s.store.CreateProject(s.ctx, p))
	g := s.newGroup("g", p.ID, 0)
	s.Require().NoError(s.store.CreateGroup(s.ctx, g))

	c, err := models.NewChapter(domain.NewChapterID(), models.CreateChapterRequest{
		Name:    "c",
		GroupID: g.ID,
	}, time.Now().UTC())
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateChapter(s.ctx, c))

	s.Require().NoError(s.store.DeleteGroup(s.ctx, g.ID))

	_, err = s.store.FindChapter(s.ctx, c.ID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *MemoryStoreSuite) TestChaptersOrderedWithinGroup() {
	p := s.newProject("p")
	s.Require().NoError(s.store.CreateProject(s.ctx, p))
	g := s.newGroup("g", p.ID, 0)
	s.Require().NoError(s.store.CreateGroup(s.ctx, g))

	for i, name := range []string{"c2", "c0", "c1"} {
		order := []int{2, 0, 1}[i]
		c, err := models.NewChapter(domain.NewChapterID(), models.CreateChapterRequest{
			Name:    name,
			GroupID: g.ID,
			Order:   order,
		}, time.Now().UTC())
		s.Require().NoError(err)
		s.Require().NoError(s.store.CreateChapter(s.ctx, c))
	}

	chapters, err := s.store.ListChapters(s.ctx, &g.ID)
	s.Require().NoError(err)
	s.Require().Len(chapters, 3)
	s.Equal("c0", chapters[0].Name)
	s.Equal("c1", chapters[1].Name)
	s.Equal("c2", chapters[2].Name)
}
