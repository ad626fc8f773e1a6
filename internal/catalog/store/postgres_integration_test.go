//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"reqtrace/internal/catalog/models"
	"reqtrace/internal/catalog/store"
	"reqtrace/internal/platform/postgres"
	"reqtrace/pkg/domain"
	"reqtrace/pkg/platform/sentinel"
	"reqtrace/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
	ctx      context.Context
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.ctx = context.Background()

	err := postgres.EnsureSchema(s.ctx, s.postgres.DB)
	s.Require().NoError(err)

	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(s.ctx, "chapters", "groups", "projects")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) createProject(name string) *models.Project {
	now := time.Now().UTC().Truncate(time.Microsecond)
	p, err := models.NewProject(domain.NewProjectID(), models.CreateProjectRequest{Name: name}, now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateProject(s.ctx, p))
	return p
}

func (s *PostgresStoreSuite) createGroup(name string, projectID domain.ProjectID, order int) *models.Group {
	now := time.Now().UTC().Truncate(time.Microsecond)
	g, err := models.NewGroup(domain.NewGroupID(), models.CreateGroupRequest{
		Name:      name,
		ProjectID: projectID,
		Order:     order,
	}, now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateGroup(s.ctx, g))
	return g
}

func (s *PostgresStoreSuite) createChapter(name string, groupID domain.GroupID, order int) *models.Chapter {
	now := time.Now().UTC().Truncate(time.Microsecond)
	c, err := models.NewChapter(domain.NewChapterID(), models.CreateChapterRequest{
		Name:    name,
		GroupID: groupID,
		Order:   order,
	}, now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateChapter(s.ctx, c))
	return c
}

func (s *PostgresStoreSuite) TestCreateProjectDeactivatesSiblings() {
	first := s.createProject("first")
	second := s.createProject("second")

	active, err := s.store.ActiveProject(s.ctx)
	s.Require().NoError(err)
	s.Equal(second.ID, active.ID)

	found, err := s.store.FindProject(s.ctx, first.ID)
	s.Require().NoError(err)
	s.False(found.IsActive)
}

func (s *PostgresStoreSuite) TestActivateProject() {
	first := s.createProject("first")
	s.createProject("second")

	s.Require().NoError(s.store.ActivateProject(s.ctx, first.ID))

	active, err := s.store.ActiveProject(s.ctx)
	s.Require().NoError(err)
	s.Equal(first.ID, active.ID)

	err = s.store.ActivateProject(s.ctx, domain.NewProjectID())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestGroupActivationScopedToProject() {
	p1 := s.createProject("p1")
	p2 := s.createProject("p2")
	g1 := s.createGroup("g1", p1.ID, 0)
	g2 := s.createGroup("g2", p2.ID, 0)

	active1, err := s.store.ActiveGroup(s.ctx, p1.ID)
	s.Require().NoError(err)
	s.Equal(g1.ID, active1.ID)

	active2, err := s.store.ActiveGroup(s.ctx, p2.ID)
	s.Require().NoError(err)
	s.Equal(g2.ID, active2.ID)
}

func (s *PostgresStoreSuite) TestListGroupsOrdered() {
	p := s.createProject("p")
	late := s.createGroup("late", p.ID, 5)
	early := s.createGroup("early", p.ID, 1)

	groups, err := s.store.ListGroups(s.ctx, &p.ID)
	s.Require().NoError(err)
	s.Require().Len(groups, 2)
	s.Equal(early.ID, groups[0].ID)
	s.Equal(late.ID, groups[1].ID)
}

func (s *PostgresStoreSuite) TestReorderGroupParent() {
	p := s.createProject("p")
	parent := s.createGroup("parent", p.ID, 0)
	child := s.createGroup("child", p.ID, 1)

	now := time.Now().UTC().Truncate(time.Microsecond)
	s.Require().NoError(s.store.ReorderGroup(s.ctx, child.ID, 3, &parent.ID, now))

	found, err := s.store.FindGroup(s.ctx, child.ID)
	s.Require().NoError(err)
	s.Equal(3, found.Order)
	s.Require().NotNil(found.ParentID)
	s.Equal(parent.ID, *found.ParentID)

	// a zero parent id clears the parent
	s.Require().NoError(s.store.ReorderGroup(s.ctx, child.ID, 4, &domain.GroupID{}, now))
	found, err = s.store.FindGroup(s.ctx, child.ID)
	s.Require().NoError(err)
	s.Nil(found.ParentID)
}

func (s *PostgresStoreSuite) TestDeleteProjectCascades() {
	p := s.createProject("p")
	g := s.createGroup("g", p.ID, 0)
	c := s.createChapter("c", g.ID, 0)

	s.Require().NoError(s.store.DeleteProject(s.ctx, p.ID))

	_, err := s.store.FindGroup(s.ctx, g.ID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.FindChapter(s.ctx, c.ID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestDeleteGroupCascadesChapters() {
	p := s.createProject("p")
	doomed := s.createGroup("doomed", p.ID, 0)
	kept := s.createGroup("kept", p.ID, 1)
	c := s.createChapter("c", doomed.ID, 0)
	keptChapter := s.createChapter("kc", kept.ID, 0)

	s.Require().NoError(s.store.DeleteGroup(s.ctx, doomed.ID))

	_, err := s.store.FindChapter(s.ctx, c.ID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.FindChapter(s.ctx, keptChapter.ID)
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestListChaptersOrdered() {
	p := s.createProject("p")
	g := s.createGroup("g", p.ID, 0)
	late := s.createChapter("late", g.ID, 2)
	early := s.createChapter("early", g.ID, 1)

	chapters, err := s.store.ListChapters(s.ctx, &g.ID)
	s.Require().NoError(err)
	s.Require().Len(chapters, 2)
	s.Equal(early.ID, chapters[0].ID)
	s.Equal(late.ID, chapters[1].ID)
}
