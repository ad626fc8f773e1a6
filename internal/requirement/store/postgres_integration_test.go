//go:build integration

package store_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"reqtrace/internal/platform/postgres"
	"reqtrace/internal/requirement/models"
	"reqtrace/internal/requirement/store"
	"reqtrace/pkg/domain"
	"reqtrace/pkg/platform/sentinel"
	"reqtrace/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres  *containers.PostgresContainer
	store     *store.Postgres
	ctx       context.Context
	projectID domain.ProjectID
	groupID   domain.GroupID
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
	err := s.postgres.TruncateTables(s.ctx,
		"requirement_changes", "requirement_edges", "requirements")
	s.Require().NoError(err)
	s.projectID = domain.NewProjectID()
	s.groupID = domain.NewGroupID()
}

func (s *PostgresStoreSuite) newRequirement(reqID, title string) *models.Requirement {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.Requirement{
		ID:                  domain.NewRequirementID(),
		ReqID:               reqID,
		Title:               title,
		Text:                "The system shall " + title,
		Status:              models.StatusDraft,
		VerificationMethods: []models.VerificationMethod{},
		ProjectID:           s.projectID,
		GroupID:             s.groupID,
		ParentIDs:           []domain.RequirementID{},
		ChildIDs:            []domain.RequirementID{},
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

func (s *PostgresStoreSuite) mustCreate(r *models.Requirement) {
	entry := models.NewChange(r.ID, models.ChangeCreated, "Requirement created", "tester", r.CreatedAt)
	s.Require().NoError(s.store.Create(s.ctx, r, entry))
}

func (s *PostgresStoreSuite) TestCreateRoundTrip() {
	chapterID := domain.NewChapterID()
	r := s.newRequirement("REQ-001", "survive a restart")
	r.ChapterID = &chapterID
	r.Status = models.StatusInReview
	r.VerificationMethods = []models.VerificationMethod{models.VerificationTest, models.VerificationAnalysis}
	r.CreatedBy = "alice"
	s.mustCreate(r)

	found, err := s.store.FindByID(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(r.ReqID, found.ReqID)
	s.Equal(r.Title, found.Title)
	s.Equal(r.Text, found.Text)
	s.Equal(models.StatusInReview, found.Status)
	s.Equal([]models.VerificationMethod{models.VerificationTest, models.VerificationAnalysis}, found.VerificationMethods)
	s.Require().NotNil(found.ChapterID)
	s.Equal(chapterID, *found.ChapterID)
	s.Equal("alice", found.CreatedBy)
	s.Empty(found.ParentIDs)
	s.Empty(found.ChildIDs)
}

func (s *PostgresStoreSuite) TestCreateDuplicateReqID() {
	s.mustCreate(s.newRequirement("REQ-001", "first"))
	err := s.store.Create(s.ctx, s.newRequirement("REQ-001", "second"), nil)
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestFindMissing() {
	_, err := s.store.FindByID(s.ctx, domain.NewRequirementID())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListFilters() {
	a := s.newRequirement("REQ-001", "measure battery level")
	a.Status = models.StatusAccepted
	s.mustCreate(a)
	b := s.newRequirement("REQ-002", "report battery level")
	s.mustCreate(b)

	other := s.newRequirement("REQ-001", "unrelated")
	other.ProjectID = domain.NewProjectID()
	s.mustCreate(other)

	all, err := s.store.List(s.ctx, store.Filter{ProjectID: &s.projectID})
	s.Require().NoError(err)
	s.Len(all, 2)

	accepted := models.StatusAccepted
	filtered, err := s.store.List(s.ctx, store.Filter{ProjectID: &s.projectID, Status: &accepted})
	s.Require().NoError(err)
	s.Require().Len(filtered, 1)
	s.Equal("REQ-001", filtered[0].ReqID)

	matched, err := s.store.List(s.ctx, store.Filter{ProjectID: &s.projectID, Query: "BATTERY"})
	s.Require().NoError(err)
	s.Len(matched, 2)

	none, err := s.store.List(s.ctx, store.Filter{ProjectID: &s.projectID, Query: "100%"})
	s.Require().NoError(err)
	s.Empty(none)
}

func (s *PostgresStoreSuite) TestCountByProject() {
	s.mustCreate(s.newRequirement("REQ-001", "one"))
	s.mustCreate(s.newRequirement("REQ-002", "two"))

	count, err := s.store.CountByProject(s.ctx, s.projectID)
	s.Require().NoError(err)
	s.Equal(2, count)

	count, err = s.store.CountByProject(s.ctx, domain.NewProjectID())
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *PostgresStoreSuite) TestExecute() {
	r := s.newRequirement("REQ-001", "original")
	s.mustCreate(r)

	later := r.UpdatedAt.Add(time.Minute)
	updated, err := s.store.Execute(s.ctx, r.ID, nil, func(req *models.Requirement) {
		req.Title = "revised"
		req.Status = models.StatusImplemented
		req.UpdatedAt = later
		req.UpdatedBy = "bob"
	})
	s.Require().NoError(err)
	s.Equal("revised", updated.Title)

	found, err := s.store.FindByID(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Equal("revised", found.Title)
	s.Equal(models.StatusImplemented, found.Status)
	s.Equal("bob", found.UpdatedBy)
	s.True(found.UpdatedAt.Equal(later))
}

func (s *PostgresStoreSuite) TestExecuteValidateFailure() {
	r := s.newRequirement("REQ-001", "original")
	s.mustCreate(r)

	boom := sentinel.ErrConflict
	_, err := s.store.Execute(s.ctx, r.ID, func(*models.Requirement) error { return boom }, func(req *models.Requirement) {
		req.Title = "must not land"
	})
	s.Require().ErrorIs(err, boom)

	found, err := s.store.FindByID(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Equal("original", found.Title)
}

func linkEntries(parent, child *models.Requirement, now time.Time) []*models.ChangeLogEntry {
	return []*models.ChangeLogEntry{
		models.NewChange(parent.ID, models.ChangeRelationshipAdded, "Added child "+child.ReqID, "tester", now),
		models.NewChange(child.ID, models.ChangeRelationshipAdded, "Added parent "+parent.ReqID, "tester", now),
	}
}

func (s *PostgresStoreSuite) TestLinkPairSymmetry() {
	parent := s.newRequirement("REQ-001", "parent")
	child := s.newRequirement("REQ-002", "child")
	s.mustCreate(parent)
	s.mustCreate(child)

	now := time.Now().UTC()
	created, err := s.store.LinkPair(s.ctx, parent.ID, child.ID, now, linkEntries(parent, child, now))
	s.Require().NoError(err)
	s.True(created)

	p, err := s.store.FindByID(s.ctx, parent.ID)
	s.Require().NoError(err)
	s.Equal([]domain.RequirementID{child.ID}, p.ChildIDs)
	s.Empty(p.ParentIDs)

	c, err := s.store.FindByID(s.ctx, child.ID)
	s.Require().NoError(err)
	s.Equal([]domain.RequirementID{parent.ID}, c.ParentIDs)
	s.Empty(c.ChildIDs)
}

func (s *PostgresStoreSuite) TestLinkPairIdempotent() {
	parent := s.newRequirement("REQ-001", "parent")
	child := s.newRequirement("REQ-002", "child")
	s.mustCreate(parent)
	s.mustCreate(child)

	now := time.Now().UTC()
	created, err := s.store.LinkPair(s.ctx, parent.ID, child.ID, now, linkEntries(parent, child, now))
	s.Require().NoError(err)
	s.True(created)

	created, err = s.store.LinkPair(s.ctx, parent.ID, child.ID, now, linkEntries(parent, child, now))
	s.Require().NoError(err)
	s.False(created)

	changes, err := s.store.ListChanges(s.ctx, parent.ID)
	s.Require().NoError(err)
	relationshipAdds := 0
	for _, e := range changes {
		if e.Type == models.ChangeRelationshipAdded {
			relationshipAdds++
		}
	}
	s.Equal(1, relationshipAdds, "repeat link must not write extra change-log entries")
}

func (s *PostgresStoreSuite) TestLinkPairMissingEndpoint() {
	parent := s.newRequirement("REQ-001", "parent")
	s.mustCreate(parent)

	_, err := s.store.LinkPair(s.ctx, parent.ID, domain.NewRequirementID(), time.Now().UTC(), nil)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestConcurrentLinkPair() {
	parent := s.newRequirement("REQ-001", "parent")
	child := s.newRequirement("REQ-002", "child")
	s.mustCreate(parent)
	s.mustCreate(child)

	const goroutines = 20
	var wg sync.WaitGroup
	var createdCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			now := time.Now().UTC()
			created, err := s.store.LinkPair(s.ctx, parent.ID, child.ID, now, linkEntries(parent, child, now))
			if err == nil && created {
				createdCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), createdCount.Load(), "exactly one racer should create the edge")

	p, err := s.store.FindByID(s.ctx, parent.ID)
	s.Require().NoError(err)
	s.Len(p.ChildIDs, 1)

	changes, err := s.store.ListChanges(s.ctx, child.ID)
	s.Require().NoError(err)
	relationshipAdds := 0
	for _, e := range changes {
		if e.Type == models.ChangeRelationshipAdded {
			relationshipAdds++
		}
	}
	s.Equal(1, relationshipAdds)
}

func (s *PostgresStoreSuite) TestUnlinkPair() {
	parent := s.newRequirement("REQ-001", "parent")
	child := s.newRequirement("REQ-002", "child")
	s.mustCreate(parent)
	s.mustCreate(child)

	now := time.Now().UTC()
	_, err := s.store.LinkPair(s.ctx, parent.ID, child.ID, now, nil)
	s.Require().NoError(err)

	removed, err := s.store.UnlinkPair(s.ctx, parent.ID, child.ID, nil)
	s.Require().NoError(err)
	s.True(removed)

	removed, err = s.store.UnlinkPair(s.ctx, parent.ID, child.ID, nil)
	s.Require().NoError(err)
	s.False(removed)

	p, err := s.store.FindByID(s.ctx, parent.ID)
	s.Require().NoError(err)
	s.Empty(p.ChildIDs)
}

func (s *PostgresStoreSuite) TestDeleteCascadesEdges() {
	a := s.newRequirement("REQ-001", "a")
	b := s.newRequirement("REQ-002", "b")
	c := s.newRequirement("REQ-003", "c")
	s.mustCreate(a)
	s.mustCreate(b)
	s.mustCreate(c)

	now := time.Now().UTC()
	_, err := s.store.LinkPair(s.ctx, b.ID, a.ID, now, nil)
	s.Require().NoError(err)
	_, err = s.store.LinkPair(s.ctx, a.ID, c.ID, now, nil)
	s.Require().NoError(err)

	snapshot, err := s.store.Delete(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal([]domain.RequirementID{b.ID}, snapshot.ParentIDs)
	s.Equal([]domain.RequirementID{c.ID}, snapshot.ChildIDs)

	_, err = s.store.FindByID(s.ctx, a.ID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	bAfter, err := s.store.FindByID(s.ctx, b.ID)
	s.Require().NoError(err)
	s.Empty(bAfter.ChildIDs)

	cAfter, err := s.store.FindByID(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Empty(cAfter.ParentIDs)
}

func (s *PostgresStoreSuite) TestChangeLogOrder() {
	r := s.newRequirement("REQ-001", "audited")
	s.mustCreate(r)

	now := r.CreatedAt
	for i, field := range []string{"title", "status", "text"} {
		entry := models.NewFieldChange(r.ID, field, "old", "new", "tester", now.Add(time.Duration(i+1)*time.Second))
		s.Require().NoError(s.store.AppendChange(s.ctx, entry))
	}

	changes, err := s.store.ListChanges(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Require().Len(changes, 4)
	s.Equal(models.ChangeCreated, changes[0].Type)
	s.Equal("title", changes[1].FieldName)
	s.Equal("status", changes[2].FieldName)
	s.Equal("text", changes[3].FieldName)
	s.Equal("Changed status", changes[2].Description)
}
