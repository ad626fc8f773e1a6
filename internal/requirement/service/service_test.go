package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"reqtrace/internal/events"
	"reqtrace/internal/requirement/graph"
	"reqtrace/internal/requirement/models"
	"reqtrace/internal/requirement/store"
	"reqtrace/pkg/domain"
	dErrors "reqtrace/pkg/domain-errors"
	"reqtrace/pkg/requestcontext"
)

type capturingPublisher struct {
	mu     sync.Mutex
	events []events.ChangeEvent
}

func (p *capturingPublisher) Emit(_ context.Context, event events.ChangeEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *capturingPublisher) Close() {}

func (p *capturingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type capturingInvalidator struct {
	mu       sync.Mutex
	projects []domain.ProjectID
}

func (c *capturingInvalidator) Invalidate(_ context.Context, projectID domain.ProjectID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.projects = append(c.projects, projectID)
}

func (c *capturingInvalidator) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.projects)
}

type ServiceSuite struct {
	suite.Suite
	store       *store.InMemory
	service     *Service
	publisher   *capturingPublisher
	invalidator *capturingInvalidator
	ctx         context.Context
	projectID   domain.ProjectID
	groupID     domain.GroupID
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.publisher = &capturingPublisher{}
	s.invalidator = &capturingInvalidator{}
	s.service = New(s.store, graph.New(s.store),
		WithPublisher(s.publisher),
		WithStatsInvalidator(s.invalidator),
	)
	s.ctx = requestcontext.WithActor(context.Background(), "alice")
	s.projectID = domain.NewProjectID()
	s.groupID = domain.NewGroupID()
}

func (s *ServiceSuite) createRequest(title string) models.CreateRequirementRequest {
	return models.CreateRequirementRequest{
		Title:     title,
		Text:      "The system shall " + title,
		ProjectID: s.projectID,
		GroupID:   s.groupID,
	}
}

func (s *ServiceSuite) TestCreateAllocatesSequentialIDs() {
	first, err := s.service.Create(s.ctx, s.createRequest("report temperature"))
	s.Require().NoError(err)
	s.Equal("REQ-001", first.ReqID)
	s.Equal(models.StatusDraft, first.Status)
	s.Equal("alice", first.CreatedBy)

	second, err := s.service.Create(s.ctx, s.createRequest("log temperature"))
	s.Require().NoError(err)
	s.Equal("REQ-002", second.ReqID)
}

func (s *ServiceSuite) TestCreateSkipsOccupiedIDs() {
	first, err := s.service.Create(s.ctx, s.createRequest("first"))
	s.Require().NoError(err)
	_, err = s.service.Create(s.ctx, s.createRequest("second"))
	s.Require().NoError(err)

	// Deleting REQ-001 leaves the count at one, so the next allocation
	// would collide with the surviving REQ-002 and must move past it.
	s.Require().NoError(s.service.Delete(s.ctx, first.ID))

	third, err := s.service.Create(s.ctx, s.createRequest("third"))
	s.Require().NoError(err)
	s.Equal("REQ-003", third.ReqID)
}

func (s *ServiceSuite) TestCreateValidation() {
	req := s.createRequest("valid")
	req.Title = "  "
	_, err := s.service.Create(s.ctx, req)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	req = s.createRequest("valid")
	req.Status = "Shipped"
	_, err = s.service.Create(s.ctx, req)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestCreateWritesChangeLogAndSignals() {
	r, err := s.service.Create(s.ctx, s.createRequest("emit signals"))
	s.Require().NoError(err)

	changes, err := s.service.ChangeLog(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Require().Len(changes, 1)
	s.Equal(models.ChangeCreated, changes[0].Type)
	s.Equal("alice", changes[0].ChangedBy)

	s.Equal([]string{"requirement.created"}, s.publisher.types())
	s.Equal(1, s.invalidator.count())
}

func (s *ServiceSuite) TestGetMissing() {
	_, err := s.service.Get(s.ctx, domain.NewRequirementID())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestUpdateRecordsFieldChanges() {
	r, err := s.service.Create(s.ctx, s.createRequest("original title"))
	s.Require().NoError(err)

	title := "revised title"
	status := "Accepted"
	updated, err := s.service.Update(s.ctx, r.ID, models.UpdateRequirementRequest{
		Title:  &title,
		Status: &status,
	})
	s.Require().NoError(err)
	s.Equal("revised title", updated.Title)
	s.Equal(models.StatusAccepted, updated.Status)
	s.Equal("alice", updated.UpdatedBy)

	changes, err := s.service.ChangeLog(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Require().Len(changes, 3)
	s.Equal("title", changes[1].FieldName)
	s.Equal("original title", changes[1].OldValue)
	s.Equal("revised title", changes[1].NewValue)
	s.Equal("status", changes[2].FieldName)
	s.Equal("Changed status", changes[2].Description)
}

func (s *ServiceSuite) TestUpdateSkipsUnchangedFields() {
	r, err := s.service.Create(s.ctx, s.createRequest("steady"))
	s.Require().NoError(err)

	same := r.Title
	_, err = s.service.Update(s.ctx, r.ID, models.UpdateRequirementRequest{Title: &same})
	s.Require().NoError(err)

	changes, err := s.service.ChangeLog(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Len(changes, 1, "unchanged fields must not grow the change log")
}

func (s *ServiceSuite) TestUpdateValidation() {
	r, err := s.service.Create(s.ctx, s.createRequest("guarded"))
	s.Require().NoError(err)

	_, err = s.service.Update(s.ctx, r.ID, models.UpdateRequirementRequest{})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	empty := " "
	_, err = s.service.Update(s.ctx, r.ID, models.UpdateRequirementRequest{Title: &empty})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	bad := "Unknown"
	_, err = s.service.Update(s.ctx, r.ID, models.UpdateRequirementRequest{Status: &bad})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	title := "x"
	_, err = s.service.Update(s.ctx, domain.NewRequirementID(), models.UpdateRequirementRequest{Title: &title})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestDeleteRecordsNeighborRemovals() {
	parent, err := s.service.Create(s.ctx, s.createRequest("parent"))
	s.Require().NoError(err)
	middle, err := s.service.Create(s.ctx, s.createRequest("middle"))
	s.Require().NoError(err)
	child, err := s.service.Create(s.ctx, s.createRequest("child"))
	s.Require().NoError(err)

	_, err = s.service.AddEdge(s.ctx, parent.ID, middle.ID)
	s.Require().NoError(err)
	_, err = s.service.AddEdge(s.ctx, middle.ID, child.ID)
	s.Require().NoError(err)

	s.Require().NoError(s.service.Delete(s.ctx, middle.ID))

	_, err = s.service.Get(s.ctx, middle.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	parentAfter, err := s.service.Get(s.ctx, parent.ID)
	s.Require().NoError(err)
	s.Empty(parentAfter.ChildIDs)

	parentChanges, err := s.service.ChangeLog(s.ctx, parent.ID)
	s.Require().NoError(err)
	last := parentChanges[len(parentChanges)-1]
	s.Equal(models.ChangeRelationshipRemoved, last.Type)
	s.Equal("Removed child "+middle.ReqID, last.Description)

	childChanges, err := s.service.ChangeLog(s.ctx, child.ID)
	s.Require().NoError(err)
	last = childChanges[len(childChanges)-1]
	s.Equal("Removed parent "+middle.ReqID, last.Description)
}

func (s *ServiceSuite) TestBatchUpdateStatus() {
	a, err := s.service.Create(s.ctx, s.createRequest("a"))
	s.Require().NoError(err)
	b, err := s.service.Create(s.ctx, s.createRequest("b"))
	s.Require().NoError(err)
	c, err := s.service.Create(s.ctx, s.createRequest("c"))
	s.Require().NoError(err)

	// c already carries the target status, so it is not counted as modified
	_, err = s.service.Update(s.ctx, c.ID, models.UpdateRequirementRequest{Status: stringPtr("Tested")})
	s.Require().NoError(err)

	updated, err := s.service.BatchUpdateStatus(s.ctx, models.BatchUpdateRequest{
		IDs:    []domain.RequirementID{a.ID, b.ID, c.ID, domain.NewRequirementID()},
		Status: "Tested",
	})
	s.Require().NoError(err)
	s.Equal(2, updated)

	for _, id := range []domain.RequirementID{a.ID, b.ID, c.ID} {
		r, err := s.service.Get(s.ctx, id)
		s.Require().NoError(err)
		s.Equal(models.StatusTested, r.Status)
	}
}

func (s *ServiceSuite) TestBatchUpdateValidation() {
	_, err := s.service.BatchUpdateStatus(s.ctx, models.BatchUpdateRequest{Status: "Tested"})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.service.BatchUpdateStatus(s.ctx, models.BatchUpdateRequest{
		IDs:    []domain.RequirementID{domain.NewRequirementID()},
		Status: "Nope",
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestSearch() {
	_, err := s.service.Create(s.ctx, s.createRequest("measure pressure"))
	s.Require().NoError(err)
	_, err = s.service.Create(s.ctx, s.createRequest("measure temperature"))
	s.Require().NoError(err)

	found, err := s.service.Search(s.ctx, s.projectID, "PRESSURE")
	s.Require().NoError(err)
	s.Require().Len(found, 1)
	s.Equal("REQ-001", found[0].ReqID)

	_, err = s.service.Search(s.ctx, s.projectID, "   ")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestChangeLogMissing() {
	_, err := s.service.ChangeLog(s.ctx, domain.NewRequirementID())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestEdgeEventsAndInvalidation() {
	parent, err := s.service.Create(s.ctx, s.createRequest("parent"))
	s.Require().NoError(err)
	child, err := s.service.Create(s.ctx, s.createRequest("child"))
	s.Require().NoError(err)

	res, err := s.service.AddEdge(s.ctx, parent.ID, child.ID)
	s.Require().NoError(err)
	s.True(res.Created)

	// repeat link is a no-op and must not emit
	res, err = s.service.AddEdge(s.ctx, parent.ID, child.ID)
	s.Require().NoError(err)
	s.False(res.Created)

	res, err = s.service.RemoveEdge(s.ctx, parent.ID, child.ID)
	s.Require().NoError(err)
	s.True(res.Removed)

	s.Equal([]string{
		"requirement.created",
		"requirement.created",
		"relationship.added",
		"relationship.removed",
	}, s.publisher.types())
}

func stringPtr(s string) *string { return &s }
