package stats

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reqtrace/internal/requirement/models"
	"reqtrace/internal/requirement/store"
	"reqtrace/pkg/domain"
	dErrors "reqtrace/pkg/domain-errors"
)

type countingLister struct {
	store *store.InMemory
	calls atomic.Int32
	gate  chan struct{}
}

func (l *countingLister) List(ctx context.Context, f store.Filter) ([]*models.Requirement, error) {
	l.calls.Add(1)
	if l.gate != nil {
		<-l.gate
	}
	return l.store.List(ctx, f)
}

func seedRequirement(t *testing.T, st *store.InMemory, projectID domain.ProjectID, status models.Status) {
	t.Helper()
	now := time.Now().UTC()
	r := &models.Requirement{
		ID:                  domain.NewRequirementID(),
		ReqID:               "REQ-" + domain.NewRequirementID().String()[:8],
		Title:               "t",
		Text:                "x",
		Status:              status,
		VerificationMethods: []models.VerificationMethod{},
		ProjectID:           projectID,
		GroupID:             domain.NewGroupID(),
		ParentIDs:           []domain.RequirementID{},
		ChildIDs:            []domain.RequirementID{},
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	require.NoError(t, st.Create(context.Background(), r, nil))
}

func TestSnapshotComputesFromLister(t *testing.T) {
	st := store.NewInMemory()
	projectID := domain.NewProjectID()
	seedRequirement(t, st, projectID, models.StatusDraft)
	seedRequirement(t, st, projectID, models.StatusTested)
	seedRequirement(t, st, domain.NewProjectID(), models.StatusDraft)

	svc := NewService(&countingLister{store: st})

	snapshot, err := svc.Snapshot(context.Background(), projectID)
	require.NoError(t, err)
	assert.Equal(t, 2, snapshot.TotalRequirements)
	assert.Equal(t, 50, snapshot.StatusPercentages[models.StatusDraft])
	assert.Equal(t, 50, snapshot.StatusPercentages[models.StatusTested])
}

func TestSnapshotRequiresProject(t *testing.T) {
	svc := NewService(&countingLister{store: store.NewInMemory()})

	_, err := svc.Snapshot(context.Background(), domain.ProjectID{})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestSnapshotSharesConcurrentComputation(t *testing.T) {
	st := store.NewInMemory()
	projectID := domain.NewProjectID()
	seedRequirement(t, st, projectID, models.StatusDraft)

	lister := &countingLister{store: st, gate: make(chan struct{})}
	svc := NewService(lister)

	const callers = 10
	var wg sync.WaitGroup
	results := make([]*Snapshot, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			snapshot, err := svc.Snapshot(context.Background(), projectID)
			require.NoError(t, err)
			results[idx] = snapshot
		}(i)
	}

	// let all callers pile up on the in-flight computation, then release it
	time.Sleep(50 * time.Millisecond)
	close(lister.gate)
	wg.Wait()

	assert.Equal(t, int32(1), lister.calls.Load(), "concurrent callers should share one computation")
	for _, snapshot := range results {
		assert.Equal(t, 1, snapshot.TotalRequirements)
	}
}
