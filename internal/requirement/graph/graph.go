// Package graph maintains the parent/child relationships between
// requirements. Every edge is stored once and projected onto both endpoints,
// so a child listed under a parent always implies the reverse link.
package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"reqtrace/internal/requirement/models"
	"reqtrace/internal/requirement/store"
	"reqtrace/pkg/domain"
	dErrors "reqtrace/pkg/domain-errors"
	"reqtrace/pkg/platform/sentinel"
	"reqtrace/pkg/requestcontext"
)

// Direction selects which side of a requirement's edges to walk.
type Direction string

const (
	DirectionParents  Direction = "parents"
	DirectionChildren Direction = "children"
)

// ParseDirection validates a direction string.
func ParseDirection(value string) (Direction, error) {
	switch Direction(value) {
	case DirectionParents, DirectionChildren:
		return Direction(value), nil
	default:
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown direction %q", value)
	}
}

// EdgeResult reports the outcome of an edge mutation. Created and Removed are
// false when the operation was a no-op. Parent and Child are the endpoint
// records after the mutation.
type EdgeResult struct {
	Created bool
	Removed bool
	Parent  *models.Requirement
	Child   *models.Requirement
}

// Graph validates and applies edge mutations on top of a requirement store.
type Graph struct {
	store        store.Store
	logger       *slog.Logger
	rejectCycles bool
}

// Option configures a Graph.
type Option func(*Graph)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Graph) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithCycleRejection makes AddEdge refuse edges that would close a cycle.
// Cycles are permitted by default. The check is best effort under
// concurrent writers: it runs before the edge lock, so two simultaneous
// AddEdge calls can each pass it and jointly close a cycle. Traversals
// remain safe on cyclic data either way; see wouldCycle and Neighbors.
func WithCycleRejection(reject bool) Option {
	return func(g *Graph) {
		g.rejectCycles = reject
	}
}

// New constructs a Graph over the given store.
func New(s store.Store, opts ...Option) *Graph {
	g := &Graph{
		store:  s,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// AddEdge links parentID to childID. Both endpoints must exist and be
// distinct. Linking an already-linked pair is a no-op. The edge and its two
// change-log entries are written as one unit.
func (g *Graph) AddEdge(ctx context.Context, parentID, childID domain.RequirementID) (*EdgeResult, error) {
	if parentID == childID {
		return nil, dErrors.New(dErrors.CodeInvalidEdge, "a requirement cannot be its own parent")
	}

	parent, err := g.endpoint(ctx, parentID, "parent")
	if err != nil {
		return nil, err
	}
	child, err := g.endpoint(ctx, childID, "child")
	if err != nil {
		return nil, err
	}

	if g.rejectCycles {
		// Runs outside the LinkPair lock; see WithCycleRejection for the
		// concurrency caveat.
		cyclic, err := g.wouldCycle(ctx, parentID, childID)
		if err != nil {
			return nil, err
		}
		if cyclic {
			return nil, dErrors.Newf(dErrors.CodeInvalidEdge,
				"linking %s under %s would create a cycle", child.ReqID, parent.ReqID)
		}
	}

	now := requestcontext.Now(ctx)
	actor := requestcontext.Actor(ctx)
	entries := []*models.ChangeLogEntry{
		models.NewChange(parentID, models.ChangeRelationshipAdded, "Added child "+child.ReqID, actor, now),
		models.NewChange(childID, models.ChangeRelationshipAdded, "Added parent "+parent.ReqID, actor, now),
	}

	created, err := g.store.LinkPair(ctx, parentID, childID, now, entries)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "requirement not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "link requirements")
	}
	if created {
		g.logger.InfoContext(ctx, "edge added",
			"parent", parent.ReqID, "child", child.ReqID)
	}

	return g.result(ctx, parentID, childID, created, false)
}

// RemoveEdge unlinks parentID from childID. Removing an absent edge is a
// no-op. Both endpoints must exist.
func (g *Graph) RemoveEdge(ctx context.Context, parentID, childID domain.RequirementID) (*EdgeResult, error) {
	parent, err := g.endpoint(ctx, parentID, "parent")
	if err != nil {
		return nil, err
	}
	child, err := g.endpoint(ctx, childID, "child")
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	actor := requestcontext.Actor(ctx)
	entries := []*models.ChangeLogEntry{
		models.NewChange(parentID, models.ChangeRelationshipRemoved, "Removed child "+child.ReqID, actor, now),
		models.NewChange(childID, models.ChangeRelationshipRemoved, "Removed parent "+parent.ReqID, actor, now),
	}

	removed, err := g.store.UnlinkPair(ctx, parentID, childID, entries)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "requirement not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "unlink requirements")
	}
	if removed {
		g.logger.InfoContext(ctx, "edge removed",
			"parent", parent.ReqID, "child", child.ReqID)
	}

	return g.result(ctx, parentID, childID, false, removed)
}

// Neighbors resolves the requirement records on one side of id's edges.
// Edges whose far endpoint cannot be resolved are skipped.
func (g *Graph) Neighbors(ctx context.Context, id domain.RequirementID, dir Direction) ([]*models.Requirement, error) {
	r, err := g.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "requirement not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find requirement")
	}

	ids := r.ParentIDs
	if dir == DirectionChildren {
		ids = r.ChildIDs
	}

	out := make([]*models.Requirement, 0, len(ids))
	for _, nid := range ids {
		n, err := g.store.FindByID(ctx, nid)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				g.logger.WarnContext(ctx, "skipping unresolvable neighbor",
					"requirement", r.ReqID, "neighbor_id", nid.String())
				continue
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find neighbor")
		}
		out = append(out, n)
	}
	return out, nil
}

func (g *Graph) endpoint(ctx context.Context, id domain.RequirementID, role string) (*models.Requirement, error) {
	r, err := g.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "%s requirement %s not found", role, id)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("find %s requirement", role))
	}
	return r, nil
}

// wouldCycle reports whether parentID is reachable from childID by following
// child edges. Adding parent->child when it is would close a cycle.
func (g *Graph) wouldCycle(ctx context.Context, parentID, childID domain.RequirementID) (bool, error) {
	visited := map[domain.RequirementID]struct{}{}
	queue := []domain.RequirementID{childID}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current == parentID {
			return true, nil
		}
		if _, seen := visited[current]; seen {
			continue
		}
		visited[current] = struct{}{}

		r, err := g.store.FindByID(ctx, current)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				continue
			}
			return false, dErrors.Wrap(err, dErrors.CodeInternal, "walk descendants")
		}
		queue = append(queue, r.ChildIDs...)
	}
	return false, nil
}

func (g *Graph) result(ctx context.Context, parentID, childID domain.RequirementID, created, removed bool) (*EdgeResult, error) {
	parent, err := g.store.FindByID(ctx, parentID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "reload parent")
	}
	child, err := g.store.FindByID(ctx, childID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "reload child")
	}
	return &EdgeResult{Created: created, Removed: removed, Parent: parent, Child: child}, nil
}
