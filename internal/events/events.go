// Package events publishes requirement change notifications for downstream
// consumers. Publishing is fire-and-forget: a broker outage never fails the
// operation that produced the event.
package events

import (
	"context"
	"time"

	"reqtrace/pkg/domain"
)

// ChangeEvent describes one mutation to a requirement or its relationships.
type ChangeEvent struct {
	RequirementID domain.RequirementID `json:"requirement_id"`
	ProjectID     domain.ProjectID     `json:"project_id"`
	ReqID         string               `json:"req_id"`
	Type          string               `json:"type"`
	Actor         string               `json:"actor,omitempty"`
	OccurredAt    time.Time            `json:"occurred_at"`
}

// Publisher emits change events.
type Publisher interface {
	Emit(ctx context.Context, event ChangeEvent)
	Close()
}

// Noop discards all events. Used when no broker is configured.
type Noop struct{}

func (Noop) Emit(context.Context, ChangeEvent) {}
func (Noop) Close()                            {}
