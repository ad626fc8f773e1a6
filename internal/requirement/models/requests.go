package models

import (
	"reqtrace/pkg/domain"
)

// CreateRequirementRequest is the payload for creating a requirement.
// Relationship edges are never created here; they go through the graph.
type CreateRequirementRequest struct {
	Title               string            `json:"title"`
	Text                string            `json:"text"`
	Status              string            `json:"status,omitempty"`
	VerificationMethods []string          `json:"verification_methods,omitempty"`
	ProjectID           domain.ProjectID  `json:"project_id"`
	GroupID             domain.GroupID    `json:"group_id"`
	ChapterID           *domain.ChapterID `json:"chapter_id,omitempty"`
	CreatedBy           string            `json:"-"`
}

// UpdateRequirementRequest is a partial patch; nil fields are untouched.
type UpdateRequirementRequest struct {
	Title               *string   `json:"title,omitempty"`
	Text                *string   `json:"text,omitempty"`
	Status              *string   `json:"status,omitempty"`
	VerificationMethods *[]string `json:"verification_methods,omitempty"`
}

// IsEmpty reports whether no field is set.
func (r UpdateRequirementRequest) IsEmpty() bool {
	return r.Title == nil && r.Text == nil && r.Status == nil && r.VerificationMethods == nil
}

// BatchUpdateRequest applies one status to many requirements. Unknown ids
// are skipped; the response carries the number actually updated.
type BatchUpdateRequest struct {
	IDs    []domain.RequirementID `json:"requirement_ids"`
	Status string                 `json:"status"`
}

// RelationshipRequest names a directed parent→child edge.
type RelationshipRequest struct {
	ParentID domain.RequirementID `json:"parent_id"`
	ChildID  domain.RequirementID `json:"child_id"`
}
