// Package models defines the project, group and chapter registries that
// requirements hang off. One project and one group per project are "active"
// at a time; the active pair is where new work lands by default.
package models

import (
	"strings"
	"time"

	"reqtrace/pkg/domain"
	dErrors "reqtrace/pkg/domain-errors"
)

// Project is the top level container.
type Project struct {
	ID          domain.ProjectID `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	IsActive    bool             `json:"is_active"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Group partitions a project. Groups can nest via ParentID and carry an
// explicit display order.
type Group struct {
	ID          domain.GroupID   `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	ProjectID   domain.ProjectID `json:"project_id"`
	ParentID    *domain.GroupID  `json:"parent_id,omitempty"`
	Order       int              `json:"order"`
	IsActive    bool             `json:"is_active"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Chapter subdivides a group.
type Chapter struct {
	ID          domain.ChapterID  `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	GroupID     domain.GroupID    `json:"group_id"`
	ParentID    *domain.ChapterID `json:"parent_id,omitempty"`
	Order       int               `json:"order"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// CreateProjectRequest is the payload for creating a project.
type CreateProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// CreateGroupRequest is the payload for creating a group.
type CreateGroupRequest struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	ProjectID   domain.ProjectID `json:"project_id"`
	ParentID    *domain.GroupID  `json:"parent_id,omitempty"`
	Order       int              `json:"order"`
}

// CreateChapterRequest is the payload for creating a chapter.
type CreateChapterRequest struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	GroupID     domain.GroupID    `json:"group_id"`
	ParentID    *domain.ChapterID `json:"parent_id,omitempty"`
	Order       int               `json:"order"`
}

// ReorderRequest moves an item to a new position, optionally reparenting it.
type ReorderRequest struct {
	NewOrder    int     `json:"new_order"`
	NewParentID *string `json:"new_parent_id,omitempty"`
}

// NewProject validates and builds a project. New projects start active.
func NewProject(id domain.ProjectID, req CreateProjectRequest, now time.Time) (*Project, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "name is required")
	}
	return &Project{
		ID:          id,
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// NewGroup validates and builds a group. New groups start active within
// their project.
func NewGroup(id domain.GroupID, req CreateGroupRequest, now time.Time) (*Group, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if req.ProjectID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "project_id is required")
	}
	return &Group{
		ID:          id,
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		ProjectID:   req.ProjectID,
		ParentID:    req.ParentID,
		Order:       req.Order,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// NewChapter validates and builds a chapter.
func NewChapter(id domain.ChapterID, req CreateChapterRequest, now time.Time) (*Chapter, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if req.GroupID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "group_id is required")
	}
	return &Chapter{
		ID:          id,
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		GroupID:     req.GroupID,
		ParentID:    req.ParentID,
		Order:       req.Order,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}
