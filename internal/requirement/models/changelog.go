package models

import (
	"time"

	"github.com/google/uuid"

	"reqtrace/pkg/domain"
)

// ChangeType classifies a change-log entry.
type ChangeType string

const (
	ChangeCreated             ChangeType = "created"
	ChangeUpdated             ChangeType = "updated"
	ChangeRelationshipAdded   ChangeType = "relationship_added"
	ChangeRelationshipRemoved ChangeType = "relationship_removed"
)

// ChangeLogEntry is one append-only audit record. Entries are never mutated
// or deleted, and they outlive the requirement they describe.
type ChangeLogEntry struct {
	ID            uuid.UUID            `json:"id"`
	RequirementID domain.RequirementID `json:"requirement_id"`
	Type          ChangeType           `json:"change_type"`
	FieldName     string               `json:"field_name,omitempty"`
	OldValue      string               `json:"old_value,omitempty"`
	NewValue      string               `json:"new_value,omitempty"`
	Description   string               `json:"change_description"`
	ChangedBy     string               `json:"changed_by,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
}

// NewChange constructs an entry for a non-field change (created,
// relationship added or removed).
func NewChange(requirementID domain.RequirementID, changeType ChangeType, description, changedBy string, now time.Time) *ChangeLogEntry {
	return &ChangeLogEntry{
		ID:            uuid.New(),
		RequirementID: requirementID,
		Type:          changeType,
		Description:   description,
		ChangedBy:     changedBy,
		CreatedAt:     now,
	}
}

// NewFieldChange constructs an updated entry carrying the field name and the
// before/after values rendered as strings.
func NewFieldChange(requirementID domain.RequirementID, field, oldValue, newValue, changedBy string, now time.Time) *ChangeLogEntry {
	return &ChangeLogEntry{
		ID:            uuid.New(),
		RequirementID: requirementID,
		Type:          ChangeUpdated,
		FieldName:     field,
		OldValue:      oldValue,
		NewValue:      newValue,
		Description:   "Changed " + field,
		ChangedBy:     changedBy,
		CreatedAt:     now,
	}
}
