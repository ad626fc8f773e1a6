// Package domain defines the typed identifiers shared across modules.
//
// Each ID is a distinct uuid-backed type so a GroupID can never be passed
// where a RequirementID is expected. All types marshal as the canonical
// uuid string.
package domain

import "github.com/google/uuid"

// RequirementID identifies a requirement record.
type RequirementID uuid.UUID

// ProjectID identifies a project.
type ProjectID uuid.UUID

// GroupID identifies a requirement group within a project.
type GroupID uuid.UUID

// ChapterID identifies a chapter within a group.
type ChapterID uuid.UUID

func NewRequirementID() RequirementID { return RequirementID(uuid.New()) }
func NewProjectID() ProjectID         { return ProjectID(uuid.New()) }
func NewGroupID() GroupID             { return GroupID(uuid.New()) }
func NewChapterID() ChapterID         { return ChapterID(uuid.New()) }

// ParseRequirementID parses the canonical uuid form of a requirement ID.
func ParseRequirementID(s string) (RequirementID, error) {
	u, err := uuid.Parse(s)
	return RequirementID(u), err
}

func ParseProjectID(s string) (ProjectID, error) {
	u, err := uuid.Parse(s)
	return ProjectID(u), err
}

func ParseGroupID(s string) (GroupID, error) {
	u, err := uuid.Parse(s)
	return GroupID(u), err
}

func ParseChapterID(s string) (ChapterID, error) {
	u, err := uuid.Parse(s)
	return ChapterID(u), err
}

func (id RequirementID) String() string { return uuid.UUID(id).String() }
func (id ProjectID) String() string     { return uuid.UUID(id).String() }
func (id GroupID) String() string       { return uuid.UUID(id).String() }
func (id ChapterID) String() string     { return uuid.UUID(id).String() }

func (id RequirementID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ProjectID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id GroupID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id ChapterID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }

func (id RequirementID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id ProjectID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id GroupID) MarshalText() ([]byte, error)       { return uuid.UUID(id).MarshalText() }
func (id ChapterID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }

func (id *RequirementID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ProjectID) UnmarshalText(b []byte) error     { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *GroupID) UnmarshalText(b []byte) error       { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ChapterID) UnmarshalText(b []byte) error     { return (*uuid.UUID)(id).UnmarshalText(b) }
