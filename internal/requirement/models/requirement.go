package models

import (
	"slices"
	"strings"
	"time"

	"reqtrace/pkg/domain"
	dErrors "reqtrace/pkg/domain-errors"
	pstrings "reqtrace/pkg/platform/strings"
)

// Status is the lifecycle state of a requirement.
type Status string

const (
	StatusDraft       Status = "Draft"
	StatusInReview    Status = "In Review"
	StatusAccepted    Status = "Accepted"
	StatusImplemented Status = "Implemented"
	StatusTested      Status = "Tested"
)

// AllStatuses returns every status in lifecycle order. Aggregation reports
// carry an entry for each of these even when its count is zero.
func AllStatuses() []Status {
	return []Status{StatusDraft, StatusInReview, StatusAccepted, StatusImplemented, StatusTested}
}

// ParseStatus validates a status string. Empty input defaults to Draft.
func ParseStatus(s string) (Status, error) {
	if strings.TrimSpace(s) == "" {
		return StatusDraft, nil
	}
	status := Status(strings.TrimSpace(s))
	if !slices.Contains(AllStatuses(), status) {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown status %q", s)
	}
	return status, nil
}

// VerificationMethod is one way a requirement can be verified.
type VerificationMethod string

const (
	VerificationAnalysis   VerificationMethod = "Analysis"
	VerificationReview     VerificationMethod = "Review"
	VerificationInspection VerificationMethod = "Inspection"
	VerificationTest       VerificationMethod = "Test"
)

// AllVerificationMethods returns the recognized verification methods.
func AllVerificationMethods() []VerificationMethod {
	return []VerificationMethod{VerificationAnalysis, VerificationReview, VerificationInspection, VerificationTest}
}

// NormalizeVerificationMethods trims and de-duplicates the input and drops
// unrecognized values silently. Bulk imports and lenient API clients send
// junk here; tolerating it keeps row-level processing alive.
func NormalizeVerificationMethods(values []string) []VerificationMethod {
	cleaned := pstrings.DedupeAndTrim(values)
	methods := make([]VerificationMethod, 0, len(cleaned))
	for _, v := range cleaned {
		m := VerificationMethod(v)
		if slices.Contains(AllVerificationMethods(), m) {
			methods = append(methods, m)
		}
	}
	return methods
}

// Requirement is the central entity: a tracked specification item with
// status, verification methods and dependency edges.
//
// Invariants:
//   - Title and Text are non-empty
//   - ReqID is unique within a project and immutable after creation
//   - ID never appears in its own ParentIDs or ChildIDs
//   - For any A, B: B is in A.ChildIDs exactly when A is in B.ParentIDs;
//     the store owns both sides and mutates them as one unit
type Requirement struct {
	ID                  domain.RequirementID  `json:"id"`
	ReqID               string                `json:"req_id"`
	Title               string                `json:"title"`
	Text                string                `json:"text"`
	Status              Status                `json:"status"`
	VerificationMethods []VerificationMethod  `json:"verification_methods"`
	ProjectID           domain.ProjectID      `json:"project_id"`
	GroupID             domain.GroupID        `json:"group_id"`
	ChapterID           *domain.ChapterID     `json:"chapter_id,omitempty"`
	ParentIDs           []domain.RequirementID `json:"parent_ids"`
	ChildIDs            []domain.RequirementID `json:"child_ids"`
	CreatedAt           time.Time             `json:"created_at"`
	UpdatedAt           time.Time             `json:"updated_at"`
	CreatedBy           string                `json:"created_by,omitempty"`
	UpdatedBy           string                `json:"updated_by,omitempty"`
}

// NewRequirement constructs a validated requirement with empty edge sets.
func NewRequirement(id domain.RequirementID, reqID string, req CreateRequirementRequest, now time.Time) (*Requirement, error) {
	title := strings.TrimSpace(req.Title)
	text := strings.TrimSpace(req.Text)
	if title == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "title is required")
	}
	if text == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "text is required")
	}
	if req.ProjectID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "project_id is required")
	}
	if req.GroupID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "group_id is required")
	}
	status, err := ParseStatus(req.Status)
	if err != nil {
		return nil, err
	}
	return &Requirement{
		ID:                  id,
		ReqID:               reqID,
		Title:               title,
		Text:                text,
		Status:              status,
		VerificationMethods: NormalizeVerificationMethods(req.VerificationMethods),
		ProjectID:           req.ProjectID,
		GroupID:             req.GroupID,
		ChapterID:           req.ChapterID,
		ParentIDs:           []domain.RequirementID{},
		ChildIDs:            []domain.RequirementID{},
		CreatedAt:           now,
		UpdatedAt:           now,
		CreatedBy:           req.CreatedBy,
	}, nil
}

// HasParent reports whether id is a recorded parent.
func (r *Requirement) HasParent(id domain.RequirementID) bool {
	return slices.Contains(r.ParentIDs, id)
}

// HasChild reports whether id is a recorded child.
func (r *Requirement) HasChild(id domain.RequirementID) bool {
	return slices.Contains(r.ChildIDs, id)
}

// VerificationMethodStrings renders a method set for display and export.
func VerificationMethodStrings(methods []VerificationMethod) []string {
	out := make([]string, len(methods))
	for i, m := range methods {
		out[i] = string(m)
	}
	return out
}

// VerificationMethodStrings renders the method set for display and export.
func (r *Requirement) VerificationMethodStrings() []string {
	return VerificationMethodStrings(r.VerificationMethods)
}

// Clone returns a deep copy so store internals never escape by reference.
func (r *Requirement) Clone() *Requirement {
	cp := *r
	cp.VerificationMethods = slices.Clone(r.VerificationMethods)
	cp.ParentIDs = slices.Clone(r.ParentIDs)
	cp.ChildIDs = slices.Clone(r.ChildIDs)
	if r.ChapterID != nil {
		ch := *r.ChapterID
		cp.ChapterID = &ch
	}
	return &cp
}
