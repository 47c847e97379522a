package models

import (
	"time"

	"github.com/jordanlanch/leadcrm/pkg/leadstatus"
)

// Lead sources
const (
	SourceManual  = "manual"
	SourceWebsite = "website"
	SourceImport  = "import"
)

// History entry outcomes
const (
	OutcomePending     = "pending"
	OutcomeCompleted   = "completed"
	OutcomeRescheduled = "rescheduled"
	OutcomeCancelled   = "cancelled"
	OutcomeSuperseded  = "superseded"
)

// Visit entry types
const (
	VisitTypeVisit   = "visit"
	VisitTypeRevisit = "revisit"
)

// Lead is a prospective buyer tracked through the pipeline.
type Lead struct {
	ID                 string               `json:"id"`
	Name               string               `json:"name"`
	Phone              string               `json:"phone"`
	Email              string               `json:"email,omitempty"`
	InterestedLocation string               `json:"interestedLocation"`
	Status             leadstatus.Status    `json:"status"`
	Substatus          leadstatus.Substatus `json:"substatus,omitempty"`
	SiteVisitDate      *time.Time           `json:"siteVisitDate,omitempty"`
	FollowUpDate       *time.Time           `json:"followUpDate,omitempty"`
	Notes              []Note               `json:"notes"`
	FollowUpHistory    []HistoryEntry       `json:"followUpHistory"`
	VisitHistory       []HistoryEntry       `json:"visitHistory"`
	AssignedTo         *string              `json:"assignedTo,omitempty"`
	AssignedAt         *time.Time           `json:"assignedAt,omitempty"`
	Source             string               `json:"source"`
	PropertyID         *string              `json:"propertyId,omitempty"`
	CreatedAt          time.Time            `json:"createdAt"`
	UpdatedAt          time.Time            `json:"updatedAt"`
}

// Note is one free-text remark left on a lead.
type Note struct {
	Content string    `json:"content"`
	AddedAt time.Time `json:"addedAt"`
	AddedBy string    `json:"addedBy"`
}

// HistoryEntry records one scheduled follow-up or site visit.
// Only Completed, Outcome and ClosedAt ever change after the entry is written,
// and only once.
type HistoryEntry struct {
	ScheduledDate *time.Time `json:"scheduledDate,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	AddedAt       time.Time  `json:"addedAt"`
	AddedBy       string     `json:"addedBy"`
	Completed     bool       `json:"completed"`
	Outcome       string     `json:"outcome"`
	ClosedAt      *time.Time `json:"closedAt,omitempty"`
	Type          string     `json:"type,omitempty"`
}

// Pending reports whether the entry is still an open schedule.
func (h HistoryEntry) Pending() bool {
	return !h.Completed
}

// StatusChange is one row of a lead's status audit trail.
type StatusChange struct {
	ID            int64                `json:"id"`
	LeadID        string               `json:"leadId"`
	FromStatus    leadstatus.Status    `json:"fromStatus"`
	FromSubstatus leadstatus.Substatus `json:"fromSubstatus,omitempty"`
	ToStatus      leadstatus.Status    `json:"toStatus"`
	ToSubstatus   leadstatus.Substatus `json:"toSubstatus,omitempty"`
	ChangedBy     string               `json:"changedBy"`
	ChangedAt     time.Time            `json:"changedAt"`
}

// Clone returns a deep copy of the lead so callers can mutate it freely.
func (l *Lead) Clone() *Lead {
	if l == nil {
		return nil
	}
	out := *l
	out.SiteVisitDate = cloneTime(l.SiteVisitDate)
	out.FollowUpDate = cloneTime(l.FollowUpDate)
	out.AssignedAt = cloneTime(l.AssignedAt)
	out.AssignedTo = cloneString(l.AssignedTo)
	out.PropertyID = cloneString(l.PropertyID)
	out.Notes = append([]Note{}, l.Notes...)
	out.FollowUpHistory = cloneHistory(l.FollowUpHistory)
	out.VisitHistory = cloneHistory(l.VisitHistory)
	return &out
}

// LastNote returns the most recent note content, or "".
func (l *Lead) LastNote() string {
	if len(l.Notes) == 0 {
		return ""
	}
	return l.Notes[len(l.Notes)-1].Content
}

func cloneHistory(in []HistoryEntry) []HistoryEntry {
	out := make([]HistoryEntry, len(in))
	for i, h := range in {
		h.ScheduledDate = cloneTime(h.ScheduledDate)
		h.ClosedAt = cloneTime(h.ClosedAt)
		out[i] = h
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// CreateLeadRequest represents a manual or public lead submission
type CreateLeadRequest struct {
	Name               string  `json:"name" validate:"required,max=200"`
	Phone              string  `json:"phone" validate:"required"`
	Email              string  `json:"email" validate:"omitempty,email,max=254"`
	InterestedLocation string  `json:"interestedLocation" validate:"required,max=200"`
	AssignedTo         *string `json:"assignedTo,omitempty" validate:"omitempty,min=1"`
	PropertyID         *string `json:"propertyId,omitempty" validate:"omitempty,max=100"`
}

// UpdateLeadRequest patches contact fields. Nil fields are left unchanged.
type UpdateLeadRequest struct {
	Name               *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Email              *string `json:"email,omitempty" validate:"omitempty,max=254"`
	InterestedLocation *string `json:"interestedLocation,omitempty" validate:"omitempty,min=1,max=200"`
}

// AssignLeadRequest assigns a lead to an agent; a null agentId unassigns it.
type AssignLeadRequest struct {
	AgentID *string `json:"agentId"`
}

// StatusTransitionRequest represents a status change submitted by an agent or admin
type StatusTransitionRequest struct {
	Status        string `json:"status" validate:"required"`
	Substatus     string `json:"substatus,omitempty"`
	ScheduledDate string `json:"scheduledDate,omitempty"`
	Note          string `json:"note,omitempty" validate:"max=2000"`
}

// AddNoteRequest represents a new note on a lead
type AddNoteRequest struct {
	Content string `json:"content" validate:"required,max=2000"`
}

// LeadListResponse is the paginated listing envelope shared by admin and agent views.
type LeadListResponse struct {
	Success    bool   `json:"success"`
	Data       []Lead `json:"data"`
	TotalPages int    `json:"totalPages"`
	TotalCount int    `json:"totalCount"`
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
}

// LeadResponse wraps a single lead.
type LeadResponse struct {
	Success bool  `json:"success"`
	Data    *Lead `json:"data"`
}

// StatusCountsResponse carries per-status counts.
type StatusCountsResponse struct {
	Success bool           `json:"success"`
	Data    map[string]int `json:"data"`
	Total   int            `json:"total"`
}

// LeadQueryRequest carries the listing filters, sort and page shared by the
// admin view, the agent view and exports.
type LeadQueryRequest struct {
	Page       int    `query:"page"`
	Limit      int    `query:"limit"`
	SortBy     string `query:"sortBy"`
	SortOrder  string `query:"sortOrder"`
	Search     string `query:"search"`
	Status     string `query:"status"`
	DateFrom   string `query:"dateFrom"`
	DateTo     string `query:"dateTo"`
	AssignedTo string `query:"assignedTo"`
}
