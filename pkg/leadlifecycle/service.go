package leadlifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jordanlanch/leadcrm/pkg/domain"
	"github.com/jordanlanch/leadcrm/pkg/leadstatus"
	"github.com/jordanlanch/leadcrm/pkg/logger"
	"github.com/jordanlanch/leadcrm/pkg/models"
	"github.com/jordanlanch/leadcrm/pkg/store"
)

// Service handles lead lifecycle operations.
type Service struct {
	store *store.Store
	loc   *time.Location
	log   logger.Logger
}

// NewService creates a new lead lifecycle service. Zoneless scheduled dates
// are interpreted in loc.
func NewService(st *store.Store, loc *time.Location, log logger.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{store: st, loc: loc, log: log}
}

// TransitionRequest is a validated-at-apply status change.
type TransitionRequest struct {
	Status        string
	Substatus     string
	ScheduledDate string
	Note          string
}

// FromRequest converts the HTTP payload into a TransitionRequest.
func FromRequest(req models.StatusTransitionRequest) TransitionRequest {
	return TransitionRequest{
		Status:        req.Status,
		Substatus:     req.Substatus,
		ScheduledDate: req.ScheduledDate,
		Note:          req.Note,
	}
}

// transition is a request that passed validation.
type transition struct {
	status    leadstatus.Status
	substatus leadstatus.Substatus
	kind      leadstatus.ScheduleKind
	date      *time.Time
	note      string
}

// ApplyTransition validates req and applies it to the lead atomically.
// Validation failures are reported before anything is written. An agent
// transitioning a lead that is not assigned to them gets NotFound.
func (s *Service) ApplyTransition(ctx context.Context, scope models.Scope, leadID string, req TransitionRequest) (*models.Lead, error) {
	tr, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	actor := scope.UserID
	updated, err := s.store.Update(ctx, leadID, actor, func(lead *models.Lead) error {
		if !scope.CanSee(lead.AssignedTo) {
			return domain.NewNotFoundError("lead")
		}
		apply(lead, tr, actor)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("lead status changed",
		"lead_id", leadID,
		"status", string(tr.status),
		"substatus", string(tr.substatus),
		"actor", actor,
	)
	return updated, nil
}

func (s *Service) validate(req TransitionRequest) (*transition, error) {
	status, ok := leadstatus.ParseStatus(strings.TrimSpace(req.Status))
	if !ok {
		return nil, domain.NewFieldError("status", fmt.Sprintf("unknown status %q", req.Status))
	}
	sub := leadstatus.Substatus(strings.TrimSpace(req.Substatus))
	if !status.Allows(sub) {
		return nil, domain.NewFieldError("substatus", fmt.Sprintf("substatus %q is not valid for status %q", sub, status))
	}

	kind, required := leadstatus.Schedule(status, sub)

	var date *time.Time
	if raw := strings.TrimSpace(req.ScheduledDate); raw != "" {
		if kind == leadstatus.ScheduleNone {
			return nil, domain.NewFieldError("scheduledDate", fmt.Sprintf("status %q does not take a scheduled date", status))
		}
		parsed, err := ParseScheduledDate(raw, s.loc)
		if err != nil {
			return nil, domain.NewFieldError("scheduledDate", err.Error())
		}
		date = &parsed
	}
	if required && date == nil {
		return nil, domain.NewFieldError("scheduledDate", "scheduled date is required for this status")
	}

	return &transition{
		status:    status,
		substatus: sub,
		kind:      kind,
		date:      date,
		note:      strings.TrimSpace(req.Note),
	}, nil
}

// apply mutates lead according to tr. It only appends to history and closes
// pending entries, never rewrites them.
func apply(lead *models.Lead, tr *transition, actor string) {
	switch {
	case tr.status.Terminal():
		closePending(lead.FollowUpHistory, models.OutcomeCancelled)
		closePending(lead.VisitHistory, models.OutcomeCancelled)
		lead.FollowUpDate = nil
		lead.SiteVisitDate = nil
	case tr.status == leadstatus.SiteVisitDone:
		closePending(lead.VisitHistory, models.OutcomeCompleted)
		lead.SiteVisitDate = nil
	}

	switch tr.kind {
	case leadstatus.ScheduleFollowUp:
		closePending(lead.FollowUpHistory, models.OutcomeRescheduled)
		if closePending(lead.VisitHistory, models.OutcomeSuperseded) {
			lead.SiteVisitDate = nil
		}
		lead.FollowUpDate = tr.date
		lead.FollowUpHistory = append(lead.FollowUpHistory, models.HistoryEntry{
			ScheduledDate: tr.date,
			Notes:         tr.note,
			AddedBy:       actor,
			Outcome:       models.OutcomePending,
		})

	case leadstatus.ScheduleVisit, leadstatus.ScheduleRevisit:
		if tr.date == nil {
			// revisit intent without a date schedules nothing yet
			break
		}
		closePending(lead.VisitHistory, models.OutcomeRescheduled)
		if closePending(lead.FollowUpHistory, models.OutcomeSuperseded) {
			lead.FollowUpDate = nil
		}
		visitType := models.VisitTypeVisit
		if tr.kind == leadstatus.ScheduleRevisit {
			visitType = models.VisitTypeRevisit
		}
		lead.SiteVisitDate = tr.date
		lead.VisitHistory = append(lead.VisitHistory, models.HistoryEntry{
			ScheduledDate: tr.date,
			Notes:         tr.note,
			AddedBy:       actor,
			Outcome:       models.OutcomePending,
			Type:          visitType,
		})
	}

	lead.Status = tr.status
	lead.Substatus = tr.substatus

	if tr.note != "" {
		lead.Notes = append(lead.Notes, models.Note{Content: tr.note, AddedBy: actor})
	}
}

// closePending marks every open entry with outcome and reports whether any was open.
func closePending(entries []models.HistoryEntry, outcome string) bool {
	closed := false
	for i := range entries {
		if entries[i].Pending() {
			entries[i].Completed = true
			entries[i].Outcome = outcome
			closed = true
		}
	}
	return closed
}

// StatusHistory returns the status audit trail of a lead visible in scope.
func (s *Service) StatusHistory(ctx context.Context, scope models.Scope, leadID string) ([]models.StatusChange, error) {
	lead, err := s.store.Get(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if !scope.CanSee(lead.AssignedTo) {
		return nil, domain.NewNotFoundError("lead")
	}
	return s.store.StatusHistory(ctx, leadID)
}

// StatusCounts returns per-status lead counts visible in scope.
func (s *Service) StatusCounts(ctx context.Context, scope models.Scope) (map[leadstatus.Status]int, error) {
	return s.store.StatusCounts(ctx, store.ScopePredicate(scope))
}

// Catalog returns the status table with display labels.
func (s *Service) Catalog() []leadstatus.CatalogEntry {
	return leadstatus.Catalog()
}
