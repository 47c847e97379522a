package leads

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jordanlanch/leadcrm/pkg/domain"
	"github.com/jordanlanch/leadcrm/pkg/logger"
	"github.com/jordanlanch/leadcrm/pkg/models"
	"github.com/jordanlanch/leadcrm/pkg/phone"
	"github.com/jordanlanch/leadcrm/pkg/store"
)

// Service handles lead business logic.
type Service struct {
	store     *store.Store
	loc       *time.Location
	validator *validator.Validate
	log       logger.Logger
	now       func() time.Time
}

// NewService creates a new leads service. Filter dates without a zone are
// read in loc.
func NewService(st *store.Store, loc *time.Location, log logger.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		store:     st,
		loc:       loc,
		validator: NewValidator(),
		log:       log,
		now:       time.Now,
	}
}

// NewValidator returns a validator that reports fields by their JSON names.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidationFailure converts the first validator failure into a field error.
// Errors that are not validator failures pass through unchanged.
func ValidationFailure(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	var msg string
	switch fe.Tag() {
	case "required":
		msg = fmt.Sprintf("%s is required", fe.Field())
	case "email":
		msg = fmt.Sprintf("%s is not a valid email address", fe.Field())
	case "max":
		msg = fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "min":
		msg = fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	default:
		msg = fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
	return domain.NewFieldError(fe.Field(), msg)
}

// CreateInput describes how a new lead enters the system.
type CreateInput struct {
	Request models.CreateLeadRequest
	Source  string
	Actor   string
	// Merge updates the contact fields of an existing lead with the same
	// phone instead of failing.
	Merge bool
}

// PrepareLead validates req and turns it into an unsaved lead with a
// normalized phone number.
func (s *Service) PrepareLead(req models.CreateLeadRequest) (*models.Lead, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.InterestedLocation = strings.TrimSpace(req.InterestedLocation)
	if err := s.validator.Struct(req); err != nil {
		return nil, ValidationFailure(err)
	}

	normalized, err := phone.Normalize(req.Phone)
	if err != nil {
		return nil, domain.NewFieldError("phone", err.Error())
	}

	lead := &models.Lead{
		Name:               req.Name,
		Phone:              normalized,
		Email:              strings.ToLower(req.Email),
		InterestedLocation: req.InterestedLocation,
		PropertyID:         trimmedPtr(req.PropertyID),
		AssignedTo:         trimmedPtr(req.AssignedTo),
	}
	return lead, nil
}

// Create validates and stores a new lead. created is false when the lead was
// merged into an existing one.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Lead, bool, error) {
	lead, err := s.PrepareLead(in.Request)
	if err != nil {
		return nil, false, err
	}
	lead.Source = in.Source
	if lead.Source == "" {
		lead.Source = models.SourceManual
	}

	saved, created, err := s.store.Create(ctx, lead, store.CreateOptions{Merge: in.Merge})
	if err != nil {
		return nil, false, err
	}
	if created {
		s.log.Info("lead created", "lead_id", saved.ID, "source", saved.Source, "actor", in.Actor)
	}
	return saved, created, nil
}

// Get returns a lead visible in scope.
func (s *Service) Get(ctx context.Context, scope models.Scope, id string) (*models.Lead, error) {
	lead, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !scope.CanSee(lead.AssignedTo) {
		return nil, domain.NewNotFoundError("lead")
	}
	return lead, nil
}

// Update patches the contact fields of a lead. Phone, status and schedules
// are not editable here.
func (s *Service) Update(ctx context.Context, scope models.Scope, id string, req models.UpdateLeadRequest) (*models.Lead, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, ValidationFailure(err)
	}

	var email string
	if req.Email != nil {
		email = strings.ToLower(strings.TrimSpace(*req.Email))
		if email != "" {
			if err := s.validator.Var(email, "email"); err != nil {
				return nil, domain.NewFieldError("email", "email is not a valid email address")
			}
		}
	}

	return s.store.Update(ctx, id, scope.UserID, func(lead *models.Lead) error {
		if !scope.CanSee(lead.AssignedTo) {
			return domain.NewNotFoundError("lead")
		}
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return domain.NewFieldError("name", "name is required")
			}
			lead.Name = name
		}
		if req.Email != nil {
			lead.Email = email
		}
		if req.InterestedLocation != nil {
			loc := strings.TrimSpace(*req.InterestedLocation)
			if loc == "" {
				return domain.NewFieldError("interestedLocation", "interestedLocation is required")
			}
			lead.InterestedLocation = loc
		}
		return nil
	})
}

// Assign hands a lead to agentID, or unassigns it when agentID is nil or
// blank. Reassigning to the current agent keeps the original assignment time.
func (s *Service) Assign(ctx context.Context, actor, id string, agentID *string) (*models.Lead, error) {
	agent := trimmedPtr(agentID)

	updated, err := s.store.Update(ctx, id, actor, func(lead *models.Lead) error {
		switch {
		case agent == nil:
			lead.AssignedTo = nil
			lead.AssignedAt = nil
		case lead.AssignedTo != nil && *lead.AssignedTo == *agent:
		default:
			now := s.now().UTC()
			lead.AssignedTo = agent
			lead.AssignedAt = &now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("lead assigned", "lead_id", id, "agent_id", deref(agent), "actor", actor)
	return updated, nil
}

// AddNote appends a note to a lead visible in scope.
func (s *Service) AddNote(ctx context.Context, scope models.Scope, id string, req models.AddNoteRequest) (*models.Lead, error) {
	req.Content = strings.TrimSpace(req.Content)
	if err := s.validator.Struct(req); err != nil {
		return nil, ValidationFailure(err)
	}
	return s.store.AppendNote(ctx, id, scope.UserID, req.Content, func(lead *models.Lead) error {
		if !scope.CanSee(lead.AssignedTo) {
			return domain.NewNotFoundError("lead")
		}
		return nil
	})
}

func trimmedPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
