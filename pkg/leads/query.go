package leads

import (
	"context"
	"fmt"
	"strings"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/jordanlanch/leadcrm/pkg/domain"
	"github.com/jordanlanch/leadcrm/pkg/leadlifecycle"
	"github.com/jordanlanch/leadcrm/pkg/leadstatus"
	"github.com/jordanlanch/leadcrm/pkg/models"
	"github.com/jordanlanch/leadcrm/pkg/store"
)

// Paging defaults
const (
	DefaultPageSize = 30
	MaxPageSize     = 100
)

// UnassignedFilter selects leads without an agent.
const UnassignedFilter = "unassigned"

var sortColumns = map[string]string{
	"createdAt":          "created_at",
	"name":               "name",
	"interestedLocation": "interested_location",
}

// plan is a validated query.
type plan struct {
	where *entsql.Predicate
	order []string
	page  int
	limit int
}

// Query returns one page of the leads visible in scope that match req.
// A page past the end is clamped to the last page.
func (s *Service) Query(ctx context.Context, scope models.Scope, req models.LeadQueryRequest) (*models.LeadListResponse, error) {
	p, err := s.plan(scope, req)
	if err != nil {
		return nil, err
	}

	var (
		total, totalPages, page int
		found                   []*models.Lead
	)
	err = s.store.Snapshot(ctx, func(v store.View) error {
		var err error
		total, err = v.Count(ctx, p.where)
		if err != nil {
			return fmt.Errorf("failed to count leads: %w", err)
		}

		totalPages = (total + p.limit - 1) / p.limit
		page = p.page
		switch {
		case totalPages == 0:
			page = 1
		case page > totalPages:
			page = totalPages
		}

		found, err = v.Find(ctx, store.FindSpec{
			Where:   p.where,
			OrderBy: p.order,
			Limit:   p.limit,
			Offset:  (page - 1) * p.limit,
		})
		if err != nil {
			return fmt.Errorf("failed to query leads: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	data := make([]models.Lead, len(found))
	for i, l := range found {
		data[i] = *l
	}

	return &models.LeadListResponse{
		Success:    true,
		Data:       data,
		TotalPages: totalPages,
		TotalCount: total,
		Page:       page,
		Limit:      p.limit,
	}, nil
}

// All returns every lead visible in scope that matches the filters and sort
// of req, ignoring paging.
func (s *Service) All(ctx context.Context, scope models.Scope, req models.LeadQueryRequest) ([]*models.Lead, error) {
	req.Page, req.Limit = 0, 0
	p, err := s.plan(scope, req)
	if err != nil {
		return nil, err
	}
	found, err := s.store.Find(ctx, store.FindSpec{Where: p.where, OrderBy: p.order})
	if err != nil {
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}
	return found, nil
}

func (s *Service) plan(scope models.Scope, req models.LeadQueryRequest) (*plan, error) {
	where, err := s.predicate(scope, req)
	if err != nil {
		return nil, err
	}
	order, err := orderBy(req.SortBy, req.SortOrder)
	if err != nil {
		return nil, err
	}

	limit := req.Limit
	switch {
	case limit == 0:
		limit = DefaultPageSize
	case limit < 0 || limit > MaxPageSize:
		return nil, domain.NewFieldError("limit", fmt.Sprintf("limit must be between 1 and %d", MaxPageSize))
	}
	page := req.Page
	if page < 1 {
		page = 1
	}

	return &plan{where: where, order: order, page: page, limit: limit}, nil
}

// predicate builds the WHERE clause. Agents are always restricted to their
// own leads whatever assignedTo they send.
func (s *Service) predicate(scope models.Scope, req models.LeadQueryRequest) (*entsql.Predicate, error) {
	var preds []*entsql.Predicate

	if search := strings.TrimSpace(req.Search); search != "" {
		preds = append(preds, entsql.Or(
			entsql.ContainsFold("name", search),
			entsql.ContainsFold("phone", search),
			entsql.ContainsFold("email", search),
			entsql.ContainsFold("interested_location", search),
		))
	}

	if status := strings.TrimSpace(req.Status); status != "" && !strings.EqualFold(status, "all") {
		st, ok := leadstatus.ParseStatus(status)
		if !ok {
			return nil, domain.NewFieldError("status", fmt.Sprintf("unknown status %q", status))
		}
		preds = append(preds, entsql.EQ("status", string(st)))
	}

	if raw := strings.TrimSpace(req.DateFrom); raw != "" {
		from, _, err := s.parseDateBound(raw)
		if err != nil {
			return nil, domain.NewFieldError("dateFrom", err.Error())
		}
		preds = append(preds, entsql.GTE("created_at", from))
	}

	if raw := strings.TrimSpace(req.DateTo); raw != "" {
		to, dateOnly, err := s.parseDateBound(raw)
		if err != nil {
			return nil, domain.NewFieldError("dateTo", err.Error())
		}
		if dateOnly {
			// the whole day is included
			preds = append(preds, entsql.LT("created_at", to.AddDate(0, 0, 1)))
		} else {
			preds = append(preds, entsql.LTE("created_at", to))
		}
	}

	if scope.IsAdmin() {
		switch assignee := strings.TrimSpace(req.AssignedTo); {
		case assignee == "":
		case strings.EqualFold(assignee, UnassignedFilter):
			preds = append(preds, entsql.IsNull("assigned_to"))
		default:
			preds = append(preds, entsql.EQ("assigned_to", assignee))
		}
	} else {
		preds = append(preds, store.ScopePredicate(scope))
	}

	switch len(preds) {
	case 0:
		return nil, nil
	case 1:
		return preds[0], nil
	default:
		return entsql.And(preds...), nil
	}
}

// parseDateBound parses a filter date and reports whether it was date-only.
func (s *Service) parseDateBound(raw string) (time.Time, bool, error) {
	if t, err := time.ParseInLocation("2006-01-02", raw, s.loc); err == nil {
		return t.UTC(), true, nil
	}
	t, err := leadlifecycle.ParseScheduledDate(raw, s.loc)
	return t, false, err
}

func orderBy(sortBy, sortOrder string) ([]string, error) {
	if sortBy == "" {
		sortBy = "createdAt"
	}
	col, ok := sortColumns[sortBy]
	if !ok {
		return nil, domain.NewFieldError("sortBy", fmt.Sprintf("cannot sort by %q", sortBy))
	}

	var term string
	switch strings.ToLower(sortOrder) {
	case "", "desc":
		term = entsql.Desc(col)
	case "asc":
		term = entsql.Asc(col)
	default:
		return nil, domain.NewFieldError("sortOrder", fmt.Sprintf("sort order must be asc or desc, got %q", sortOrder))
	}
	// id breaks ties so pages never overlap
	return []string{term, entsql.Asc("id")}, nil
}
