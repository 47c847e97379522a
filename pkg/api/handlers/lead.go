package handlers

import (
	"context"
	"net/http"

	"github.com/jordanlanch/leadcrm/pkg/api/errors"
	"github.com/jordanlanch/leadcrm/pkg/leads"
	"github.com/jordanlanch/leadcrm/pkg/metrics"
	"github.com/jordanlanch/leadcrm/pkg/models"
	"github.com/labstack/echo/v4"
)

// LeadHandler handles lead endpoints
type LeadHandler struct {
	leadService *leads.Service
	metrics     *metrics.Metrics
}

// NewLeadHandler creates a new lead handler
func NewLeadHandler(leadService *leads.Service, m *metrics.Metrics) *LeadHandler {
	return &LeadHandler{
		leadService: leadService,
		metrics:     m,
	}
}

// List godoc
// @Summary List leads
// @Description Paginated, filtered and sorted listing of every lead. Admin only.
// @Tags Leads
// @Produce json
// @Security BearerAuth
// @Param page query integer false "Page number" default(1)
// @Param limit query integer false "Results per page" default(30)
// @Param sortBy query string false "createdAt, name or interestedLocation"
// @Param sortOrder query string false "asc or desc"
// @Param search query string false "Matches name, phone, email or location"
// @Param status query string false "Status filter, or all"
// @Param dateFrom query string false "Created at or after"
// @Param dateTo query string false "Created at or before"
// @Param assignedTo query string false "Agent id, or unassigned"
// @Success 200 {object} models.LeadListResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /leads [get]
func (h *LeadHandler) List(c echo.Context) error {
	scope, ok := callerScope(c)
	if !ok {
		return unauthenticated(c)
	}
	return h.list(c, scope, "admin")
}

// ListAssigned godoc
// @Summary List the caller's leads
// @Description Same filters as GET /leads with assignedTo forced to the caller.
// @Tags Leads
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.LeadListResponse
// @Router /agent/leads [get]
func (h *LeadHandler) ListAssigned(c echo.Context) error {
	scope, ok := callerScope(c)
	if !ok {
		return unauthenticated(c)
	}
	return h.list(c, models.AgentScope(scope.UserID), "agent")
}

func (h *LeadHandler) list(c echo.Context, scope models.Scope, view string) error {
	var req models.LeadQueryRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), queryTimeout)
	defer cancel()

	results, err := h.leadService.Query(ctx, scope, req)
	if err != nil {
		return errors.FromDomain(c, err)
	}
	h.metrics.RecordLeadQuery(view)

	return c.JSON(http.StatusOK, results)
}

// Create godoc
// @Summary Create a lead
// @Description Manual lead entry. The phone number must not belong to another lead.
// @Tags Leads
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CreateLeadRequest true "Lead"
// @Success 201 {object} models.LeadResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /leads [post]
func (h *LeadHandler) Create(c echo.Context) error {
	scope, ok := callerScope(c)
	if !ok {
		return unauthenticated(c)
	}

	var req models.CreateLeadRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError(c, err)
	}

	return h.create(c, leads.CreateInput{Request: req, Source: models.SourceManual, Actor: scope.UserID})
}

// CreatePublic godoc
// @Summary Submit the public lead-capture form
// @Description Unauthenticated and rate limited. Assignment is ignored.
// @Tags Leads
// @Accept json
// @Produce json
// @Param request body models.CreateLeadRequest true "Lead"
// @Success 201 {object} models.LeadResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Router /public/leads [post]
func (h *LeadHandler) CreatePublic(c echo.Context) error {
	var req models.CreateLeadRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError(c, err)
	}
	req.AssignedTo = nil

	return h.create(c, leads.CreateInput{Request: req, Source: models.SourceWebsite, Actor: "public"})
}

func (h *LeadHandler) create(c echo.Context, in leads.CreateInput) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), singleLeadTimeout)
	defer cancel()

	lead, _, err := h.leadService.Create(ctx, in)
	if err != nil {
		return errors.FromDomain(c, err)
	}
	h.metrics.RecordLeadCreated(lead.Source)

	return c.JSON(http.StatusCreated, models.LeadResponse{Success: true, Data: lead})
}

// GetByID godoc
// @Summary Get lead by ID
// @Description Agents only see leads assigned to them.
// @Tags Leads
// @Produce json
// @Security BearerAuth
// @Param id path string true "Lead ID"
// @Success 200 {object} models.LeadResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /leads/{id} [get]
func (h *LeadHandler) GetByID(c echo.Context) error {
	scope, ok := callerScope(c)
	if !ok {
		return unauthenticated(c)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), singleLeadTimeout)
	defer cancel()

	lead, err := h.leadService.Get(ctx, scope, c.Param("id"))
	if err != nil {
		return errors.FromDomain(c, err)
	}

	return c.JSON(http.StatusOK, models.LeadResponse{Success: true, Data: lead})
}

// Update godoc
// @Summary Edit lead contact fields
// @Tags Leads
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Lead ID"
// @Param request body models.UpdateLeadRequest true "Fields to change"
// @Success 200 {object} models.LeadResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /leads/{id} [patch]
func (h *LeadHandler) Update(c echo.Context) error {
	scope, ok := callerScope(c)
	if !ok {
		return unauthenticated(c)
	}

	var req models.UpdateLeadRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), singleLeadTimeout)
	defer cancel()

	lead, err := h.leadService.Update(ctx, scope, c.Param("id"), req)
	if err != nil {
		return errors.FromDomain(c, err)
	}

	return c.JSON(http.StatusOK, models.LeadResponse{Success: true, Data: lead})
}

// Assign godoc
// @Summary Assign a lead to an agent
// @Description A null agentId unassigns the lead.
// @Tags Leads
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Lead ID"
// @Param request body models.AssignLeadRequest true "Agent"
// @Success 200 {object} models.LeadResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /leads/{id}/assign [patch]
func (h *LeadHandler) Assign(c echo.Context) error {
	scope, ok := callerScope(c)
	if !ok {
		return unauthenticated(c)
	}

	var req models.AssignLeadRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), singleLeadTimeout)
	defer cancel()

	lead, err := h.leadService.Assign(ctx, scope.UserID, c.Param("id"), req.AgentID)
	if err != nil {
		return errors.FromDomain(c, err)
	}

	return c.JSON(http.StatusOK, models.LeadResponse{Success: true, Data: lead})
}

// AddNote godoc
// @Summary Add a note to a lead
// @Tags Leads
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Lead ID"
// @Param request body models.AddNoteRequest true "Note"
// @Success 201 {object} models.LeadResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /leads/{id}/notes [post]
func (h *LeadHandler) AddNote(c echo.Context) error {
	scope, ok := callerScope(c)
	if !ok {
		return unauthenticated(c)
	}

	var req models.AddNoteRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), singleLeadTimeout)
	defer cancel()

	lead, err := h.leadService.AddNote(ctx, scope, c.Param("id"), req)
	if err != nil {
		return errors.FromDomain(c, err)
	}

	return c.JSON(http.StatusCreated, models.LeadResponse{Success: true, Data: lead})
}
