package handlers

import (
	"context"
	"net/http"

	"github.com/jordanlanch/leadcrm/pkg/api/errors"
	"github.com/jordanlanch/leadcrm/pkg/leadlifecycle"
	"github.com/jordanlanch/leadcrm/pkg/metrics"
	"github.com/jordanlanch/leadcrm/pkg/models"
	"github.com/labstack/echo/v4"
)

// LeadLifecycleHandler handles lead status lifecycle endpoints.
type LeadLifecycleHandler struct {
	service *leadlifecycle.Service
	metrics *metrics.Metrics
}

// NewLeadLifecycleHandler creates a new lead lifecycle handler.
func NewLeadLifecycleHandler(service *leadlifecycle.Service, m *metrics.Metrics) *LeadLifecycleHandler {
	return &LeadLifecycleHandler{
		service: service,
		metrics: m,
	}
}

// UpdateLeadStatus godoc
// @Summary Update lead status
// @Description Moves a lead to a status and substatus, scheduling a follow-up or site visit when the pair calls for one
// @Tags Leads
// @Accept json
// @Produce json
// @Param id path string true "Lead ID"
// @Param request body models.StatusTransitionRequest true "Status update request"
// @Success 200 {object} models.LeadResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /leads/{id}/status [patch]
func (h *LeadLifecycleHandler) UpdateLeadStatus(c echo.Context) error {
	scope, ok := callerScope(c)
	if !ok {
		return unauthenticated(c)
	}

	var req models.StatusTransitionRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), singleLeadTimeout)
	defer cancel()

	lead, err := h.service.ApplyTransition(ctx, scope, c.Param("id"), leadlifecycle.FromRequest(req))
	if err != nil {
		return errors.FromDomain(c, err)
	}
	h.metrics.RecordStatusTransition(string(lead.Status))

	return c.JSON(http.StatusOK, models.LeadResponse{Success: true, Data: lead})
}

// GetLeadStatusHistory godoc
// @Summary Get lead status history
// @Description Get complete history of status changes for a lead
// @Tags Leads
// @Produce json
// @Param id path string true "Lead ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /leads/{id}/status-history [get]
func (h *LeadLifecycleHandler) GetLeadStatusHistory(c echo.Context) error {
	scope, ok := callerScope(c)
	if !ok {
		return unauthenticated(c)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), singleLeadTimeout)
	defer cancel()

	history, err := h.service.StatusHistory(ctx, scope, c.Param("id"))
	if err != nil {
		return errors.FromDomain(c, err)
	}
	if history == nil {
		history = []models.StatusChange{}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    history,
	})
}

// GetStatusCounts godoc
// @Summary Count leads per status
// @Description Agents only count leads assigned to them
// @Tags Leads
// @Produce json
// @Success 200 {object} models.StatusCountsResponse
// @Failure 500 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /leads/status-counts [get]
func (h *LeadLifecycleHandler) GetStatusCounts(c echo.Context) error {
	scope, ok := callerScope(c)
	if !ok {
		return unauthenticated(c)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), queryTimeout)
	defer cancel()

	counts, err := h.service.StatusCounts(ctx, scope)
	if err != nil {
		return errors.FromDomain(c, err)
	}

	resp := models.StatusCountsResponse{Success: true, Data: make(map[string]int, len(counts))}
	for status, n := range counts {
		resp.Data[string(status)] = n
		resp.Total += n
	}

	return c.JSON(http.StatusOK, resp)
}

// GetStatuses godoc
// @Summary List statuses
// @Description Status and substatus catalog with display labels
// @Tags Leads
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /leads/statuses [get]
func (h *LeadLifecycleHandler) GetStatuses(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    h.service.Catalog(),
	})
}
