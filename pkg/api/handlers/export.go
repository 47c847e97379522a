package handlers

import (
	"bytes"
	"context"
	"net/http"

	"github.com/jordanlanch/leadcrm/pkg/api/errors"
	"github.com/jordanlanch/leadcrm/pkg/export"
	"github.com/jordanlanch/leadcrm/pkg/metrics"
	"github.com/jordanlanch/leadcrm/pkg/models"
	"github.com/labstack/echo/v4"
)

// ExportHandler handles export endpoints
type ExportHandler struct {
	exportService *export.Service
	metrics       *metrics.Metrics
}

// NewExportHandler creates a new export handler
func NewExportHandler(exportService *export.Service, m *metrics.Metrics) *ExportHandler {
	return &ExportHandler{
		exportService: exportService,
		metrics:       m,
	}
}

// Export godoc
// @Summary Export leads
// @Description Every lead matching the listing filters as CSV or Excel. Agents only export their own leads.
// @Tags Export
// @Produce octet-stream
// @Param format query string false "csv (default) or excel"
// @Success 200 {file} file
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /leads/export [get]
func (h *ExportHandler) Export(c echo.Context) error {
	scope, ok := callerScope(c)
	if !ok {
		return unauthenticated(c)
	}

	format, err := export.ParseFormat(c.QueryParam("format"))
	if err != nil {
		return errors.FromDomain(c, err)
	}

	var req models.LeadQueryRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), fileTimeout)
	defer cancel()

	// rendered in full first so a failure can still be reported as JSON
	var buf bytes.Buffer
	count, err := h.exportService.ExportAll(ctx, scope, req, format, &buf)
	if err != nil {
		return errors.FromDomain(c, err)
	}
	h.metrics.RecordExport(format, count)

	c.Response().Header().Set("Content-Disposition", "attachment; filename="+h.exportService.Filename(format))
	return c.Blob(http.StatusOK, export.ContentType(format), buf.Bytes())
}
