package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/jordanlanch/leadcrm/pkg/api/errors"
	importpkg "github.com/jordanlanch/leadcrm/pkg/import"
	"github.com/jordanlanch/leadcrm/pkg/metrics"
	"github.com/labstack/echo/v4"
)

// MaxUploadBytes caps the size of an uploaded CSV.
const MaxUploadBytes = 5 << 20

// ImportHandler handles the CSV template and bulk upload endpoints.
type ImportHandler struct {
	importer *importpkg.CSVImportService
	config   importpkg.CSVConfig
	metrics  *metrics.Metrics
}

// NewImportHandler creates a new import handler. cfg supplies the row limit
// and batch size; mode and assignee come from each request.
func NewImportHandler(importer *importpkg.CSVImportService, cfg importpkg.CSVConfig, m *metrics.Metrics) *ImportHandler {
	return &ImportHandler{
		importer: importer,
		config:   cfg,
		metrics:  m,
	}
}

// Template godoc
// @Summary Download the CSV import template
// @Tags Import
// @Produce text/csv
// @Success 200 {string} string "name,phonenumber,location,email"
// @Security BearerAuth
// @Router /leads/template [get]
func (h *ImportHandler) Template(c echo.Context) error {
	c.Response().Header().Set("Content-Disposition", "attachment; filename=leads-template.csv")
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", []byte(importpkg.Template()))
}

// BulkImport godoc
// @Summary Import leads from CSV
// @Description Row-level failures are reported in the result, never as an error response
// @Tags Import
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV file"
// @Param mode formData string false "skip (default) or merge"
// @Param assignedTo formData string false "Agent to assign every imported lead to"
// @Success 200 {object} importpkg.ImportResult
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /leads/bulk [post]
func (h *ImportHandler) BulkImport(c echo.Context) error {
	scope, ok := callerScope(c)
	if !ok {
		return unauthenticated(c)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return errors.FieldError(c, "file", "a CSV file is required")
	}
	if fileHeader.Size > MaxUploadBytes {
		return errors.FieldError(c, "file", "file is too large")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return errors.InternalError(c, err)
	}
	defer file.Close()

	cfg := h.config
	cfg.Actor = scope.UserID
	if mode := strings.TrimSpace(c.FormValue("mode")); mode != "" {
		cfg.Mode = mode
	}
	if agent := strings.TrimSpace(c.FormValue("assignedTo")); agent != "" {
		cfg.AssignedTo = &agent
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), fileTimeout)
	defer cancel()

	result, err := h.importer.ImportFromCSV(ctx, file, cfg)
	if err != nil {
		return errors.FromDomain(c, err)
	}
	h.metrics.RecordImport(result.CreatedCount, result.SkippedCount, result.NotProcessedCount)

	return c.JSON(http.StatusOK, result)
}
