package errors

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jordanlanch/leadcrm/pkg/domain"
	"github.com/jordanlanch/leadcrm/pkg/models"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newContext creates an echo.Context backed by an httptest.NewRecorder.
func newContext(method, path string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func parseBody(t *testing.T, rec *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

// captureLog redirects the standard logger to a buffer for the duration of fn.
func captureLog(fn func()) string {
	var buf bytes.Buffer
	orig := log.Writer()
	log.SetOutput(&buf)
	defer log.SetOutput(orig)
	fn()
	return buf.String()
}

func TestAllErrors_StatusCodes(t *testing.T) {
	tests := []struct {
		name       string
		call       func(echo.Context) error
		wantStatus int
		wantError  string
	}{
		{
			name:       "ValidationError → 400",
			call:       func(c echo.Context) error { return ValidationError(c, errors.New("bad")) },
			wantStatus: http.StatusBadRequest,
			wantError:  "validation_error",
		},
		{
			name:       "FieldError → 400",
			call:       func(c echo.Context) error { return FieldError(c, "phone", "phone is required") },
			wantStatus: http.StatusBadRequest,
			wantError:  "validation_error",
		},
		{
			name:       "DatabaseError → 500",
			call:       func(c echo.Context) error { return DatabaseError(c, errors.New("db")) },
			wantStatus: http.StatusInternalServerError,
			wantError:  "database_error",
		},
		{
			name:       "InternalError → 500",
			call:       func(c echo.Context) error { return InternalError(c, errors.New("oops")) },
			wantStatus: http.StatusInternalServerError,
			wantError:  "internal_error",
		},
		{
			name:       "UnauthorizedError → 401",
			call:       func(c echo.Context) error { return UnauthorizedError(c, "reason") },
			wantStatus: http.StatusUnauthorized,
			wantError:  "unauthorized",
		},
		{
			name:       "ForbiddenError → 403",
			call:       func(c echo.Context) error { return ForbiddenError(c, "reason") },
			wantStatus: http.StatusForbidden,
			wantError:  "forbidden",
		},
		{
			name:       "NotFoundError → 404",
			call:       func(c echo.Context) error { return NotFoundError(c, "lead") },
			wantStatus: http.StatusNotFound,
			wantError:  "not_found",
		},
		{
			name:       "ConflictError → 409",
			call:       func(c echo.Context) error { return ConflictError(c, "exists") },
			wantStatus: http.StatusConflict,
			wantError:  "conflict",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newContext(http.MethodGet, "/api/v1/leads")
			err := tt.call(c)
			assert.NoError(t, err)
			assert.Equal(t, tt.wantStatus, rec.Code)

			resp := parseBody(t, rec)
			assert.Equal(t, tt.wantError, resp.Error)
			assert.NotEmpty(t, resp.Message)
			assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
		})
	}
}

func TestGenericErrors_NoInternalDetails(t *testing.T) {
	tests := []struct {
		name   string
		call   func(echo.Context, string) error
		detail string
	}{
		{"validation", func(c echo.Context, s string) error { return ValidationError(c, errors.New(s)) }, "json: cannot unmarshal number into Go struct field"},
		{"database", func(c echo.Context, s string) error { return DatabaseError(c, errors.New(s)) }, "pq: relation \"leads\" does not exist"},
		{"internal", func(c echo.Context, s string) error { return InternalError(c, errors.New(s)) }, "goroutine 1 [running]: panic"},
		{"unauthorized", func(c echo.Context, s string) error { return UnauthorizedError(c, s) }, "token signature mismatch"},
		{"forbidden", func(c echo.Context, s string) error { return ForbiddenError(c, s) }, "role=agent required=admin"},
		{"not found", func(c echo.Context, s string) error { return NotFoundError(c, s) }, "lead 5c1f not found in leads"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newContext(http.MethodGet, "/api/v1/leads/5c1f")
			_ = captureLog(func() { _ = tt.call(c, tt.detail) })
			assert.NotContains(t, rec.Body.String(), tt.detail)
		})
	}
}

func TestErrors_LogPrefixes(t *testing.T) {
	tests := []struct {
		call   func(echo.Context, error) error
		prefix string
	}{
		{ValidationError, "[VALIDATION ERROR]"},
		{DatabaseError, "[DATABASE ERROR]"},
		{InternalError, "[INTERNAL ERROR]"},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			logged := captureLog(func() {
				c, _ := newContext(http.MethodPost, "/api/v1/leads/bulk")
				_ = tt.call(c, errors.New("row 3: connection reset"))
			})
			assert.Contains(t, logged, tt.prefix)
			assert.Contains(t, logged, "row 3: connection reset")
			assert.Contains(t, logged, "/api/v1/leads/bulk")
		})
	}
}

func TestFieldError_EchoesFieldAndMessage(t *testing.T) {
	c, rec := newContext(http.MethodPatch, "/api/v1/leads/1/status")
	_ = captureLog(func() {
		_ = FieldError(c, "scheduledDate", "scheduled date is required for this status")
	})

	resp := parseBody(t, rec)
	assert.Equal(t, "scheduledDate", resp.Field)
	assert.Equal(t, "scheduled date is required for this status", resp.Message)
}

func TestFromDomain(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
		wantField  string
	}{
		{"field validation", domain.NewFieldError("substatus", "not allowed"), http.StatusBadRequest, "validation_error", "substatus"},
		{"wrapped validation", fmt.Errorf("applying: %w", domain.NewFieldError("limit", "too big")), http.StatusBadRequest, "validation_error", "limit"},
		{"not found", domain.NewNotFoundError("lead"), http.StatusNotFound, "not_found", ""},
		{"duplicate", domain.NewDuplicateError("9876543210"), http.StatusConflict, "conflict", "phone"},
		{"unauthorized", domain.NewUnauthorizedError(), http.StatusUnauthorized, "unauthorized", ""},
		{"forbidden", domain.NewForbiddenError("admins only"), http.StatusForbidden, "forbidden", ""},
		{"internal", domain.NewInternalError(errors.New("boom")), http.StatusInternalServerError, "internal_error", ""},
		{"untyped", errors.New("pq: connection refused"), http.StatusInternalServerError, "database_error", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newContext(http.MethodGet, "/api/v1/leads")
			_ = captureLog(func() {
				assert.NoError(t, FromDomain(c, tt.err))
			})
			assert.Equal(t, tt.wantStatus, rec.Code)
			resp := parseBody(t, rec)
			assert.Equal(t, tt.wantError, resp.Error)
			assert.Equal(t, tt.wantField, resp.Field)
		})
	}
}

func TestFromDomain_DuplicateMessageIsShown(t *testing.T) {
	c, rec := newContext(http.MethodPost, "/api/v1/leads")
	_ = FromDomain(c, domain.NewDuplicateError("9876543210"))

	resp := parseBody(t, rec)
	assert.Contains(t, resp.Message, "9876543210")
}
