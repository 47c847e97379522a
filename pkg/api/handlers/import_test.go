package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	importpkg "github.com/jordanlanch/leadcrm/pkg/import"
	"github.com/jordanlanch/leadcrm/pkg/models"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func multipartContext(t *testing.T, fields map[string]string, csv string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if csv != "" {
		part, err := w.CreateFormFile("file", "leads.csv")
		require.NoError(t, err)
		_, err = part.Write([]byte(csv))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/leads/bulk", &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	asCaller(c, models.RoleAdmin, "admin-1")
	return c, rec
}

func TestImportHandler_Template(t *testing.T) {
	h := NewImportHandler(nil, importpkg.DefaultCSVConfig(), nil)
	c, rec := newContext(http.MethodGet, "/api/v1/leads/template", "")

	require.NoError(t, h.Template(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "name,phonenumber,location,email\n", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "leads-template.csv")
}

func TestImportHandler_BulkImport(t *testing.T) {
	env := setupEnv(t)
	env.createLead(t, "Existing", "9000000001", nil)
	h := NewImportHandler(importpkg.NewCSVImportService(env.leads, nil), importpkg.DefaultCSVConfig(), nil)

	t.Run("Success - report with duplicates", func(t *testing.T) {
		csv := importpkg.Template() +
			"Asha,9000000002,Whitefield,\n" +
			"Dup,9000000001,Whitefield,\n" +
			"Bad,123,Whitefield,\n"
		c, rec := multipartContext(t, map[string]string{"assignedTo": "agent-1"}, csv)

		require.NoError(t, h.BulkImport(c))
		assert.Equal(t, http.StatusOK, rec.Code)

		res := decode[importpkg.ImportResult](t, rec)
		assert.Equal(t, 3, res.TotalRows)
		assert.Equal(t, 1, res.CreatedCount)
		assert.Equal(t, 2, res.SkippedCount)
		require.Len(t, res.Errors, 2)
		assert.Equal(t, importpkg.ReasonDuplicate, res.Errors[0].Reason)
		assert.Equal(t, importpkg.ReasonValidation, res.Errors[1].Reason)
	})

	t.Run("Missing file", func(t *testing.T) {
		c, rec := multipartContext(t, map[string]string{"mode": "skip"}, "")

		require.NoError(t, h.BulkImport(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "file", decode[models.ErrorResponse](t, rec).Field)
	})

	t.Run("Unknown mode", func(t *testing.T) {
		c, rec := multipartContext(t, map[string]string{"mode": "replace"}, importpkg.Template())

		require.NoError(t, h.BulkImport(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "mode", decode[models.ErrorResponse](t, rec).Field)
	})

	t.Run("Missing column", func(t *testing.T) {
		c, rec := multipartContext(t, nil, "name,location\nA,X\n")

		require.NoError(t, h.BulkImport(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "file", decode[models.ErrorResponse](t, rec).Field)
	})
}
