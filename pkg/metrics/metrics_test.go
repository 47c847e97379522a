package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_RecordsRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/api/v1/leads/:id", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/api/v1/fail", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusTeapot, "nope")
	})

	for _, path := range []string{"/api/v1/leads/a", "/api/v1/leads/b", "/api/v1/fail"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/leads/:id", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/fail", "418")))
}

func TestRecorders(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordLeadCreated("website")
	m.RecordStatusTransition("interested")
	m.RecordLeadQuery("agent")
	m.RecordImport(3, 2, 1)
	m.RecordExport("csv", 40)
	m.UpdateDBConnections(4)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.LeadsCreated.WithLabelValues("website")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.LeadsCreated.WithLabelValues("import")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StatusTransitions.WithLabelValues("interested")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ImportRows.WithLabelValues("skipped")))
	assert.Equal(t, 40.0, testutil.ToFloat64(m.ExportedLeads))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.DBConnections))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordLeadCreated("manual")
		m.RecordStatusTransition("new")
		m.RecordLeadQuery("admin")
		m.RecordImport(1, 1, 1)
		m.RecordExport("excel", 1)
		m.UpdateDBConnections(1)
	})

	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	err := m.Middleware()(func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })(c)
	assert.NoError(t, err)
}
