package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics. A nil *Metrics records nothing.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Business metrics
	LeadsCreated      *prometheus.CounterVec
	StatusTransitions *prometheus.CounterVec
	LeadQueries       *prometheus.CounterVec
	ImportRows        *prometheus.CounterVec
	ExportsCreated    *prometheus.CounterVec
	ExportedLeads     prometheus.Counter

	// Database metrics
	DBConnections prometheus.Gauge
}

// New creates a Metrics instance registered with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		HTTPResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 5000, 10000, 50000, 100000, 500000, 1000000},
			},
			[]string{"method", "path"},
		),

		LeadsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leads_created_total",
				Help: "Total number of leads created",
			},
			[]string{"source"}, // manual, website, import
		),
		StatusTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lead_status_transitions_total",
				Help: "Total number of applied status transitions",
			},
			[]string{"status"},
		),
		LeadQueries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lead_queries_total",
				Help: "Total number of lead list queries",
			},
			[]string{"view"}, // admin, agent
		),
		ImportRows: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lead_import_rows_total",
				Help: "Imported CSV rows by outcome",
			},
			[]string{"outcome"}, // created, skipped, not_processed
		),
		ExportsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "exports_created_total",
				Help: "Total number of exports created",
			},
			[]string{"format"},
		),
		ExportedLeads: factory.NewCounter(prometheus.CounterOpts{
			Name: "exported_leads_total",
			Help: "Total number of leads written to exports",
		}),

		DBConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "db_connections_open",
			Help: "Number of open database connections",
		}),
	}
}

// Middleware creates an Echo middleware for Prometheus metrics
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			start := time.Now()
			req := c.Request()

			err := next(c)
			if err != nil {
				// let echo write the error response so the status is final
				c.Error(err)
			}

			// route pattern, not the raw path
			path := c.Path()
			status := strconv.Itoa(c.Response().Status)
			m.HTTPRequestsTotal.WithLabelValues(req.Method, path, status).Inc()
			m.HTTPRequestDuration.WithLabelValues(req.Method, path, status).Observe(time.Since(start).Seconds())
			m.HTTPResponseSize.WithLabelValues(req.Method, path).Observe(float64(c.Response().Size))

			return nil
		}
	}
}

// RecordLeadCreated increments the created counter for source
func (m *Metrics) RecordLeadCreated(source string) {
	if m == nil {
		return
	}
	m.LeadsCreated.WithLabelValues(source).Inc()
}

// RecordStatusTransition counts a transition into status
func (m *Metrics) RecordStatusTransition(status string) {
	if m == nil {
		return
	}
	m.StatusTransitions.WithLabelValues(status).Inc()
}

// RecordLeadQuery counts a list query for view
func (m *Metrics) RecordLeadQuery(view string) {
	if m == nil {
		return
	}
	m.LeadQueries.WithLabelValues(view).Inc()
}

// RecordImport adds one import's row outcomes
func (m *Metrics) RecordImport(created, skipped, notProcessed int) {
	if m == nil {
		return
	}
	m.ImportRows.WithLabelValues("created").Add(float64(created))
	m.ImportRows.WithLabelValues("skipped").Add(float64(skipped))
	m.ImportRows.WithLabelValues("not_processed").Add(float64(notProcessed))
	m.LeadsCreated.WithLabelValues("import").Add(float64(created))
}

// RecordExport counts an export and the leads it carried
func (m *Metrics) RecordExport(format string, count int) {
	if m == nil {
		return
	}
	m.ExportsCreated.WithLabelValues(format).Inc()
	m.ExportedLeads.Add(float64(count))
}

// UpdateDBConnections sets the open database connections gauge
func (m *Metrics) UpdateDBConnections(count int) {
	if m == nil {
		return
	}
	m.DBConnections.Set(float64(count))
}
