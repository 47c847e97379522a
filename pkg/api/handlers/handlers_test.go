package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	custommw "github.com/jordanlanch/leadcrm/pkg/api/middleware"
	"github.com/jordanlanch/leadcrm/pkg/auth"
	"github.com/jordanlanch/leadcrm/pkg/database"
	"github.com/jordanlanch/leadcrm/pkg/leadlifecycle"
	"github.com/jordanlanch/leadcrm/pkg/leads"
	"github.com/jordanlanch/leadcrm/pkg/models"
	"github.com/jordanlanch/leadcrm/pkg/store"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	store     *store.Store
	leads     *leads.Service
	lifecycle *leadlifecycle.Service
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	client, err := database.NewSQLiteClient(name)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	st := store.New(client.Driver)
	return &testEnv{
		store:     st,
		leads:     leads.NewService(st, time.UTC, nil),
		lifecycle: leadlifecycle.NewService(st, time.UTC, nil),
	}
}

func (env *testEnv) createLead(t *testing.T, name, phone string, assignedTo *string) *models.Lead {
	t.Helper()
	lead, _, err := env.leads.Create(context.Background(), leads.CreateInput{Request: models.CreateLeadRequest{
		Name: name, Phone: phone, InterestedLocation: "Whitefield", AssignedTo: assignedTo,
	}})
	require.NoError(t, err)
	return lead
}

// newContext builds a request context. A non-empty body is sent as JSON.
func newContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec), rec
}

// asCaller stores claims the way the JWT middleware does.
func asCaller(c echo.Context, role, userID string) {
	c.Set(custommw.ContextUserID, userID)
	c.Set(custommw.ContextUserRole, role)
	c.Set(custommw.ContextClaims, &auth.Claims{UserID: userID, Role: role})
}

func withID(c echo.Context, id string) {
	c.SetParamNames("id")
	c.SetParamValues(id)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func strPtr(s string) *string {
	return &s
}
