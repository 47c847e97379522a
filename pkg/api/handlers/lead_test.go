package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/jordanlanch/leadcrm/pkg/metrics"
	"github.com/jordanlanch/leadcrm/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeadHandler_Create(t *testing.T) {
	env := setupEnv(t)
	h := NewLeadHandler(env.leads, nil)

	t.Run("Success", func(t *testing.T) {
		c, rec := newContext(http.MethodPost, "/api/v1/leads",
			`{"name":"Asha","phone":"+91 98765 43210","interestedLocation":"Whitefield","email":"Asha@Example.com"}`)
		asCaller(c, models.RoleAdmin, "admin-1")

		require.NoError(t, h.Create(c))
		assert.Equal(t, http.StatusCreated, rec.Code)

		resp := decode[models.LeadResponse](t, rec)
		assert.True(t, resp.Success)
		assert.Equal(t, "9876543210", resp.Data.Phone)
		assert.Equal(t, "asha@example.com", resp.Data.Email)
		assert.Equal(t, models.SourceManual, resp.Data.Source)
		assert.Equal(t, "new", string(resp.Data.Status))
	})

	t.Run("Duplicate phone is a conflict", func(t *testing.T) {
		c, rec := newContext(http.MethodPost, "/api/v1/leads",
			`{"name":"Other","phone":"98765-43210","interestedLocation":"HSR"}`)
		asCaller(c, models.RoleAdmin, "admin-1")

		require.NoError(t, h.Create(c))
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "phone", decode[models.ErrorResponse](t, rec).Field)
	})

	t.Run("Phone must be exactly ten digits", func(t *testing.T) {
		for _, raw := range []string{"09876543210", "919876543210", "+1 415 555 2671"} {
			c, rec := newContext(http.MethodPost, "/api/v1/leads",
				`{"name":"Other","phone":"`+raw+`","interestedLocation":"HSR"}`)
			asCaller(c, models.RoleAdmin, "admin-1")

			require.NoError(t, h.Create(c))
			assert.Equal(t, http.StatusBadRequest, rec.Code, raw)
			assert.Equal(t, "phone", decode[models.ErrorResponse](t, rec).Field, raw)
		}
	})

	t.Run("Validation names the field", func(t *testing.T) {
		c, rec := newContext(http.MethodPost, "/api/v1/leads", `{"name":"NoLoc","phone":"9000000001"}`)
		asCaller(c, models.RoleAdmin, "admin-1")

		require.NoError(t, h.Create(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "interestedLocation", decode[models.ErrorResponse](t, rec).Field)
	})

	t.Run("Malformed body", func(t *testing.T) {
		c, rec := newContext(http.MethodPost, "/api/v1/leads", `{"name":`)
		asCaller(c, models.RoleAdmin, "admin-1")

		require.NoError(t, h.Create(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Unauthenticated", func(t *testing.T) {
		c, rec := newContext(http.MethodPost, "/api/v1/leads", `{}`)
		require.NoError(t, h.Create(c))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestLeadHandler_CreatePublic(t *testing.T) {
	env := setupEnv(t)
	m := metrics.New(prometheus.NewRegistry())
	h := NewLeadHandler(env.leads, m)

	c, rec := newContext(http.MethodPost, "/api/v1/public/leads",
		`{"name":"Visitor","phone":"9000000009","interestedLocation":"Sarjapur","propertyId":"prop-7","assignedTo":"agent-1"}`)

	require.NoError(t, h.CreatePublic(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	lead := decode[models.LeadResponse](t, rec).Data
	assert.Equal(t, models.SourceWebsite, lead.Source)
	require.NotNil(t, lead.PropertyID)
	assert.Equal(t, "prop-7", *lead.PropertyID)
	assert.Nil(t, lead.AssignedTo)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LeadsCreated.WithLabelValues(models.SourceWebsite)))
}

func TestLeadHandler_List(t *testing.T) {
	env := setupEnv(t)
	h := NewLeadHandler(env.leads, nil)
	for i := 0; i < 35; i++ {
		var agent *string
		if i%5 == 0 {
			agent = strPtr("agent-1")
		}
		env.createLead(t, fmt.Sprintf("Lead %02d", i), fmt.Sprintf("90000%05d", i), agent)
	}

	t.Run("Success - default page", func(t *testing.T) {
		c, rec := newContext(http.MethodGet, "/api/v1/leads", "")
		asCaller(c, models.RoleAdmin, "admin-1")

		require.NoError(t, h.List(c))
		assert.Equal(t, http.StatusOK, rec.Code)

		resp := decode[models.LeadListResponse](t, rec)
		assert.True(t, resp.Success)
		assert.Len(t, resp.Data, 30)
		assert.Equal(t, 35, resp.TotalCount)
		assert.Equal(t, 2, resp.TotalPages)
		assert.Equal(t, 1, resp.Page)
	})

	t.Run("Success - filters from query", func(t *testing.T) {
		c, rec := newContext(http.MethodGet, "/api/v1/leads?assignedTo=agent-1&sortBy=name&sortOrder=asc&limit=3&page=2", "")
		asCaller(c, models.RoleAdmin, "admin-1")

		require.NoError(t, h.List(c))
		resp := decode[models.LeadListResponse](t, rec)
		assert.Equal(t, 7, resp.TotalCount)
		require.Len(t, resp.Data, 3)
		assert.Equal(t, "Lead 15", resp.Data[0].Name)
	})

	t.Run("Invalid sort field", func(t *testing.T) {
		c, rec := newContext(http.MethodGet, "/api/v1/leads?sortBy=phone", "")
		asCaller(c, models.RoleAdmin, "admin-1")

		require.NoError(t, h.List(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "sortBy", decode[models.ErrorResponse](t, rec).Field)
	})

	t.Run("Non-numeric page", func(t *testing.T) {
		c, rec := newContext(http.MethodGet, "/api/v1/leads?page=two", "")
		asCaller(c, models.RoleAdmin, "admin-1")

		require.NoError(t, h.List(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Agent view ignores assignedTo", func(t *testing.T) {
		c, rec := newContext(http.MethodGet, "/api/v1/agent/leads?assignedTo=unassigned", "")
		asCaller(c, models.RoleAgent, "agent-1")

		require.NoError(t, h.ListAssigned(c))
		resp := decode[models.LeadListResponse](t, rec)
		assert.Equal(t, 7, resp.TotalCount)
		for _, l := range resp.Data {
			assert.Equal(t, "agent-1", *l.AssignedTo)
		}
	})

	t.Run("Admin on agent view sees own assignments", func(t *testing.T) {
		c, rec := newContext(http.MethodGet, "/api/v1/agent/leads", "")
		asCaller(c, models.RoleAdmin, "admin-1")

		require.NoError(t, h.ListAssigned(c))
		assert.Equal(t, 0, decode[models.LeadListResponse](t, rec).TotalCount)
	})
}

func TestLeadHandler_GetUpdateAssign(t *testing.T) {
	env := setupEnv(t)
	h := NewLeadHandler(env.leads, nil)
	lead := env.createLead(t, "Asha", "9000000001", nil)

	t.Run("Agent cannot see unassigned lead", func(t *testing.T) {
		c, rec := newContext(http.MethodGet, "/api/v1/leads/"+lead.ID, "")
		asCaller(c, models.RoleAgent, "agent-1")
		withID(c, lead.ID)

		require.NoError(t, h.GetByID(c))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("Assign then agent can see it", func(t *testing.T) {
		c, rec := newContext(http.MethodPatch, "/api/v1/leads/"+lead.ID+"/assign", `{"agentId":"agent-1"}`)
		asCaller(c, models.RoleAdmin, "admin-1")
		withID(c, lead.ID)

		require.NoError(t, h.Assign(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		assigned := decode[models.LeadResponse](t, rec).Data
		require.NotNil(t, assigned.AssignedTo)
		assert.NotNil(t, assigned.AssignedAt)

		c, rec = newContext(http.MethodGet, "/api/v1/leads/"+lead.ID, "")
		asCaller(c, models.RoleAgent, "agent-1")
		withID(c, lead.ID)
		require.NoError(t, h.GetByID(c))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("Null agent unassigns", func(t *testing.T) {
		c, rec := newContext(http.MethodPatch, "/api/v1/leads/"+lead.ID+"/assign", `{"agentId":null}`)
		asCaller(c, models.RoleAdmin, "admin-1")
		withID(c, lead.ID)

		require.NoError(t, h.Assign(c))
		unassigned := decode[models.LeadResponse](t, rec).Data
		assert.Nil(t, unassigned.AssignedTo)
		assert.Nil(t, unassigned.AssignedAt)
	})

	t.Run("Update contact fields", func(t *testing.T) {
		c, rec := newContext(http.MethodPatch, "/api/v1/leads/"+lead.ID, `{"name":"Asha K","interestedLocation":"Bellandur"}`)
		asCaller(c, models.RoleAdmin, "admin-1")
		withID(c, lead.ID)

		require.NoError(t, h.Update(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		updated := decode[models.LeadResponse](t, rec).Data
		assert.Equal(t, "Asha K", updated.Name)
		assert.Equal(t, "Bellandur", updated.InterestedLocation)
		assert.Equal(t, "9000000001", updated.Phone)
	})

	t.Run("Unknown id", func(t *testing.T) {
		c, rec := newContext(http.MethodGet, "/api/v1/leads/missing", "")
		asCaller(c, models.RoleAdmin, "admin-1")
		withID(c, "missing")

		require.NoError(t, h.GetByID(c))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestLeadHandler_AddNote(t *testing.T) {
	env := setupEnv(t)
	h := NewLeadHandler(env.leads, nil)
	lead := env.createLead(t, "Asha", "9000000001", strPtr("agent-1"))

	c, rec := newContext(http.MethodPost, "/api/v1/leads/"+lead.ID+"/notes", `{"content":"  call after 6pm "}`)
	asCaller(c, models.RoleAgent, "agent-1")
	withID(c, lead.ID)

	require.NoError(t, h.AddNote(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	noted := decode[models.LeadResponse](t, rec).Data
	require.Len(t, noted.Notes, 1)
	assert.Equal(t, "call after 6pm", noted.Notes[0].Content)
	assert.Equal(t, "agent-1", noted.Notes[0].AddedBy)

	c, rec = newContext(http.MethodPost, "/api/v1/leads/"+lead.ID+"/notes", `{"content":""}`)
	asCaller(c, models.RoleAgent, "agent-1")
	withID(c, lead.ID)
	require.NoError(t, h.AddNote(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "content", decode[models.ErrorResponse](t, rec).Field)
}
