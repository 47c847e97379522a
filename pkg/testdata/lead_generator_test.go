package testdata

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jordanlanch/leadcrm/pkg/database"
	importpkg "github.com/jordanlanch/leadcrm/pkg/import"
	"github.com/jordanlanch/leadcrm/pkg/leads"
	"github.com/jordanlanch/leadcrm/pkg/models"
	"github.com/jordanlanch/leadcrm/pkg/phone"
	"github.com/jordanlanch/leadcrm/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLeadService(t *testing.T) *leads.Service {
	t.Helper()
	client, err := database.NewSQLiteClient(strings.ReplaceAll(t.Name(), "/", "_"))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return leads.NewService(store.New(client.Driver), time.UTC, nil)
}

func TestGenerator_Deterministic(t *testing.T) {
	cfg := DefaultConfig(20)
	cfg.Seed = 42

	a := NewGenerator(cfg).GenerateLeads()
	b := NewGenerator(cfg).GenerateLeads()
	assert.Equal(t, a, b)
}

func TestGenerator_LeadsAreValid(t *testing.T) {
	cfg := DefaultConfig(200)
	cfg.Seed = 7
	reqs := NewGenerator(cfg).GenerateLeads()

	seen := map[string]bool{}
	assigned := 0
	for _, req := range reqs {
		normalized, err := phone.Normalize(req.Phone)
		require.NoError(t, err, req.Phone)
		assert.Equal(t, req.Phone, normalized)
		assert.False(t, seen[req.Phone], "duplicate phone %s", req.Phone)
		seen[req.Phone] = true

		assert.NotEmpty(t, req.Name)
		assert.Contains(t, Localities, req.InterestedLocation)
		if req.AssignedTo != nil {
			assigned++
			assert.Contains(t, cfg.Agents, *req.AssignedTo)
		}
	}
	assert.Greater(t, assigned, 0)
	assert.Less(t, assigned, len(reqs))
}

func TestInsertLeads(t *testing.T) {
	ctx := context.Background()
	svc := setupLeadService(t)
	cfg := DefaultConfig(25)
	cfg.Seed = 3
	reqs := NewGenerator(cfg).GenerateLeads()

	created, err := InsertLeads(ctx, svc, reqs, models.SourceManual, "seed")
	require.NoError(t, err)
	assert.Equal(t, 25, created)

	// a second run only hits duplicates
	created, err = InsertLeads(ctx, svc, reqs, models.SourceManual, "seed")
	require.NoError(t, err)
	assert.Equal(t, 0, created)

	res, err := svc.Query(ctx, models.AdminScope("admin-1"), models.LeadQueryRequest{})
	require.NoError(t, err)
	assert.Equal(t, 25, res.TotalCount)
}

func TestGenerateCSV_ImportsCleanly(t *testing.T) {
	svc := setupLeadService(t)
	cfg := DefaultConfig(40)
	cfg.Seed = 11

	data, err := NewGenerator(cfg).GenerateCSV()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(data, importpkg.Template()))

	res, err := importpkg.NewCSVImportService(svc, nil).ImportFromCSV(context.Background(), strings.NewReader(data), importpkg.DefaultCSVConfig())
	require.NoError(t, err)
	assert.Equal(t, 40, res.TotalRows)
	assert.Equal(t, 40, res.CreatedCount)
	assert.Empty(t, res.Errors)
}
