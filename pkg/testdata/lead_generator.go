package testdata

import (
	"context"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/jordanlanch/leadcrm/pkg/domain"
	"github.com/jordanlanch/leadcrm/pkg/leads"
	"github.com/jordanlanch/leadcrm/pkg/models"
)

// LeadGeneratorConfig configures lead generation parameters
type LeadGeneratorConfig struct {
	Count        int
	Seed         int64    // 0 picks a random seed
	EmailChance  float64  // 0.0-1.0 (probability of having email)
	AssignChance float64  // 0.0-1.0 (probability of being assigned to one of Agents)
	Agents       []string // candidate assignees
}

// Localities are the interested locations generated leads pick from.
var Localities = []string{
	"Whitefield", "Sarjapur Road", "HSR Layout", "Electronic City", "Hebbal",
	"Yelahanka", "Bellandur", "Koramangala", "Indiranagar", "JP Nagar",
	"Devanahalli", "Kanakapura Road", "Hennur", "Marathahalli", "Bannerghatta Road",
}

// DefaultConfig returns the mix used by the seed command.
func DefaultConfig(count int) LeadGeneratorConfig {
	return LeadGeneratorConfig{
		Count:        count,
		EmailChance:  0.6,
		AssignChance: 0.5,
		Agents:       []string{"agent-1", "agent-2", "agent-3"},
	}
}

// Generator produces fake leads with unique Indian mobile numbers.
type Generator struct {
	faker  *gofakeit.Faker
	config LeadGeneratorConfig
	phones map[string]bool
}

// NewGenerator creates a generator. The same non-zero seed yields the same leads.
func NewGenerator(config LeadGeneratorConfig) *Generator {
	return &Generator{
		faker:  gofakeit.New(config.Seed),
		config: config,
		phones: make(map[string]bool),
	}
}

// Phone returns a 10-digit mobile number not handed out before.
func (g *Generator) Phone() string {
	for {
		// Indian mobile numbers start with 6-9
		p := fmt.Sprintf("%d%09d", g.faker.Number(6, 9), g.faker.Number(0, 999999999))
		if !g.phones[p] {
			g.phones[p] = true
			return p
		}
	}
}

// GenerateLead creates a single lead request with realistic data
func (g *Generator) GenerateLead() models.CreateLeadRequest {
	req := models.CreateLeadRequest{
		Name:               g.faker.Name(),
		Phone:              g.Phone(),
		InterestedLocation: g.faker.RandomString(Localities),
	}

	if g.faker.Float64() < g.config.EmailChance {
		first := strings.ToLower(strings.Fields(req.Name)[0])
		req.Email = fmt.Sprintf("%s.%s@%s", first, req.Phone[6:], g.faker.DomainName())
	}

	if len(g.config.Agents) > 0 && g.faker.Float64() < g.config.AssignChance {
		agent := g.faker.RandomString(g.config.Agents)
		req.AssignedTo = &agent
	}

	return req
}

// GenerateLeads creates config.Count lead requests
func (g *Generator) GenerateLeads() []models.CreateLeadRequest {
	out := make([]models.CreateLeadRequest, g.config.Count)
	for i := range out {
		out[i] = g.GenerateLead()
	}
	return out
}

// GenerateCSV renders config.Count leads in the import template layout.
func (g *Generator) GenerateCSV() (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	if err := w.Write([]string{"name", "phonenumber", "location", "email"}); err != nil {
		return "", err
	}
	for _, req := range g.GenerateLeads() {
		if err := w.Write([]string{req.Name, req.Phone, req.InterestedLocation, req.Email}); err != nil {
			return "", err
		}
	}
	w.Flush()
	return sb.String(), w.Error()
}

// LeadCreator stores one lead.
type LeadCreator interface {
	Create(ctx context.Context, in leads.CreateInput) (*models.Lead, bool, error)
}

// InsertLeads stores reqs one by one and returns how many were created.
// Phone collisions with existing leads are skipped.
func InsertLeads(ctx context.Context, creator LeadCreator, reqs []models.CreateLeadRequest, source, actor string) (int, error) {
	created := 0
	for i, req := range reqs {
		_, ok, err := creator.Create(ctx, leads.CreateInput{Request: req, Source: source, Actor: actor})
		if err != nil {
			if domain.IsDuplicate(err) {
				continue
			}
			return created, fmt.Errorf("failed to insert lead %d: %w", i, err)
		}
		if ok {
			created++
		}
	}
	return created, nil
}
