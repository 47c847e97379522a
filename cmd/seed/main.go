// Command seed fills the lead store with fake leads for local demos.
//
// Flags:
//
//	-count  number of leads to generate (default 100)
//	-seed   random seed, 0 for a random one
//	-csv    write an import-ready CSV to this path instead of inserting
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/jordanlanch/leadcrm/config"
	"github.com/jordanlanch/leadcrm/pkg/database"
	"github.com/jordanlanch/leadcrm/pkg/leads"
	"github.com/jordanlanch/leadcrm/pkg/logger"
	"github.com/jordanlanch/leadcrm/pkg/models"
	"github.com/jordanlanch/leadcrm/pkg/store"
	"github.com/jordanlanch/leadcrm/pkg/testdata"
)

func main() {
	count := flag.Int("count", 100, "number of leads to generate")
	seed := flag.Int64("seed", 0, "random seed, 0 for a random one")
	csvPath := flag.String("csv", "", "write an import-ready CSV instead of inserting")
	flag.Parse()

	genCfg := testdata.DefaultConfig(*count)
	genCfg.Seed = *seed
	gen := testdata.NewGenerator(genCfg)

	if *csvPath != "" {
		data, err := gen.GenerateCSV()
		if err != nil {
			log.Fatalf("❌ Failed to render CSV: %v", err)
		}
		if err := os.WriteFile(*csvPath, []byte(data), 0o644); err != nil {
			log.Fatalf("❌ Failed to write %s: %v", *csvPath, err)
		}
		log.Printf("✅ Wrote %d leads to %s", *count, *csvPath)
		return
	}

	cfg := config.Load()
	loc, err := time.LoadLocation(cfg.CRMTimezone)
	if err != nil {
		log.Fatalf("❌ Invalid CRM_TIMEZONE %q: %v", cfg.CRMTimezone, err)
	}

	db, err := database.NewClient(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	svc := leads.NewService(store.New(db.Driver), loc, logger.New(cfg.LogLevel))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	created, err := testdata.InsertLeads(ctx, svc, gen.GenerateLeads(), models.SourceManual, "seed")
	if err != nil {
		log.Fatalf("❌ Seeding stopped after %d leads: %v", created, err)
	}
	log.Printf("✅ Seeded %d of %d leads", created, *count)
}
