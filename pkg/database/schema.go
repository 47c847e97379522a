package database

import (
	"context"
	"fmt"
	"strings"

	"entgo.io/ent/dialect"
)

// Table names
const (
	TableLeads         = "leads"
	TableNotes         = "lead_notes"
	TableFollowUps     = "lead_follow_ups"
	TableVisits        = "lead_visits"
	TableStatusHistory = "lead_status_history"
)

// schema statements use {{ts}} and {{serial}} placeholders that are resolved
// per dialect.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS leads (
		id VARCHAR(36) PRIMARY KEY,
		name TEXT NOT NULL,
		phone VARCHAR(10) NOT NULL UNIQUE,
		email TEXT NOT NULL DEFAULT '',
		interested_location TEXT NOT NULL DEFAULT '',
		status VARCHAR(32) NOT NULL,
		substatus VARCHAR(64) NOT NULL DEFAULT '',
		site_visit_date {{ts}} NULL,
		follow_up_date {{ts}} NULL,
		assigned_to VARCHAR(64) NULL,
		assigned_at {{ts}} NULL,
		source VARCHAR(16) NOT NULL,
		property_id VARCHAR(100) NULL,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS leads_status_idx ON leads (status)`,
	`CREATE INDEX IF NOT EXISTS leads_assigned_to_idx ON leads (assigned_to)`,
	`CREATE INDEX IF NOT EXISTS leads_created_at_idx ON leads (created_at)`,
	`CREATE TABLE IF NOT EXISTS lead_notes (
		lead_id VARCHAR(36) NOT NULL REFERENCES leads (id),
		seq INTEGER NOT NULL,
		content TEXT NOT NULL,
		added_at {{ts}} NOT NULL,
		added_by VARCHAR(64) NOT NULL,
		PRIMARY KEY (lead_id, seq)
	)`,
	`CREATE TABLE IF NOT EXISTS lead_follow_ups (
		lead_id VARCHAR(36) NOT NULL REFERENCES leads (id),
		seq INTEGER NOT NULL,
		scheduled_date {{ts}} NULL,
		notes TEXT NOT NULL DEFAULT '',
		added_at {{ts}} NOT NULL,
		added_by VARCHAR(64) NOT NULL,
		completed BOOLEAN NOT NULL DEFAULT FALSE,
		outcome VARCHAR(16) NOT NULL,
		closed_at {{ts}} NULL,
		PRIMARY KEY (lead_id, seq)
	)`,
	`CREATE TABLE IF NOT EXISTS lead_visits (
		lead_id VARCHAR(36) NOT NULL REFERENCES leads (id),
		seq INTEGER NOT NULL,
		type VARCHAR(16) NOT NULL,
		scheduled_date {{ts}} NULL,
		notes TEXT NOT NULL DEFAULT '',
		added_at {{ts}} NOT NULL,
		added_by VARCHAR(64) NOT NULL,
		completed BOOLEAN NOT NULL DEFAULT FALSE,
		outcome VARCHAR(16) NOT NULL,
		closed_at {{ts}} NULL,
		PRIMARY KEY (lead_id, seq)
	)`,
	`CREATE TABLE IF NOT EXISTS lead_status_history (
		id {{serial}},
		lead_id VARCHAR(36) NOT NULL REFERENCES leads (id),
		from_status VARCHAR(32) NOT NULL,
		from_substatus VARCHAR(64) NOT NULL DEFAULT '',
		to_status VARCHAR(32) NOT NULL,
		to_substatus VARCHAR(64) NOT NULL DEFAULT '',
		changed_by VARCHAR(64) NOT NULL,
		changed_at {{ts}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS lead_status_history_lead_idx ON lead_status_history (lead_id, changed_at)`,
}

// Execer is the subset of the ent driver Migrate needs.
type Execer interface {
	Exec(ctx context.Context, query string, args, v any) error
	Dialect() string
}

// Migrate creates the lead tables and indexes if they do not exist.
func Migrate(ctx context.Context, drv Execer) error {
	ts, serial := "TIMESTAMP", "INTEGER PRIMARY KEY AUTOINCREMENT"
	if drv.Dialect() == dialect.Postgres {
		ts, serial = "TIMESTAMPTZ", "BIGSERIAL PRIMARY KEY"
	}
	replacer := strings.NewReplacer("{{ts}}", ts, "{{serial}}", serial)

	for _, stmt := range schema {
		if err := drv.Exec(ctx, replacer.Replace(stmt), []any{}, nil); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
