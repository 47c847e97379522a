// Package store persists leads and their append-only child records.
//
// Every mutation runs in a single transaction that first loads (and on
// PostgreSQL locks) the lead row, so concurrent writers to one lead are
// serialized and a transition never lands half-applied.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/jordanlanch/leadcrm/pkg/database"
	"github.com/jordanlanch/leadcrm/pkg/domain"
	"github.com/jordanlanch/leadcrm/pkg/leadstatus"
	"github.com/jordanlanch/leadcrm/pkg/models"
)

// Store reads and writes leads through an ent SQL driver.
type Store struct {
	drv   *entsql.Driver
	now   func() time.Time
	newID func() string
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for server-assigned timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a store on top of drv.
func New(drv *entsql.Driver, opts ...Option) *Store {
	s := &Store{
		drv:   drv,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOptions controls how Create treats a phone collision.
type CreateOptions struct {
	// Merge overwrites the non-empty contact fields of the existing lead
	// instead of failing with a duplicate error.
	Merge bool
}

var leadColumns = []string{
	"id", "name", "phone", "email", "interested_location", "status", "substatus",
	"site_visit_date", "follow_up_date", "assigned_to", "assigned_at", "source",
	"property_id", "created_at", "updated_at",
}

// columns that Update is allowed to rewrite
var mutableColumns = map[string]bool{
	"name": true, "email": true, "interested_location": true, "status": true, "substatus": true,
	"site_visit_date": true, "follow_up_date": true, "assigned_to": true, "assigned_at": true,
	"property_id": true, "updated_at": true,
}

func (s *Store) builder() *entsql.DialectBuilder {
	return entsql.Dialect(s.drv.Dialect())
}

func (s *Store) timestamp() time.Time {
	return dbTime(s.now())
}

// Ping checks the underlying database connection.
func (s *Store) Ping(ctx context.Context) error {
	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, "SELECT 1", []any{}, rows); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return rows.Close()
}

// Create inserts a new lead. A phone that already exists yields a duplicate
// error unless opts.Merge is set, in which case the existing lead is updated
// and returned with created=false.
func (s *Store) Create(ctx context.Context, lead *models.Lead, opts CreateOptions) (*models.Lead, bool, error) {
	created := lead.Clone()
	if created.Status == "" {
		created.Status = leadstatus.New
	}
	if !created.Status.Allows(created.Substatus) {
		return nil, false, domain.NewFieldError("substatus", fmt.Sprintf("substatus %q is not valid for status %q", created.Substatus, created.Status))
	}

	tx, err := s.drv.Tx(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("starting transaction: %w", err)
	}

	existing, err := s.selectLead(ctx, tx, entsql.EQ("phone", lead.Phone), true)
	if err != nil {
		return nil, false, rollback(tx, err)
	}
	if existing != nil {
		if !opts.Merge {
			return nil, false, rollback(tx, domain.NewDuplicateError(lead.Phone))
		}
		merged, err := s.merge(ctx, tx, existing, lead)
		if err != nil {
			return nil, false, rollback(tx, err)
		}
		if err := tx.Commit(); err != nil {
			return nil, false, fmt.Errorf("committing merge: %w", err)
		}
		return merged, false, nil
	}

	now := s.timestamp()
	created.ID = s.newID()
	if created.Source == "" {
		created.Source = models.SourceManual
	}
	created.CreatedAt = now
	created.UpdatedAt = now
	if created.AssignedTo != nil && created.AssignedAt == nil {
		created.AssignedAt = &now
	}
	fillNewEntries(created, 0, 0, 0, now, "")
	normalizeSlices(created)

	q, args := s.builder().Insert(database.TableLeads).
		Columns(leadColumns...).
		Values(leadValues(created)...).
		Query()
	if err := tx.Exec(ctx, q, args, nil); err != nil {
		if isUniqueViolation(err) {
			return nil, false, rollback(tx, domain.NewDuplicateError(lead.Phone))
		}
		return nil, false, rollback(tx, fmt.Errorf("inserting lead: %w", err))
	}
	if err := s.insertChildren(ctx, tx, created, 0, 0, 0); err != nil {
		return nil, false, rollback(tx, err)
	}
	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return nil, false, domain.NewDuplicateError(lead.Phone)
		}
		return nil, false, fmt.Errorf("committing lead: %w", err)
	}
	return created, true, nil
}

func (s *Store) merge(ctx context.Context, tx dialect.Tx, existing, in *models.Lead) (*models.Lead, error) {
	merged := existing.Clone()
	if v := strings.TrimSpace(in.Name); v != "" {
		merged.Name = v
	}
	if v := strings.TrimSpace(in.Email); v != "" {
		merged.Email = v
	}
	if v := strings.TrimSpace(in.InterestedLocation); v != "" {
		merged.InterestedLocation = v
	}
	merged.UpdatedAt = s.timestamp()

	q, args := s.builder().Update(database.TableLeads).
		Set("name", merged.Name).
		Set("email", merged.Email).
		Set("interested_location", merged.InterestedLocation).
		Set("updated_at", merged.UpdatedAt).
		Where(entsql.EQ("id", merged.ID)).
		Query()
	if err := tx.Exec(ctx, q, args, nil); err != nil {
		return nil, fmt.Errorf("merging lead %s: %w", merged.ID, err)
	}
	return merged, nil
}

// Get loads a lead with its notes and histories.
func (s *Store) Get(ctx context.Context, id string) (*models.Lead, error) {
	lead, err := s.selectLead(ctx, s.drv, entsql.EQ("id", id), false)
	if err != nil {
		return nil, err
	}
	if lead == nil {
		return nil, domain.NewNotFoundError("lead")
	}
	if err := s.loadChildren(ctx, s.drv, []*models.Lead{lead}); err != nil {
		return nil, err
	}
	return lead, nil
}

// MutateFunc changes a working copy of a lead. Returning an error aborts the
// update without writing anything.
type MutateFunc func(lead *models.Lead) error

// Update loads and locks the lead, applies fn to a copy, checks the
// append-only rules and persists the result in one transaction. A change of
// (status, substatus) is recorded in the status history as actor.
func (s *Store) Update(ctx context.Context, id, actor string, fn MutateFunc) (*models.Lead, error) {
	tx, err := s.drv.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}

	current, err := s.selectLead(ctx, tx, entsql.EQ("id", id), true)
	if err != nil {
		return nil, rollback(tx, err)
	}
	if current == nil {
		return nil, rollback(tx, domain.NewNotFoundError("lead"))
	}
	if err := s.loadChildren(ctx, tx, []*models.Lead{current}); err != nil {
		return nil, rollback(tx, err)
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, rollback(tx, err)
	}

	now := s.timestamp()
	fillNewEntries(next, len(current.Notes), len(current.FollowUpHistory), len(current.VisitHistory), now, actor)
	closeFlippedEntries(current.FollowUpHistory, next.FollowUpHistory, now)
	closeFlippedEntries(current.VisitHistory, next.VisitHistory, now)

	if err := checkAppendOnly(current, next); err != nil {
		return nil, rollback(tx, err)
	}
	if !next.Status.Allows(next.Substatus) {
		return nil, rollback(tx, domain.NewFieldError("substatus", fmt.Sprintf("substatus %q is not valid for status %q", next.Substatus, next.Status)))
	}
	next.UpdatedAt = now
	next.SiteVisitDate = dbTimePtr(next.SiteVisitDate)
	next.FollowUpDate = dbTimePtr(next.FollowUpDate)
	next.AssignedAt = dbTimePtr(next.AssignedAt)

	upd := s.builder().Update(database.TableLeads)
	values := leadValues(next)
	for i, col := range leadColumns {
		if mutableColumns[col] {
			upd.Set(col, values[i])
		}
	}
	q, args := upd.Where(entsql.EQ("id", id)).Query()
	if err := tx.Exec(ctx, q, args, nil); err != nil {
		return nil, rollback(tx, fmt.Errorf("updating lead %s: %w", id, err))
	}

	if err := s.closeEntries(ctx, tx, database.TableFollowUps, id, current.FollowUpHistory, next.FollowUpHistory); err != nil {
		return nil, rollback(tx, err)
	}
	if err := s.closeEntries(ctx, tx, database.TableVisits, id, current.VisitHistory, next.VisitHistory); err != nil {
		return nil, rollback(tx, err)
	}
	if err := s.insertChildren(ctx, tx, next, len(current.Notes), len(current.FollowUpHistory), len(current.VisitHistory)); err != nil {
		return nil, rollback(tx, err)
	}

	if current.Status != next.Status || current.Substatus != next.Substatus {
		change := models.StatusChange{
			LeadID:        id,
			FromStatus:    current.Status,
			FromSubstatus: current.Substatus,
			ToStatus:      next.Status,
			ToSubstatus:   next.Substatus,
			ChangedBy:     actor,
			ChangedAt:     now,
		}
		if err := s.insertStatusChange(ctx, tx, change); err != nil {
			return nil, rollback(tx, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing lead %s: %w", id, err)
	}
	return next, nil
}

// AppendNote adds a note to the lead. A non-nil guard runs against the locked
// lead first and can veto the append.
func (s *Store) AppendNote(ctx context.Context, id, actor, content string, guard MutateFunc) (*models.Lead, error) {
	return s.Update(ctx, id, actor, func(lead *models.Lead) error {
		if guard != nil {
			if err := guard(lead); err != nil {
				return err
			}
		}
		lead.Notes = append(lead.Notes, models.Note{Content: content, AddedBy: actor})
		return nil
	})
}

// selectLead returns nil, nil when no row matches.
func (s *Store) selectLead(ctx context.Context, q dialect.ExecQuerier, where *entsql.Predicate, lock bool) (*models.Lead, error) {
	b := s.builder()
	sel := b.Select(leadColumns...).From(b.Table(database.TableLeads)).Where(where).Limit(1)
	if lock && s.drv.Dialect() == dialect.Postgres {
		sel.ForUpdate()
	}
	query, args := sel.Query()

	rows := &entsql.Rows{}
	if err := q.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("querying lead: %w", err)
	}
	leads, err := scanLeads(rows)
	if err != nil {
		return nil, err
	}
	if len(leads) == 0 {
		return nil, nil
	}
	return leads[0], nil
}

func scanLeads(rows *entsql.Rows) ([]*models.Lead, error) {
	defer rows.Close()

	var leads []*models.Lead
	for rows.Next() {
		var (
			l                               models.Lead
			status, substatus               string
			siteVisit, followUp, assignedAt sql.NullTime
			assignedTo, propertyID          sql.NullString
		)
		if err := rows.Scan(
			&l.ID, &l.Name, &l.Phone, &l.Email, &l.InterestedLocation, &status, &substatus,
			&siteVisit, &followUp, &assignedTo, &assignedAt, &l.Source,
			&propertyID, &l.CreatedAt, &l.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning lead: %w", err)
		}
		l.Status = leadstatus.Status(status)
		l.Substatus = leadstatus.Substatus(substatus)
		l.SiteVisitDate = fromNullTime(siteVisit)
		l.FollowUpDate = fromNullTime(followUp)
		l.AssignedAt = fromNullTime(assignedAt)
		l.AssignedTo = fromNullString(assignedTo)
		l.PropertyID = fromNullString(propertyID)
		l.CreatedAt = l.CreatedAt.UTC()
		l.UpdatedAt = l.UpdatedAt.UTC()
		normalizeSlices(&l)
		leads = append(leads, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating leads: %w", err)
	}
	return leads, nil
}

func leadValues(l *models.Lead) []any {
	return []any{
		l.ID, l.Name, l.Phone, l.Email, l.InterestedLocation, string(l.Status), string(l.Substatus),
		nullTime(l.SiteVisitDate), nullTime(l.FollowUpDate), nullString(l.AssignedTo), nullTime(l.AssignedAt), l.Source,
		nullString(l.PropertyID), dbTime(l.CreatedAt), dbTime(l.UpdatedAt),
	}
}

func normalizeSlices(l *models.Lead) {
	if l.Notes == nil {
		l.Notes = []models.Note{}
	}
	if l.FollowUpHistory == nil {
		l.FollowUpHistory = []models.HistoryEntry{}
	}
	if l.VisitHistory == nil {
		l.VisitHistory = []models.HistoryEntry{}
	}
}

func rollback(tx dialect.Tx, err error) error {
	if rerr := tx.Rollback(); rerr != nil {
		err = fmt.Errorf("%w: rolling back transaction: %v", err, rerr)
	}
	return err
}

// dbTime normalizes timestamps to the precision both supported databases keep.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func dbTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := dbTime(*t)
	return &v
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return dbTime(*t)
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func fromNullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func fromNullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
