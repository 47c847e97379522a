package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jordanlanch/leadcrm/pkg/database"
	"github.com/jordanlanch/leadcrm/pkg/models"
)

// ErrAppendOnly is returned when a mutation would rewrite or drop recorded history.
var ErrAppendOnly = errors.New("lead history is append-only")

// loadBatchSize bounds the number of ids in one IN (...) clause.
const loadBatchSize = 500

var (
	noteColumns    = []string{"lead_id", "seq", "content", "added_at", "added_by"}
	historyColumns = []string{"lead_id", "seq", "scheduled_date", "notes", "added_at", "added_by", "completed", "outcome", "closed_at"}
	visitColumns   = append(append([]string{}, historyColumns...), "type")
)

// loadChildren fills notes, follow-up and visit histories for every lead.
func (s *Store) loadChildren(ctx context.Context, q dialect.ExecQuerier, leads []*models.Lead) error {
	byID := make(map[string]*models.Lead, len(leads))
	ids := make([]any, 0, len(leads))
	for _, l := range leads {
		normalizeSlices(l)
		byID[l.ID] = l
		ids = append(ids, l.ID)
	}

	for start := 0; start < len(ids); start += loadBatchSize {
		end := min(start+loadBatchSize, len(ids))
		chunk := ids[start:end]

		if err := s.loadNotes(ctx, q, chunk, byID); err != nil {
			return err
		}
		if err := s.loadHistory(ctx, q, database.TableFollowUps, chunk, byID); err != nil {
			return err
		}
		if err := s.loadHistory(ctx, q, database.TableVisits, chunk, byID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) loadNotes(ctx context.Context, q dialect.ExecQuerier, ids []any, byID map[string]*models.Lead) error {
	b := s.builder()
	query, args := b.Select(noteColumns...).
		From(b.Table(database.TableNotes)).
		Where(entsql.In("lead_id", ids...)).
		OrderBy("lead_id", "seq").
		Query()

	rows := &entsql.Rows{}
	if err := q.Query(ctx, query, args, rows); err != nil {
		return fmt.Errorf("querying notes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			leadID string
			seq    int
			n      models.Note
		)
		if err := rows.Scan(&leadID, &seq, &n.Content, &n.AddedAt, &n.AddedBy); err != nil {
			return fmt.Errorf("scanning note: %w", err)
		}
		n.AddedAt = n.AddedAt.UTC()
		if l, ok := byID[leadID]; ok {
			l.Notes = append(l.Notes, n)
		}
	}
	return rows.Err()
}

func (s *Store) loadHistory(ctx context.Context, q dialect.ExecQuerier, table string, ids []any, byID map[string]*models.Lead) error {
	isVisit := table == database.TableVisits
	cols := historyColumns
	if isVisit {
		cols = visitColumns
	}

	b := s.builder()
	query, args := b.Select(cols...).
		From(b.Table(table)).
		Where(entsql.In("lead_id", ids...)).
		OrderBy("lead_id", "seq").
		Query()

	rows := &entsql.Rows{}
	if err := q.Query(ctx, query, args, rows); err != nil {
		return fmt.Errorf("querying %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			leadID              string
			seq                 int
			h                   models.HistoryEntry
			scheduled, closedAt sql.NullTime
		)
		dest := []any{&leadID, &seq, &scheduled, &h.Notes, &h.AddedAt, &h.AddedBy, &h.Completed, &h.Outcome, &closedAt}
		if isVisit {
			dest = append(dest, &h.Type)
		}
		if err := rows.Scan(dest...); err != nil {
			return fmt.Errorf("scanning %s: %w", table, err)
		}
		h.ScheduledDate = fromNullTime(scheduled)
		h.ClosedAt = fromNullTime(closedAt)
		h.AddedAt = h.AddedAt.UTC()

		l, ok := byID[leadID]
		if !ok {
			continue
		}
		if isVisit {
			l.VisitHistory = append(l.VisitHistory, h)
		} else {
			l.FollowUpHistory = append(l.FollowUpHistory, h)
		}
	}
	return rows.Err()
}

// insertChildren writes every note and history entry past the given offsets.
func (s *Store) insertChildren(ctx context.Context, tx dialect.ExecQuerier, l *models.Lead, notesFrom, followUpsFrom, visitsFrom int) error {
	b := s.builder()

	if len(l.Notes) > notesFrom {
		ins := b.Insert(database.TableNotes).Columns(noteColumns...)
		for i := notesFrom; i < len(l.Notes); i++ {
			n := l.Notes[i]
			ins.Values(l.ID, i+1, n.Content, dbTime(n.AddedAt), n.AddedBy)
		}
		query, args := ins.Query()
		if err := tx.Exec(ctx, query, args, nil); err != nil {
			return fmt.Errorf("inserting notes: %w", err)
		}
	}

	if len(l.FollowUpHistory) > followUpsFrom {
		ins := b.Insert(database.TableFollowUps).Columns(historyColumns...)
		for i := followUpsFrom; i < len(l.FollowUpHistory); i++ {
			ins.Values(historyValues(l.ID, i, l.FollowUpHistory[i])...)
		}
		query, args := ins.Query()
		if err := tx.Exec(ctx, query, args, nil); err != nil {
			return fmt.Errorf("inserting follow-ups: %w", err)
		}
	}

	if len(l.VisitHistory) > visitsFrom {
		ins := b.Insert(database.TableVisits).Columns(visitColumns...)
		for i := visitsFrom; i < len(l.VisitHistory); i++ {
			h := l.VisitHistory[i]
			ins.Values(append(historyValues(l.ID, i, h), h.Type)...)
		}
		query, args := ins.Query()
		if err := tx.Exec(ctx, query, args, nil); err != nil {
			return fmt.Errorf("inserting visits: %w", err)
		}
	}
	return nil
}

func historyValues(leadID string, i int, h models.HistoryEntry) []any {
	return []any{leadID, i + 1, nullTime(h.ScheduledDate), h.Notes, dbTime(h.AddedAt), h.AddedBy, h.Completed, h.Outcome, nullTime(h.ClosedAt)}
}

// closeEntries persists entries that flipped from pending to completed.
func (s *Store) closeEntries(ctx context.Context, tx dialect.ExecQuerier, table, leadID string, before, after []models.HistoryEntry) error {
	for i := range before {
		if before[i].Completed || !after[i].Completed {
			continue
		}
		h := after[i]
		query, args := s.builder().Update(table).
			Set("completed", true).
			Set("outcome", h.Outcome).
			Set("closed_at", nullTime(h.ClosedAt)).
			Where(entsql.And(entsql.EQ("lead_id", leadID), entsql.EQ("seq", i+1))).
			Query()
		if err := tx.Exec(ctx, query, args, nil); err != nil {
			return fmt.Errorf("closing %s entry %d: %w", table, i+1, err)
		}
	}
	return nil
}

// fillNewEntries stamps server-assigned fields on appended children.
func fillNewEntries(l *models.Lead, notesFrom, followUpsFrom, visitsFrom int, now time.Time, actor string) {
	for i := notesFrom; i < len(l.Notes); i++ {
		n := &l.Notes[i]
		if n.AddedAt.IsZero() {
			n.AddedAt = now
		}
		n.AddedAt = dbTime(n.AddedAt)
		if n.AddedBy == "" {
			n.AddedBy = actor
		}
	}
	fill := func(entries []models.HistoryEntry, from int) {
		for i := from; i < len(entries); i++ {
			h := &entries[i]
			if h.AddedAt.IsZero() {
				h.AddedAt = now
			}
			h.AddedAt = dbTime(h.AddedAt)
			if h.AddedBy == "" {
				h.AddedBy = actor
			}
			if h.Outcome == "" && !h.Completed {
				h.Outcome = models.OutcomePending
			}
			if h.Completed && h.ClosedAt == nil {
				h.ClosedAt = &now
			}
			h.ScheduledDate = dbTimePtr(h.ScheduledDate)
			h.ClosedAt = dbTimePtr(h.ClosedAt)
		}
	}
	fill(l.FollowUpHistory, followUpsFrom)
	fill(l.VisitHistory, visitsFrom)
}

// closeFlippedEntries stamps ClosedAt on entries the caller just completed.
func closeFlippedEntries(before, after []models.HistoryEntry, now time.Time) {
	for i := 0; i < len(before) && i < len(after); i++ {
		if !before[i].Completed && after[i].Completed {
			if after[i].ClosedAt == nil {
				after[i].ClosedAt = &now
			}
			after[i].ClosedAt = dbTimePtr(after[i].ClosedAt)
		}
	}
}

var closingOutcomes = map[string]bool{
	models.OutcomeCompleted:   true,
	models.OutcomeRescheduled: true,
	models.OutcomeCancelled:   true,
	models.OutcomeSuperseded:  true,
}

func checkAppendOnly(before, after *models.Lead) error {
	if after.ID != before.ID || after.Phone != before.Phone || after.Source != before.Source || !after.CreatedAt.Equal(before.CreatedAt) {
		return fmt.Errorf("%w: identity fields cannot change", ErrAppendOnly)
	}

	if len(after.Notes) < len(before.Notes) {
		return fmt.Errorf("%w: notes cannot be removed", ErrAppendOnly)
	}
	for i, n := range before.Notes {
		m := after.Notes[i]
		if m.Content != n.Content || m.AddedBy != n.AddedBy || !m.AddedAt.Equal(n.AddedAt) {
			return fmt.Errorf("%w: note %d was modified", ErrAppendOnly, i+1)
		}
	}

	if err := checkHistory("follow-up", before.FollowUpHistory, after.FollowUpHistory); err != nil {
		return err
	}
	return checkHistory("visit", before.VisitHistory, after.VisitHistory)
}

func checkHistory(kind string, before, after []models.HistoryEntry) error {
	if len(after) < len(before) {
		return fmt.Errorf("%w: %s entries cannot be removed", ErrAppendOnly, kind)
	}
	for i, old := range before {
		cur := after[i]
		if !sameTime(old.ScheduledDate, cur.ScheduledDate) || old.Notes != cur.Notes ||
			!old.AddedAt.Equal(cur.AddedAt) || old.AddedBy != cur.AddedBy || old.Type != cur.Type {
			return fmt.Errorf("%w: %s entry %d was modified", ErrAppendOnly, kind, i+1)
		}
		switch {
		case old.Completed:
			if !cur.Completed || cur.Outcome != old.Outcome || !sameTime(old.ClosedAt, cur.ClosedAt) {
				return fmt.Errorf("%w: %s entry %d is already closed", ErrAppendOnly, kind, i+1)
			}
		case cur.Completed:
			if !closingOutcomes[cur.Outcome] {
				return fmt.Errorf("%w: %s entry %d closed with outcome %q", ErrAppendOnly, kind, i+1, cur.Outcome)
			}
		default:
			if cur.Outcome != old.Outcome || cur.ClosedAt != nil {
				return fmt.Errorf("%w: pending %s entry %d was modified", ErrAppendOnly, kind, i+1)
			}
		}
	}
	for i := len(before); i < len(after); i++ {
		h := after[i]
		if !h.Completed && h.Outcome != models.OutcomePending {
			return fmt.Errorf("%w: new %s entry %d has outcome %q", ErrAppendOnly, kind, i+1, h.Outcome)
		}
		if h.Completed && !closingOutcomes[h.Outcome] {
			return fmt.Errorf("%w: new %s entry %d has outcome %q", ErrAppendOnly, kind, i+1, h.Outcome)
		}
	}
	return nil
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
