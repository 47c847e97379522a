package store

import (
	"context"
	"database/sql"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jordanlanch/leadcrm/pkg/database"
	"github.com/jordanlanch/leadcrm/pkg/leadstatus"
	"github.com/jordanlanch/leadcrm/pkg/models"
)

// FindSpec selects a window of leads. A nil Where matches every lead and a
// zero Limit returns all matching rows.
type FindSpec struct {
	Where   *entsql.Predicate
	OrderBy []string
	Limit   int
	Offset  int
}

// Count returns the number of leads matching where.
func (s *Store) Count(ctx context.Context, where *entsql.Predicate) (int, error) {
	return s.count(ctx, s.drv, where)
}

// Find returns the leads selected by spec with all children loaded.
func (s *Store) Find(ctx context.Context, spec FindSpec) ([]*models.Lead, error) {
	return s.find(ctx, s.drv, spec)
}

// View reads leads inside a Snapshot transaction.
type View struct {
	s *Store
	q dialect.ExecQuerier
}

// Count is Store.Count within the snapshot.
func (v View) Count(ctx context.Context, where *entsql.Predicate) (int, error) {
	return v.s.count(ctx, v.q, where)
}

// Find is Store.Find within the snapshot.
func (v View) Find(ctx context.Context, spec FindSpec) ([]*models.Lead, error) {
	return v.s.find(ctx, v.q, spec)
}

// Snapshot runs fn in a read-only transaction so every read sees the same
// state. Postgres runs it at REPEATABLE READ; SQLite is serialized by its
// single connection.
func (s *Store) Snapshot(ctx context.Context, fn func(View) error) error {
	var opts *sql.TxOptions
	if s.drv.Dialect() == dialect.Postgres {
		opts = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}
	tx, err := s.drv.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("starting read transaction: %w", err)
	}
	if err := fn(View{s: s, q: tx}); err != nil {
		return rollback(tx, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing read transaction: %w", err)
	}
	return nil
}

func (s *Store) count(ctx context.Context, q dialect.ExecQuerier, where *entsql.Predicate) (int, error) {
	b := s.builder()
	sel := b.Select(entsql.Count("*")).From(b.Table(database.TableLeads))
	if where != nil {
		sel.Where(where)
	}
	query, args := sel.Query()

	rows := &entsql.Rows{}
	if err := q.Query(ctx, query, args, rows); err != nil {
		return 0, fmt.Errorf("counting leads: %w", err)
	}
	defer rows.Close()

	var n int
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, fmt.Errorf("scanning count: %w", err)
		}
	}
	return n, rows.Err()
}

func (s *Store) find(ctx context.Context, q dialect.ExecQuerier, spec FindSpec) ([]*models.Lead, error) {
	b := s.builder()
	sel := b.Select(leadColumns...).From(b.Table(database.TableLeads))
	if spec.Where != nil {
		sel.Where(spec.Where)
	}
	if len(spec.OrderBy) > 0 {
		sel.OrderBy(spec.OrderBy...)
	}
	if spec.Limit > 0 {
		sel.Limit(spec.Limit)
		if spec.Offset > 0 {
			sel.Offset(spec.Offset)
		}
	}
	query, args := sel.Query()

	rows := &entsql.Rows{}
	if err := q.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("querying leads: %w", err)
	}
	leads, err := scanLeads(rows)
	if err != nil {
		return nil, err
	}
	if err := s.loadChildren(ctx, q, leads); err != nil {
		return nil, err
	}
	if leads == nil {
		leads = []*models.Lead{}
	}
	return leads, nil
}

// StatusCounts returns the number of matching leads per status. Statuses
// without leads are reported as zero.
func (s *Store) StatusCounts(ctx context.Context, where *entsql.Predicate) (map[leadstatus.Status]int, error) {
	b := s.builder()
	sel := b.Select("status", entsql.Count("*")).From(b.Table(database.TableLeads))
	if where != nil {
		sel.Where(where)
	}
	query, args := sel.GroupBy("status").Query()

	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("counting statuses: %w", err)
	}
	defer rows.Close()

	counts := make(map[leadstatus.Status]int)
	for _, st := range leadstatus.All() {
		counts[st] = 0
	}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning status count: %w", err)
		}
		counts[leadstatus.Status(status)] = n
	}
	return counts, rows.Err()
}

var statusHistoryColumns = []string{"id", "lead_id", "from_status", "from_substatus", "to_status", "to_substatus", "changed_by", "changed_at"}

// StatusHistory returns the lead's status changes, most recent first.
func (s *Store) StatusHistory(ctx context.Context, leadID string) ([]models.StatusChange, error) {
	b := s.builder()
	query, args := b.Select(statusHistoryColumns...).
		From(b.Table(database.TableStatusHistory)).
		Where(entsql.EQ("lead_id", leadID)).
		OrderBy(entsql.Desc("id")).
		Query()

	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("querying status history: %w", err)
	}
	defer rows.Close()

	history := []models.StatusChange{}
	for rows.Next() {
		var (
			c                        models.StatusChange
			from, fromSub, to, toSub string
		)
		if err := rows.Scan(&c.ID, &c.LeadID, &from, &fromSub, &to, &toSub, &c.ChangedBy, &c.ChangedAt); err != nil {
			return nil, fmt.Errorf("scanning status change: %w", err)
		}
		c.FromStatus = leadstatus.Status(from)
		c.FromSubstatus = leadstatus.Substatus(fromSub)
		c.ToStatus = leadstatus.Status(to)
		c.ToSubstatus = leadstatus.Substatus(toSub)
		c.ChangedAt = c.ChangedAt.UTC()
		history = append(history, c)
	}
	return history, rows.Err()
}

func (s *Store) insertStatusChange(ctx context.Context, tx dialect.ExecQuerier, c models.StatusChange) error {
	query, args := s.builder().Insert(database.TableStatusHistory).
		Columns("lead_id", "from_status", "from_substatus", "to_status", "to_substatus", "changed_by", "changed_at").
		Values(c.LeadID, string(c.FromStatus), string(c.FromSubstatus), string(c.ToStatus), string(c.ToSubstatus), c.ChangedBy, dbTime(c.ChangedAt)).
		Query()
	if err := tx.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("recording status change: %w", err)
	}
	return nil
}

// ScopePredicate restricts a query to the leads visible in scope. It returns
// nil for admins.
func ScopePredicate(scope models.Scope) *entsql.Predicate {
	if scope.IsAdmin() {
		return nil
	}
	return entsql.EQ("assigned_to", scope.UserID)
}
