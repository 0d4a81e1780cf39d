// Package statusreg implements the status registry (spec §4.3): a small
// set of named workflow states, seeded once into the index and otherwise
// effectively immutable in normal operation.
package statusreg

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shirokuma-go/kb/internal/kberrors"
	"github.com/shirokuma-go/kb/internal/kbtypes"
)

// DefaultStatuses is the initial set inserted on first initialisation of
// the index (spec §3.1).
var DefaultStatuses = []struct {
	Name     string
	IsClosed bool
}{
	{"Open", false},
	{"In Progress", false},
	{"Review", false},
	{"Completed", true},
	{"Closed", true},
	{"On Hold", false},
	{"Cancelled", true},
}

// DefaultStatusName is the status create() resolves to when the caller
// doesn't specify one (spec §3.1).
const DefaultStatusName = "Open"

// Registry reads and writes the statuses table. It never performs its own
// transaction management — callers run it against either *sql.DB or an
// in-flight *sql.Tx via the Querier interface, matching the teacher's
// Storage/Transaction split (BeadsLog/internal/storage/storage.go).
type Registry struct {
	db Querier
}

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New wraps a Querier.
func New(db Querier) *Registry { return &Registry{db: db} }

// Seed inserts DefaultStatuses if the statuses table is empty. Idempotent.
func (r *Registry) Seed(ctx context.Context) error {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM statuses`).Scan(&count); err != nil {
		return kberrors.NewIndexError(fmt.Errorf("count statuses: %w", err))
	}
	if count > 0 {
		return nil
	}
	for _, s := range DefaultStatuses {
		closed := 0
		if s.IsClosed {
			closed = 1
		}
		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO statuses (name, is_closed) VALUES (?, ?)`, s.Name, closed); err != nil {
			return kberrors.NewIndexError(fmt.Errorf("seed status %s: %w", s.Name, err))
		}
	}
	return nil
}

// List returns every registered status.
func (r *Registry) List(ctx context.Context) ([]kbtypes.Status, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, is_closed, created_at FROM statuses ORDER BY id`)
	if err != nil {
		return nil, kberrors.NewIndexError(err)
	}
	defer rows.Close()

	var out []kbtypes.Status
	for rows.Next() {
		var s kbtypes.Status
		var closed int
		if err := rows.Scan(&s.ID, &s.Name, &closed, &s.CreatedAt); err != nil {
			return nil, kberrors.NewIndexError(err)
		}
		s.IsClosed = closed != 0
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetByID fetches a single status.
func (r *Registry) GetByID(ctx context.Context, id int64) (kbtypes.Status, error) {
	var s kbtypes.Status
	var closed int
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, is_closed, created_at FROM statuses WHERE id = ?`, id,
	).Scan(&s.ID, &s.Name, &closed, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return kbtypes.Status{}, kberrors.NewNotFound("status", fmt.Sprintf("%d", id))
	}
	if err != nil {
		return kbtypes.Status{}, kberrors.NewIndexError(err)
	}
	s.IsClosed = closed != 0
	return s, nil
}

// GetByName fetches a status by its exact (case-sensitive) name.
func (r *Registry) GetByName(ctx context.Context, name string) (kbtypes.Status, error) {
	var s kbtypes.Status
	var closed int
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, is_closed, created_at FROM statuses WHERE name = ?`, name,
	).Scan(&s.ID, &s.Name, &closed, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return kbtypes.Status{}, kberrors.NewNotFound("status", name)
	}
	if err != nil {
		return kbtypes.Status{}, kberrors.NewIndexError(err)
	}
	s.IsClosed = closed != 0
	return s, nil
}

// ClosedIDs returns the set of status ids flagged is_closed.
func (r *Registry) ClosedIDs(ctx context.Context) (map[int64]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM statuses WHERE is_closed = 1`)
	if err != nil {
		return nil, kberrors.NewIndexError(err)
	}
	defer rows.Close()

	out := map[int64]struct{}{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, kberrors.NewIndexError(err)
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

// IsReferenced reports whether any item row references statusID, used to
// refuse deletion of an in-use status (spec §3.2 invariant 5). Statuses
// have no public delete operation in the tool surface today, but the
// registry exposes the check so a future administrative command can use
// it without re-deriving the query.
func (r *Registry) IsReferenced(ctx context.Context, statusID int64) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items WHERE status_id = ?`, statusID).Scan(&count)
	if err != nil {
		return false, kberrors.NewIndexError(err)
	}
	return count > 0, nil
}
