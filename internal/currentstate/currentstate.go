// Package currentstate implements the singleton scratch record (spec
// §3.1, §4.9): the latest "what am I doing right now" snapshot, versioned
// by insert-only history rather than in-place update. Grounded on the
// same Querier-over-*sql.DB-or-*sql.Tx split as statusreg and tagreg.
package currentstate

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/shirokuma-go/kb/internal/kberrors"
	"github.com/shirokuma-go/kb/internal/kbtypes"
)

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store reads and writes the current_state table.
type Store struct {
	db Querier
}

// New wraps a Querier.
func New(db Querier) *Store { return &Store{db: db} }

// Get returns the latest snapshot by version, whatever its is_active flag. A never-written data root has
// no rows at all, which is reported as NotFound rather than a zero value,
// so callers can distinguish "never set" from "set to empty".
func (s *Store) Get(ctx context.Context) (kbtypes.CurrentState, error) {
	var cs kbtypes.CurrentState
	var tagsJSON, metaJSON string
	var active int
	err := s.db.QueryRowContext(ctx, `
		SELECT content, tags_json, metadata_json, version, is_active, created_at
		FROM current_state
		ORDER BY version DESC
		LIMIT 1
	`).Scan(&cs.Content, &tagsJSON, &metaJSON, &cs.Version, &active, &cs.CreatedAt)
	if err == sql.ErrNoRows {
		return kbtypes.CurrentState{}, kberrors.NewNotFound("current_state", "latest")
	}
	if err != nil {
		return kbtypes.CurrentState{}, kberrors.NewIndexError(err)
	}
	cs.IsActive = active != 0

	if err := json.Unmarshal([]byte(tagsJSON), &cs.Tags); err != nil {
		return kbtypes.CurrentState{}, kberrors.NewIndexError(err)
	}
	if err := json.Unmarshal([]byte(metaJSON), &cs.Metadata); err != nil {
		return kbtypes.CurrentState{}, kberrors.NewIndexError(err)
	}
	return cs, nil
}

// Update inserts a new version rather than overwriting the previous one,
// so the history of what was "current" at any point stays queryable
// (spec §4.9: "update never mutates a prior version in place").
func (s *Store) Update(ctx context.Context, content string, tags []string, metadata map[string]any) (kbtypes.CurrentState, error) {
	if tags == nil {
		tags = []string{}
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	tagsJSON, err := json.Marshal(kbtypes.NormalizedTags(tags))
	if err != nil {
		return kbtypes.CurrentState{}, kberrors.NewInvalidRequest("marshal tags: %v", err)
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return kbtypes.CurrentState{}, kberrors.NewInvalidRequest("marshal metadata: %v", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO current_state (content, tags_json, metadata_json, is_active)
		VALUES (?, ?, ?, 1)
	`, content, string(tagsJSON), string(metaJSON)); err != nil {
		return kbtypes.CurrentState{}, kberrors.NewIndexError(err)
	}

	return s.Get(ctx)
}
