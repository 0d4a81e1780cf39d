// Package tagreg implements the tag registry (spec §4.4): unique tag
// names created lazily on first reference, with a junction table
// projecting each item's tag set.
package tagreg

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shirokuma-go/kb/internal/kberrors"
	"github.com/shirokuma-go/kb/internal/kbtypes"
)

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Registry reads and writes the tags and item_tags tables.
type Registry struct {
	db Querier
}

// New wraps a Querier.
func New(db Querier) *Registry { return &Registry{db: db} }

// GetOrCreateID returns the id of an existing tag or creates one. A
// UNIQUE-constraint race on concurrent creation is absorbed by re-reading
// the row rather than surfacing the race as an error (spec §7: "Duplicate-
// key race on tag creation is absorbed into get_or_create_id").
func (r *Registry) GetOrCreateID(ctx context.Context, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, kberrors.NewInvalidRequest("tag name must not be empty")
	}

	var id int64
	err := r.db.QueryRowContext(ctx, `SELECT id FROM tags WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, kberrors.NewIndexError(err)
	}

	res, err := r.db.ExecContext(ctx, `INSERT OR IGNORE INTO tags (name) VALUES (?)`, name)
	if err != nil {
		return 0, kberrors.NewIndexError(fmt.Errorf("insert tag %s: %w", name, err))
	}
	if n, _ := res.RowsAffected(); n == 1 {
		id, err = res.LastInsertId()
		if err != nil {
			return 0, kberrors.NewIndexError(err)
		}
		return id, nil
	}

	// INSERT OR IGNORE affected nothing: another writer won the race, or
	// (more plausibly in this single-writer-per-process engine) the first
	// SELECT ran against a stale read. Either way, re-read.
	if err := r.db.QueryRowContext(ctx, `SELECT id FROM tags WHERE name = ?`, name).Scan(&id); err != nil {
		return 0, kberrors.NewIndexError(fmt.Errorf("re-read tag %s after insert race: %w", name, err))
	}
	return id, nil
}

// EnsureExist idempotently creates every name in names that doesn't
// already exist, trimming and rejecting empty-after-trim entries.
func (r *Registry) EnsureExist(ctx context.Context, names []string) error {
	for _, n := range kbtypes.NormalizedTags(names) {
		if _, err := r.GetOrCreateID(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a tag and cascades item_tags rows referencing it. It
// does not rewrite Markdown files that still mention the tag in their
// front matter — see spec §9's open question.
func (r *Registry) Delete(ctx context.Context, name string) error {
	var id int64
	err := r.db.QueryRowContext(ctx, `SELECT id FROM tags WHERE name = ?`, name).Scan(&id)
	if err == sql.ErrNoRows {
		return kberrors.NewNotFound("tag", name)
	}
	if err != nil {
		return kberrors.NewIndexError(err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM item_tags WHERE tag_id = ?`, id); err != nil {
		return kberrors.NewIndexError(err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, id); err != nil {
		return kberrors.NewIndexError(err)
	}
	return nil
}

// SearchByPattern does a case-insensitive substring match over tag names,
// ordered by name.
func (r *Registry) SearchByPattern(ctx context.Context, substr string) ([]kbtypes.Tag, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, created_at FROM tags WHERE name LIKE '%' || ? || '%' COLLATE NOCASE ORDER BY name`,
		substr,
	)
	if err != nil {
		return nil, kberrors.NewIndexError(err)
	}
	defer rows.Close()

	var out []kbtypes.Tag
	for rows.Next() {
		var t kbtypes.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, kberrors.NewIndexError(err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetWithCounts returns every tag with its usage count aggregated across
// all item types.
func (r *Registry) GetWithCounts(ctx context.Context) ([]kbtypes.TagWithCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.id, t.name, t.created_at, COUNT(it.tag_id)
		FROM tags t
		LEFT JOIN item_tags it ON it.tag_id = t.id
		GROUP BY t.id
		ORDER BY t.name
	`)
	if err != nil {
		return nil, kberrors.NewIndexError(err)
	}
	defer rows.Close()

	var out []kbtypes.TagWithCount
	for rows.Next() {
		var t kbtypes.TagWithCount
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt, &t.Count); err != nil {
			return nil, kberrors.NewIndexError(err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// List returns every tag without counts.
func (r *Registry) List(ctx context.Context) ([]kbtypes.Tag, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, created_at FROM tags ORDER BY name`)
	if err != nil {
		return nil, kberrors.NewIndexError(err)
	}
	defer rows.Close()

	var out []kbtypes.Tag
	for rows.Next() {
		var t kbtypes.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, kberrors.NewIndexError(err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SaveItemTags replaces the junction rows for (itemType, itemID) with
// exactly the normalised set of names, atomically relative to the
// enclosing transaction the caller runs this against (spec §4.4,
// "save_item_tags... replaces the junction rows for that item atomically
// within the item write transaction").
func (r *Registry) SaveItemTags(ctx context.Context, itemType, itemID string, names []string) error {
	normalized := kbtypes.NormalizedTags(names)
	if err := r.EnsureExist(ctx, normalized); err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM item_tags WHERE item_type = ? AND item_id = ?`, itemType, itemID); err != nil {
		return kberrors.NewIndexError(err)
	}

	for _, name := range normalized {
		id, err := r.GetOrCreateID(ctx, name)
		if err != nil {
			return err
		}
		if _, err := r.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO item_tags (item_type, item_id, tag_id) VALUES (?, ?, ?)`,
			itemType, itemID, id,
		); err != nil {
			return kberrors.NewIndexError(err)
		}
	}
	return nil
}

// TagsForItem returns the tag names currently attached to (itemType, itemID).
func (r *Registry) TagsForItem(ctx context.Context, itemType, itemID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.name FROM item_tags it
		JOIN tags t ON t.id = it.tag_id
		WHERE it.item_type = ? AND it.item_id = ?
		ORDER BY t.name
	`, itemType, itemID)
	if err != nil {
		return nil, kberrors.NewIndexError(err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, kberrors.NewIndexError(err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}
