package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/shirokuma-go/kb/internal/kberrors"
	"github.com/shirokuma-go/kb/internal/kbtypes"
)

// Row is the flattened relational projection of an Item, spec §4.8's
// "indexed form: tags and related serialised as JSON plus the normalised
// junctions".
type Row struct {
	Type        string
	ID          string
	Title       string
	Description string
	Content     string
	Priority    string
	StatusID    int64
	StartDate   string
	EndDate     string
	StartTime   string
	Tags        []string
	Related     []string
	CreatedAt   string
	UpdatedAt   string
}

func nullable(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// UpsertItem writes the full relational projection of one item: the
// items row, its FTS row, its tag junction rows, and its related_items
// rows. Every write in this function happens against tx, so the index
// writes commit or roll back together; the Markdown file written before
// this call is not rolled back with them (spec §4.8).
func UpsertItem(ctx context.Context, tx *sql.Tx, row Row, tagIDs []int64) error {
	tagsJSON, err := json.Marshal(row.Tags)
	if err != nil {
		return kberrors.NewInternal(err)
	}
	relatedJSON, err := json.Marshal(row.Related)
	if err != nil {
		return kberrors.NewInternal(err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO items (
			type, id, title, description, content, priority, status_id,
			start_date, end_date, start_time, tags_json, related_json,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(type, id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			content = excluded.content,
			priority = excluded.priority,
			status_id = excluded.status_id,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			start_time = excluded.start_time,
			tags_json = excluded.tags_json,
			related_json = excluded.related_json,
			updated_at = excluded.updated_at
	`,
		row.Type, row.ID, row.Title, row.Description, row.Content, row.Priority, row.StatusID,
		nullable(row.StartDate), nullable(row.EndDate), nullable(row.StartTime),
		string(tagsJSON), string(relatedJSON), row.CreatedAt, row.UpdatedAt,
	)
	if err != nil {
		return kberrors.NewIndexError(fmt.Errorf("upsert item %s-%s: %w", row.Type, row.ID, err))
	}

	if err := upsertFTS(ctx, tx, row); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM item_tags WHERE item_type = ? AND item_id = ?`, row.Type, row.ID); err != nil {
		return kberrors.NewIndexError(err)
	}
	for _, id := range tagIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO item_tags (item_type, item_id, tag_id) VALUES (?, ?, ?)`,
			row.Type, row.ID, id,
		); err != nil {
			return kberrors.NewIndexError(err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM related_items WHERE source_type = ? AND source_id = ?`, row.Type, row.ID); err != nil {
		return kberrors.NewIndexError(err)
	}
	for i, ref := range row.Related {
		parsed, err := kbtypes.ParseRef(ref)
		if err != nil {
			continue // defensive: malformed refs shouldn't abort an otherwise-valid write
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO related_items (source_type, source_id, target_type, target_id, ordinal) VALUES (?, ?, ?, ?, ?)`,
			row.Type, row.ID, parsed.Type, parsed.ID, i,
		); err != nil {
			return kberrors.NewIndexError(err)
		}
	}

	return nil
}

// DeleteItem removes the items row, its FTS row, its tag junction rows and
// the related_items rows it is the source of (spec §4.6.4, §4.8). Rows in
// which it is only the target are left in place, so dangling references
// stay visible to get_related and the dangling-reference audit.
func DeleteItem(ctx context.Context, tx *sql.Tx, itemType, itemID string) error {
	if err := deleteFTS(ctx, tx, itemType, itemID); err != nil {
		return err
	}
	for _, stmt := range []string{
		`DELETE FROM items WHERE type = ? AND id = ?`,
		`DELETE FROM item_tags WHERE item_type = ? AND item_id = ?`,
		`DELETE FROM related_items WHERE source_type = ? AND source_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, itemType, itemID); err != nil {
			return kberrors.NewIndexError(err)
		}
	}
	// Dangling references from OTHER items are intentionally left in
	// place (spec §4.6.4, §9 open question): we do not delete rows where
	// this item is only the target.
	return nil
}

// GetRow fetches the relational projection of one item.
func (idx *Index) GetRow(ctx context.Context, itemType, itemID string) (Row, error) {
	var r Row
	var startDate, endDate, startTime sql.NullString
	var tagsJSON, relatedJSON string
	err := idx.db.QueryRowContext(ctx, `
		SELECT type, id, title, description, content, priority, status_id,
		       start_date, end_date, start_time, tags_json, related_json, created_at, updated_at
		FROM items WHERE type = ? AND id = ?
	`, itemType, itemID).Scan(
		&r.Type, &r.ID, &r.Title, &r.Description, &r.Content, &r.Priority, &r.StatusID,
		&startDate, &endDate, &startTime, &tagsJSON, &relatedJSON, &r.CreatedAt, &r.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return Row{}, kberrors.NewNotFound("item", itemType+"-"+itemID)
	}
	if err != nil {
		return Row{}, kberrors.NewIndexError(err)
	}
	r.StartDate, r.EndDate, r.StartTime = startDate.String, endDate.String, startTime.String
	_ = json.Unmarshal([]byte(tagsJSON), &r.Tags)
	_ = json.Unmarshal([]byte(relatedJSON), &r.Related)
	return r, nil
}

// ListParams filters a List query.
type ListParams struct {
	Type          string
	IncludeClosed bool
	StatusIDs     []int64 // explicit status filter; overrides IncludeClosed when non-empty
	Limit         int
	Offset        int
}

// List returns lightweight summaries ordered by created_at DESC (spec
// §4.6.5). Excludes closed statuses unless IncludeClosed is set or an
// explicit status filter is given.
func (idx *Index) List(ctx context.Context, p ListParams) ([]kbtypes.Summary, error) {
	query := `
		SELECT i.type, i.id, i.title, i.description, i.priority, i.status_id,
		       s.name, s.is_closed, i.tags_json, i.created_at, i.updated_at
		FROM items i
		JOIN statuses s ON s.id = i.status_id
		WHERE 1 = 1`
	var args []any

	if p.Type != "" {
		query += ` AND i.type = ?`
		args = append(args, p.Type)
	}

	if len(p.StatusIDs) > 0 {
		query += ` AND i.status_id IN (` + placeholders(len(p.StatusIDs)) + `)`
		for _, id := range p.StatusIDs {
			args = append(args, id)
		}
	} else if !p.IncludeClosed {
		query += ` AND s.is_closed = 0`
	}

	query += ` ORDER BY i.created_at DESC`
	if p.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, p.Limit, p.Offset)
	}

	rows, err := idx.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, kberrors.NewIndexError(err)
	}
	defer rows.Close()

	var out []kbtypes.Summary
	for rows.Next() {
		var s kbtypes.Summary
		var closed int
		var tagsJSON string
		var priority string
		if err := rows.Scan(&s.Type, &s.ID, &s.Title, &s.Description, &priority, &s.StatusID,
			&s.StatusName, &closed, &tagsJSON, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, kberrors.NewIndexError(err)
		}
		s.Priority = kbtypes.Priority(priority)
		s.IsClosed = closed != 0
		_ = json.Unmarshal([]byte(tagsJSON), &s.Tags)
		out = append(out, s)
	}
	return out, rows.Err()
}

// FindReferrers returns every item that lists target among its related
// references, used by change_item_type's reference-rewrite step (spec
// §4.6.7 step 3).
func (idx *Index) FindReferrers(ctx context.Context, target kbtypes.Ref) ([]kbtypes.Ref, error) {
	rows, err := idx.db.QueryContext(ctx, `
		SELECT DISTINCT source_type, source_id FROM related_items
		WHERE target_type = ? AND target_id = ?
	`, target.Type, target.ID)
	if err != nil {
		return nil, kberrors.NewIndexError(err)
	}
	defer rows.Close()

	var out []kbtypes.Ref
	for rows.Next() {
		var r kbtypes.Ref
		if err := rows.Scan(&r.Type, &r.ID); err != nil {
			return nil, kberrors.NewIndexError(err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			out += ", "
		}
		out += "?"
	}
	return out
}

// Stats is the aggregate shape get_stats returns (spec §4.11, expanded
// per SPEC_FULL.md §6.5 with per-type and per-status breakdowns).
type Stats struct {
	TotalItems      int64
	ItemsByType     map[string]int64
	ItemsByStatus   map[string]int64
	TotalStatuses   int64
	TotalTags       int64
	TotalTypes      int64
	DanglingRefs    int64
}

// Stats computes get_stats (spec §4.11).
func (idx *Index) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	s.ItemsByType = map[string]int64{}
	s.ItemsByStatus = map[string]int64{}

	if err := idx.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&s.TotalItems); err != nil {
		return Stats{}, kberrors.NewIndexError(err)
	}
	if err := idx.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM statuses`).Scan(&s.TotalStatuses); err != nil {
		return Stats{}, kberrors.NewIndexError(err)
	}
	if err := idx.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tags`).Scan(&s.TotalTags); err != nil {
		return Stats{}, kberrors.NewIndexError(err)
	}
	if err := idx.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sequences WHERE type NOT IN (?, ?)`,
		kbtypes.TypeSessions, kbtypes.TypeDailies,
	).Scan(&s.TotalTypes); err != nil {
		return Stats{}, kberrors.NewIndexError(err)
	}

	rows, err := idx.db.QueryContext(ctx, `SELECT type, COUNT(*) FROM items GROUP BY type`)
	if err != nil {
		return Stats{}, kberrors.NewIndexError(err)
	}
	for rows.Next() {
		var t string
		var c int64
		if err := rows.Scan(&t, &c); err != nil {
			rows.Close()
			return Stats{}, kberrors.NewIndexError(err)
		}
		s.ItemsByType[t] = c
	}
	rows.Close()

	rows, err = idx.db.QueryContext(ctx, `
		SELECT s.name, COUNT(*) FROM items i JOIN statuses s ON s.id = i.status_id GROUP BY s.name
	`)
	if err != nil {
		return Stats{}, kberrors.NewIndexError(err)
	}
	for rows.Next() {
		var name string
		var c int64
		if err := rows.Scan(&name, &c); err != nil {
			rows.Close()
			return Stats{}, kberrors.NewIndexError(err)
		}
		s.ItemsByStatus[name] = c
	}
	rows.Close()

	if err := idx.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM related_items r
		WHERE NOT EXISTS (SELECT 1 FROM items i WHERE i.type = r.target_type AND i.id = r.target_id)
	`).Scan(&s.DanglingRefs); err != nil {
		return Stats{}, kberrors.NewIndexError(err)
	}

	return s, nil
}
