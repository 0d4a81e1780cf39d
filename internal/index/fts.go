package index

import (
	"context"
	"database/sql"
	"strings"

	"github.com/shirokuma-go/kb/internal/kberrors"
)

// upsertFTS keeps items_fts in sync with items (spec §4.8). Since fts5
// rowids are plain integers and an item's natural key is the composite
// (type, id), items_fts_map holds the mapping; on update we delete and
// re-insert the fts row rather than UPDATE, which is how external-content
// fts5 tables are conventionally kept in sync when the indexed text
// itself may have changed.
func upsertFTS(ctx context.Context, tx *sql.Tx, row Row) error {
	var rowid int64
	err := tx.QueryRowContext(ctx,
		`SELECT fts_rowid FROM items_fts_map WHERE item_type = ? AND item_id = ?`,
		row.Type, row.ID,
	).Scan(&rowid)

	tagsBlob := strings.Join(row.Tags, " ")

	switch err {
	case nil:
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM items_fts WHERE rowid = ?`, rowid); err != nil {
			return kberrors.NewIndexError(err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO items_fts (rowid, type, title, description, content, tags) VALUES (?, ?, ?, ?, ?, ?)`,
			rowid, row.Type, row.Title, row.Description, row.Content, tagsBlob,
		); err != nil {
			return kberrors.NewIndexError(err)
		}
	case sql.ErrNoRows:
		res, err := tx.ExecContext(ctx,
			`INSERT INTO items_fts (type, title, description, content, tags) VALUES (?, ?, ?, ?, ?)`,
			row.Type, row.Title, row.Description, row.Content, tagsBlob,
		)
		if err != nil {
			return kberrors.NewIndexError(err)
		}
		newRowid, err := res.LastInsertId()
		if err != nil {
			return kberrors.NewIndexError(err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO items_fts_map (item_type, item_id, fts_rowid) VALUES (?, ?, ?)`,
			row.Type, row.ID, newRowid,
		); err != nil {
			return kberrors.NewIndexError(err)
		}
	default:
		return kberrors.NewIndexError(err)
	}
	return nil
}

// deleteFTS removes the fts row and its mapping entry for (itemType, itemID).
func deleteFTS(ctx context.Context, tx *sql.Tx, itemType, itemID string) error {
	var rowid int64
	err := tx.QueryRowContext(ctx,
		`SELECT fts_rowid FROM items_fts_map WHERE item_type = ? AND item_id = ?`,
		itemType, itemID,
	).Scan(&rowid)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return kberrors.NewIndexError(err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM items_fts WHERE rowid = ?`, rowid); err != nil {
		return kberrors.NewIndexError(err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM items_fts_map WHERE item_type = ? AND item_id = ?`, itemType, itemID); err != nil {
		return kberrors.NewIndexError(err)
	}
	return nil
}

// FTSHit is one ranked full-text match, ready for the search package to
// attach a snippet and ordinal.
type FTSHit struct {
	Type     string
	ID       string
	Rank     float64
	Snippet  string
}

// QueryFTS runs a raw FTS5 MATCH expression (already lowered from the
// search package's query AST) with neutral per-column weights and
// returns hits ordered by bm25 rank ascending, then (type, id) for ties
// (spec §4.9).
func (idx *Index) QueryFTS(ctx context.Context, matchExpr string, limit int) ([]FTSHit, error) {
	return idx.QueryFTSWeighted(ctx, matchExpr, limit, 1, 1, 1, 1)
}

// QueryFTSWeighted is QueryFTS with explicit per-column bm25 weights, in
// items_fts's column order (type, title, description, content, tags).
// The type column always weighs 1: it exists for field-scoped MATCH
// clauses like "type:tasks", not for ranking.
func (idx *Index) QueryFTSWeighted(ctx context.Context, matchExpr string, limit int, titleW, descW, contentW, tagsW float64) ([]FTSHit, error) {
	rows, err := idx.db.QueryContext(ctx, `
		SELECT m.item_type, m.item_id, bm25(items_fts, 1, ?, ?, ?, ?) AS rank,
		       snippet(items_fts, 3, '[', ']', '...', 10)
		FROM items_fts f
		JOIN items_fts_map m ON m.fts_rowid = f.rowid
		WHERE items_fts MATCH ?
		ORDER BY rank ASC, m.item_type ASC, m.item_id ASC
		LIMIT ?
	`, titleW, descW, contentW, tagsW, matchExpr, limit)
	if err != nil {
		return nil, kberrors.NewInvalidQuery(matchExpr, err.Error())
	}
	defer rows.Close()

	var out []FTSHit
	for rows.Next() {
		var h FTSHit
		if err := rows.Scan(&h.Type, &h.ID, &h.Rank, &h.Snippet); err != nil {
			return nil, kberrors.NewIndexError(err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
