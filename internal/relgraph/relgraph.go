// Package relgraph implements the read side of get_related_items (spec
// §4.7): depth-limited, cycle-safe traversal of the related_items index
// table, plus the dangling-reference audit. The write side of §4.7
// (add_relations) lives in itemstore, since the Markdown related list is
// the source of truth and related_items is resynced as a side effect of
// writing the item through the store. Grounded on the recursive-CTE
// traversal in BeadsLog/internal/queries/graph.go, adapted from a
// single-table entity graph to the composite (type, id) keys an Item
// uses.
package relgraph

import (
	"context"
	"database/sql"

	"github.com/shirokuma-go/kb/internal/kberrors"
	"github.com/shirokuma-go/kb/internal/kbtypes"
)

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Graph reads related_items.
type Graph struct {
	db Querier
}

// New wraps a Querier.
func New(db Querier) *Graph { return &Graph{db: db} }

// Node is one hop in a get_related traversal result.
type Node struct {
	Ref   kbtypes.Ref
	Depth int
}

// GetRelated returns every item reachable from ref within maxDepth hops,
// cycle-safe via a path check in the recursive CTE (the same ' -> '-joined
// path-contains guard the teacher uses in GetEntityGraphExact, adapted to
// composite keys with a '|' separator since type/id can themselves
// contain '-').
func (g *Graph) GetRelated(ctx context.Context, ref kbtypes.Ref, maxDepth int) ([]Node, error) {
	if maxDepth < 1 {
		maxDepth = 1
	}
	key := ref.Type + "|" + ref.ID
	rows, err := g.db.QueryContext(ctx, `
		WITH RECURSIVE graph(s_type, s_id, depth, path) AS (
			SELECT ?, ?, 0, ?

			UNION ALL

			SELECT r.target_type, r.target_id, g.depth + 1,
			       g.path || ',' || r.target_type || '|' || r.target_id
			FROM related_items r
			JOIN graph g ON r.source_type = g.s_type AND r.source_id = g.s_id
			WHERE g.depth < ?
			  AND g.path NOT LIKE '%' || r.target_type || '|' || r.target_id || '%'
		)
		SELECT DISTINCT s_type, s_id, depth FROM graph WHERE depth > 0 ORDER BY depth, s_type, s_id
	`, ref.Type, ref.ID, key, maxDepth)
	if err != nil {
		return nil, kberrors.NewIndexError(err)
	}
	defer rows.Close()

	var out []Node
	for rows.Next() {
		var n Node
		if err := rows.Scan(&n.Ref.Type, &n.Ref.ID, &n.Depth); err != nil {
			return nil, kberrors.NewIndexError(err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// DanglingRef is a related_items row whose target no longer exists.
type DanglingRef struct {
	Source kbtypes.Ref
	Target kbtypes.Ref
}

// AuditDangling scans related_items for rows pointing at items that have
// been deleted (spec §4.6.4 leaves dangling references in place on
// delete; SPEC_FULL.md §6.7 adds this as the read-side complement so an
// operator can find and decide what to do with them).
func (g *Graph) AuditDangling(ctx context.Context) ([]DanglingRef, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT r.source_type, r.source_id, r.target_type, r.target_id
		FROM related_items r
		WHERE NOT EXISTS (
			SELECT 1 FROM items i WHERE i.type = r.target_type AND i.id = r.target_id
		)
		ORDER BY r.source_type, r.source_id
	`)
	if err != nil {
		return nil, kberrors.NewIndexError(err)
	}
	defer rows.Close()

	var out []DanglingRef
	for rows.Next() {
		var d DanglingRef
		if err := rows.Scan(&d.Source.Type, &d.Source.ID, &d.Target.Type, &d.Target.ID); err != nil {
			return nil, kberrors.NewIndexError(err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
