package index

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shirokuma-go/kb/internal/kberrors"
)

// migration is one forward-only schema change applied after the base
// schema, the same {Name, Func} shape as
// BeadsLog/internal/storage/sqlite/migrations.go, tracked in db_metadata
// rather than a dedicated migrations table since this engine has no
// legacy installs to reconcile yet.
type migration struct {
	name string
	fn   func(ctx context.Context, db *sql.DB) error
}

// migrations is the ordered list of changes applied on top of the base
// schema. It starts empty: the schema in schema.go is the whole of the
// engine's v1 shape. New entries get appended here, never edited or
// reordered once released, the way the teacher's migration list grows.
var migrations = []migration{}

func runMigrations(ctx context.Context, db *sql.DB) error {
	for _, m := range migrations {
		var applied string
		err := db.QueryRowContext(ctx,
			`SELECT value FROM db_metadata WHERE key = ?`, migrationKey(m.name),
		).Scan(&applied)
		if err == nil {
			continue // already applied
		}
		if err != sql.ErrNoRows {
			return kberrors.NewIndexError(err)
		}
		if err := m.fn(ctx, db); err != nil {
			return kberrors.NewIndexError(fmt.Errorf("migration %s: %w", m.name, err))
		}
		if _, err := db.ExecContext(ctx,
			`INSERT INTO db_metadata (key, value) VALUES (?, 'applied')`, migrationKey(m.name),
		); err != nil {
			return kberrors.NewIndexError(err)
		}
	}
	return nil
}

func migrationKey(name string) string { return "migration:" + name }
