// Package index implements the relational index synchroniser (C8, spec
// §4.8): the embedded SQLite store that caches what the Markdown files of
// record already say, kept consistent by upserting on every successful
// file write and removing on every successful delete.
package index

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/ncruces/go-sqlite3/driver" // registers the "sqlite3" database/sql driver
	_ "github.com/ncruces/go-sqlite3/embed"  // embeds the pure-Go (wazero) SQLite engine

	"github.com/shirokuma-go/kb/internal/kberrors"
)

// Index owns the *sql.DB connection and every read/write against it.
// Like the teacher's storage.Storage, Index is safe for concurrent
// readers; all writes must go through RunInTransaction so they serialise
// on SQLite's write lock (spec §5).
type Index struct {
	db   *sql.DB
	path string
}

// Open opens (creating if necessary) the SQLite database at path,
// applies the schema, runs pending migrations, and seeds db_metadata.
// Uses "file:" + path the way BeadsLog/internal/syncbranch/syncbranch.go
// does for the ncruces driver, plus pragmas tuned for a single-writer,
// many-reader embedded workload.
func Open(ctx context.Context, path string) (*Index, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, kberrors.NewIoError(path, fmt.Errorf("open index: %w", err))
	}
	db.SetMaxOpenConns(1) // single writer per process (spec §5); readers share this connection

	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode = WAL`); err != nil {
		_ = db.Close()
		return nil, kberrors.NewIndexError(fmt.Errorf("set WAL mode: %w", err))
	}

	idx := &Index{db: db, path: path}
	if err := idx.bootstrap(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return idx, nil
}

func (idx *Index) bootstrap(ctx context.Context) error {
	if _, err := idx.db.ExecContext(ctx, schema); err != nil {
		return kberrors.NewIndexError(fmt.Errorf("apply schema: %w", err))
	}
	if err := runMigrations(ctx, idx.db); err != nil {
		return err
	}
	if _, err := idx.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO db_metadata (key, value) VALUES ('needs_rebuild', 'false')`,
	); err != nil {
		return kberrors.NewIndexError(err)
	}
	return nil
}

// DB returns the underlying *sql.DB, for callers (typereg, statusreg,
// tagreg) that accept the Querier interface directly.
func (idx *Index) DB() *sql.DB { return idx.db }

// Path returns the filesystem path of the index database.
func (idx *Index) Path() string { return idx.path }

// Close closes the underlying connection.
func (idx *Index) Close() error { return idx.db.Close() }

// NeedsRebuild reports the db_metadata.needs_rebuild flag, or true if the
// items table is empty — either condition triggers the rebuild engine on
// startup (spec §4.10).
func (idx *Index) NeedsRebuild(ctx context.Context) (bool, error) {
	var flag string
	err := idx.db.QueryRowContext(ctx, `SELECT value FROM db_metadata WHERE key = 'needs_rebuild'`).Scan(&flag)
	if err != nil && err != sql.ErrNoRows {
		return false, kberrors.NewIndexError(err)
	}
	if flag == "true" {
		return true, nil
	}

	var count int
	if err := idx.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&count); err != nil {
		return false, kberrors.NewIndexError(err)
	}
	return count == 0, nil
}

// MarkNeedsRebuild sets or clears the needs_rebuild flag; the rebuild
// engine clears it once a rebuild completes.
func (idx *Index) MarkNeedsRebuild(ctx context.Context, needed bool) error {
	val := "false"
	if needed {
		val = "true"
	}
	_, err := idx.db.ExecContext(ctx,
		`INSERT INTO db_metadata (key, value) VALUES ('needs_rebuild', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, val)
	if err != nil {
		return kberrors.NewIndexError(err)
	}
	return nil
}

// RunInTransaction runs fn inside a default (deferred) transaction,
// committing on nil return and rolling back otherwise (spec §5: writes
// that mutate file store or index are serialised; matches the teacher's
// Storage.RunInTransaction semantics in
// BeadsLog/internal/storage/storage.go).
func (idx *Index) RunInTransaction(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return kberrors.NewIndexError(err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return kberrors.NewIndexError(fmt.Errorf("commit: %w", err))
	}
	return nil
}
