// Package typereg implements the dynamic type registry (spec §4.5): a
// table of (type, base_type, sequence, description) governing id scheme
// and expected fields for every item type, built-in or user-defined.
package typereg

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"regexp"

	"github.com/shirokuma-go/kb/internal/kberrors"
	"github.com/shirokuma-go/kb/internal/kbtypes"
	"github.com/shirokuma-go/kb/internal/pathsafe"
)

var namePattern = regexp.MustCompile(kbtypes.TypeNamePattern)

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Registry reads and writes the sequences table, which doubles as the
// type directory (spec §6: "sequences (type PK, current_value, base_type,
// description)").
type Registry struct {
	db       Querier
	dataRoot string
}

// New wraps a Querier and the data root used to seed new type directories.
func New(db Querier, dataRoot string) *Registry { return &Registry{db: db, dataRoot: dataRoot} }

// Seed registers the two reserved types if they are not already present.
// Reserved types are seeded through the same row shape a user-defined
// type would use (spec §9 redesign note: "pre-configured types... seeded
// through the same create path the user would").
func (r *Registry) Seed(ctx context.Context) error {
	for _, t := range []struct {
		name string
		base kbtypes.BaseType
		desc string
	}{
		{kbtypes.TypeSessions, kbtypes.BaseSessions, "Work session logs"},
		{kbtypes.TypeDailies, kbtypes.BaseDocuments, "Daily summaries, one per calendar date"},
	} {
		var count int
		if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sequences WHERE type = ?`, t.name).Scan(&count); err != nil {
			return kberrors.NewIndexError(err)
		}
		if count > 0 {
			continue
		}
		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO sequences (type, base_type, current_value, description) VALUES (?, ?, 0, ?)`,
			t.name, string(t.base), t.desc,
		); err != nil {
			return kberrors.NewIndexError(err)
		}
	}
	return nil
}

// List returns every non-reserved registered type (spec §4.5).
func (r *Registry) List(ctx context.Context) ([]kbtypes.TypeDefinition, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT type, base_type, current_value, description FROM sequences WHERE type NOT IN (?, ?) ORDER BY type`,
		kbtypes.TypeSessions, kbtypes.TypeDailies,
	)
	if err != nil {
		return nil, kberrors.NewIndexError(err)
	}
	defer rows.Close()

	var out []kbtypes.TypeDefinition
	for rows.Next() {
		var td kbtypes.TypeDefinition
		var base string
		if err := rows.Scan(&td.Type, &base, &td.Sequence, &td.Description); err != nil {
			return nil, kberrors.NewIndexError(err)
		}
		td.BaseType = kbtypes.BaseType(base)
		out = append(out, td)
	}
	return out, rows.Err()
}

// Get fetches a single type definition, reserved or not.
func (r *Registry) Get(ctx context.Context, name string) (kbtypes.TypeDefinition, error) {
	var td kbtypes.TypeDefinition
	var base string
	err := r.db.QueryRowContext(ctx,
		`SELECT type, base_type, current_value, description FROM sequences WHERE type = ?`, name,
	).Scan(&td.Type, &base, &td.Sequence, &td.Description)
	if err == sql.ErrNoRows {
		return kbtypes.TypeDefinition{}, kberrors.NewNotFound("type", name)
	}
	if err != nil {
		return kbtypes.TypeDefinition{}, kberrors.NewIndexError(err)
	}
	td.BaseType = kbtypes.BaseType(base)
	return td, nil
}

// Exists reports whether name is registered (reserved or user-defined).
func (r *Registry) Exists(ctx context.Context, name string) (bool, error) {
	_, err := r.Get(ctx, name)
	if err == nil {
		return true, nil
	}
	var nf *kberrors.NotFound
	if asNotFound(err, &nf) {
		return false, nil
	}
	return false, err
}

func asNotFound(err error, target **kberrors.NotFound) bool {
	nf, ok := err.(*kberrors.NotFound)
	if ok {
		*target = nf
	}
	return ok
}

// Create validates name, rejects duplicates and reserved names, seeds the
// type directory on disk, and initialises its sequence to 0 (spec §4.5).
func (r *Registry) Create(ctx context.Context, name string, base kbtypes.BaseType, description string) (kbtypes.TypeDefinition, error) {
	if kbtypes.IsReservedType(name) {
		return kbtypes.TypeDefinition{}, kberrors.NewInvalidRequest("type %q is reserved", name)
	}
	if !namePattern.MatchString(name) {
		return kbtypes.TypeDefinition{}, kberrors.NewInvalidRequest("type name %q must match %s", name, kbtypes.TypeNamePattern)
	}
	if !base.Valid() || base == kbtypes.BaseSessions {
		return kbtypes.TypeDefinition{}, kberrors.NewInvalidRequest("base type %q is not creatable by users", base)
	}
	if err := pathsafe.ValidateTypeName(name); err != nil {
		return kbtypes.TypeDefinition{}, err
	}

	exists, err := r.Exists(ctx, name)
	if err != nil {
		return kbtypes.TypeDefinition{}, err
	}
	if exists {
		return kbtypes.TypeDefinition{}, kberrors.NewConflict("type %q already exists", name)
	}

	dir, err := pathsafe.TypeDir(r.dataRoot, name)
	if err != nil {
		return kbtypes.TypeDefinition{}, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return kbtypes.TypeDefinition{}, kberrors.NewIoError(dir, err)
	}

	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO sequences (type, base_type, current_value, description) VALUES (?, ?, 0, ?)`,
		name, string(base), description,
	); err != nil {
		return kbtypes.TypeDefinition{}, kberrors.NewIndexError(fmt.Errorf("insert type %s: %w", name, err))
	}

	return kbtypes.TypeDefinition{Type: name, BaseType: base, Description: description}, nil
}

// UpdateDescription changes only the description field of a type.
func (r *Registry) UpdateDescription(ctx context.Context, name, description string) error {
	if kbtypes.IsReservedType(name) {
		return kberrors.NewInvalidRequest("type %q is reserved", name)
	}
	res, err := r.db.ExecContext(ctx, `UPDATE sequences SET description = ? WHERE type = ?`, description, name)
	if err != nil {
		return kberrors.NewIndexError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return kberrors.NewIndexError(err)
	}
	if n == 0 {
		return kberrors.NewNotFound("type", name)
	}
	return nil
}

// Delete removes a type registration. Refused if reserved, unregistered,
// or any file still exists under the type's directory (spec §4.5, §3.3).
func (r *Registry) Delete(ctx context.Context, name string) error {
	if kbtypes.IsReservedType(name) {
		return kberrors.NewInvalidRequest("type %q is reserved", name)
	}
	if _, err := r.Get(ctx, name); err != nil {
		return err
	}

	dir, err := pathsafe.TypeDir(r.dataRoot, name)
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		return kberrors.NewIoError(dir, err)
	}
	if len(entries) > 0 {
		return kberrors.NewConflict("type %q still has files under %s", name, dir)
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM sequences WHERE type = ?`, name); err != nil {
		return kberrors.NewIndexError(err)
	}
	return nil
}

// BaseTypeOf returns the base type governing name.
func (r *Registry) BaseTypeOf(ctx context.Context, name string) (kbtypes.BaseType, error) {
	td, err := r.Get(ctx, name)
	if err != nil {
		return "", err
	}
	return td.BaseType, nil
}

// FieldsFor returns the expected field set for name's base type.
func (r *Registry) FieldsFor(ctx context.Context, name string) ([]string, error) {
	base, err := r.BaseTypeOf(ctx, name)
	if err != nil {
		return nil, err
	}
	return kbtypes.FieldsFor(base), nil
}

// NextSequence increments and returns the next sequence value for an
// auto-numbered type (spec §4.6.6), via an UPDATE followed by a SELECT
// against the shared db handle. The two statements are not wrapped in a
// transaction, so this is race-free only because the stdio server
// processes one request at a time; a multi-writer transport would need
// to bracket this in BEGIN IMMEDIATE.
func (r *Registry) NextSequence(ctx context.Context, name string) (int64, error) {
	if _, err := r.db.ExecContext(ctx, `UPDATE sequences SET current_value = current_value + 1 WHERE type = ?`, name); err != nil {
		return 0, kberrors.NewIndexError(err)
	}
	var val int64
	if err := r.db.QueryRowContext(ctx, `SELECT current_value FROM sequences WHERE type = ?`, name).Scan(&val); err != nil {
		return 0, kberrors.NewIndexError(err)
	}
	return val, nil
}

// SetSequence forces the sequence value for name, used by the rebuild
// engine to recompute sequences as max(id) over files on disk (spec
// §4.10 step 3).
func (r *Registry) SetSequence(ctx context.Context, name string, value int64) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE sequences SET current_value = ? WHERE type = ?`, value, name); err != nil {
		return kberrors.NewIndexError(err)
	}
	return nil
}

// RegisterDiscovered registers a type found on disk during rebuild that
// isn't yet in the registry, using the supplied base type mapping (spec
// §4.10 step 1). It is a no-op if the type already exists.
func (r *Registry) RegisterDiscovered(ctx context.Context, name string, base kbtypes.BaseType) error {
	exists, err := r.Exists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO sequences (type, base_type, current_value, description) VALUES (?, ?, 0, '')`,
		name, string(base),
	); err != nil {
		return kberrors.NewIndexError(err)
	}
	return nil
}
