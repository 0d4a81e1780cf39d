// Package itemstore implements the item store (spec §4.6): create, get,
// update, delete, list and change_item_type, each keeping the Markdown
// file of record and the relational index in lockstep. Grounded on
// BeadsLog/internal/storage/storage.go's pattern of a thin service type
// wrapping the index plus the narrower registries it composes.
package itemstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"slices"
	"sort"
	"time"

	"github.com/shirokuma-go/kb/internal/index"
	"github.com/shirokuma-go/kb/internal/kberrors"
	"github.com/shirokuma-go/kb/internal/kbtypes"
	"github.com/shirokuma-go/kb/internal/markdown"
	"github.com/shirokuma-go/kb/internal/pathsafe"
	"github.com/shirokuma-go/kb/internal/statusreg"
	"github.com/shirokuma-go/kb/internal/tagreg"
	"github.com/shirokuma-go/kb/internal/typereg"
)

// Store wires the file-of-record and the relational index for every item
// operation. It never owns its own transaction beyond what one call
// needs: RunInTransaction on idx brackets each write.
type Store struct {
	dataRoot string
	idx      *index.Index
	types    *typereg.Registry
	statuses *statusreg.Registry
	tags     *tagreg.Registry
}

// New builds a Store over an already-open Index and dataRoot.
func New(dataRoot string, idx *index.Index) *Store {
	return &Store{
		dataRoot: dataRoot,
		idx:      idx,
		types:    typereg.New(idx.DB(), dataRoot),
		statuses: statusreg.New(idx.DB()),
		tags:     tagreg.New(idx.DB()),
	}
}

// CreateParams is the input to Create (spec §4.6.1).
type CreateParams struct {
	Type        string
	ID          string // caller-supplied, sessions only
	Title       string
	Description string
	Content     string
	Priority    kbtypes.Priority
	Status      string
	Tags        []string
	StartDate   *kbtypes.Date
	EndDate     *kbtypes.Date
	StartTime   *kbtypes.ClockTime
	Related     []kbtypes.Ref
}

// Create implements spec §4.6.1.
func (s *Store) Create(ctx context.Context, p CreateParams) (kbtypes.Item, error) {
	if _, err := s.types.BaseTypeOf(ctx, p.Type); err != nil {
		return kbtypes.Item{}, err
	}

	id, startDate, startTime, err := s.generateID(ctx, p.Type, p)
	if err != nil {
		return kbtypes.Item{}, err
	}
	if p.StartDate == nil {
		p.StartDate = startDate
	}
	if p.StartTime == nil {
		p.StartTime = startTime
	}

	statusName := p.Status
	if statusName == "" {
		statusName = statusreg.DefaultStatusName
	}
	status, err := s.statuses.GetByName(ctx, statusName)
	if err != nil {
		return kbtypes.Item{}, err
	}

	now := time.Now().UTC()
	item := kbtypes.Item{
		Type:        p.Type,
		ID:          id,
		Title:       p.Title,
		Description: p.Description,
		Content:     p.Content,
		Priority:    p.Priority.NormalizedOrDefault(),
		StatusID:    status.ID,
		StatusName:  status.Name,
		StartDate:   p.StartDate,
		EndDate:     p.EndDate,
		StartTime:   p.StartTime,
		Tags:        kbtypes.NormalizedTags(p.Tags),
		Related:     p.Related,
		CreatedAt:   now,
		UpdatedAt:   now,
		Extra:       map[string]any{},
	}

	path, err := pathsafe.Resolve(s.dataRoot, p.Type, id)
	if err != nil {
		return kbtypes.Item{}, err
	}

	if err := s.writeAndSync(ctx, item, path); err != nil {
		return kbtypes.Item{}, err
	}
	return item, nil
}

// generateID implements spec §4.6.6's three id schemes.
func (s *Store) generateID(ctx context.Context, itemType string, p CreateParams) (string, *kbtypes.Date, *kbtypes.ClockTime, error) {
	switch itemType {
	case kbtypes.TypeDailies:
		if p.StartDate == nil {
			return "", nil, nil, kberrors.NewInvalidRequest("dailies require start_date")
		}
		id := p.StartDate.String()
		path, err := pathsafe.Resolve(s.dataRoot, itemType, id)
		if err != nil {
			return "", nil, nil, err
		}
		if _, err := os.Stat(path); err == nil {
			return "", nil, nil, kberrors.NewConflict("daily already exists for %s", id)
		}
		return id, p.StartDate, nil, nil

	case kbtypes.TypeSessions:
		id := p.ID
		if id == "" {
			now := time.Now()
			id = now.Format("2006-01-02-15.04.05.000")
		} else if !pathsafe.ValidSessionID(id) {
			return "", nil, nil, kberrors.NewInvalidRequest("malformed session id %q", id)
		}
		dateStr, err := pathsafe.SessionDate(id)
		if err != nil {
			return "", nil, nil, err
		}
		date, err := kbtypes.ParseDate(dateStr)
		if err != nil {
			return "", nil, nil, err
		}
		var clock *kbtypes.ClockTime
		if t, err := time.Parse("2006-01-02-15.04.05.000", id); err == nil {
			c := kbtypes.ClockTime{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}
			clock = &c
		}
		return id, &date, clock, nil

	default:
		seq, err := s.types.NextSequence(ctx, itemType)
		if err != nil {
			return "", nil, nil, err
		}
		return kbtypes.FormatSequenceID(seq), nil, nil, nil
	}
}

// writeAndSync writes the Markdown file then synchronises the index
// inside one transaction, matching spec §4.6.1 step 7-8 and the "no
// partial file left if steps 7-8 fail" guarantee in §5: the file is
// written first, and if the index sync that follows fails, the file on
// disk still reflects a self-consistent item that a rebuild can recover.
func (s *Store) writeAndSync(ctx context.Context, item kbtypes.Item, path string) error {
	doc := toDocument(item)
	data, err := markdown.Render(doc, extraOrder(item.Extra))
	if err != nil {
		return kberrors.NewInternal(err)
	}
	if err := atomicWrite(path, data); err != nil {
		return err
	}

	return s.idx.RunInTransaction(ctx, func(tx *sql.Tx) error {
		tagIDs, err := s.tagIDsInTx(ctx, tx, item.Tags)
		if err != nil {
			return err
		}
		row := toRow(item)
		return index.UpsertItem(ctx, tx, row, tagIDs)
	})
}

func (s *Store) tagIDsInTx(ctx context.Context, tx *sql.Tx, names []string) ([]int64, error) {
	reg := tagreg.New(tx)
	if err := reg.EnsureExist(ctx, names); err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(names))
	for _, n := range kbtypes.NormalizedTags(names) {
		id, err := reg.GetOrCreateID(ctx, n)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// RowFromItem exposes toRow to the rebuild engine.
func RowFromItem(item kbtypes.Item) index.Row { return toRow(item) }

func toRow(item kbtypes.Item) index.Row {
	row := index.Row{
		Type:        item.Type,
		ID:          item.ID,
		Title:       item.Title,
		Description: item.Description,
		Content:     item.Content,
		Priority:    string(item.Priority),
		StatusID:    item.StatusID,
		Tags:        item.Tags,
		CreatedAt:   item.CreatedAt.UTC().Format(timestampLayout),
		UpdatedAt:   item.UpdatedAt.UTC().Format(timestampLayout),
	}
	if item.StartDate != nil {
		row.StartDate = item.StartDate.String()
	}
	if item.EndDate != nil {
		row.EndDate = item.EndDate.String()
	}
	if item.StartTime != nil {
		row.StartTime = item.StartTime.String()
	}
	for _, r := range item.Related {
		row.Related = append(row.Related, r.String())
	}
	return row
}

func extraOrder(extra map[string]any) []string {
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get implements spec §4.6.2.
func (s *Store) Get(ctx context.Context, itemType, id string) (kbtypes.Item, error) {
	path, err := pathsafe.Resolve(s.dataRoot, itemType, id)
	if err != nil {
		return kbtypes.Item{}, err
	}
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return kbtypes.Item{}, kberrors.NewNotFound("item", itemType+"-"+id)
	}
	if err != nil {
		return kbtypes.Item{}, kberrors.NewIoError(path, err)
	}

	doc, err := markdown.Parse(path, content)
	if err != nil {
		return kbtypes.Item{}, kberrors.NewInternal(err)
	}
	item, err := fromDocument(itemType, id, doc)
	if err != nil {
		return kbtypes.Item{}, kberrors.NewInternal(fmt.Errorf("reconstruct %s-%s: %w", itemType, id, err))
	}

	if item.StatusName != "" {
		st, err := s.statuses.GetByName(ctx, item.StatusName)
		if err == nil {
			item.StatusID = st.ID
		}
	}
	if item.StartDate == nil {
		if itemType == kbtypes.TypeDailies {
			if d, err := kbtypes.ParseDate(id); err == nil {
				item.StartDate = &d
			}
		} else if itemType == kbtypes.TypeSessions {
			if dateStr, err := pathsafe.SessionDate(id); err == nil {
				if d, err := kbtypes.ParseDate(dateStr); err == nil {
					item.StartDate = &d
				}
			}
		}
	}
	return item, nil
}

// UpdatePatch carries only the fields present in an update call; nil
// means "not present in the patch", matching spec §4.6.3's
// present-vs-absent semantics (distinct from present-but-empty).
type UpdatePatch struct {
	Title       *string
	Description *string
	Content     *string
	Priority    *kbtypes.Priority
	Status      *string
	Tags        *[]string
	Related     *[]kbtypes.Ref
	StartDate   *kbtypes.Date
	EndDate     *kbtypes.Date
	StartTime   *kbtypes.ClockTime
}

// Update implements spec §4.6.3. type and id are immutable. A patch whose
// fields all match the item's current values is a no-op: updated_at is
// left untouched and nothing is written, so repeating an update call
// with unchanged values is idempotent (spec §8 property 2).
func (s *Store) Update(ctx context.Context, itemType, id string, patch UpdatePatch) (kbtypes.Item, error) {
	item, err := s.Get(ctx, itemType, id)
	if err != nil {
		return kbtypes.Item{}, err
	}

	changed := false

	if patch.Title != nil && *patch.Title != item.Title {
		item.Title = *patch.Title
		changed = true
	}
	if patch.Description != nil && *patch.Description != item.Description {
		item.Description = *patch.Description
		changed = true
	}
	if patch.Content != nil && *patch.Content != item.Content {
		item.Content = *patch.Content
		changed = true
	}
	if patch.Priority != nil {
		if p := patch.Priority.NormalizedOrDefault(); p != item.Priority {
			item.Priority = p
			changed = true
		}
	}
	if patch.Status != nil && *patch.Status != item.StatusName {
		st, err := s.statuses.GetByName(ctx, *patch.Status)
		if err != nil {
			return kbtypes.Item{}, err
		}
		item.StatusID = st.ID
		item.StatusName = st.Name
		changed = true
	}
	if patch.Tags != nil {
		if tags := kbtypes.NormalizedTags(*patch.Tags); !slices.Equal(tags, item.Tags) {
			item.Tags = tags
			changed = true
		}
	}
	if patch.Related != nil && !slices.Equal(*patch.Related, item.Related) {
		item.Related = *patch.Related
		changed = true
	}
	if patch.StartDate != nil && !equalDatePtr(patch.StartDate, item.StartDate) {
		item.StartDate = patch.StartDate
		changed = true
	}
	if patch.EndDate != nil && !equalDatePtr(patch.EndDate, item.EndDate) {
		item.EndDate = patch.EndDate
		changed = true
	}
	if patch.StartTime != nil && !equalClockTimePtr(patch.StartTime, item.StartTime) {
		item.StartTime = patch.StartTime
		changed = true
	}

	if !changed {
		return item, nil
	}
	item.UpdatedAt = time.Now().UTC()

	path, err := pathsafe.Resolve(s.dataRoot, itemType, id)
	if err != nil {
		return kbtypes.Item{}, err
	}
	if err := s.writeAndSync(ctx, item, path); err != nil {
		return kbtypes.Item{}, err
	}
	return item, nil
}

func equalDatePtr(a, b *kbtypes.Date) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalClockTimePtr(a, b *kbtypes.ClockTime) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Delete implements spec §4.6.4. Returns whether a file was actually
// removed.
func (s *Store) Delete(ctx context.Context, itemType, id string) (bool, error) {
	path, err := pathsafe.Resolve(s.dataRoot, itemType, id)
	if err != nil {
		return false, err
	}
	removed, err := removeIfExists(path)
	if err != nil {
		return false, err
	}

	err = s.idx.RunInTransaction(ctx, func(tx *sql.Tx) error {
		return index.DeleteItem(ctx, tx, itemType, id)
	})
	if err != nil {
		return removed, err
	}
	return removed, nil
}

// ListParams filters List (spec §4.6.5).
type ListParams struct {
	Type          string
	IncludeClosed bool
	Statuses      []string
	Limit         int
	Offset        int
}

// List implements spec §4.6.5.
func (s *Store) List(ctx context.Context, p ListParams) ([]kbtypes.Summary, error) {
	ip := index.ListParams{Type: p.Type, IncludeClosed: p.IncludeClosed, Limit: p.Limit, Offset: p.Offset}
	for _, name := range p.Statuses {
		st, err := s.statuses.GetByName(ctx, name)
		if err != nil {
			return nil, err
		}
		ip.StatusIDs = append(ip.StatusIDs, st.ID)
	}
	return s.idx.List(ctx, ip)
}

// ChangeItemType implements spec §4.6.7.
func (s *Store) ChangeItemType(ctx context.Context, fromType, fromID, toType string) (newID string, rewritten int, err error) {
	fromBase, err := s.types.BaseTypeOf(ctx, fromType)
	if err != nil {
		return "", 0, err
	}
	toBase, err := s.types.BaseTypeOf(ctx, toType)
	if err != nil {
		return "", 0, err
	}
	if fromBase != toBase {
		return "", 0, kberrors.NewInvalidRequest("cannot change %s (%s) to %s (%s): base types differ", fromType, fromBase, toType, toBase)
	}
	if kbtypes.IsReservedType(fromType) || kbtypes.IsReservedType(toType) {
		return "", 0, kberrors.NewInvalidRequest("change_item_type does not apply to sessions or dailies")
	}

	original, err := s.Get(ctx, fromType, fromID)
	if err != nil {
		return "", 0, err
	}

	created, err := s.Create(ctx, CreateParams{
		Type:        toType,
		Title:       original.Title,
		Description: original.Description,
		Content:     original.Content,
		Priority:    original.Priority,
		Status:      original.StatusName,
		Tags:        original.Tags,
		StartDate:   original.StartDate,
		EndDate:     original.EndDate,
		StartTime:   original.StartTime,
		Related:     original.Related,
	})
	if err != nil {
		return "", 0, err
	}

	oldRef := kbtypes.Ref{Type: fromType, ID: fromID}
	newRef := kbtypes.Ref{Type: toType, ID: created.ID}
	count, err := s.rewriteReferences(ctx, oldRef, newRef)
	if err != nil {
		return created.ID, count, err
	}

	if _, err := s.Delete(ctx, fromType, fromID); err != nil {
		return created.ID, count, err
	}
	return created.ID, count, nil
}

// AddRelations implements spec §4.7. Relations are undirected: each
// target is appended to source's related list, and source is appended to
// each target's related list, if not already present. Both items are
// persisted through writeAndSync, so related_items resyncs from the
// rewritten related_json the same way it does for any other write —
// there is no separate index-only insert to keep in sync. Self-references
// and references to nonexistent items are rejected before anything is
// written, so a bad target in the batch never leaves a partial update on
// disk.
func (s *Store) AddRelations(ctx context.Context, source kbtypes.Ref, targets []kbtypes.Ref) error {
	src, err := s.Get(ctx, source.Type, source.ID)
	if err != nil {
		return err
	}

	tgts := make([]kbtypes.Item, len(targets))
	for i, target := range targets {
		if target == source {
			return kberrors.NewInvalidRequest("item %s cannot relate to itself", source.String())
		}
		tgt, err := s.Get(ctx, target.Type, target.ID)
		if err != nil {
			return err
		}
		tgts[i] = tgt
	}

	srcChanged := false
	for i, target := range targets {
		if !containsRef(src.Related, target) {
			src.Related = append(src.Related, target)
			srcChanged = true
		}

		tgt := tgts[i]
		if containsRef(tgt.Related, source) {
			continue
		}
		tgt.Related = append(tgt.Related, source)
		tgt.UpdatedAt = time.Now().UTC()
		path, err := pathsafe.Resolve(s.dataRoot, target.Type, target.ID)
		if err != nil {
			return err
		}
		if err := s.writeAndSync(ctx, tgt, path); err != nil {
			return err
		}
	}

	if !srcChanged {
		return nil
	}
	src.UpdatedAt = time.Now().UTC()
	path, err := pathsafe.Resolve(s.dataRoot, source.Type, source.ID)
	if err != nil {
		return err
	}
	return s.writeAndSync(ctx, src, path)
}

func containsRef(refs []kbtypes.Ref, ref kbtypes.Ref) bool {
	for _, r := range refs {
		if r == ref {
			return true
		}
	}
	return false
}

// rewriteReferences scans every item whose related list contains old and
// rewrites it to new, persisting each affected item. Matching only the
// old reference makes the rewrite idempotent under retry (spec §4.6.7).
func (s *Store) rewriteReferences(ctx context.Context, old, replacement kbtypes.Ref) (int, error) {
	referrers, err := s.idx.FindReferrers(ctx, old)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, ref := range referrers {
		item, err := s.Get(ctx, ref.Type, ref.ID)
		if err != nil {
			continue
		}
		changed := false
		for i, r := range item.Related {
			if r == old {
				item.Related[i] = replacement
				changed = true
			}
		}
		if !changed {
			continue
		}
		item.UpdatedAt = time.Now().UTC()
		path, err := pathsafe.Resolve(s.dataRoot, ref.Type, ref.ID)
		if err != nil {
			return count, err
		}
		if err := s.writeAndSync(ctx, item, path); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
