// Package engine wires every other internal package into the single
// typed API a transport adapts (spec.md §1: "the core exposes typed
// operations; the transport adapts them"). Grounded on
// BeadsLog/internal/daemon's split between a long-lived Handle opened
// once per process and the narrow request/response structs each
// operation takes, adapted here from a daemon socket handle to an
// in-process engine handle a CLI or RPC loop holds for its lifetime.
package engine

import (
	"context"
	"os"
	"path/filepath"

	"github.com/shirokuma-go/kb/internal/currentstate"
	"github.com/shirokuma-go/kb/internal/index"
	"github.com/shirokuma-go/kb/internal/itemstore"
	"github.com/shirokuma-go/kb/internal/kbtypes"
	"github.com/shirokuma-go/kb/internal/lock"
	"github.com/shirokuma-go/kb/internal/logging"
	"github.com/shirokuma-go/kb/internal/rankconfig"
	"github.com/shirokuma-go/kb/internal/rebuild"
	"github.com/shirokuma-go/kb/internal/relgraph"
	"github.com/shirokuma-go/kb/internal/search"
	"github.com/shirokuma-go/kb/internal/statusreg"
	"github.com/shirokuma-go/kb/internal/tagreg"
	"github.com/shirokuma-go/kb/internal/typereg"
	"github.com/shirokuma-go/kb/internal/watch"
)

// Enricher is the optional hook engine.Open wires in when an API key is
// configured; *enrich.Client satisfies it without this package needing
// to import the anthropic SDK directly.
type Enricher interface {
	SuggestDescription(ctx context.Context, title, content string) string
}

// Handle is the open engine: every tool-surface operation is a method on
// it. Opening and closing a Handle are the only two points where the
// on-disk lock and the SQLite connection are acquired or released.
type Handle struct {
	dataRoot string
	idx      *index.Index
	store    *itemstore.Store
	search   *search.Searcher
	graph    *relgraph.Graph
	types    *typereg.Registry
	statuses *statusreg.Registry
	tags     *tagreg.Registry
	state    *currentstate.Store
	enricher Enricher
	lock     *lock.Lock
	watcher  *watch.Watcher
	log      *logging.Logger
}

// Options configures Open beyond the mandatory dataRoot.
type Options struct {
	DatabasePath string // defaults to dataRoot/search.db
	Log          *logging.Logger
	Enricher     Enricher // nil disables AI enrichment entirely
	Watch        bool     // start the filesystem watcher after opening
}

// Open acquires the process lock, opens (creating if absent) the
// relational index, seeds statuses and reserved types, rebuilds from
// Markdown if the index reports needs_rebuild, and returns a ready
// Handle. Callers must call Close when done.
func Open(ctx context.Context, dataRoot string, opts Options) (*Handle, error) {
	if opts.Log == nil {
		opts.Log = logging.Discard()
	}

	l, err := lock.Acquire(dataRoot)
	if err != nil {
		return nil, err
	}

	dbPath := opts.DatabasePath
	if dbPath == "" {
		dbPath = filepath.Join(dataRoot, "search.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		_ = l.Release()
		return nil, err
	}
	idx, err := index.Open(ctx, dbPath)
	if err != nil {
		_ = l.Release()
		return nil, err
	}

	statuses := statusreg.New(idx.DB())
	if err := statuses.Seed(ctx); err != nil {
		_ = idx.Close()
		_ = l.Release()
		return nil, err
	}
	types := typereg.New(idx.DB(), dataRoot)
	if err := types.Seed(ctx); err != nil {
		_ = idx.Close()
		_ = l.Release()
		return nil, err
	}

	needsRebuild, err := idx.NeedsRebuild(ctx)
	if err != nil {
		_ = idx.Close()
		_ = l.Release()
		return nil, err
	}
	if needsRebuild {
		if _, err := rebuild.Run(ctx, dataRoot, idx, opts.Log); err != nil {
			_ = idx.Close()
			_ = l.Release()
			return nil, err
		}
	}

	rank, err := rankconfig.Load(dataRoot)
	if err != nil {
		_ = idx.Close()
		_ = l.Release()
		return nil, err
	}

	h := &Handle{
		dataRoot: dataRoot,
		idx:      idx,
		store:    itemstore.New(dataRoot, idx),
		search:   search.NewWeighted(idx, rank),
		graph:    relgraph.New(idx.DB()),
		types:    types,
		statuses: statuses,
		tags:     tagreg.New(idx.DB()),
		state:    currentstate.New(idx.DB()),
		enricher: opts.Enricher,
		lock:     l,
		log:      opts.Log,
	}

	if opts.Watch {
		w, err := watch.New(dataRoot, idx, opts.Log)
		if err != nil {
			opts.Log.Warnf("engine: filesystem watch disabled: %v", err)
		} else {
			h.watcher = w
			h.watcher.Start(ctx)
		}
	}

	return h, nil
}

// Close releases the filesystem watcher, the SQLite connection and the
// process lock, in that order. Safe to call once; calling it twice
// double-releases the lock and returns whatever flock.Unlock reports.
func (h *Handle) Close() error {
	if h.watcher != nil {
		if err := h.watcher.Close(); err != nil {
			h.log.Warnf("engine: watcher close: %v", err)
		}
	}
	if err := h.idx.Close(); err != nil {
		_ = h.lock.Release()
		return err
	}
	return h.lock.Release()
}

// CreateItem is create_item (spec §5). When an Enricher is configured
// and the caller left Description empty, a suggestion is fetched
// synchronously but under its own short timeout: a slow or failing model
// call never turns into a slow or failing create beyond enrich's own
// bound.
func (h *Handle) CreateItem(ctx context.Context, p itemstore.CreateParams) (kbtypes.Item, error) {
	if p.Description == "" && h.enricher != nil && p.Content != "" {
		p.Description = h.enricher.SuggestDescription(ctx, p.Title, p.Content)
	}
	return h.store.Create(ctx, p)
}

// GetItem is get_item.
func (h *Handle) GetItem(ctx context.Context, itemType, id string) (kbtypes.Item, error) {
	return h.store.Get(ctx, itemType, id)
}

// UpdateItem is update_item.
func (h *Handle) UpdateItem(ctx context.Context, itemType, id string, patch itemstore.UpdatePatch) (kbtypes.Item, error) {
	return h.store.Update(ctx, itemType, id, patch)
}

// DeleteItem is delete_item.
func (h *Handle) DeleteItem(ctx context.Context, itemType, id string) (bool, error) {
	return h.store.Delete(ctx, itemType, id)
}

// ListItems is list_items.
func (h *Handle) ListItems(ctx context.Context, p itemstore.ListParams) ([]kbtypes.Summary, error) {
	return h.store.List(ctx, p)
}

// SearchItems is search_items, applying the data root's rank weights
// before lowering the parsed query to FTS5 (spec §4.8, SPEC_FULL.md's
// ranking-tuning addition).
func (h *Handle) SearchItems(ctx context.Context, query string, limit int) ([]search.Hit, error) {
	return h.search.Search(ctx, query, limit)
}

// SuggestTitles is suggest_items, a prefix search used for autocomplete.
func (h *Handle) SuggestTitles(ctx context.Context, prefix string, limit int) ([]search.Hit, error) {
	return h.search.Suggest(ctx, prefix, limit)
}

// GetStats is get_stats.
func (h *Handle) GetStats(ctx context.Context) (index.Stats, error) {
	return h.idx.Stats(ctx)
}

// GetTags is get_tags.
func (h *Handle) GetTags(ctx context.Context) ([]kbtypes.TagWithCount, error) {
	return h.tags.GetWithCounts(ctx)
}

// GetStatuses is get_statuses.
func (h *Handle) GetStatuses(ctx context.Context) ([]kbtypes.Status, error) {
	return h.statuses.List(ctx)
}

// GetTypes is get_types.
func (h *Handle) GetTypes(ctx context.Context) ([]kbtypes.TypeDefinition, error) {
	return h.types.List(ctx)
}

// CreateType is create_type (spec §4.5, exposed at the engine boundary
// even though spec.md's operation list names only the read side; the
// write side is required for §3.1's "dynamically registered type" to
// mean anything at a running system rather than only at rebuild time).
func (h *Handle) CreateType(ctx context.Context, name string, base kbtypes.BaseType, description string) (kbtypes.TypeDefinition, error) {
	return h.types.Create(ctx, name, base, description)
}

// GetRelatedItems is get_related_items.
func (h *Handle) GetRelatedItems(ctx context.Context, ref kbtypes.Ref, maxDepth int) ([]relgraph.Node, error) {
	return h.graph.GetRelated(ctx, ref, maxDepth)
}

// AddRelations is add_relations.
func (h *Handle) AddRelations(ctx context.Context, source kbtypes.Ref, targets []kbtypes.Ref) error {
	return h.store.AddRelations(ctx, source, targets)
}

// GetCurrentState is get_current_state.
func (h *Handle) GetCurrentState(ctx context.Context) (kbtypes.CurrentState, error) {
	return h.state.Get(ctx)
}

// UpdateCurrentState is update_current_state.
func (h *Handle) UpdateCurrentState(ctx context.Context, content string, tags []string, metadata map[string]any) (kbtypes.CurrentState, error) {
	return h.state.Update(ctx, content, tags, metadata)
}

// ChangeItemType is change_item_type.
func (h *Handle) ChangeItemType(ctx context.Context, fromType, fromID, toType string) (newID string, rewritten int, err error) {
	return h.store.ChangeItemType(ctx, fromType, fromID, toType)
}

// Rebuild forces a full rebuild from Markdown regardless of
// needs_rebuild, used by the "kb rebuild" command and by recovery from
// structural damage the incremental watcher can't repair on its own.
func (h *Handle) Rebuild(ctx context.Context) (rebuild.Report, error) {
	return rebuild.Run(ctx, h.dataRoot, h.idx, h.log)
}

// AuditDanglingRefs surfaces related_items rows whose target no longer
// exists, the read side of spec §9's decision to leave dangling pointers
// in place on delete rather than cascade-clean them.
func (h *Handle) AuditDanglingRefs(ctx context.Context) ([]relgraph.DanglingRef, error) {
	return h.graph.AuditDangling(ctx)
}
