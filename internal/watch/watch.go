// Package watch implements the incremental resync trigger SPEC_FULL.md
// §3 adds: an fsnotify watcher over the data root that re-syncs a single
// Markdown file into the index when it changes outside of itemstore's
// own write path (an editor, a sync tool, git checkout), without paying
// for a full rebuild. Grounded on
// BeadsLog/cmd/bd/daemon_watcher.go's FileWatcher: recursive directory
// watch plus a debounced trigger, adapted from one tracked JSONL file to
// every Markdown file under a tree.
package watch

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/shirokuma-go/kb/internal/index"
	"github.com/shirokuma-go/kb/internal/itemstore"
	"github.com/shirokuma-go/kb/internal/kbtypes"
	"github.com/shirokuma-go/kb/internal/logging"
	"github.com/shirokuma-go/kb/internal/markdown"
	"github.com/shirokuma-go/kb/internal/statusreg"
	"github.com/shirokuma-go/kb/internal/tagreg"
)

// Watcher monitors dataRoot for external Markdown edits and re-syncs the
// index incrementally.
type Watcher struct {
	dataRoot string
	idx      *index.Index
	log      *logging.Logger
	fsw      *fsnotify.Watcher
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
}

const debounceWindow = 500 * time.Millisecond

// New builds a Watcher over dataRoot. It does not start watching until
// Start is called.
func New(dataRoot string, idx *index.Index, log *logging.Logger) (*Watcher, error) {
	if log == nil {
		log = logging.Discard()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{dataRoot: dataRoot, idx: idx, log: log, fsw: fsw, pending: map[string]struct{}{}}
	if err := w.addTree(dataRoot); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			if addErr := w.fsw.Add(path); addErr != nil {
				w.log.Warnf("watch: failed to watch %s: %v", path, addErr)
			}
		}
		return nil
	})
}

// Start begins monitoring in a background goroutine until ctx is done or
// Close is called.
func (w *Watcher) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case event, ok := <-w.fsw.Events:
				if !ok {
					return
				}
				w.handleEvent(event)
			case err, ok := <-w.fsw.Errors:
				if !ok {
					return
				}
				w.log.Warnf("watch: error: %v", err)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	info, err := os.Stat(event.Name)
	if err == nil && info.IsDir() && event.Op&fsnotify.Create != 0 {
		if addErr := w.fsw.Add(event.Name); addErr != nil {
			w.log.Warnf("watch: failed to watch new directory %s: %v", event.Name, addErr)
		}
		return
	}
	if !strings.HasSuffix(event.Name, ".md") {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	w.debounce(event.Name)
}

func (w *Watcher) debounce(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[path] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(debounceWindow, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = map[string]struct{}{}
	w.mu.Unlock()

	ctx := context.Background()
	for _, path := range paths {
		if err := w.resync(ctx, path); err != nil {
			w.log.Warnf("watch: resync %s failed: %v", path, err)
		}
	}
}

// resync re-syncs a single changed file. Parse failures or unresolvable
// paths are logged and skipped, mirroring the rebuild engine's
// per-file fault tolerance rather than escalating to needs_rebuild: a
// single bad file never forces a full rescan.
func (w *Watcher) resync(ctx context.Context, path string) error {
	itemType, id, ok := typeAndIDFromPath(w.dataRoot, path)
	if !ok {
		return nil
	}

	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return w.idx.RunInTransaction(ctx, func(tx *sql.Tx) error {
			return index.DeleteItem(ctx, tx, itemType, id)
		})
	}
	if err != nil {
		return err
	}

	doc, err := markdown.Parse(path, content)
	if err != nil {
		return err
	}
	item, err := itemstore.ReconstructForRebuild(itemType, id, doc)
	if err != nil {
		return err
	}

	statusReg := statusreg.New(w.idx.DB())
	if item.StatusName != "" {
		if st, err := statusReg.GetByName(ctx, item.StatusName); err == nil {
			item.StatusID = st.ID
		}
	}
	if item.StatusID == 0 {
		if st, err := statusReg.GetByName(ctx, statusreg.DefaultStatusName); err == nil {
			item.StatusID = st.ID
			item.StatusName = st.Name
		}
	}

	return w.idx.RunInTransaction(ctx, func(tx *sql.Tx) error {
		txTagReg := tagreg.New(tx)
		if err := txTagReg.EnsureExist(ctx, item.Tags); err != nil {
			return err
		}
		tagIDs := make([]int64, 0, len(item.Tags))
		for _, name := range kbtypes.NormalizedTags(item.Tags) {
			tagID, err := txTagReg.GetOrCreateID(ctx, name)
			if err != nil {
				return err
			}
			tagIDs = append(tagIDs, tagID)
		}
		return index.UpsertItem(ctx, tx, itemstore.RowFromItem(item), tagIDs)
	})
}

func typeAndIDFromPath(dataRoot, path string) (itemType, id string, ok bool) {
	rel, err := filepath.Rel(dataRoot, path)
	if err != nil {
		return "", "", false
	}
	parts := strings.Split(rel, string(filepath.Separator))
	if len(parts) == 0 {
		return "", "", false
	}
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, ".md")

	if parts[0] == "sessions" {
		if strings.HasPrefix(base, "sessions-") {
			return kbtypes.TypeSessions, strings.TrimPrefix(base, "sessions-"), true
		}
		if strings.HasPrefix(base, "dailies-") {
			return kbtypes.TypeDailies, strings.TrimPrefix(base, "dailies-"), true
		}
		return "", "", false
	}

	prefix := parts[0] + "-"
	if !strings.HasPrefix(base, prefix) {
		return "", "", false
	}
	return parts[0], strings.TrimPrefix(base, prefix), true
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.fsw.Close()
}
