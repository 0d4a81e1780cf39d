// Package rebuild implements the rebuild engine (C10, spec §4.10): full
// reconstruction of the relational index from the Markdown files of
// record, triggered on startup when db_metadata.needs_rebuild is set or
// the index is empty. Progress is reported only through the supplied
// logger, never to stdout (the MCP stdio invariant spec §4.10 names).
package rebuild

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shirokuma-go/kb/internal/index"
	"github.com/shirokuma-go/kb/internal/itemstore"
	"github.com/shirokuma-go/kb/internal/kbtypes"
	"github.com/shirokuma-go/kb/internal/markdown"
	"github.com/shirokuma-go/kb/internal/pathsafe"
	"github.com/shirokuma-go/kb/internal/statusreg"
	"github.com/shirokuma-go/kb/internal/tagreg"
	"github.com/shirokuma-go/kb/internal/typereg"
)

// typeMapping assigns a base type to a directory name discovered on disk
// that isn't already registered, per spec §4.10 step 1.
var typeMapping = map[string]kbtypes.BaseType{
	"issues": kbtypes.BaseTasks,
	"plans":  kbtypes.BaseTasks,

	"docs":      kbtypes.BaseDocuments,
	"knowledge": kbtypes.BaseDocuments,
	"decisions": kbtypes.BaseDocuments,
	"features":  kbtypes.BaseDocuments,
}

func baseTypeFor(dirName string) kbtypes.BaseType {
	if b, ok := typeMapping[dirName]; ok {
		return b
	}
	return kbtypes.BaseDocuments
}

// Logger is the side channel rebuild progress goes to; satisfied by the
// standard log.Logger and by internal/logging's wrapper.
type Logger interface {
	Printf(format string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Printf(string, ...any) {}

// Report summarises one rebuild pass.
type Report struct {
	ItemsIndexed  int
	FilesSkipped  int
	TypesSeeded   []string
}

// Run performs the full rebuild procedure against dataRoot, writing into
// idx. log may be nil, in which case progress is discarded.
func Run(ctx context.Context, dataRoot string, idx *index.Index, log Logger) (Report, error) {
	if log == nil {
		log = noopLogger{}
	}

	typeReg := typereg.New(idx.DB(), dataRoot)
	statusReg := statusreg.New(idx.DB())
	tagReg := tagreg.New(idx.DB())

	if err := statusReg.Seed(ctx); err != nil {
		return Report{}, err
	}
	if err := typeReg.Seed(ctx); err != nil {
		return Report{}, err
	}

	entries, err := os.ReadDir(dataRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return Report{}, nil
		}
		return Report{}, err
	}

	var report Report
	maxSeq := map[string]int64{}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dirName := entry.Name()
		if dirName == "sessions" {
			n, err := rebuildSessions(ctx, dataRoot, idx, tagReg, statusReg, log)
			if err != nil {
				return report, err
			}
			report.ItemsIndexed += n
			continue
		}

		exists, err := typeReg.Exists(ctx, dirName)
		if err != nil {
			return report, err
		}
		if !exists {
			if err := typeReg.RegisterDiscovered(ctx, dirName, baseTypeFor(dirName)); err != nil {
				return report, err
			}
			report.TypesSeeded = append(report.TypesSeeded, dirName)
			log.Printf("rebuild: registered discovered type %q", dirName)
		}

		n, skipped, highest, err := rebuildTypeDir(ctx, dataRoot, dirName, idx, tagReg, statusReg, log)
		if err != nil {
			return report, err
		}
		report.ItemsIndexed += n
		report.FilesSkipped += skipped
		if highest > maxSeq[dirName] {
			maxSeq[dirName] = highest
		}
	}

	for typeName, seq := range maxSeq {
		if err := typeReg.SetSequence(ctx, typeName, seq); err != nil {
			return report, err
		}
	}

	if err := idx.MarkNeedsRebuild(ctx, false); err != nil {
		return report, err
	}
	return report, nil
}

func rebuildTypeDir(ctx context.Context, dataRoot, typeName string, idx *index.Index, tagReg *tagreg.Registry, statusReg *statusreg.Registry, log Logger) (indexed, skipped int, maxSeq int64, err error) {
	dir, err := pathsafe.TypeDir(dataRoot, typeName)
	if err != nil {
		return 0, 0, 0, err
	}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, 0, 0, nil
	}
	if err != nil {
		return 0, 0, 0, err
	}

	prefix := typeName + "-"
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		id, ok := idFromFilename(entry.Name(), prefix)
		if !ok {
			log.Printf("rebuild: skipping file with unexpected name %s/%s", typeName, entry.Name())
			skipped++
			continue
		}

		path := filepath.Join(dir, entry.Name())
		if err := indexFile(ctx, path, typeName, id, idx, tagReg, statusReg); err != nil {
			log.Printf("rebuild: skipping invalid file %s: %v", path, err)
			skipped++
			continue
		}
		indexed++

		if seq, err := strconv.ParseInt(id, 10, 64); err == nil && seq > maxSeq {
			maxSeq = seq
		}
	}
	return indexed, skipped, maxSeq, nil
}

func rebuildSessions(ctx context.Context, dataRoot string, idx *index.Index, tagReg *tagreg.Registry, statusReg *statusreg.Registry, log Logger) (int, error) {
	sessionsDir := filepath.Join(dataRoot, "sessions")
	dateDirs, err := os.ReadDir(sessionsDir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	indexed := 0
	for _, dd := range dateDirs {
		if !dd.IsDir() {
			continue
		}
		subdir := filepath.Join(sessionsDir, dd.Name())
		files, err := os.ReadDir(subdir)
		if err != nil {
			continue
		}
		for _, f := range files {
			name := f.Name()
			if f.IsDir() || !strings.HasSuffix(name, ".md") {
				continue
			}

			var typeName, prefix string
			switch {
			case strings.HasPrefix(name, "sessions-"):
				typeName, prefix = kbtypes.TypeSessions, "sessions-"
			case strings.HasPrefix(name, "dailies-"):
				typeName, prefix = kbtypes.TypeDailies, "dailies-"
			default:
				log.Printf("rebuild: skipping unrecognised session file %s", name)
				continue
			}

			id := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".md")
			path := filepath.Join(subdir, name)
			if err := indexFile(ctx, path, typeName, id, idx, tagReg, statusReg); err != nil {
				log.Printf("rebuild: skipping invalid file %s: %v", path, err)
				continue
			}
			indexed++
		}
	}
	return indexed, nil
}

func idFromFilename(filename, prefix string) (string, bool) {
	if !strings.HasPrefix(filename, prefix) {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(filename, prefix), ".md")
	if id == "" {
		return "", false
	}
	return id, true
}

// indexFile reads, parses and reconstructs a single item and synchronises
// it into the index (spec §4.10 step 2, §4.8). It reuses itemstore's
// projection through ReconstructForRebuild and RowFromItem, which need no
// live Store.
func indexFile(ctx context.Context, path, typeName, id string, idx *index.Index, tagReg *tagreg.Registry, statusReg *statusreg.Registry) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	doc, err := markdown.Parse(path, content)
	if err != nil {
		return err
	}

	item, err := itemstore.ReconstructForRebuild(typeName, id, doc)
	if err != nil {
		return err
	}

	if item.StatusName != "" {
		st, err := statusReg.GetByName(ctx, item.StatusName)
		if err == nil {
			item.StatusID = st.ID
		}
	}
	if item.StatusID == 0 {
		st, err := statusReg.GetByName(ctx, statusreg.DefaultStatusName)
		if err == nil {
			item.StatusID = st.ID
			item.StatusName = st.Name
		}
	}

	return idx.RunInTransaction(ctx, func(tx *sql.Tx) error {
		txTagReg := tagreg.New(tx)
		if err := txTagReg.EnsureExist(ctx, item.Tags); err != nil {
			return err
		}
		tagIDs := make([]int64, 0, len(item.Tags))
		for _, name := range kbtypes.NormalizedTags(item.Tags) {
			id, err := txTagReg.GetOrCreateID(ctx, name)
			if err != nil {
				return err
			}
			tagIDs = append(tagIDs, id)
		}
		return index.UpsertItem(ctx, tx, itemstore.RowFromItem(item), tagIDs)
	})
}
