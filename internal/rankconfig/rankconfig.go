// Package rankconfig loads an optional per-data-root TOML file tuning
// C9's full-text ranking weights, the same hand-editable-tuning-file
// spirit as the teacher's formula encoder in cmd/bd/formula.go (which
// round-trips workflow formulas through BurntSushi/toml). Here the
// tunable surface is narrower: per-field weight multipliers and a
// prefix-match boost, applied as a BM25 rank adjustment layered on top
// of internal/search's raw FTS5 scores.
package rankconfig

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/shirokuma-go/kb/internal/kberrors"
)

// Weights holds per-field BM25 multipliers. A zero value means "use the
// default of 1.0" so an empty or partial file is still valid.
type Weights struct {
	Title       float64 `toml:"title"`
	Description float64 `toml:"description"`
	Content     float64 `toml:"content"`
	Tags        float64 `toml:"tags"`
	PrefixBoost float64 `toml:"prefix_boost"`
}

// Default returns the neutral weighting: every field counts equally and
// prefix matches get no extra boost.
func Default() Weights {
	return Weights{Title: 1, Description: 1, Content: 1, Tags: 1, PrefixBoost: 0}
}

// Load reads dataRoot/.kb/ranking.toml if present, filling any unset
// field with its Default() value. A missing file is not an error: it
// returns Default() unchanged.
func Load(dataRoot string) (Weights, error) {
	path := filepath.Join(dataRoot, ".kb", "ranking.toml")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return Weights{}, kberrors.NewIoError(path, err)
	}

	w := Weights{}
	if _, err := toml.Decode(string(data), &w); err != nil {
		return Weights{}, kberrors.NewInvalidRequest("parse %s: %v", path, err)
	}

	def := Default()
	if w.Title == 0 {
		w.Title = def.Title
	}
	if w.Description == 0 {
		w.Description = def.Description
	}
	if w.Content == 0 {
		w.Content = def.Content
	}
	if w.Tags == 0 {
		w.Tags = def.Tags
	}
	return w, nil
}
