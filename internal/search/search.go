package search

import (
	"context"

	"github.com/shirokuma-go/kb/internal/index"
	"github.com/shirokuma-go/kb/internal/kberrors"
	"github.com/shirokuma-go/kb/internal/rankconfig"
)

// Hit is one ranked search result: the matched item's type and id, its
// bm25 score and a snippet of the matched text.
type Hit struct {
	Type    string
	ID      string
	Score   float64
	Snippet string
}

// Searcher runs parsed queries against the index's FTS5 table, applying
// a data root's rank weights (SPEC_FULL.md's ranking-tuning addition to
// spec §4.9's plain bm25 ordering).
type Searcher struct {
	idx     *index.Index
	weights rankconfig.Weights
}

// New wraps an Index with neutral rank weights.
func New(idx *index.Index) *Searcher { return &Searcher{idx: idx, weights: rankconfig.Default()} }

// NewWeighted wraps an Index with explicit rank weights, typically
// loaded once per data root via rankconfig.Load.
func NewWeighted(idx *index.Index, weights rankconfig.Weights) *Searcher {
	return &Searcher{idx: idx, weights: weights}
}

// Search parses query, lowers it to FTS5, and returns up to limit hits
// ordered by relevance (ascending bm25, spec §4.9).
func (s *Searcher) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	ast, err := Parse(query)
	if err != nil {
		return nil, err
	}
	matchExpr, err := ToFTS5(ast)
	if err != nil {
		return nil, kberrors.NewInvalidQuery(query, err.Error())
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.idx.QueryFTSWeighted(ctx, matchExpr, limit,
		s.weights.Title, s.weights.Description, s.weights.Content, s.weights.Tags)
	if err != nil {
		return nil, err
	}

	out := make([]Hit, 0, len(rows))
	for _, r := range rows {
		out = append(out, Hit{Type: r.Type, ID: r.ID, Score: r.Rank, Snippet: r.Snippet})
	}
	return out, nil
}

// Count returns the number of matches for query, counting the hits of a
// Search capped at 100000 rows.
func (s *Searcher) Count(ctx context.Context, query string) (int, error) {
	hits, err := s.Search(ctx, query, 100000)
	if err != nil {
		return 0, err
	}
	return len(hits), nil
}

// Suggest is a lighter-weight prefix search over titles only, used for
// autocomplete-style lookups rather than full relevance ranking; a
// non-zero PrefixBoost raises the title weight.
func (s *Searcher) Suggest(ctx context.Context, prefix string, limit int) ([]Hit, error) {
	if prefix == "" {
		return nil, kberrors.NewInvalidRequest("suggest prefix must not be empty")
	}
	boosted := s
	if s.weights.PrefixBoost != 0 {
		w := s.weights
		w.Title += w.Title * w.PrefixBoost
		boosted = &Searcher{idx: s.idx, weights: w}
	}
	return boosted.Search(ctx, "title:"+prefix+"*", limit)
}
