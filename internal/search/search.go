package search

import (
	"context"

	"github.com/ppiankov/citecheck/internal/model"
)

// Searcher queries a paper index. Results come back in the index's relevance
// order.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]model.Paper, error)
}

// SearcherFunc adapts a function to Searcher
type SearcherFunc func(ctx context.Context, query string, maxResults int) ([]model.Paper, error)

// Search calls f
func (f SearcherFunc) Search(ctx context.Context, query string, maxResults int) ([]model.Paper, error) {
	return f(ctx, query, maxResults)
}
