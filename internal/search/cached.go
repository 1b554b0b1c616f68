package search

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/citecheck/internal/cache"
	"github.com/ppiankov/citecheck/internal/model"
	"go.uber.org/zap"
)

// CachedSearcher memoizes successful searches. Errors are never cached.
type CachedSearcher struct {
	next   Searcher
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedSearcher wraps next with c. A zero ttl uses the cache defaults.
func NewCachedSearcher(next Searcher, c cache.Cache, ttl time.Duration, logger *zap.Logger) *CachedSearcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedSearcher{next: next, cache: c, ttl: ttl, logger: logger}
}

// Search returns cached results when present
func (s *CachedSearcher) Search(ctx context.Context, query string, maxResults int) ([]model.Paper, error) {
	key := cache.Key("search", strings.ToLower(strings.TrimSpace(query)), strconv.Itoa(maxResults))

	if data, ok := s.cache.Get(key); ok {
		var papers []model.Paper
		if err := json.Unmarshal(data, &papers); err == nil {
			s.logger.Debug("search cache hit", zap.String("query", query))
			return papers, nil
		}
		_ = s.cache.Delete(key)
	}

	papers, err := s.next.Search(ctx, query, maxResults)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(papers)
	if err == nil {
		if err := s.cache.Set(key, data, s.ttl); err != nil {
			s.logger.Warn("search cache write failed", zap.Error(err))
		}
	}
	return papers, nil
}
