package search

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/augur/internal/cache"
	"github.com/ternarybob/augur/internal/common"
	"github.com/ternarybob/augur/internal/interfaces"
	"github.com/ternarybob/augur/internal/models"
)

// searchCacheCap bounds the result cache; oldest queries evict first.
const searchCacheCap = 500

// Manager runs the search cascade: providers in registration order,
// first non-empty success wins and is cached per (query, maxResults,
// days) so repeated analyses of hot symbols reuse one upstream call.
type Manager struct {
	logger    arbor.ILogger
	providers []interfaces.SearchProvider
	results   *cache.BoundedCache[*models.SearchResponse]
	articles  *ArticleEnricher
}

// enrichedArticles caps article page fetches per query.
const enrichedArticles = 3

func NewManager(cfg *common.Config, logger arbor.ILogger, providers ...interfaces.SearchProvider) *Manager {
	return &Manager{
		logger:    logger,
		providers: providers,
		results:   cache.NewBoundedCache[*models.SearchResponse](cfg.Providers.SearchCacheTTL, searchCacheCap),
		articles:  NewArticleEnricher(logger),
	}
}

func cacheKey(query string, maxResults, days int) string {
	return fmt.Sprintf("%s|%d|%d", query, maxResults, days)
}

func (m *Manager) Search(ctx context.Context, query string, maxResults, days int) (*models.SearchResponse, error) {
	key := cacheKey(query, maxResults, days)
	if cached, ok := m.results.Get(key); ok {
		hit := *cached
		hit.Cached = true
		return &hit, nil
	}

	var lastErr error
	for _, provider := range m.providers {
		if !provider.IsAvailable() {
			continue
		}

		resp, err := provider.Search(ctx, query, maxResults, days)
		if err != nil {
			lastErr = err
			if m.logger != nil {
				m.logger.Warn().
					Str("provider", provider.Name()).
					Str("query", query).
					Err(err).
					Msg("Search provider failed")
			}
			continue
		}
		if resp == nil || len(resp.Results) == 0 {
			continue
		}

		// Feed-style providers return headline-only snippets; pull the
		// article bodies for the thin ones before caching.
		if m.articles != nil {
			m.articles.Enrich(ctx, resp.Results, enrichedArticles)
		}

		m.results.Set(key, resp)
		return resp, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("all search providers failed: %w", lastErr)
	}
	return &models.SearchResponse{Query: query, Results: nil}, nil
}

// IsConfigured reports whether any provider can serve queries.
func (m *Manager) IsConfigured() bool {
	for _, provider := range m.providers {
		if provider.IsAvailable() {
			return true
		}
	}
	return false
}
