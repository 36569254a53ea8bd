package interfaces

import (
	"context"

	"github.com/ternarybob/augur/internal/models"
)

// SearchProvider is one adapter over an upstream news/search API.
type SearchProvider interface {
	// Name identifies the provider in logs and source tags
	Name() string

	// IsAvailable reports whether the provider has usable credentials
	IsAvailable() bool

	// Search runs one query. days bounds result recency.
	Search(ctx context.Context, query string, maxResults, days int) (*models.SearchResponse, error)
}

// SearchService is the priority-ordered news/search cascade.
type SearchService interface {
	// Search tries providers in priority order and returns the first
	// non-empty success. Results are cached per (query, maxResults, days).
	Search(ctx context.Context, query string, maxResults, days int) (*models.SearchResponse, error)

	// IsConfigured reports whether at least one provider is available.
	IsConfigured() bool
}
