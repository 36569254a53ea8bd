package interfaces

import (
	"context"

	"github.com/ternarybob/augur/internal/models"
)

// DataFetcher is one adapter over an upstream market data source.
// Adapters are composed by the cascade manager in priority order.
type DataFetcher interface {
	// Name is the breaker resource name and source tag for this adapter
	Name() string

	// Priority orders the cascade; smaller is tried first. Negative
	// priorities are reserved for credential-gated "best available"
	// adapters that jump the queue when configured.
	Priority() int

	// IsAvailable reports whether the adapter can serve requests at
	// all (e.g., credentials present). Breaker state is checked by the
	// manager, not here.
	IsAvailable() bool

	// GetDaily returns normalized daily bars, oldest first.
	GetDaily(ctx context.Context, symbol string, days int) ([]models.KLineBar, error)

	// GetRealtime returns a unified quote, or nil when the symbol is
	// unknown to this source.
	GetRealtime(ctx context.Context, symbol string) (*models.UnifiedQuote, error)

	// GetChip returns the chip distribution for A-share symbols, or
	// nil for markets without chip data.
	GetChip(ctx context.Context, symbol string) (*models.ChipDistribution, error)
}

// DataService is the priority-ordered data provider cascade.
type DataService interface {
	// GetRealtime returns the best available quote for a symbol, or
	// nil when every source declined. The returned quote carries its
	// source tag.
	GetRealtime(ctx context.Context, symbol string) (*models.UnifiedQuote, error)

	// GetDaily returns up to days normalized bars ordered oldest to
	// newest. Errors only when all sources fail.
	GetDaily(ctx context.Context, symbol string, days int) ([]models.KLineBar, string, error)

	// GetChip returns the chip distribution, or nil for non-A-share
	// symbols (absence, not error).
	GetChip(ctx context.Context, symbol string) (*models.ChipDistribution, error)

	// SourceStatus reports cascade health for diagnostics.
	SourceStatus() map[string]interface{}
}
