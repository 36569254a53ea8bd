package data

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/augur/internal/breaker"
	"github.com/ternarybob/augur/internal/common"
	"github.com/ternarybob/augur/internal/interfaces"
	"github.com/ternarybob/augur/internal/metrics"
	"github.com/ternarybob/augur/internal/models"
)

// Manager runs the data provider cascade: adapters in ascending
// priority order, guarded by two process-wide circuit breakers. Chip
// data trips faster and cools longer than realtime because the chip
// endpoints ban aggressive clients.
type Manager struct {
	logger   arbor.ILogger
	fetchers []interfaces.DataFetcher

	realtimeBreaker *breaker.Breaker
	chipBreaker     *breaker.Breaker
}

// NewManager builds the cascade from the given adapters, sorted by
// priority. Adapters sharing a priority keep their given order.
func NewManager(logger arbor.ILogger, fetchers ...interfaces.DataFetcher) *Manager {
	sorted := make([]interfaces.DataFetcher, len(fetchers))
	copy(sorted, fetchers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() < sorted[j].Priority()
	})

	realtimeBreaker := breaker.New(breaker.Options{
		FailureThreshold: 3,
		Cooldown:         300 * time.Second,
	}, logger)
	chipBreaker := breaker.New(breaker.Options{
		FailureThreshold: 2,
		Cooldown:         600 * time.Second,
	}, logger)
	realtimeBreaker.OnTransition(func(name string, _, to breaker.State) {
		metrics.RecordBreakerTransition("realtime:"+name, string(to))
	})
	chipBreaker.OnTransition(func(name string, _, to breaker.State) {
		metrics.RecordBreakerTransition("chip:"+name, string(to))
	})

	return &Manager{
		logger:          logger,
		fetchers:        sorted,
		realtimeBreaker: realtimeBreaker,
		chipBreaker:     chipBreaker,
	}
}

// recordFailure feeds one classified failure into the breaker and
// metrics. Unsupported symbols are cascade skips and never penalized.
func (m *Manager) recordFailure(br *breaker.Breaker, source string, err error) FailureKind {
	kind := Classify(err)
	if kind == FailureUnsupported {
		return kind
	}
	metrics.ProviderFailures.WithLabelValues(source, string(kind)).Inc()
	br.RecordFailure(source, models.TruncateError(err.Error(), 200))
	return kind
}

// GetRealtime walks the cascade until one source yields a usable quote.
// Exhaustion is absence, not an error: callers degrade gracefully.
func (m *Manager) GetRealtime(ctx context.Context, symbol string) (*models.UnifiedQuote, error) {
	for _, fetcher := range m.fetchers {
		name := fetcher.Name()
		if !fetcher.IsAvailable() || !m.realtimeBreaker.IsAvailable(name) {
			continue
		}

		quote, err := fetcher.GetRealtime(ctx, symbol)
		if err != nil {
			if kind := m.recordFailure(m.realtimeBreaker, name, err); kind != FailureUnsupported && m.logger != nil {
				m.logger.Warn().
					Str("source", name).
					Str("symbol", symbol).
					Str("kind", string(kind)).
					Err(err).
					Msg("Realtime source failed")
			}
			continue
		}

		// The source answered; an empty or priceless row is a miss for
		// this symbol, not a source fault.
		m.realtimeBreaker.RecordSuccess(name)
		if quote.HasBasicData() {
			return quote, nil
		}
	}
	return nil, nil
}

// GetDaily walks the cascade for history bars. Unlike realtime, an
// analysis cannot proceed without bars, so exhaustion is an error.
func (m *Manager) GetDaily(ctx context.Context, symbol string, days int) ([]models.KLineBar, string, error) {
	var failures []string
	for _, fetcher := range m.fetchers {
		name := fetcher.Name()
		if !fetcher.IsAvailable() {
			continue
		}

		bars, err := fetcher.GetDaily(ctx, symbol, days)
		if err != nil {
			kind := Classify(err)
			if kind != FailureUnsupported {
				metrics.ProviderFailures.WithLabelValues(name, string(kind)).Inc()
				failures = append(failures, fmt.Sprintf("%s: %s", name, models.TruncateError(err.Error(), 200)))
				if m.logger != nil {
					m.logger.Warn().
						Str("source", name).
						Str("symbol", symbol).
						Str("kind", string(kind)).
						Err(err).
						Msg("Daily history source failed")
				}
			}
			continue
		}
		if len(bars) > 0 {
			models.ComputeMovingAverages(bars)
			return bars, name, nil
		}
	}

	if len(failures) == 0 {
		return nil, "", fmt.Errorf("%w: no source serves %s", models.ErrAllSourcesFailed, symbol)
	}
	return nil, "", fmt.Errorf("%w: %s", models.ErrAllSourcesFailed, strings.Join(failures, "; "))
}

// GetChip returns the holder-cost distribution for A-share symbols.
// Other markets, and cascade exhaustion, yield absence.
func (m *Manager) GetChip(ctx context.Context, symbol string) (*models.ChipDistribution, error) {
	if common.ParseSymbol(symbol).Market != common.MarketAShare {
		return nil, nil
	}

	for _, fetcher := range m.fetchers {
		name := fetcher.Name()
		if !fetcher.IsAvailable() || !m.chipBreaker.IsAvailable(name) {
			continue
		}

		chip, err := fetcher.GetChip(ctx, symbol)
		if err != nil {
			if kind := m.recordFailure(m.chipBreaker, name, err); kind != FailureUnsupported && m.logger != nil {
				m.logger.Warn().
					Str("source", name).
					Str("symbol", symbol).
					Str("kind", string(kind)).
					Err(err).
					Msg("Chip source failed")
			}
			continue
		}

		m.chipBreaker.RecordSuccess(name)
		if chip != nil {
			return chip, nil
		}
	}
	return nil, nil
}

// SourceStatus reports cascade composition and breaker health.
func (m *Manager) SourceStatus() map[string]interface{} {
	sources := make([]map[string]interface{}, 0, len(m.fetchers))
	for _, fetcher := range m.fetchers {
		sources = append(sources, map[string]interface{}{
			"name":      fetcher.Name(),
			"priority":  fetcher.Priority(),
			"available": fetcher.IsAvailable(),
		})
	}
	return map[string]interface{}{
		"sources":          sources,
		"realtime_breaker": m.realtimeBreaker.GetStatus(),
		"chip_breaker":     m.chipBreaker.GetStatus(),
	}
}

// ResetBreakers clears breaker state, typically after a settings change
// restores a previously failing credential.
func (m *Manager) ResetBreakers() {
	m.realtimeBreaker.Reset("")
	m.chipBreaker.Reset("")
}
