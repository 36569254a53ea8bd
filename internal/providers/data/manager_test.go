package data

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/augur/internal/interfaces"
	"github.com/ternarybob/augur/internal/models"
)

// fakeFetcher is a scriptable cascade adapter for manager tests.
type fakeFetcher struct {
	name      string
	priority  int
	available bool

	realtimeCalls int
	dailyCalls    int
	chipCalls     int

	realtime func() (*models.UnifiedQuote, error)
	daily    func() ([]models.KLineBar, error)
	chip     func() (*models.ChipDistribution, error)
}

var _ interfaces.DataFetcher = (*fakeFetcher)(nil)

func (f *fakeFetcher) Name() string      { return f.name }
func (f *fakeFetcher) Priority() int     { return f.priority }
func (f *fakeFetcher) IsAvailable() bool { return f.available }

func (f *fakeFetcher) GetRealtime(ctx context.Context, symbol string) (*models.UnifiedQuote, error) {
	f.realtimeCalls++
	if f.realtime == nil {
		return nil, nil
	}
	return f.realtime()
}

func (f *fakeFetcher) GetDaily(ctx context.Context, symbol string, days int) ([]models.KLineBar, error) {
	f.dailyCalls++
	if f.daily == nil {
		return nil, nil
	}
	return f.daily()
}

func (f *fakeFetcher) GetChip(ctx context.Context, symbol string) (*models.ChipDistribution, error) {
	f.chipCalls++
	if f.chip == nil {
		return nil, nil
	}
	return f.chip()
}

func goodQuote(source models.QuoteSource) func() (*models.UnifiedQuote, error) {
	return func() (*models.UnifiedQuote, error) {
		return &models.UnifiedQuote{Code: "600519", Source: source, Price: models.Float(1700)}, nil
	}
}

func TestManagerRealtimePriorityOrder(t *testing.T) {
	second := &fakeFetcher{name: "b", priority: 1, available: true, realtime: goodQuote("b")}
	first := &fakeFetcher{name: "a", priority: 0, available: true, realtime: goodQuote("a")}

	// Registration order must not matter.
	m := NewManager(nil, second, first)

	quote, err := m.GetRealtime(context.Background(), "600519")
	require.NoError(t, err)
	require.NotNil(t, quote)
	assert.Equal(t, models.QuoteSource("a"), quote.Source)
	assert.Equal(t, 1, first.realtimeCalls)
	assert.Equal(t, 0, second.realtimeCalls)
}

func TestManagerRealtimeFallsThroughOnFailure(t *testing.T) {
	failing := &fakeFetcher{name: "a", priority: 0, available: true, realtime: func() (*models.UnifiedQuote, error) {
		return nil, errors.New("connection refused")
	}}
	backup := &fakeFetcher{name: "b", priority: 1, available: true, realtime: goodQuote("b")}

	m := NewManager(nil, failing, backup)

	quote, err := m.GetRealtime(context.Background(), "600519")
	require.NoError(t, err)
	require.NotNil(t, quote)
	assert.Equal(t, models.QuoteSource("b"), quote.Source)
}

func TestManagerRealtimeSkipsUnavailableFetcher(t *testing.T) {
	offline := &fakeFetcher{name: "a", priority: 0, available: false, realtime: goodQuote("a")}
	backup := &fakeFetcher{name: "b", priority: 1, available: true, realtime: goodQuote("b")}

	m := NewManager(nil, offline, backup)

	quote, err := m.GetRealtime(context.Background(), "600519")
	require.NoError(t, err)
	assert.Equal(t, models.QuoteSource("b"), quote.Source)
	assert.Equal(t, 0, offline.realtimeCalls)
}

func TestManagerRealtimeSkipsPricelessQuote(t *testing.T) {
	empty := &fakeFetcher{name: "a", priority: 0, available: true, realtime: func() (*models.UnifiedQuote, error) {
		return &models.UnifiedQuote{Code: "600519"}, nil
	}}
	backup := &fakeFetcher{name: "b", priority: 1, available: true, realtime: goodQuote("b")}

	m := NewManager(nil, empty, backup)

	quote, err := m.GetRealtime(context.Background(), "600519")
	require.NoError(t, err)
	assert.Equal(t, models.QuoteSource("b"), quote.Source)
}

func TestManagerRealtimeExhaustionIsAbsence(t *testing.T) {
	failing := &fakeFetcher{name: "a", priority: 0, available: true, realtime: func() (*models.UnifiedQuote, error) {
		return nil, errors.New("timeout")
	}}

	m := NewManager(nil, failing)

	quote, err := m.GetRealtime(context.Background(), "600519")
	assert.NoError(t, err)
	assert.Nil(t, quote)
}

func TestManagerRealtimeBreakerOpensAfterThreeFailures(t *testing.T) {
	failing := &fakeFetcher{name: "a", priority: 0, available: true, realtime: func() (*models.UnifiedQuote, error) {
		return nil, errors.New("connection reset")
	}}

	m := NewManager(nil, failing)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = m.GetRealtime(ctx, "600519")
	}
	assert.Equal(t, 3, failing.realtimeCalls)

	// Breaker is now open; the fetcher must not be called again.
	_, _ = m.GetRealtime(ctx, "600519")
	assert.Equal(t, 3, failing.realtimeCalls)
}

func TestManagerRealtimeUnsupportedDoesNotTripBreaker(t *testing.T) {
	unsupported := &fakeFetcher{name: "a", priority: 0, available: true, realtime: func() (*models.UnifiedQuote, error) {
		return nil, ErrSymbolUnsupported
	}}

	m := NewManager(nil, unsupported)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, _ = m.GetRealtime(ctx, "AAPL")
	}
	// Well past the failure threshold and still being consulted.
	assert.Equal(t, 10, unsupported.realtimeCalls)
}

func TestManagerDailyReturnsSourceTagAndDerivedFields(t *testing.T) {
	bars := make([]models.KLineBar, 10)
	for i := range bars {
		bars[i].Close = float64(100 + i)
		bars[i].Volume = 1000
	}
	fetcher := &fakeFetcher{name: "a", priority: 0, available: true, daily: func() ([]models.KLineBar, error) {
		return bars, nil
	}}

	m := NewManager(nil, fetcher)

	got, source, err := m.GetDaily(context.Background(), "600519", 10)
	require.NoError(t, err)
	assert.Equal(t, "a", source)
	require.Len(t, got, 10)
	require.NotNil(t, got[9].MA5)
	assert.InDelta(t, 107.0, *got[9].MA5, 0.0001)
}

func TestManagerDailyAllSourcesFailed(t *testing.T) {
	failing := &fakeFetcher{name: "a", priority: 0, available: true, daily: func() ([]models.KLineBar, error) {
		return nil, errors.New("boom")
	}}

	m := NewManager(nil, failing)

	_, _, err := m.GetDaily(context.Background(), "600519", 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrAllSourcesFailed)
}

func TestManagerChipNonASharesAreAbsent(t *testing.T) {
	fetcher := &fakeFetcher{name: "a", priority: 0, available: true, chip: func() (*models.ChipDistribution, error) {
		return &models.ChipDistribution{Code: "should-not-happen"}, nil
	}}

	m := NewManager(nil, fetcher)

	for _, symbol := range []string{"AAPL", "HK00700", "00700"} {
		chip, err := m.GetChip(context.Background(), symbol)
		assert.NoError(t, err, symbol)
		assert.Nil(t, chip, symbol)
	}
	assert.Equal(t, 0, fetcher.chipCalls)
}

func TestManagerChipBreakerOpensAfterTwoFailures(t *testing.T) {
	failing := &fakeFetcher{name: "a", priority: 0, available: true, chip: func() (*models.ChipDistribution, error) {
		return nil, errors.New("banned")
	}}

	m := NewManager(nil, failing)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, _ = m.GetChip(ctx, "600519")
	}
	assert.Equal(t, 2, failing.chipCalls)

	_, _ = m.GetChip(ctx, "600519")
	assert.Equal(t, 2, failing.chipCalls)
}

func TestManagerChipFallsThroughNilResult(t *testing.T) {
	first := &fakeFetcher{name: "a", priority: 0, available: true} // serves nothing
	second := &fakeFetcher{name: "b", priority: 1, available: true, chip: func() (*models.ChipDistribution, error) {
		return &models.ChipDistribution{Code: "600519", AvgCost: 1650}, nil
	}}

	m := NewManager(nil, first, second)

	chip, err := m.GetChip(context.Background(), "600519")
	require.NoError(t, err)
	require.NotNil(t, chip)
	assert.Equal(t, 1650.0, chip.AvgCost)
}

func TestManagerSourceStatus(t *testing.T) {
	fetcher := &fakeFetcher{name: "a", priority: 0, available: true}
	m := NewManager(nil, fetcher)

	status := m.SourceStatus()
	sources, ok := status["sources"].([]map[string]interface{})
	require.True(t, ok)
	require.Len(t, sources, 1)
	assert.Equal(t, "a", sources[0]["name"])
}
