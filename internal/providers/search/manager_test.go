package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/augur/internal/common"
	"github.com/ternarybob/augur/internal/interfaces"
	"github.com/ternarybob/augur/internal/models"
)

type fakeProvider struct {
	name      string
	available bool
	calls     int
	search    func() (*models.SearchResponse, error)
}

var _ interfaces.SearchProvider = (*fakeProvider)(nil)

func (f *fakeProvider) Name() string      { return f.name }
func (f *fakeProvider) IsAvailable() bool { return f.available }

func (f *fakeProvider) Search(ctx context.Context, query string, maxResults, days int) (*models.SearchResponse, error) {
	f.calls++
	if f.search == nil {
		return &models.SearchResponse{Query: query, Provider: f.name}, nil
	}
	return f.search()
}

func oneResult(name string) func() (*models.SearchResponse, error) {
	return func() (*models.SearchResponse, error) {
		return &models.SearchResponse{
			Provider: name,
			Results:  []models.SearchResult{{Title: "headline", URL: "https://example.com"}},
		}, nil
	}
}

func testConfig() *common.Config {
	cfg := common.NewDefaultConfig()
	cfg.Providers.SearchCacheTTL = time.Minute
	return cfg
}

// newOfflineManager builds a Manager without article enrichment so
// tests never reach the network.
func newOfflineManager(cfg *common.Config, providers ...interfaces.SearchProvider) *Manager {
	m := NewManager(cfg, nil, providers...)
	m.articles = nil
	return m
}

func TestSearchCascadeOrder(t *testing.T) {
	primary := &fakeProvider{name: "primary", available: true, search: oneResult("primary")}
	backup := &fakeProvider{name: "backup", available: true, search: oneResult("backup")}

	m := newOfflineManager(testConfig(), primary, backup)

	resp, err := m.Search(context.Background(), "moutai", 5, 7)
	require.NoError(t, err)
	assert.Equal(t, "primary", resp.Provider)
	assert.Equal(t, 0, backup.calls)
}

func TestSearchFallsThroughFailureAndEmpty(t *testing.T) {
	failing := &fakeProvider{name: "failing", available: true, search: func() (*models.SearchResponse, error) {
		return nil, errors.New("quota exceeded")
	}}
	empty := &fakeProvider{name: "empty", available: true}
	backup := &fakeProvider{name: "backup", available: true, search: oneResult("backup")}

	m := newOfflineManager(testConfig(), failing, empty, backup)

	resp, err := m.Search(context.Background(), "moutai", 5, 7)
	require.NoError(t, err)
	assert.Equal(t, "backup", resp.Provider)
}

func TestSearchSkipsUnavailableProvider(t *testing.T) {
	unconfigured := &fakeProvider{name: "unconfigured", available: false, search: oneResult("unconfigured")}
	backup := &fakeProvider{name: "backup", available: true, search: oneResult("backup")}

	m := newOfflineManager(testConfig(), unconfigured, backup)

	resp, err := m.Search(context.Background(), "moutai", 5, 7)
	require.NoError(t, err)
	assert.Equal(t, "backup", resp.Provider)
	assert.Equal(t, 0, unconfigured.calls)
}

func TestSearchCachesResults(t *testing.T) {
	provider := &fakeProvider{name: "primary", available: true, search: oneResult("primary")}
	m := newOfflineManager(testConfig(), provider)
	ctx := context.Background()

	first, err := m.Search(ctx, "moutai", 5, 7)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := m.Search(ctx, "moutai", 5, 7)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, 1, provider.calls)

	// Different parameters miss the cache.
	_, err = m.Search(ctx, "moutai", 5, 30)
	require.NoError(t, err)
	assert.Equal(t, 2, provider.calls)
}

func TestSearchAllFailed(t *testing.T) {
	failing := &fakeProvider{name: "failing", available: true, search: func() (*models.SearchResponse, error) {
		return nil, errors.New("boom")
	}}

	m := newOfflineManager(testConfig(), failing)

	_, err := m.Search(context.Background(), "moutai", 5, 7)
	assert.Error(t, err)
}

func TestSearchNoProvidersYieldsEmptyResponse(t *testing.T) {
	m := newOfflineManager(testConfig())

	resp, err := m.Search(context.Background(), "moutai", 5, 7)
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.False(t, m.IsConfigured())
}
