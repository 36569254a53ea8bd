package search

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/augur/internal/common"
	"github.com/ternarybob/augur/internal/interfaces"
	"github.com/ternarybob/augur/internal/models"
)

// TavilyProvider queries the Tavily news search API. Keys are read from
// the TAVILY_API_KEYS setting (comma-separated) and rotated per call.
type TavilyProvider struct {
	client   *resty.Client
	logger   arbor.ILogger
	settings interfaces.SettingsService
	pool     *KeyPool
}

func NewTavilyProvider(cfg *common.Config, settings interfaces.SettingsService, logger arbor.ILogger) *TavilyProvider {
	client := resty.New()
	client.SetBaseURL("https://api.tavily.com")
	client.SetTimeout(cfg.Analysis.HTTPTimeout)

	return &TavilyProvider{
		client:   client,
		logger:   logger,
		settings: settings,
		pool:     NewKeyPool(""),
	}
}

func (p *TavilyProvider) Name() string { return "tavily" }

func (p *TavilyProvider) refreshPool() {
	p.pool.Replace(p.settings.Get(context.Background(), "TAVILY_API_KEYS", ""))
}

func (p *TavilyProvider) IsAvailable() bool {
	p.refreshPool()
	return p.pool.HasUsable()
}

type tavilyResponse struct {
	Results []struct {
		Title         string  `json:"title"`
		URL           string  `json:"url"`
		Content       string  `json:"content"`
		Score         float64 `json:"score"`
		PublishedDate string  `json:"published_date"`
	} `json:"results"`
}

func (p *TavilyProvider) Search(ctx context.Context, query string, maxResults, days int) (*models.SearchResponse, error) {
	p.refreshPool()
	key, ok := p.pool.Next()
	if !ok {
		return nil, fmt.Errorf("tavily: no usable api key")
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{
			"api_key":      key,
			"query":        query,
			"topic":        "news",
			"search_depth": "basic",
			"max_results":  maxResults,
			"days":         days,
		}).
		Post("/search")
	if err != nil {
		p.pool.ReportFailure(key)
		return nil, fmt.Errorf("tavily: %w", err)
	}
	if resp.StatusCode() != 200 {
		p.pool.ReportFailure(key)
		return nil, fmt.Errorf("tavily: status %d: %s", resp.StatusCode(), models.TruncateError(resp.String(), 120))
	}

	var parsed tavilyResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		p.pool.ReportFailure(key)
		return nil, fmt.Errorf("tavily: decode response: %w", err)
	}
	p.pool.ReportSuccess(key)

	results := make([]models.SearchResult, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		result := models.SearchResult{
			Title:   r.Title,
			URL:     r.URL,
			Content: r.Content,
			Score:   models.Float(r.Score),
		}
		if ts, err := time.Parse(time.RFC3339, r.PublishedDate); err == nil {
			result.PublishedAt = &ts
		}
		results = append(results, result)
	}

	return &models.SearchResponse{
		Query:    query,
		Provider: p.Name(),
		Results:  results,
	}, nil
}
