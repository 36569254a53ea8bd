package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-resty/resty/v2"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/augur/internal/common"
	"github.com/ternarybob/augur/internal/interfaces"
	"github.com/ternarybob/augur/internal/models"
)

// SerpAPIProvider queries Google News through SerpAPI. Keys are read
// from the SERPAPI_API_KEYS setting and rotated per call.
type SerpAPIProvider struct {
	client   *resty.Client
	logger   arbor.ILogger
	settings interfaces.SettingsService
	pool     *KeyPool
}

func NewSerpAPIProvider(cfg *common.Config, settings interfaces.SettingsService, logger arbor.ILogger) *SerpAPIProvider {
	client := resty.New()
	client.SetBaseURL("https://serpapi.com")
	client.SetTimeout(cfg.Analysis.HTTPTimeout)

	return &SerpAPIProvider{
		client:   client,
		logger:   logger,
		settings: settings,
		pool:     NewKeyPool(""),
	}
}

func (p *SerpAPIProvider) Name() string { return "serpapi" }

func (p *SerpAPIProvider) refreshPool() {
	p.pool.Replace(p.settings.Get(context.Background(), "SERPAPI_API_KEYS", ""))
}

func (p *SerpAPIProvider) IsAvailable() bool {
	p.refreshPool()
	return p.pool.HasUsable()
}

type serpAPIResponse struct {
	NewsResults []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
		Date    string `json:"date"`
		Source  struct {
			Name string `json:"name"`
		} `json:"source"`
	} `json:"news_results"`
	Error string `json:"error"`
}

func (p *SerpAPIProvider) Search(ctx context.Context, query string, maxResults, days int) (*models.SearchResponse, error) {
	p.refreshPool()
	key, ok := p.pool.Next()
	if !ok {
		return nil, fmt.Errorf("serpapi: no usable api key")
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"engine":  "google_news",
			"q":       query,
			"api_key": key,
			"num":     strconv.Itoa(maxResults),
		}).
		Get("/search.json")
	if err != nil {
		p.pool.ReportFailure(key)
		return nil, fmt.Errorf("serpapi: %w", err)
	}
	if resp.StatusCode() != 200 {
		p.pool.ReportFailure(key)
		return nil, fmt.Errorf("serpapi: status %d: %s", resp.StatusCode(), models.TruncateError(resp.String(), 120))
	}

	var parsed serpAPIResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		p.pool.ReportFailure(key)
		return nil, fmt.Errorf("serpapi: decode response: %w", err)
	}
	if parsed.Error != "" {
		p.pool.ReportFailure(key)
		return nil, fmt.Errorf("serpapi: %s", parsed.Error)
	}
	p.pool.ReportSuccess(key)

	results := make([]models.SearchResult, 0, len(parsed.NewsResults))
	for _, r := range parsed.NewsResults {
		if len(results) >= maxResults {
			break
		}
		results = append(results, models.SearchResult{
			Title:   r.Title,
			URL:     r.Link,
			Content: r.Snippet,
			Source:  r.Source.Name,
		})
	}

	return &models.SearchResponse{
		Query:    query,
		Provider: p.Name(),
		Results:  results,
	}, nil
}
