package search

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/augur/internal/models"
)

// RSSProvider is the keyless last line of the search cascade: a Google
// News RSS query. Quality is lower than the API providers but it always
// answers, so analyses still get news context with zero configuration.
type RSSProvider struct {
	parser *gofeed.Parser
	logger arbor.ILogger
}

func NewRSSProvider(logger arbor.ILogger) *RSSProvider {
	return &RSSProvider{
		parser: gofeed.NewParser(),
		logger: logger,
	}
}

func (p *RSSProvider) Name() string      { return "rss" }
func (p *RSSProvider) IsAvailable() bool { return true }

func (p *RSSProvider) Search(ctx context.Context, query string, maxResults, days int) (*models.SearchResponse, error) {
	if days <= 0 {
		days = 7
	}
	feedURL := fmt.Sprintf(
		"https://news.google.com/rss/search?q=%s&hl=zh-CN&gl=CN&ceid=CN:zh-Hans",
		url.QueryEscape(fmt.Sprintf("%s when:%dd", query, days)),
	)

	feed, err := p.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("rss: %w", err)
	}

	cutoff := time.Now().AddDate(0, 0, -days)
	results := make([]models.SearchResult, 0, maxResults)
	for _, item := range feed.Items {
		if len(results) >= maxResults {
			break
		}
		if item.PublishedParsed != nil && item.PublishedParsed.Before(cutoff) {
			continue
		}
		result := models.SearchResult{
			Title:       item.Title,
			URL:         item.Link,
			Content:     item.Description,
			PublishedAt: item.PublishedParsed,
		}
		if len(item.Authors) > 0 {
			result.Source = item.Authors[0].Name
		}
		results = append(results, result)
	}

	return &models.SearchResponse{
		Query:    query,
		Provider: p.Name(),
		Results:  results,
	}, nil
}
