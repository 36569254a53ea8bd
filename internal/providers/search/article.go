package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/augur/internal/models"
)

const (
	// snippetThreshold: results with at least this much content are
	// left as the provider returned them.
	snippetThreshold = 200

	// articleContentCap bounds the markdown attached to one result so
	// a long article cannot crowd the prompt.
	articleContentCap = 2000

	articleFetchTimeout = 10 * time.Second
)

// ArticleEnricher fetches article pages behind thin search snippets and
// replaces the snippet with the page's main content as markdown.
type ArticleEnricher struct {
	client *resty.Client
	logger arbor.ILogger
}

func NewArticleEnricher(logger arbor.ILogger) *ArticleEnricher {
	client := resty.New()
	client.SetTimeout(articleFetchTimeout)
	client.SetHeader("User-Agent", "Mozilla/5.0 (compatible; augur/1.0)")
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(3))

	return &ArticleEnricher{
		client: client,
		logger: logger,
	}
}

// Enrich upgrades up to maxArticles thin snippets in place. Fetch
// failures leave the original snippet untouched.
func (e *ArticleEnricher) Enrich(ctx context.Context, results []models.SearchResult, maxArticles int) {
	fetched := 0
	for i := range results {
		if fetched >= maxArticles {
			return
		}
		if len(results[i].Content) >= snippetThreshold || results[i].URL == "" {
			continue
		}

		content, err := e.fetchArticle(ctx, results[i].URL)
		if err != nil {
			if e.logger != nil {
				e.logger.Debug().Str("url", results[i].URL).Err(err).Msg("Article fetch failed, keeping snippet")
			}
			continue
		}
		fetched++
		if content == "" {
			continue
		}
		results[i].Content = content
	}
}

// fetchArticle downloads one page, extracts the main content block and
// converts it to markdown.
func (e *ArticleEnricher) fetchArticle(ctx context.Context, url string) (string, error) {
	resp, err := e.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", fmt.Errorf("article fetch returned status %d", resp.StatusCode())
	}
	contentType := resp.Header().Get("Content-Type")
	if contentType != "" && !strings.Contains(contentType, "html") {
		return "", fmt.Errorf("not an HTML page: %s", contentType)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.String()))
	if err != nil {
		return "", fmt.Errorf("failed to parse article HTML: %w", err)
	}

	selection := doc.Find("main, article, [role=main]").First()
	if selection.Length() == 0 {
		doc.Find("nav, header, footer, aside, script, style, noscript").Remove()
		doc.Find("[class*=ad], [id*=ad], [class*=promo], [class*=sidebar]").Remove()
		selection = doc.Selection
	}

	html, err := selection.Html()
	if err != nil {
		return "", fmt.Errorf("failed to extract article content: %w", err)
	}

	converter := md.NewConverter(url, true, nil)
	markdown, err := converter.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("failed to convert article to markdown: %w", err)
	}

	markdown = strings.TrimSpace(markdown)
	if len(markdown) > articleContentCap {
		markdown = markdown[:articleContentCap]
		if cut := strings.LastIndexByte(markdown, ' '); cut > 0 {
			markdown = markdown[:cut]
		}
	}
	return markdown, nil
}
