package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/augur/internal/models"
)

const articlePage = `<html><head><title>News</title></head><body>
<nav>Site navigation</nav>
<article>
<h1>Kweichow Moutai beats estimates</h1>
<p>Revenue rose 18% on strong premium liquor demand.</p>
</article>
<footer>Copyright</footer>
</body></html>`

func TestEnrichReplacesThinSnippets(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(articlePage))
	}))
	defer server.Close()

	e := NewArticleEnricher(arbor.NewLogger())
	results := []models.SearchResult{
		{Title: "thin", URL: server.URL, Content: "short"},
	}

	e.Enrich(context.Background(), results, 3)

	assert.Contains(t, results[0].Content, "Kweichow Moutai beats estimates")
	assert.Contains(t, results[0].Content, "Revenue rose 18%")
	// Boilerplate outside <article> is dropped.
	assert.NotContains(t, results[0].Content, "Site navigation")
}

func TestEnrichLeavesRichSnippetsAlone(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	rich := strings.Repeat("already detailed content ", 20)
	e := NewArticleEnricher(arbor.NewLogger())
	results := []models.SearchResult{{Title: "rich", URL: server.URL, Content: rich}}

	e.Enrich(context.Background(), results, 3)

	assert.Equal(t, 0, calls)
	assert.Equal(t, rich, results[0].Content)
}

func TestEnrichKeepsSnippetOnFetchFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	e := NewArticleEnricher(arbor.NewLogger())
	results := []models.SearchResult{{Title: "thin", URL: server.URL, Content: "snippet"}}

	e.Enrich(context.Background(), results, 3)

	assert.Equal(t, "snippet", results[0].Content)
}

func TestEnrichHonorsArticleBudget(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(articlePage))
	}))
	defer server.Close()

	e := NewArticleEnricher(arbor.NewLogger())
	results := []models.SearchResult{
		{Title: "a", URL: server.URL, Content: ""},
		{Title: "b", URL: server.URL, Content: ""},
		{Title: "c", URL: server.URL, Content: ""},
	}

	e.Enrich(context.Background(), results, 2)

	assert.Equal(t, 2, calls)
	require.NotEmpty(t, results[0].Content)
	require.NotEmpty(t, results[1].Content)
	assert.Empty(t, results[2].Content)
}

func TestEnrichSkipsNonHTMLContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4"))
	}))
	defer server.Close()

	e := NewArticleEnricher(arbor.NewLogger())
	results := []models.SearchResult{{Title: "pdf", URL: server.URL, Content: "snippet"}}

	e.Enrich(context.Background(), results, 3)

	assert.Equal(t, "snippet", results[0].Content)
}
