package models

import "time"

// SearchResult is one unified news/search hit.
type SearchResult struct {
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Content     string     `json:"content,omitempty"`
	Source      string     `json:"source,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Score       *float64   `json:"score,omitempty"`
}

// SearchResponse is the unified response from the search cascade.
type SearchResponse struct {
	Query    string         `json:"query"`
	Provider string         `json:"provider"`
	Results  []SearchResult `json:"results"`
	Cached   bool           `json:"cached,omitempty"`
}
