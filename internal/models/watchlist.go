package models

import "time"

// WatchlistEntry is one registered symbol on the user watchlist.
type WatchlistEntry struct {
	Code      string    `json:"code" badgerhold:"key"`
	Name      string    `json:"name,omitempty"`
	Market    string    `json:"market"`
	AddedAt   time.Time `json:"added_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
