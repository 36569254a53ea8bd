package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/augur/internal/models"
)

// ErrKeyNotFound is returned when a key is not found in the key/value store
var ErrKeyNotFound = errors.New("key not found")

// KeyValuePair represents a single key/value pair with metadata
type KeyValuePair struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// KeyValueStorage defines operations for generic key/value storage,
// used as the database settings backend.
type KeyValueStorage interface {
	// Get retrieves a value by key, returns ErrKeyNotFound if missing
	Get(ctx context.Context, key string) (string, error)

	// Set inserts or updates a key/value pair
	Set(ctx context.Context, key string, value string) error

	// SetMany inserts or updates the given pairs in one transaction;
	// either every write commits or none do
	SetMany(ctx context.Context, values map[string]string) error

	// Delete removes a key/value pair
	Delete(ctx context.Context, key string) error

	// GetAll returns all key/value pairs as a map
	GetAll(ctx context.Context) (map[string]string, error)

	// LastUpdated returns the most recent UpdatedAt across all pairs
	LastUpdated(ctx context.Context) (*time.Time, error)
}

// ReportStorage persists completed analysis reports. Reports are
// immutable once stored.
type ReportStorage interface {
	// Save persists a report keyed by its query id
	Save(ctx context.Context, report *models.AnalysisReport) error

	// GetByQueryID returns one report or models.ErrNotFound
	GetByQueryID(ctx context.Context, queryID string) (*models.AnalysisReport, error)

	// Query returns reports for a code within [start, end], newest
	// first, with offset/limit pagination. Zero times mean unbounded.
	Query(ctx context.Context, code string, start, end time.Time, offset, limit int) ([]*models.AnalysisReport, int, error)
}

// WatchlistStorage persists the user watchlist.
type WatchlistStorage interface {
	List(ctx context.Context) ([]*models.WatchlistEntry, error)
	Add(ctx context.Context, entry *models.WatchlistEntry) error
	Remove(ctx context.Context, code string) error
	Exists(ctx context.Context, code string) (bool, error)
}

// StorageManager aggregates the typed storages over one database.
type StorageManager interface {
	KVStorage() KeyValueStorage
	ReportStorage() ReportStorage
	WatchlistStorage() WatchlistStorage
	Close() error
}
