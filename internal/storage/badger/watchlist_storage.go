package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/augur/internal/interfaces"
	"github.com/ternarybob/augur/internal/models"
)

// WatchlistStorage implements the WatchlistStorage interface for Badger
type WatchlistStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewWatchlistStorage creates a new WatchlistStorage instance
func NewWatchlistStorage(db *BadgerDB, logger arbor.ILogger) interfaces.WatchlistStorage {
	return &WatchlistStorage{
		db:     db,
		logger: logger,
	}
}

// List returns all watchlist entries ordered by code
func (s *WatchlistStorage) List(ctx context.Context) ([]*models.WatchlistEntry, error) {
	var entries []*models.WatchlistEntry
	query := (&badgerhold.Query{}).SortBy("Code")
	if err := s.db.Store().Find(&entries, query); err != nil {
		return nil, fmt.Errorf("failed to list watchlist: %w", err)
	}
	return entries, nil
}

// Add inserts or refreshes a watchlist entry
func (s *WatchlistStorage) Add(ctx context.Context, entry *models.WatchlistEntry) error {
	if entry == nil || entry.Code == "" {
		return fmt.Errorf("watchlist entry requires a code")
	}

	now := time.Now()
	entry.UpdatedAt = now
	if entry.AddedAt.IsZero() {
		entry.AddedAt = now
	}

	// Preserve the original AddedAt across re-adds
	var existing models.WatchlistEntry
	if err := s.db.Store().Get(entry.Code, &existing); err == nil {
		entry.AddedAt = existing.AddedAt
	}

	if err := s.db.Store().Upsert(entry.Code, entry); err != nil {
		return fmt.Errorf("failed to add watchlist entry: %w", err)
	}

	s.logger.Debug().Str("code", entry.Code).Msg("Watchlist entry saved")
	return nil
}

// Remove deletes a watchlist entry by code
func (s *WatchlistStorage) Remove(ctx context.Context, code string) error {
	err := s.db.Store().Delete(code, models.WatchlistEntry{})
	if err == badgerhold.ErrNotFound {
		return models.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to remove watchlist entry: %w", err)
	}
	return nil
}

// Exists reports whether a code is on the watchlist
func (s *WatchlistStorage) Exists(ctx context.Context, code string) (bool, error) {
	var entry models.WatchlistEntry
	err := s.db.Store().Get(code, &entry)
	if err == badgerhold.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check watchlist entry: %w", err)
	}
	return true, nil
}
