// Package watchlist manages the set of symbols included in scheduled
// batch analyses.
package watchlist

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/augur/internal/common"
	"github.com/ternarybob/augur/internal/interfaces"
	"github.com/ternarybob/augur/internal/models"
)

// Service is a thin layer over watchlist storage that normalizes symbols
// before they are persisted.
type Service struct {
	storage interfaces.WatchlistStorage
	logger  arbor.ILogger
}

// NewService creates the watchlist service.
func NewService(storage interfaces.WatchlistStorage, logger arbor.ILogger) *Service {
	return &Service{storage: storage, logger: logger}
}

// List returns all watchlist entries sorted by code.
func (s *Service) List(ctx context.Context) ([]*models.WatchlistEntry, error) {
	return s.storage.List(ctx)
}

// Add normalizes and stores a symbol. The market is derived from the
// code, so "HK700" and "00700" land on the same entry.
func (s *Service) Add(ctx context.Context, code, name string) (*models.WatchlistEntry, error) {
	symbol := common.ParseSymbol(code)
	if !symbol.IsAnalyzable() {
		return nil, fmt.Errorf("symbol %q: %w", code, models.ErrUnsupportedMarket)
	}

	entry := &models.WatchlistEntry{
		Code:    symbol.Code,
		Name:    strings.TrimSpace(name),
		Market:  string(symbol.Market),
		AddedAt: time.Now(),
	}
	if err := s.storage.Add(ctx, entry); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("code", entry.Code).
		Str("market", entry.Market).
		Msg("Watchlist entry added")
	return entry, nil
}

// Remove deletes a symbol from the watchlist.
func (s *Service) Remove(ctx context.Context, code string) error {
	symbol := common.ParseSymbol(code)
	if symbol.Code == "" {
		return fmt.Errorf("symbol %q: %w", code, models.ErrNotFound)
	}
	return s.storage.Remove(ctx, symbol.Code)
}

// Codes returns just the normalized codes, for batch submission.
func (s *Service) Codes(ctx context.Context) ([]string, error) {
	entries, err := s.storage.List(ctx)
	if err != nil {
		return nil, err
	}
	codes := make([]string, len(entries))
	for i, entry := range entries {
		codes[i] = entry.Code
	}
	return codes, nil
}
