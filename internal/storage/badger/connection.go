// Package badger implements the typed storages over a single BadgerDB
// database via badgerhold.
package badger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/augur/internal/common"
)

// gcDiscardRatio is the value log rewrite threshold for background GC.
const gcDiscardRatio = 0.5

// BadgerDB manages the Badger database connection
type BadgerDB struct {
	store    *badgerhold.Store
	logger   arbor.ILogger
	config   *common.BadgerConfig
	stopGC   chan struct{}
	stopOnce sync.Once
}

// NewBadgerDB creates a new Badger database connection
func NewBadgerDB(logger arbor.ILogger, config *common.BadgerConfig) (*BadgerDB, error) {
	// If reset_on_startup is enabled, delete the existing database
	if config.ResetOnStartup {
		if _, err := os.Stat(config.Path); err == nil {
			logger.Debug().Str("path", config.Path).Msg("Deleting existing database (reset_on_startup=true)")
			if err := os.RemoveAll(config.Path); err != nil {
				logger.Warn().Err(err).Str("path", config.Path).Msg("Failed to delete database directory")
			}
		}
	}

	// Ensure the directory exists
	dir := filepath.Dir(config.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	logger.Debug().Str("path", config.Path).Msg("Opening Badger database connection")

	options := badgerhold.DefaultOptions
	options.Dir = config.Path
	options.ValueDir = config.Path
	options.Logger = nil // Disable default badger logger to use arbor

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	logger.Debug().Str("path", config.Path).Msg("Badger database initialized")

	return &BadgerDB{
		store:  store,
		logger: logger,
		config: config,
		stopGC: make(chan struct{}),
	}, nil
}

// StartGC runs value log garbage collection on the given interval
// until the database is closed.
func (b *BadgerDB) StartGC(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-b.stopGC:
				return
			case <-ticker.C:
				if err := b.RunGC(gcDiscardRatio); err != nil {
					b.logger.Warn().Err(err).Msg("Badger value log GC failed")
				}
			}
		}
	}()
}

// RunGC triggers one value log GC cycle. A cycle that finds nothing to
// rewrite is not an error.
func (b *BadgerDB) RunGC(discardRatio float64) error {
	err := b.store.Badger().RunValueLogGC(discardRatio)
	if err != nil && err != badgerdb.ErrNoRewrite {
		return err
	}
	return nil
}

// Store returns the underlying badgerhold store
func (b *BadgerDB) Store() *badgerhold.Store {
	return b.store
}

// Close closes the database connection
func (b *BadgerDB) Close() error {
	b.stopOnce.Do(func() { close(b.stopGC) })
	if b.store != nil {
		return b.store.Close()
	}
	return nil
}
