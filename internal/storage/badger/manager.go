package badger

import (
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/augur/internal/common"
	"github.com/ternarybob/augur/internal/interfaces"
)

// gcInterval paces background value log garbage collection.
const gcInterval = 30 * time.Minute

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db        *BadgerDB
	kv        interfaces.KeyValueStorage
	report    interfaces.ReportStorage
	watchlist interfaces.WatchlistStorage
	logger    arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:        db,
		kv:        NewKVStorage(db, logger),
		report:    NewReportStorage(db, logger),
		watchlist: NewWatchlistStorage(db, logger),
		logger:    logger,
	}

	db.StartGC(gcInterval)

	logger.Info().Msg("Badger storage manager initialized")
	return manager, nil
}

// KVStorage returns the KeyValue storage interface
func (m *Manager) KVStorage() interfaces.KeyValueStorage {
	return m.kv
}

// ReportStorage returns the Report storage interface
func (m *Manager) ReportStorage() interfaces.ReportStorage {
	return m.report
}

// WatchlistStorage returns the Watchlist storage interface
func (m *Manager) WatchlistStorage() interfaces.WatchlistStorage {
	return m.watchlist
}

// Close closes the underlying database
func (m *Manager) Close() error {
	m.logger.Debug().Msg("Closing storage manager")
	return m.db.Close()
}
