package badger

import (
	"context"
	"fmt"
	"strings"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/augur/internal/interfaces"
)

// KVStorage implements the KeyValueStorage interface for Badger. It
// backs the database settings backend, so keys keep their exact case;
// settings keys are conventionally upper snake case.
type KVStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewKVStorage creates a new KVStorage instance
func NewKVStorage(db *BadgerDB, logger arbor.ILogger) interfaces.KeyValueStorage {
	return &KVStorage{
		db:     db,
		logger: logger,
	}
}

func (s *KVStorage) normalizeKey(key string) string {
	return strings.TrimSpace(key)
}

// Get retrieves a value by key
func (s *KVStorage) Get(ctx context.Context, key string) (string, error) {
	var pair interfaces.KeyValuePair
	err := s.db.Store().Get(s.normalizeKey(key), &pair)
	if err == badgerhold.ErrNotFound {
		return "", interfaces.ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get key: %w", err)
	}
	return pair.Value, nil
}

// Set inserts or updates a key/value pair
func (s *KVStorage) Set(ctx context.Context, key string, value string) error {
	normalizedKey := s.normalizeKey(key)
	if normalizedKey == "" {
		return fmt.Errorf("key cannot be empty")
	}
	now := time.Now()

	pair := interfaces.KeyValuePair{
		Key:       normalizedKey,
		Value:     value,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// Preserve CreatedAt across updates
	var existing interfaces.KeyValuePair
	if err := s.db.Store().Get(normalizedKey, &existing); err == nil {
		pair.CreatedAt = existing.CreatedAt
	}

	if err := s.db.Store().Upsert(normalizedKey, &pair); err != nil {
		return fmt.Errorf("failed to set key/value: %w", err)
	}
	return nil
}

// SetMany inserts or updates the given pairs inside one Badger
// transaction, so a failed write leaves no partial update behind.
func (s *KVStorage) SetMany(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	now := time.Now()

	return s.db.Store().Badger().Update(func(tx *badgerdb.Txn) error {
		for key, value := range values {
			normalizedKey := s.normalizeKey(key)
			if normalizedKey == "" {
				return fmt.Errorf("key cannot be empty")
			}

			pair := interfaces.KeyValuePair{
				Key:       normalizedKey,
				Value:     value,
				CreatedAt: now,
				UpdatedAt: now,
			}
			var existing interfaces.KeyValuePair
			if err := s.db.Store().TxGet(tx, normalizedKey, &existing); err == nil {
				pair.CreatedAt = existing.CreatedAt
			}

			if err := s.db.Store().TxUpsert(tx, normalizedKey, &pair); err != nil {
				return fmt.Errorf("failed to set key %s: %w", normalizedKey, err)
			}
		}
		return nil
	})
}

// Delete removes a key/value pair
func (s *KVStorage) Delete(ctx context.Context, key string) error {
	err := s.db.Store().Delete(s.normalizeKey(key), interfaces.KeyValuePair{})
	if err == badgerhold.ErrNotFound {
		return interfaces.ErrKeyNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}
	return nil
}

// GetAll returns all key/value pairs as a map
func (s *KVStorage) GetAll(ctx context.Context) (map[string]string, error) {
	var pairs []interfaces.KeyValuePair
	if err := s.db.Store().Find(&pairs, nil); err != nil {
		return nil, fmt.Errorf("failed to list key/value pairs: %w", err)
	}

	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		out[pair.Key] = pair.Value
	}
	return out, nil
}

// LastUpdated returns the most recent UpdatedAt across all pairs
func (s *KVStorage) LastUpdated(ctx context.Context) (*time.Time, error) {
	var pairs []interfaces.KeyValuePair
	if err := s.db.Store().Find(&pairs, nil); err != nil {
		return nil, fmt.Errorf("failed to list key/value pairs: %w", err)
	}

	var latest *time.Time
	for _, pair := range pairs {
		updated := pair.UpdatedAt
		if latest == nil || updated.After(*latest) {
			latest = &updated
		}
	}
	return latest, nil
}
