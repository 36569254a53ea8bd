package settings

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/augur/internal/interfaces"
)

// DBBackend persists settings in the key/value store.
type DBBackend struct {
	storage interfaces.KeyValueStorage
}

// NewDBBackend wraps a key/value storage as a settings backend.
func NewDBBackend(storage interfaces.KeyValueStorage) *DBBackend {
	return &DBBackend{storage: storage}
}

// Read returns all stored settings.
func (b *DBBackend) Read(ctx context.Context) (map[string]string, error) {
	return b.storage.GetAll(ctx)
}

// Version hashes the sorted key/value items into a short content
// version prefixed with "db:".
func (b *DBBackend) Version(ctx context.Context) (string, error) {
	values, err := b.storage.GetAll(ctx)
	if err != nil {
		return "", err
	}
	return dbVersion(values), nil
}

// UpdatedAt returns the most recent row update time.
func (b *DBBackend) UpdatedAt(ctx context.Context) (*time.Time, error) {
	return b.storage.LastUpdated(ctx)
}

// Apply writes updates in one storage transaction, honoring the mask
// protocol. A failed commit leaves every row untouched.
func (b *DBBackend) Apply(ctx context.Context, updates map[string]string, sensitiveKeys map[string]bool, maskToken string) (applied []string, skippedMasked []string, newVersion string, err error) {
	current, err := b.storage.GetAll(ctx)
	if err != nil {
		return nil, nil, "", err
	}

	keys := make([]string, 0, len(updates))
	for key := range updates {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	toWrite := make(map[string]string, len(updates))
	for _, key := range keys {
		value := updates[key]
		if maskToken != "" && value == maskToken && sensitiveKeys[key] && current[key] != "" {
			skippedMasked = append(skippedMasked, key)
			continue
		}
		toWrite[key] = value
		applied = append(applied, key)
	}

	if len(toWrite) > 0 {
		if err := b.storage.SetMany(ctx, toWrite); err != nil {
			return nil, nil, "", fmt.Errorf("failed to store settings: %w", err)
		}
		for key, value := range toWrite {
			current[key] = value
		}
	}

	return applied, skippedMasked, dbVersion(current), nil
}

func dbVersion(values map[string]string) string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	hash := sha256.New()
	for _, key := range keys {
		fmt.Fprintf(hash, "%s=%s\n", key, values[key])
	}
	return "db:" + fmt.Sprintf("%x", hash.Sum(nil))[:16]
}
