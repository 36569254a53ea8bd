package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/augur/internal/models"
)

// MaskToken is the sentinel a client round-trips in place of a secret
// it never saw. Updates submitting this value for a sensitive key with
// a non-empty stored value are skipped, not applied.
const MaskToken = "******"

// SettingsBackend is the pluggable persistence under the settings
// service: dotenv file or database table.
type SettingsBackend interface {
	// Read returns the full key/value map.
	Read(ctx context.Context) (map[string]string, error)

	// Version returns the current deterministic content version.
	Version(ctx context.Context) (string, error)

	// UpdatedAt returns the last modification time when known.
	UpdatedAt(ctx context.Context) (*time.Time, error)

	// Apply writes updates. Values equal to maskToken on keys listed in
	// sensitiveKeys are skipped when a non-empty value is stored.
	// Returns applied keys, skipped masked keys, and the new version.
	Apply(ctx context.Context, updates map[string]string, sensitiveKeys map[string]bool, maskToken string) (applied []string, skippedMasked []string, newVersion string, err error)
}

// SettingsService is the runtime configuration service: schema
// metadata, optimistic-versioned updates, mask protocol, hot reload.
type SettingsService interface {
	// GetSchema returns category-grouped field metadata.
	GetSchema() []models.SchemaGroup

	// GetConfig returns current items and config version. Values are
	// returned unmasked; disclosure is the caller's concern.
	GetConfig(ctx context.Context) (*models.SettingsSnapshot, error)

	// Validate checks items against the schema without writing.
	Validate(items []models.SettingItem) []models.SettingIssue

	// Update applies an optimistic-versioned write. Returns
	// *models.VersionConflictError on a version miss and
	// *models.ValidationFailedError on invalid items.
	Update(ctx context.Context, configVersion string, items []models.SettingItem, maskToken string, reloadNow bool) (*models.SettingsUpdateResult, error)

	// Get returns one value with a fallback default.
	Get(ctx context.Context, key, fallback string) string

	// Reload re-reads the backend into the runtime snapshot.
	Reload(ctx context.Context) error
}
