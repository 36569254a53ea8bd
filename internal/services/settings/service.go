package settings

import (
	"context"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/augur/internal/interfaces"
	"github.com/ternarybob/augur/internal/models"
)

// ReloadHook is invoked after a hot reload so dependent services can
// re-read their configuration. Hook errors become update warnings, not
// failures.
type ReloadHook func(ctx context.Context) error

// Service implements interfaces.SettingsService over a pluggable
// backend with an in-memory snapshot for hot-path reads.
type Service struct {
	backend interfaces.SettingsBackend
	logger  arbor.ILogger

	mu     sync.RWMutex
	cache  map[string]string
	loaded bool

	hookMu sync.Mutex
	hooks  []struct {
		name string
		fn   ReloadHook
	}
}

// NewService builds the settings service and primes the snapshot.
func NewService(ctx context.Context, backend interfaces.SettingsBackend, logger arbor.ILogger) (*Service, error) {
	s := &Service{backend: backend, logger: logger}
	if err := s.Reload(ctx); err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	return s, nil
}

// RegisterReloadHook adds a hook run after every hot reload.
func (s *Service) RegisterReloadHook(name string, hook ReloadHook) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.hooks = append(s.hooks, struct {
		name string
		fn   ReloadHook
	}{name, hook})
}

// GetSchema returns the category-grouped field catalog.
func (s *Service) GetSchema() []models.SchemaGroup {
	return SchemaGroups()
}

// GetConfig returns current items and version. Values are not masked
// here; callers that disclose them apply the mask themselves.
func (s *Service) GetConfig(ctx context.Context) (*models.SettingsSnapshot, error) {
	items, err := s.backend.Read(ctx)
	if err != nil {
		return nil, err
	}
	version, err := s.backend.Version(ctx)
	if err != nil {
		return nil, err
	}
	updatedAt, err := s.backend.UpdatedAt(ctx)
	if err != nil {
		return nil, err
	}
	return &models.SettingsSnapshot{Items: items, ConfigVersion: version, UpdatedAt: updatedAt}, nil
}

// Validate checks items against the schema without writing.
func (s *Service) Validate(items []models.SettingItem) []models.SettingIssue {
	s.mu.RLock()
	current := make(map[string]string, len(s.cache))
	for k, v := range s.cache {
		current[k] = v
	}
	s.mu.RUnlock()

	issues, _ := ValidateItems(items, current)
	return issues
}

// Update applies an optimistic-versioned write with the mask protocol.
func (s *Service) Update(ctx context.Context, configVersion string, items []models.SettingItem, maskToken string, reloadNow bool) (*models.SettingsUpdateResult, error) {
	currentVersion, err := s.backend.Version(ctx)
	if err != nil {
		return nil, err
	}
	if configVersion != currentVersion {
		return nil, &models.VersionConflictError{SubmittedVersion: configVersion, CurrentVersion: currentVersion}
	}

	current, err := s.backend.Read(ctx)
	if err != nil {
		return nil, err
	}

	issues, warnings := ValidateItems(items, current)
	if len(issues) > 0 {
		return nil, &models.ValidationFailedError{Issues: issues}
	}

	sensitive := SensitiveKeys()
	updates := make(map[string]string, len(items))
	for _, item := range items {
		// Masked values must reach the backend so it can count the skip;
		// unchanged plain values are dropped here.
		isMasked := maskToken != "" && item.Value == maskToken && sensitive[item.Key] && current[item.Key] != ""
		if !isMasked && current[item.Key] == item.Value {
			continue
		}
		updates[item.Key] = item.Value
	}

	applied, skippedMasked, newVersion, err := s.backend.Apply(ctx, updates, sensitive, maskToken)
	if err != nil {
		return nil, err
	}

	result := &models.SettingsUpdateResult{
		Success:            true,
		NewConfigVersion:   newVersion,
		AppliedCount:       len(applied),
		SkippedMaskedCount: len(skippedMasked),
		UpdatedKeys:        applied,
		Warnings:           warnings,
	}

	if reloadNow {
		result.ReloadTriggered = true
		if err := s.Reload(ctx); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("reload failed: %v", err))
		} else {
			result.Warnings = append(result.Warnings, s.runHooks(ctx)...)
		}
	} else {
		// Keep the snapshot coherent with the store even without a full
		// reload cycle.
		s.mu.Lock()
		for _, key := range applied {
			s.cache[key] = updates[key]
		}
		s.mu.Unlock()
	}

	if s.logger != nil {
		s.logger.Info().
			Int("applied", result.AppliedCount).
			Int("skipped_masked", result.SkippedMaskedCount).
			Bool("reload", result.ReloadTriggered).
			Str("version", newVersion).
			Msg("Settings updated")
	}
	return result, nil
}

// Get returns one value from the snapshot, or fallback when absent or
// empty.
func (s *Service) Get(_ context.Context, key, fallback string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.cache[key]; ok && v != "" {
		return v
	}
	return fallback
}

// Reload re-reads the backend into the runtime snapshot.
func (s *Service) Reload(ctx context.Context) error {
	values, err := s.backend.Read(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.cache = values
	s.loaded = true
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.Debug().Int("keys", len(values)).Msg("Settings snapshot reloaded")
	}
	return nil
}

// runHooks runs every reload hook, collecting failures as warnings.
func (s *Service) runHooks(ctx context.Context) []string {
	s.hookMu.Lock()
	hooks := make([]struct {
		name string
		fn   ReloadHook
	}, len(s.hooks))
	copy(hooks, s.hooks)
	s.hookMu.Unlock()

	var warnings []string
	for _, hook := range hooks {
		if err := hook.fn(ctx); err != nil {
			warnings = append(warnings, fmt.Sprintf("%s reload: %v", hook.name, err))
			if s.logger != nil {
				s.logger.Warn().Str("hook", hook.name).Err(err).Msg("Settings reload hook failed")
			}
		}
	}
	return warnings
}
