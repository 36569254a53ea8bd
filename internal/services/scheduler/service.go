// Package scheduler drives cron-triggered batch analyses over the
// watchlist and the configured stock list.
package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/augur/internal/common"
	"github.com/ternarybob/augur/internal/interfaces"
	"github.com/ternarybob/augur/internal/models"
)

// Service schedules batch submissions with robfig/cron. The cron spec
// and enablement are re-read from settings on every reload, so changes
// take effect without a restart.
type Service struct {
	tasks     interfaces.TaskService
	watchlist interfaces.WatchlistStorage
	settings  interfaces.SettingsService
	events    interfaces.EventService
	config    *common.SchedulerConfig
	logger    arbor.ILogger

	mu      sync.Mutex
	cron    *cron.Cron
	entryID cron.EntryID
}

// NewService creates the scheduler service.
func NewService(
	tasks interfaces.TaskService,
	watchlist interfaces.WatchlistStorage,
	settings interfaces.SettingsService,
	events interfaces.EventService,
	config *common.SchedulerConfig,
	logger arbor.ILogger,
) *Service {
	return &Service{
		tasks:     tasks,
		watchlist: watchlist,
		settings:  settings,
		events:    events,
		config:    config,
		logger:    logger,
	}
}

// Start installs the cron entry when scheduling is enabled.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled() {
		s.logger.Info().Msg("Scheduler disabled")
		return nil
	}

	spec := s.cronSpec()
	c := cron.New()
	entryID, err := c.AddFunc(spec, s.runBatch)
	if err != nil {
		return errors.New("invalid cron spec " + spec + ": " + err.Error())
	}
	c.Start()

	s.cron = c
	s.entryID = entryID
	s.logger.Info().Str("cron", spec).Msg("Scheduler started")
	return nil
}

// Stop halts the cron runner and waits for any running batch trigger.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == nil {
		return nil
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.cron = nil
	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

// Reload re-reads settings and restarts the cron entry. Registered as a
// settings reload hook.
func (s *Service) Reload(_ context.Context) error {
	if err := s.Stop(); err != nil {
		return err
	}
	return s.Start()
}

// TriggerBatch submits every batch symbol for analysis now. Symbols
// already pending or processing are skipped.
func (s *Service) TriggerBatch(ctx context.Context) (submitted, skipped int, err error) {
	codes, err := s.batchCodes(ctx)
	if err != nil {
		return 0, 0, err
	}
	if len(codes) == 0 {
		s.logger.Warn().Msg("Batch trigger with empty symbol set")
		return 0, 0, nil
	}

	reportType := models.ReportType(s.settings.Get(ctx, "BATCH_REPORT_TYPE", string(models.ReportFull)))
	if reportType != models.ReportSimple && reportType != models.ReportFull {
		reportType = models.ReportFull
	}

	for _, code := range codes {
		_, submitErr := s.tasks.Submit(ctx, interfaces.SubmitRequest{
			StockCode:  code,
			ReportType: reportType,
		})
		if submitErr != nil {
			var dup *models.DuplicateTaskError
			if errors.As(submitErr, &dup) {
				skipped++
				continue
			}
			s.logger.Warn().Err(submitErr).Str("code", code).Msg("Batch submission failed")
			skipped++
			continue
		}
		submitted++
	}

	s.logger.Info().
		Int("submitted", submitted).
		Int("skipped", skipped).
		Msg("Batch triggered")

	if s.events != nil {
		_ = s.events.Publish(ctx, interfaces.Event{
			Type: interfaces.EventBatchTriggered,
			Payload: map[string]int{
				"submitted": submitted,
				"skipped":   skipped,
			},
		})
	}
	return submitted, skipped, nil
}

func (s *Service) runBatch() {
	if _, _, err := s.TriggerBatch(context.Background()); err != nil {
		s.logger.Error().Err(err).Msg("Scheduled batch failed")
	}
}

// batchCodes is the union of the STOCK_LIST setting and the stored
// watchlist, deduplicated on the normalized code. Order is stock list
// first, then watchlist additions.
func (s *Service) batchCodes(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var codes []string

	for _, raw := range strings.Split(s.settings.Get(ctx, "STOCK_LIST", ""), ",") {
		symbol := common.ParseSymbol(raw)
		if !symbol.IsAnalyzable() || seen[symbol.Code] {
			continue
		}
		seen[symbol.Code] = true
		codes = append(codes, symbol.Code)
	}

	entries, err := s.watchlist.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if seen[entry.Code] {
			continue
		}
		seen[entry.Code] = true
		codes = append(codes, entry.Code)
	}
	return codes, nil
}

func (s *Service) enabled() bool {
	value := s.settings.Get(context.Background(), "SCHEDULE_ENABLED", "")
	if value != "" {
		return strings.EqualFold(value, "true")
	}
	return s.config != nil && s.config.Enabled
}

func (s *Service) cronSpec() string {
	fallback := "30 8 * * 1-5"
	if s.config != nil && s.config.Cron != "" {
		fallback = s.config.Cron
	}
	return s.settings.Get(context.Background(), "SCHEDULE_CRON", fallback)
}
