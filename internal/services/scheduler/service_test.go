package scheduler

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/augur/internal/common"
	"github.com/ternarybob/augur/internal/interfaces"
	"github.com/ternarybob/augur/internal/models"
)

type stubSettings struct {
	values map[string]string
}

func (s *stubSettings) GetSchema() []models.SchemaGroup { return nil }
func (s *stubSettings) GetConfig(context.Context) (*models.SettingsSnapshot, error) {
	return nil, nil
}
func (s *stubSettings) Validate([]models.SettingItem) []models.SettingIssue { return nil }
func (s *stubSettings) Update(context.Context, string, []models.SettingItem, string, bool) (*models.SettingsUpdateResult, error) {
	return nil, nil
}
func (s *stubSettings) Get(_ context.Context, key, fallback string) string {
	if v, ok := s.values[key]; ok && v != "" {
		return v
	}
	return fallback
}
func (s *stubSettings) Reload(context.Context) error { return nil }

type stubTasks struct {
	mu        sync.Mutex
	submitted []interfaces.SubmitRequest
	dupeCodes map[string]bool
}

func (s *stubTasks) Submit(_ context.Context, req interfaces.SubmitRequest) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dupeCodes[req.StockCode] {
		return nil, &models.DuplicateTaskError{StockCode: req.StockCode, ExistingTaskID: "task_existing"}
	}
	s.submitted = append(s.submitted, req)
	return &models.Task{TaskID: "task_" + req.StockCode, StockCode: req.StockCode}, nil
}

func (s *stubTasks) GetTask(string) (*models.Task, error)         { return nil, models.ErrNotFound }
func (s *stubTasks) ReportProgress(string, int, string)           {}
func (s *stubTasks) ListAllTasks(int) []*models.Task              { return nil }
func (s *stubTasks) ListPendingTasks() []*models.Task             { return nil }
func (s *stubTasks) GetTaskStats() models.TaskStats               { return models.TaskStats{} }
func (s *stubTasks) Subscribe() interfaces.TaskSubscription       { return nil }
func (s *stubTasks) Start(context.Context) error                  { return nil }
func (s *stubTasks) Stop() error                                  { return nil }

type stubWatchlist struct {
	entries []*models.WatchlistEntry
}

func (s *stubWatchlist) List(context.Context) ([]*models.WatchlistEntry, error) {
	return s.entries, nil
}
func (s *stubWatchlist) Add(context.Context, *models.WatchlistEntry) error { return nil }
func (s *stubWatchlist) Remove(context.Context, string) error              { return nil }
func (s *stubWatchlist) Exists(context.Context, string) (bool, error)      { return false, nil }

type captureEvents struct {
	mu     sync.Mutex
	events []interfaces.Event
}

func (c *captureEvents) Subscribe(interfaces.EventType, interfaces.EventHandler) error { return nil }
func (c *captureEvents) Publish(_ context.Context, event interfaces.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}
func (c *captureEvents) PublishSync(ctx context.Context, event interfaces.Event) error {
	return c.Publish(ctx, event)
}
func (c *captureEvents) Close() error { return nil }

func newTestService(settings map[string]string, tasks *stubTasks, watchlist *stubWatchlist, events *captureEvents) *Service {
	return NewService(tasks, watchlist, &stubSettings{values: settings}, events,
		&common.SchedulerConfig{Enabled: false, Cron: "30 8 * * 1-5"}, arbor.NewLogger())
}

func TestTriggerBatchUnionsStockListAndWatchlist(t *testing.T) {
	tasks := &stubTasks{dupeCodes: map[string]bool{}}
	watchlist := &stubWatchlist{entries: []*models.WatchlistEntry{
		{Code: "00700"},
		{Code: "600519"}, // also in the stock list; deduplicated
	}}
	events := &captureEvents{}
	svc := newTestService(map[string]string{
		"STOCK_LIST": "600519, HK1810, bogus!!",
	}, tasks, watchlist, events)

	submitted, skipped, err := svc.TriggerBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, submitted)
	assert.Equal(t, 0, skipped)

	var codes []string
	for _, req := range tasks.submitted {
		codes = append(codes, req.StockCode)
	}
	assert.Equal(t, []string{"600519", "01810", "00700"}, codes)

	require.Len(t, events.events, 1)
	assert.Equal(t, interfaces.EventBatchTriggered, events.events[0].Type)
}

func TestTriggerBatchSkipsDuplicates(t *testing.T) {
	tasks := &stubTasks{dupeCodes: map[string]bool{"600519": true}}
	svc := newTestService(map[string]string{"STOCK_LIST": "600519,AAPL"}, tasks,
		&stubWatchlist{}, &captureEvents{})

	submitted, skipped, err := svc.TriggerBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, submitted)
	assert.Equal(t, 1, skipped)
}

func TestTriggerBatchUsesConfiguredReportType(t *testing.T) {
	tasks := &stubTasks{dupeCodes: map[string]bool{}}
	svc := newTestService(map[string]string{
		"STOCK_LIST":        "600519",
		"BATCH_REPORT_TYPE": "simple",
	}, tasks, &stubWatchlist{}, &captureEvents{})

	_, _, err := svc.TriggerBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks.submitted, 1)
	assert.Equal(t, models.ReportSimple, tasks.submitted[0].ReportType)
}

func TestTriggerBatchEmptySet(t *testing.T) {
	tasks := &stubTasks{dupeCodes: map[string]bool{}}
	events := &captureEvents{}
	svc := newTestService(map[string]string{}, tasks, &stubWatchlist{}, events)

	submitted, skipped, err := svc.TriggerBatch(context.Background())
	require.NoError(t, err)
	assert.Zero(t, submitted)
	assert.Zero(t, skipped)
	assert.Empty(t, events.events)
}

func TestStartDisabledIsNoop(t *testing.T) {
	svc := newTestService(map[string]string{"SCHEDULE_ENABLED": "false"}, &stubTasks{dupeCodes: map[string]bool{}},
		&stubWatchlist{}, &captureEvents{})

	require.NoError(t, svc.Start())
	require.NoError(t, svc.Stop())
}

func TestStartRejectsInvalidCronSpec(t *testing.T) {
	svc := newTestService(map[string]string{
		"SCHEDULE_ENABLED": "true",
		"SCHEDULE_CRON":    "not a cron",
	}, &stubTasks{dupeCodes: map[string]bool{}}, &stubWatchlist{}, &captureEvents{})

	assert.Error(t, svc.Start())
}

func TestStartStopReloadCycle(t *testing.T) {
	svc := newTestService(map[string]string{
		"SCHEDULE_ENABLED": "true",
		"SCHEDULE_CRON":    "0 9 * * *",
	}, &stubTasks{dupeCodes: map[string]bool{}}, &stubWatchlist{}, &captureEvents{})

	require.NoError(t, svc.Start())
	require.NoError(t, svc.Reload(context.Background()))
	require.NoError(t, svc.Stop())
	require.NoError(t, svc.Stop()) // idempotent
}
