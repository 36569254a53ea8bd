package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/augur/internal/models"
)

// stubSettings satisfies the one settings method the dispatcher uses.
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

type recordingChannel struct {
	mu       sync.Mutex
	name     string
	enabled  bool
	err      error
	subjects []string
	bodies   []string
}

func (c *recordingChannel) Name() string    { return c.name }
func (c *recordingChannel) IsEnabled() bool { return c.enabled }
func (c *recordingChannel) Send(_ context.Context, subject, body string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.subjects = append(c.subjects, subject)
	c.bodies = append(c.bodies, body)
	return nil
}

func decodeJSON(r *http.Request, out interface{}) error {
	return json.NewDecoder(r.Body).Decode(out)
}

func testReport() *models.AnalysisReport {
	return &models.AnalysisReport{
		QueryID:        "task_1",
		StockCode:      "600519",
		StockName:      "Kweichow Moutai",
		SentimentScore: models.Float(72),
		SentimentLabel: "mildly bullish",
		Advice:         "buy",
		CurrentPrice:   models.Float(1520.5),
		ChangePct:      models.Float(1.2),
		Strategy:       models.StrategyPoints{IdealBuy: "1480-1500", StopLoss: "1430"},
		Summary:        "Volume confirms the breakout.",
	}
}

func TestNotifyReportDispatchesToEnabledChannels(t *testing.T) {
	enabled := &recordingChannel{name: "a", enabled: true}
	disabled := &recordingChannel{name: "b", enabled: false}
	svc := NewServiceWithChannels(&stubSettings{values: map[string]string{}}, arbor.NewLogger(), enabled, disabled)

	svc.NotifyReport(context.Background(), testReport())

	require.Len(t, enabled.subjects, 1)
	assert.Equal(t, "Analysis complete: Kweichow Moutai (600519)", enabled.subjects[0])
	assert.Contains(t, enabled.bodies[0], "Sentiment: 72/100 (mildly bullish)")
	assert.Contains(t, enabled.bodies[0], "Advice: buy")
	assert.Contains(t, enabled.bodies[0], "Ideal buy: 1480-1500")
	assert.Empty(t, disabled.subjects)
}

func TestNotifyReportRespectsOptOut(t *testing.T) {
	channel := &recordingChannel{name: "a", enabled: true}
	settings := &stubSettings{values: map[string]string{"NOTIFY_ON_COMPLETION": "false"}}
	svc := NewServiceWithChannels(settings, arbor.NewLogger(), channel)

	svc.NotifyReport(context.Background(), testReport())
	assert.Empty(t, channel.subjects)
}

func TestNotifyReportToleratesChannelFailure(t *testing.T) {
	failing := &recordingChannel{name: "a", enabled: true, err: errors.New("network down")}
	healthy := &recordingChannel{name: "b", enabled: true}
	svc := NewServiceWithChannels(&stubSettings{values: map[string]string{}}, arbor.NewLogger(), failing, healthy)

	svc.NotifyReport(context.Background(), testReport())
	assert.Len(t, healthy.subjects, 1)
}

func TestChannelsReportsEnablement(t *testing.T) {
	svc := NewServiceWithChannels(&stubSettings{values: map[string]string{}}, arbor.NewLogger(),
		&recordingChannel{name: "telegram", enabled: true},
		&recordingChannel{name: "webhook", enabled: false},
	)

	assert.Equal(t, map[string]bool{"telegram": true, "webhook": false}, svc.Channels())
}

func TestTelegramChannelSend(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, decodeJSON(r, &gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	prior := telegramAPIBase
	telegramAPIBase = server.URL
	defer func() { telegramAPIBase = prior }()

	settings := &stubSettings{values: map[string]string{
		"TELEGRAM_BOT_TOKEN": "bot-token",
		"TELEGRAM_CHAT_ID":   "12345",
	}}
	channel := NewTelegramChannel(settings, arbor.NewLogger())
	require.True(t, channel.IsEnabled())

	require.NoError(t, channel.Send(context.Background(), "Subject", "Body"))
	assert.Equal(t, "/botbot-token/sendMessage", gotPath)
	assert.Equal(t, "12345", gotBody["chat_id"])
	assert.Contains(t, gotBody["text"], "*Subject*")
	assert.Contains(t, gotBody["text"], "Body")
}

func TestTelegramChannelDisabledWithoutCredentials(t *testing.T) {
	channel := NewTelegramChannel(&stubSettings{values: map[string]string{"TELEGRAM_BOT_TOKEN": "x"}}, arbor.NewLogger())
	assert.False(t, channel.IsEnabled())

	err := channel.Send(context.Background(), "s", "b")
	assert.Error(t, err)
}

func TestWebhookChannelSend(t *testing.T) {
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, decodeJSON(r, &gotBody))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	settings := &stubSettings{values: map[string]string{"WEBHOOK_URL": server.URL}}
	channel := NewWebhookChannel(settings, arbor.NewLogger())
	require.True(t, channel.IsEnabled())

	require.NoError(t, channel.Send(context.Background(), "Subject", "Body"))
	assert.Equal(t, map[string]string{"subject": "Subject", "body": "Body"}, gotBody)
}

func TestWebhookChannelReportsHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	channel := NewWebhookChannel(&stubSettings{values: map[string]string{"WEBHOOK_URL": server.URL}}, arbor.NewLogger())
	err := channel.Send(context.Background(), "s", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
