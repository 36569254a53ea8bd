package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/augur/internal/interfaces"
)

// WebhookChannel posts notifications as JSON to a configured URL.
type WebhookChannel struct {
	settings interfaces.SettingsService
	client   *resty.Client
	logger   arbor.ILogger
}

// NewWebhookChannel creates the webhook notification channel.
func NewWebhookChannel(settings interfaces.SettingsService, logger arbor.ILogger) *WebhookChannel {
	return &WebhookChannel{
		settings: settings,
		client:   resty.New().SetTimeout(15 * time.Second),
		logger:   logger,
	}
}

func (c *WebhookChannel) Name() string { return "webhook" }

func (c *WebhookChannel) IsEnabled() bool {
	return c.settings.Get(context.Background(), "WEBHOOK_URL", "") != ""
}

// Send posts {"subject": ..., "body": ...} to the configured URL.
func (c *WebhookChannel) Send(ctx context.Context, subject, body string) error {
	url := c.settings.Get(ctx, "WEBHOOK_URL", "")
	if url == "" {
		return fmt.Errorf("webhook channel is not configured")
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{
			"subject": subject,
			"body":    body,
		}).
		Post(url)
	if err != nil {
		return fmt.Errorf("webhook send failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook send failed: status %d", resp.StatusCode())
	}
	return nil
}
