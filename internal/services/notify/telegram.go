package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/augur/internal/interfaces"
)

// telegramAPIBase is overridable in tests.
var telegramAPIBase = "https://api.telegram.org"

// TelegramChannel delivers notifications through the Telegram Bot API.
// Credentials are read from settings at send time so hot reloads apply
// without rewiring.
type TelegramChannel struct {
	settings interfaces.SettingsService
	client   *resty.Client
	logger   arbor.ILogger
}

// NewTelegramChannel creates the telegram notification channel.
func NewTelegramChannel(settings interfaces.SettingsService, logger arbor.ILogger) *TelegramChannel {
	return &TelegramChannel{
		settings: settings,
		client:   resty.New().SetTimeout(15 * time.Second),
		logger:   logger,
	}
}

func (c *TelegramChannel) Name() string { return "telegram" }

// IsEnabled reports whether both the bot token and chat id are configured.
func (c *TelegramChannel) IsEnabled() bool {
	ctx := context.Background()
	return c.settings.Get(ctx, "TELEGRAM_BOT_TOKEN", "") != "" &&
		c.settings.Get(ctx, "TELEGRAM_CHAT_ID", "") != ""
}

// Send posts the message via the bot sendMessage endpoint.
func (c *TelegramChannel) Send(ctx context.Context, subject, body string) error {
	token := c.settings.Get(ctx, "TELEGRAM_BOT_TOKEN", "")
	chatID := c.settings.Get(ctx, "TELEGRAM_CHAT_ID", "")
	if token == "" || chatID == "" {
		return fmt.Errorf("telegram channel is not configured")
	}

	text := body
	if subject != "" {
		text = fmt.Sprintf("*%s*\n\n%s", subject, body)
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"chat_id":    chatID,
			"text":       text,
			"parse_mode": "Markdown",
		}).
		Post(fmt.Sprintf("%s/bot%s/sendMessage", telegramAPIBase, token))
	if err != nil {
		return fmt.Errorf("telegram send failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("telegram send failed: status %d", resp.StatusCode())
	}
	return nil
}
