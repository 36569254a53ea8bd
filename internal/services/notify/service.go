// Package notify dispatches completed analysis reports to external
// channels (Telegram, webhooks). Delivery is best-effort: failures are
// logged and never surface to the analysis task.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/augur/internal/interfaces"
	"github.com/ternarybob/augur/internal/models"
)

// Service fans a completed report out to every enabled channel.
type Service struct {
	settings interfaces.SettingsService
	channels []interfaces.NotificationChannel
	logger   arbor.ILogger
}

// NewService creates the notification dispatcher with the default
// channel set.
func NewService(settings interfaces.SettingsService, logger arbor.ILogger) *Service {
	return &Service{
		settings: settings,
		channels: []interfaces.NotificationChannel{
			NewLogChannel(logger),
			NewTelegramChannel(settings, logger),
			NewWebhookChannel(settings, logger),
		},
		logger: logger,
	}
}

// NewServiceWithChannels creates a dispatcher over an explicit channel set.
func NewServiceWithChannels(settings interfaces.SettingsService, logger arbor.ILogger, channels ...interfaces.NotificationChannel) *Service {
	return &Service{settings: settings, channels: channels, logger: logger}
}

// NotifyReport renders and dispatches a completed analysis report.
// Dispatch is skipped entirely when NOTIFY_ON_COMPLETION is false.
func (s *Service) NotifyReport(ctx context.Context, report *models.AnalysisReport) {
	if report == nil {
		return
	}
	if !strings.EqualFold(s.settings.Get(ctx, "NOTIFY_ON_COMPLETION", "true"), "true") {
		return
	}

	subject, body := renderSummary(report)
	for _, channel := range s.channels {
		if !channel.IsEnabled() {
			continue
		}
		if err := channel.Send(ctx, subject, body); err != nil {
			s.logger.Warn().
				Err(err).
				Str("channel", channel.Name()).
				Str("stock_code", report.StockCode).
				Msg("Notification delivery failed")
			continue
		}
		s.logger.Info().
			Str("channel", channel.Name()).
			Str("stock_code", report.StockCode).
			Msg("Notification sent")
	}
}

// Channels lists configured channel names and enablement.
func (s *Service) Channels() map[string]bool {
	out := make(map[string]bool, len(s.channels))
	for _, channel := range s.channels {
		out[channel.Name()] = channel.IsEnabled()
	}
	return out
}

// renderSummary builds the compact notification message for a report.
func renderSummary(report *models.AnalysisReport) (subject, body string) {
	name := report.StockCode
	if report.StockName != "" {
		name = fmt.Sprintf("%s (%s)", report.StockName, report.StockCode)
	}
	subject = fmt.Sprintf("Analysis complete: %s", name)

	var sb strings.Builder
	if report.SentimentScore != nil {
		fmt.Fprintf(&sb, "Sentiment: %.0f/100 (%s)\n", *report.SentimentScore, report.SentimentLabel)
	}
	if report.Advice != "" {
		fmt.Fprintf(&sb, "Advice: %s\n", report.Advice)
	}
	if report.CurrentPrice != nil {
		fmt.Fprintf(&sb, "Price: %.2f", *report.CurrentPrice)
		if report.ChangePct != nil {
			fmt.Fprintf(&sb, " (%+.2f%%)", *report.ChangePct)
		}
		sb.WriteString("\n")
	}
	if !report.Strategy.IsZero() {
		if report.Strategy.IdealBuy != "" {
			fmt.Fprintf(&sb, "Ideal buy: %s\n", report.Strategy.IdealBuy)
		}
		if report.Strategy.StopLoss != "" {
			fmt.Fprintf(&sb, "Stop loss: %s\n", report.Strategy.StopLoss)
		}
	}
	if report.Summary != "" {
		sb.WriteString("\n")
		sb.WriteString(report.Summary)
	}
	return subject, strings.TrimSpace(sb.String())
}
