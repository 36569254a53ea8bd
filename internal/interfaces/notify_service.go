package interfaces

import (
	"context"

	"github.com/ternarybob/augur/internal/models"
)

// NotificationChannel delivers one rendered report summary to an
// external sink. Transports are thin; failures are logged by the
// dispatcher and never propagate to the task.
type NotificationChannel interface {
	Name() string
	IsEnabled() bool
	Send(ctx context.Context, subject, body string) error
}

// NotificationService fans a completed report out to every enabled channel.
type NotificationService interface {
	// NotifyReport renders and dispatches a completed analysis report.
	NotifyReport(ctx context.Context, report *models.AnalysisReport)

	// Channels lists configured channel names and enablement.
	Channels() map[string]bool
}

// SchedulerService drives scheduled watchlist batch analyses.
type SchedulerService interface {
	Start() error
	Stop() error

	// TriggerBatch submits every watchlist symbol for analysis now.
	// Dedupe collisions are skipped, not errors.
	TriggerBatch(ctx context.Context) (submitted, skipped int, err error)
}
