package notify

import (
	"context"

	"github.com/ternarybob/arbor"
)

// LogChannel writes report summaries to the application log. Always
// enabled; it is the floor that makes completions visible even with no
// external channel configured.
type LogChannel struct {
	logger arbor.ILogger
}

func NewLogChannel(logger arbor.ILogger) *LogChannel {
	return &LogChannel{logger: logger}
}

func (c *LogChannel) Name() string { return "log" }

func (c *LogChannel) IsEnabled() bool { return true }

func (c *LogChannel) Send(_ context.Context, subject, body string) error {
	c.logger.Info().
		Str("subject", subject).
		Str("body", body).
		Msg("Analysis notification")
	return nil
}
