package notify

import (
	"context"
	"smartdorm/pkg/logger"
)

// LogSender writes notifications to the structured log. It is the default
// transport for local runs.
type LogSender struct {
	log *logger.Logger
}

func NewLogSender(log *logger.Logger) *LogSender {
	return &LogSender{log: log.Component("notify-log")}
}

func (s *LogSender) Send(_ context.Context, n Notification) error {
	s.log.Info("Notification",
		"event", n.Event,
		"recipient", n.Recipient,
		"phone", n.Phone,
		"text", n.Text(),
	)
	return nil
}
