// Package notify is the delivery boundary for outbound notifications: a
// RabbitMQ topic publisher for deployments with a broker, and a log-only
// fallback for local runs.
package notify

import (
	"context"
	"log"

	"github.com/BaoThanh22042004/library-api/internal/domain"
)

// LogNotifier writes notifications to the log instead of delivering them.
type LogNotifier struct {
	logger *log.Logger
}

func NewLogNotifier(logger *log.Logger) *LogNotifier {
	if logger == nil {
		logger = log.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(_ context.Context, notification domain.Notification) error {
	n.logger.Printf(
		"notify user=%s type=%s subject=%q",
		notification.UserID,
		notification.Type,
		notification.Subject,
	)
	return nil
}
