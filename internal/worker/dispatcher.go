package worker

import (
	"context"
	"encoding/json"

	"rentalcore/internal/domain"
	"rentalcore/pkg/logger"
)

// LogDispatcher delivers outbox messages to the structured log. Reminder
// and overdue events end up here until a notification channel exists.
type LogDispatcher struct {
	log *logger.Logger
}

var _ domain.OutboxHandler = (*LogDispatcher)(nil)

// NewLogDispatcher creates a dispatcher writing to log.
func NewLogDispatcher(log *logger.Logger) *LogDispatcher {
	return &LogDispatcher{log: log.WithComponent("events")}
}

// Handle implements domain.OutboxHandler.
func (d *LogDispatcher) Handle(_ context.Context, msg *domain.OutboxMessage) error {
	var payload map[string]any
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return err
	}
	d.log.Infow("event",
		"event_id", msg.ID,
		"event_type", msg.EventType,
		"aggregate_type", msg.AggregateType,
		"aggregate_id", msg.AggregateID,
		"payload", payload,
	)
	return nil
}
