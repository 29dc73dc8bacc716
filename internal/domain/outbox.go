package domain

import (
	"context"
	"time"

	"rentalcore/internal/core/id"
)

// OutboxMessage is a stored DomainEvent awaiting delivery.
type OutboxMessage struct {
	ID            id.ID     `db:"id" json:"id"`
	AggregateType string    `db:"aggregate_type" json:"aggregateType"`
	AggregateID   id.ID     `db:"aggregate_id" json:"aggregateId"`
	EventType     string    `db:"event_type" json:"eventType"`
	Payload       []byte    `db:"payload" json:"payload"`
	RetryCount    int       `db:"retry_count" json:"retryCount"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

// OutboxHandler delivers one message. A returned error schedules a retry.
type OutboxHandler interface {
	Handle(ctx context.Context, msg *OutboxMessage) error
}

// OutboxHandlerFunc adapts a function to OutboxHandler.
type OutboxHandlerFunc func(ctx context.Context, msg *OutboxMessage) error

// Handle implements OutboxHandler.
func (f OutboxHandlerFunc) Handle(ctx context.Context, msg *OutboxMessage) error {
	return f(ctx, msg)
}

// MaxOutboxRetries is the number of failed deliveries after which a message
// is parked as failed.
const MaxOutboxRetries = 5
