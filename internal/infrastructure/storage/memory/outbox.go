package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"rentalcore/internal/core/id"
	"rentalcore/internal/domain"
	"rentalcore/pkg/logger"
)

type outboxStatus string

const (
	outboxPending   outboxStatus = "pending"
	outboxPublished outboxStatus = "published"
	outboxFailed    outboxStatus = "failed"
)

type outboxRecord struct {
	domain.OutboxMessage
	status      outboxStatus
	lastError   string
	nextRetryAt time.Time
}

// ErrNoTransaction is returned by Publish outside RunInTransaction.
var ErrNoTransaction = errors.New("outbox publish requires transaction context")

// OutboxPublisher implements domain.EventPublisher.
type OutboxPublisher struct{ s *Store }

// Publish records event for delivery after commit.
func (p *OutboxPublisher) Publish(ctx context.Context, event domain.DomainEvent) error {
	if !inTx(ctx) {
		return ErrNoTransaction
	}
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	now := p.s.clock().UTC()
	p.s.write(ctx, func(d *state) {
		d.outbox = append(d.outbox, outboxRecord{
			OutboxMessage: domain.OutboxMessage{
				ID:            id.New(),
				AggregateType: event.AggregateType,
				AggregateID:   event.AggregateID,
				EventType:     event.EventType,
				Payload:       payload,
				CreatedAt:     now,
			},
			status: outboxPending,
		})
	})
	return nil
}

// Pending returns undelivered messages in publish order.
func (p *OutboxPublisher) Pending() []domain.OutboxMessage {
	var out []domain.OutboxMessage
	p.s.read(func(d *state) {
		for _, rec := range d.outbox {
			if rec.status == outboxPending {
				out = append(out, rec.OutboxMessage)
			}
		}
	})
	return out
}

// OutboxRelay delivers pending messages to a handler.
type OutboxRelay struct {
	s         *Store
	batchSize int
	handler   domain.OutboxHandler
}

// NewOutboxRelay creates a relay over the store's outbox.
func NewOutboxRelay(s *Store, batchSize int, handler domain.OutboxHandler) *OutboxRelay {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxRelay{s: s, batchSize: batchSize, handler: handler}
}

// ProcessBatch delivers up to batchSize due messages and returns how many
// were delivered.
func (r *OutboxRelay) ProcessBatch(ctx context.Context) (int, error) {
	now := r.s.clock().UTC()

	var batch []domain.OutboxMessage
	r.s.read(func(d *state) {
		for _, rec := range d.outbox {
			if len(batch) == r.batchSize {
				break
			}
			if rec.status == outboxPending && !rec.nextRetryAt.After(now) {
				batch = append(batch, rec.OutboxMessage)
			}
		}
	})

	processed := 0
	for i := range batch {
		msg := batch[i]
		err := r.handler.Handle(ctx, &msg)
		r.s.write(ctx, func(d *state) {
			for j := range d.outbox {
				rec := &d.outbox[j]
				if rec.ID != msg.ID {
					continue
				}
				if err == nil {
					rec.status = outboxPublished
					return
				}
				rec.RetryCount++
				rec.lastError = err.Error()
				rec.nextRetryAt = now.Add(time.Duration(rec.RetryCount) * time.Minute)
				if rec.RetryCount >= domain.MaxOutboxRetries {
					rec.status = outboxFailed
				}
				return
			}
		})
		if err != nil {
			logger.Warn(ctx, "outbox delivery failed",
				"message_id", msg.ID,
				"event_type", msg.EventType,
				"error", err,
			)
			continue
		}
		processed++
	}
	return processed, nil
}
