package memory

import (
	"context"
	"time"

	"rentalcore/internal/core/apperror"
	"rentalcore/internal/core/idempotency"
)

type idemRecord struct {
	userID      string
	operation   string
	requestHash string
	status      idempotency.Status
	replay      idempotency.Replay
	updatedAt   time.Time
	expiresAt   time.Time
}

// IdempotencyStore implements idempotency.Store.
type IdempotencyStore struct {
	store *Store
	ttl   time.Duration
}

func (s *IdempotencyStore) AcquireKey(ctx context.Context, key, userID, operation, requestHash string) (*idempotency.Replay, error) {
	now := s.store.clock().UTC()

	var (
		replay *idempotency.Replay
		err    error
	)
	s.store.write(ctx, func(d *state) {
		rec, ok := d.idem[key]
		if !ok || now.After(rec.expiresAt) {
			d.idem[key] = idemRecord{
				userID:      userID,
				operation:   operation,
				requestHash: requestHash,
				status:      idempotency.StatusPending,
				updatedAt:   now,
				expiresAt:   now.Add(s.ttl),
			}
			return
		}
		if rec.userID != userID || rec.operation != operation || rec.requestHash != requestHash {
			err = apperror.NewIdempotencyMismatch(key)
			return
		}
		switch rec.status {
		case idempotency.StatusSuccess, idempotency.StatusFailed:
			r := rec.replay
			replay = &r
		case idempotency.StatusPending:
			if now.Sub(rec.updatedAt) <= idempotency.StaleAfter {
				err = apperror.NewIdempotencyConflict(key)
				return
			}
			rec.updatedAt = now
			d.idem[key] = rec
		}
	})
	return replay, err
}

func (s *IdempotencyStore) CompleteKey(ctx context.Context, key string, statusCode int, contentType string, body []byte) error {
	s.finish(ctx, key, idempotency.StatusSuccess, statusCode, contentType, body)
	return nil
}

func (s *IdempotencyStore) FailKey(ctx context.Context, key string, statusCode int, contentType string, body []byte) error {
	s.finish(ctx, key, idempotency.StatusFailed, statusCode, contentType, body)
	return nil
}

func (s *IdempotencyStore) finish(ctx context.Context, key string, status idempotency.Status, statusCode int, contentType string, body []byte) {
	now := s.store.clock().UTC()
	s.store.write(ctx, func(d *state) {
		rec, ok := d.idem[key]
		if !ok {
			return
		}
		rec.status = status
		rec.replay = idempotency.Replay{
			StatusCode:  idempotency.NormalizeStatus(statusCode),
			ContentType: idempotency.NormalizeContentType(contentType),
			Body:        append([]byte(nil), body...),
		}
		rec.updatedAt = now
		d.idem[key] = rec
	})
}
