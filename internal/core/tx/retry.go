package tx

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"rentalcore/internal/core/apperror"
)

// RetryPolicy bounds how often a failed transaction is re-run.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy retries up to three times with a short jittered backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 20 * time.Millisecond,
		MaxInterval:     250 * time.Millisecond,
	}
}

// Classifier reports whether err is a transient conflict (serialization
// failure, deadlock, lock timeout) worth retrying.
type Classifier func(err error) bool

// RetryNotify is called before each retry.
type RetryNotify func(ctx context.Context, err error, attempt int, wait time.Duration)

type retryScopeKey struct{}

// RetryingManager re-runs the outermost transaction when it fails with a
// transient conflict. Nested calls pass straight through since the aborted
// outer transaction must be restarted as a whole.
type RetryingManager struct {
	inner     Manager
	policy    RetryPolicy
	retryable Classifier
	notify    RetryNotify
}

// NewRetryingManager wraps inner with bounded retries.
func NewRetryingManager(inner Manager, policy RetryPolicy, retryable Classifier, notify RetryNotify) *RetryingManager {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &RetryingManager{inner: inner, policy: policy, retryable: retryable, notify: notify}
}

// RunInTransaction implements Manager.
func (m *RetryingManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(retryScopeKey{}) != nil {
		return m.inner.RunInTransaction(ctx, fn)
	}
	ctx = context.WithValue(ctx, retryScopeKey{}, struct{}{})

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = m.policy.InitialInterval
	eb.MaxInterval = m.policy.MaxInterval
	eb.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(m.policy.MaxAttempts-1)), ctx)

	attempt := 0
	op := func() error {
		attempt++
		err := m.inner.RunInTransaction(ctx, fn)
		if err == nil {
			return nil
		}
		if m.retryable != nil && m.retryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}
	onRetry := func(err error, wait time.Duration) {
		if m.notify != nil {
			m.notify(ctx, err, attempt, wait)
		}
	}

	err := backoff.RetryNotify(op, b, onRetry)
	if err != nil && m.retryable != nil && m.retryable(err) {
		return apperror.NewConcurrentModification("transaction", nil).
			WithDetail("attempts", attempt).
			WithCause(err)
	}
	return err
}

// RunInSavepoint implements SavepointManager. A savepoint always lives inside
// the transaction being retried, so it is never retried on its own.
func (m *RetryingManager) RunInSavepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(retryScopeKey{}) == nil {
		return m.RunInTransaction(ctx, func(ctx context.Context) error {
			return RunInSavepoint(ctx, m.inner, fn)
		})
	}
	return RunInSavepoint(ctx, m.inner, fn)
}

var (
	_ Manager          = (*RetryingManager)(nil)
	_ SavepointManager = (*RetryingManager)(nil)
)
