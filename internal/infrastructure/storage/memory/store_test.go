package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentalcore/internal/core/apperror"
	"rentalcore/internal/core/id"
	"rentalcore/internal/core/numerator"
	"rentalcore/internal/core/types"
	"rentalcore/internal/domain"
	"rentalcore/internal/domain/catalogs/product"
	"rentalcore/internal/domain/payment"
)

var fixedNow = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func newTestStore() (*Store, Repositories) {
	s := New(WithClock(func() time.Time { return fixedNow }))
	return s, s.Repositories()
}

func seedProduct(t *testing.T, repos Repositories, stock int) *product.Product {
	t.Helper()
	p := product.NewProduct("SKU-"+id.New().String()[:8], "Drill",
		product.Owned{PurchasePrice: types.MustMoney("100"), RentalPrice: types.MustMoney("10")},
		stock, fixedNow)
	require.NoError(t, repos.Products.Create(context.Background(), p))
	return p
}

func TestStore_RollbackRestoresSnapshot(t *testing.T) {
	ctx := context.Background()
	s, repos := newTestStore()
	p := seedProduct(t, repos, 5)

	boom := errors.New("boom")
	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		ok, err := repos.Stock.TryDecrement(ctx, p.ID, 3)
		require.NoError(t, err)
		require.True(t, ok)
		return boom
	})
	require.ErrorIs(t, err, boom)

	onHand, err := repos.Stock.OnHand(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, onHand)
}

func TestStore_NestedTransactionJoinsOuter(t *testing.T) {
	ctx := context.Background()
	s, repos := newTestStore()
	p := seedProduct(t, repos, 5)

	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, s.RunInTransaction(ctx, func(ctx context.Context) error {
			return repos.Stock.Increment(ctx, p.ID, 2)
		}))
		return errors.New("outer fails")
	})
	require.Error(t, err)

	onHand, _ := repos.Stock.OnHand(ctx, p.ID)
	assert.Equal(t, 5, onHand)
}

func TestStore_SavepointRollsBackOnlyItsOwnWrites(t *testing.T) {
	ctx := context.Background()
	s, repos := newTestStore()
	p := seedProduct(t, repos, 5)

	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, repos.Stock.Increment(ctx, p.ID, 1))

		spErr := s.RunInSavepoint(ctx, func(ctx context.Context) error {
			require.NoError(t, repos.Stock.Increment(ctx, p.ID, 10))
			return errors.New("inner fails")
		})
		require.Error(t, spErr)

		return s.RunInSavepoint(ctx, func(ctx context.Context) error {
			return repos.Stock.Increment(ctx, p.ID, 2)
		})
	})
	require.NoError(t, err)

	onHand, _ := repos.Stock.OnHand(ctx, p.ID)
	assert.Equal(t, 8, onHand)
}

func TestStockRepo_TryDecrementNeverGoesNegative(t *testing.T) {
	ctx := context.Background()
	_, repos := newTestStore()
	p := seedProduct(t, repos, 2)

	ok, err := repos.Stock.TryDecrement(ctx, p.ID, 3)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repos.Stock.TryDecrement(ctx, p.ID, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	onHand, _ := repos.Stock.OnHand(ctx, p.ID)
	assert.Equal(t, 0, onHand)

	_, err = repos.Stock.TryDecrement(ctx, id.New(), 1)
	assert.True(t, apperror.IsNotFound(err))
}

func TestProductRepo_UpdateKeepsStock(t *testing.T) {
	ctx := context.Background()
	_, repos := newTestStore()
	p := seedProduct(t, repos, 4)

	p.Name = "Hammer drill"
	p.Stock = 99
	require.NoError(t, repos.Products.Update(ctx, p))

	got, err := repos.Products.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hammer drill", got.Name)
	assert.Equal(t, 4, got.Stock)
}

func TestPaymentRepo_DuplicateReceipt(t *testing.T) {
	ctx := context.Background()
	_, repos := newTestStore()
	agreementID := id.New()

	p := &payment.Payment{ID: id.New(), AgreementID: agreementID, Amount: types.MustMoney("10"), ReceiptNumber: "RCPT-2024-000001"}
	require.NoError(t, repos.Payments.Insert(ctx, p))

	dup := *p
	dup.ID = id.New()
	assert.ErrorIs(t, repos.Payments.Insert(ctx, &dup), payment.ErrDuplicateReceipt)

	sum, err := repos.Payments.SumByAgreement(ctx, agreementID)
	require.NoError(t, err)
	assert.True(t, types.MustMoney("10").Equal(sum))
}

func TestNumerator_RollsBackWithTransaction(t *testing.T) {
	ctx := context.Background()
	s, repos := newTestStore()

	_ = s.RunInTransaction(ctx, func(ctx context.Context) error {
		_, err := repos.Numerator.GetNextNumber(ctx, numerator.ReceiptConfig, nil, fixedNow)
		require.NoError(t, err)
		return errors.New("abort")
	})

	got, err := repos.Numerator.GetNextNumber(ctx, numerator.ReceiptConfig, nil, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, "RCPT-2024-000001", got)
}

func TestOutbox_PublishRequiresTransaction(t *testing.T) {
	_, repos := newTestStore()

	err := repos.Outbox.Publish(context.Background(), domain.DomainEvent{EventType: "X"})
	assert.ErrorIs(t, err, ErrNoTransaction)
}

func TestOutboxRelay_DeliversAndRetries(t *testing.T) {
	ctx := context.Background()
	s, repos := newTestStore()

	require.NoError(t, s.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := repos.Outbox.Publish(ctx, domain.DomainEvent{EventType: "A", Payload: map[string]int{"n": 1}}); err != nil {
			return err
		}
		return repos.Outbox.Publish(ctx, domain.DomainEvent{EventType: "B"})
	}))
	require.Len(t, repos.Outbox.Pending(), 2)

	var seen []string
	relay := NewOutboxRelay(s, 10, domain.OutboxHandlerFunc(func(_ context.Context, msg *domain.OutboxMessage) error {
		seen = append(seen, msg.EventType)
		if msg.EventType == "B" {
			return errors.New("broker down")
		}
		return nil
	}))

	n, err := relay.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"A", "B"}, seen)

	pending := repos.Outbox.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "B", pending[0].EventType)
	assert.Equal(t, 1, pending[0].RetryCount)

	// B is not due again until its retry time.
	n, err = relay.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, seen, 2)
}

func TestIdempotencyStore(t *testing.T) {
	ctx := context.Background()
	_, repos := newTestStore()
	store := repos.Idempotency

	replay, err := store.AcquireKey(ctx, "k1", "u1", "POST /payments", "h1")
	require.NoError(t, err)
	assert.Nil(t, replay)

	_, err = store.AcquireKey(ctx, "k1", "u1", "POST /payments", "h1")
	assert.True(t, apperror.HasCode(err, apperror.CodeIdempotency))

	_, err = store.AcquireKey(ctx, "k1", "u1", "POST /payments", "other")
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "Idempotency key mismatch", appErr.Message)

	require.NoError(t, store.CompleteKey(ctx, "k1", 201, "", []byte(`{"ok":true}`)))

	replay, err = store.AcquireKey(ctx, "k1", "u1", "POST /payments", "h1")
	require.NoError(t, err)
	require.NotNil(t, replay)
	assert.Equal(t, 201, replay.StatusCode)
	assert.Equal(t, "application/json", replay.ContentType)
	assert.JSONEq(t, `{"ok":true}`, string(replay.Body))
}
