package invoice

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentalcore/internal/core/apperror"
	"rentalcore/internal/core/id"
	"rentalcore/internal/core/numerator"
	"rentalcore/internal/core/types"
)

type fakeRepo struct {
	byAgreement map[id.ID]*Invoice
	updates     int
}

func newFakeRepo() *fakeRepo { return &fakeRepo{byAgreement: map[id.ID]*Invoice{}} }

func (r *fakeRepo) Create(_ context.Context, inv *Invoice) error {
	cp := *inv
	r.byAgreement[inv.AgreementID] = &cp
	return nil
}

func (r *fakeRepo) GetByAgreement(_ context.Context, agreementID id.ID) (*Invoice, error) {
	inv, ok := r.byAgreement[agreementID]
	if !ok {
		return nil, apperror.NewNotFound("invoice", agreementID)
	}
	cp := *inv
	return &cp, nil
}

func (r *fakeRepo) Update(_ context.Context, inv *Invoice) error {
	r.updates++
	cp := *inv
	r.byAgreement[inv.AgreementID] = &cp
	return nil
}

func m(s string) types.Money { return types.MustMoney(s) }

func TestPaymentStatusFor(t *testing.T) {
	tests := []struct {
		total, paid string
		want        PaymentStatus
	}{
		{"100", "0", StatusUnpaid},
		{"100", "0.01", StatusPartial},
		{"100", "99.99", StatusPartial},
		{"100", "100", StatusPaid},
		{"100", "150", StatusPaid},
		{"0", "0", StatusPaid},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PaymentStatusFor(m(tt.total), m(tt.paid)), "total=%s paid=%s", tt.total, tt.paid)
	}
}

func newReconciler(repo Repository) *Reconciler {
	r := NewReconciler(repo, numerator.NewMemoryGenerator())
	r.clock = func() time.Time { return time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC) }
	return r
}

func TestSync_NoInvoiceIsNoop(t *testing.T) {
	repo := newFakeRepo()
	r := newReconciler(repo)

	err := r.Sync(context.Background(), id.New(), m("100"), m("50"))

	require.NoError(t, err)
	assert.Empty(t, repo.byAgreement)
}

func TestIssueThenSync(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	r := newReconciler(repo)
	agreementID := id.New()

	inv, err := r.Issue(ctx, IssueInput{
		AgreementID: agreementID,
		DueDate:     types.NewDate(2024, 1, 3),
		Total:       m("56.70"),
		Paid:        m("0"),
	})
	require.NoError(t, err)
	assert.Equal(t, "INV-2024-00001", inv.Number)
	assert.Equal(t, StatusUnpaid, inv.PaymentStatus)
	assert.Equal(t, types.NewDate(2024, 1, 3), inv.DueDate)

	require.NoError(t, r.Sync(ctx, agreementID, m("56.70"), m("20")))
	got, err := r.Get(ctx, agreementID)
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, got.PaymentStatus)
	assert.True(t, m("36.70").Equal(got.BalanceDue()))

	require.NoError(t, r.Sync(ctx, agreementID, m("56.70"), m("56.70")))
	got, err = r.Get(ctx, agreementID)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, got.PaymentStatus)
	assert.True(t, got.BalanceDue().IsZero())
	assert.Equal(t, 2, repo.updates)

	// unchanged amounts do not rewrite the row
	require.NoError(t, r.Sync(ctx, agreementID, m("56.70"), m("56.70")))
	assert.Equal(t, 2, repo.updates)
}

func TestIssue_Twice(t *testing.T) {
	ctx := context.Background()
	r := newReconciler(newFakeRepo())
	agreementID := id.New()
	in := IssueInput{AgreementID: agreementID, DueDate: types.NewDate(2024, 1, 3), Total: m("10"), Paid: m("0")}

	_, err := r.Issue(ctx, in)
	require.NoError(t, err)
	_, err = r.Issue(ctx, in)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeDuplicate, appErr.Code)
}
