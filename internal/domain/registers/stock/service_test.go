package stock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentalcore/internal/core/apperror"
	"rentalcore/internal/core/id"
	"rentalcore/internal/core/types"
	"rentalcore/internal/domain/catalogs/product"
)

type fakeRepo struct {
	mu     sync.Mutex
	stock  map[id.ID]int
	rented map[id.ID]int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{stock: map[id.ID]int{}, rented: map[id.ID]int{}}
}

func (r *fakeRepo) TryDecrement(_ context.Context, productID id.ID, qty int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stock[productID] < qty {
		return false, nil
	}
	r.stock[productID] -= qty
	r.rented[productID] += qty
	return true, nil
}

func (r *fakeRepo) Increment(_ context.Context, productID id.ID, qty int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stock[productID] += qty
	r.rented[productID] -= qty
	return nil
}

func (r *fakeRepo) Adjust(_ context.Context, productID id.ID, delta int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stock[productID]+delta < 0 {
		return false, nil
	}
	r.stock[productID] += delta
	return true, nil
}

func (r *fakeRepo) OnHand(_ context.Context, productID id.ID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stock[productID], nil
}

func (r *fakeRepo) Rented(_ context.Context, productID id.ID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rented[productID], nil
}

type fakeProducts map[id.ID]*product.Product

func (f fakeProducts) GetByID(_ context.Context, productID id.ID) (*product.Product, error) {
	if p, ok := f[productID]; ok {
		return p, nil
	}
	return nil, apperror.NewNotFound("product", productID)
}

var now = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func ownedProduct(stock int) *product.Product {
	return product.NewProduct("DRL", "Drill", product.Owned{
		PurchasePrice: types.MustMoney("100"),
		RentalPrice:   types.MustMoney("10"),
	}, stock, now)
}

func outsourcedProduct() *product.Product {
	return product.NewProduct("LFT", "Lift", product.Outsourced{
		SupplierCost:  types.MustMoney("30"),
		CustomerPrice: types.MustMoney("45"),
	}, 0, now)
}

func TestReserve_InsufficientStock(t *testing.T) {
	repo := newFakeRepo()
	p := ownedProduct(3)
	repo.stock[p.ID] = 3
	svc := NewService(repo, fakeProducts{p.ID: p})

	err := svc.Reserve(context.Background(), LineFor(p, 4))

	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInsufficientStock, appErr.Code)
	assert.Equal(t, 4, appErr.Details["requested"])
	assert.Equal(t, 3, appErr.Details["available"])
	assert.Equal(t, 3, repo.stock[p.ID], "failed reservation leaves stock untouched")
}

func TestReserveAndRelease(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	p := ownedProduct(5)
	repo.stock[p.ID] = 5
	svc := NewService(repo, fakeProducts{p.ID: p})

	require.NoError(t, svc.Reserve(ctx, LineFor(p, 2)))

	av, err := svc.Availability(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, Availability{ProductID: p.ID, OnHand: 3, Rented: 2, Owned: 5, Available: 3}, av)

	require.NoError(t, svc.Release(ctx, LineFor(p, 2)))
	av, err = svc.Availability(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, av.Available)
	assert.Equal(t, 0, av.Rented)
}

func TestOutsourcedLinesNeverTouchStock(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	p := outsourcedProduct()
	svc := NewService(repo, fakeProducts{p.ID: p})

	require.NoError(t, svc.Reserve(ctx, LineFor(p, 1000)))
	released, err := svc.ReleaseAll(ctx, []Line{LineFor(p, 1000)})
	require.NoError(t, err)

	assert.Equal(t, 0, released)
	assert.Empty(t, repo.stock)

	av, err := svc.Availability(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, av.Unlimited)
}

func TestReleaseAll_CountsOwnedUnitsOnly(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	owned := ownedProduct(0)
	outsourced := outsourcedProduct()
	svc := NewService(repo, fakeProducts{owned.ID: owned, outsourced.ID: outsourced})

	released, err := svc.ReleaseAll(ctx, []Line{LineFor(owned, 2), LineFor(outsourced, 3), LineFor(owned, 1)})
	require.NoError(t, err)

	assert.Equal(t, 3, released)
	assert.Equal(t, 3, repo.stock[owned.ID])
}

func TestReserve_RejectsNonPositiveQuantity(t *testing.T) {
	svc := NewService(newFakeRepo(), fakeProducts{})
	err := svc.Reserve(context.Background(), Line{ProductID: id.New(), Quantity: 0})
	assert.True(t, apperror.IsValidation(err))
}

func TestConcurrentReleaseLosesNoIncrement(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	p := ownedProduct(0)
	svc := NewService(repo, fakeProducts{p.ID: p})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = svc.Release(ctx, LineFor(p, 2))
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, repo.stock[p.ID])
}

func TestAdjust(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	p := ownedProduct(2)
	repo.stock[p.ID] = 2
	repo.rented[p.ID] = 3
	svc := NewService(repo, fakeProducts{p.ID: p})

	av, err := svc.Adjust(ctx, p.ID, 4, "purchase")
	require.NoError(t, err)
	assert.Equal(t, 6, av.OnHand)
	assert.Equal(t, 9, av.Owned)

	av, err = svc.Adjust(ctx, p.ID, -6, "write-off")
	require.NoError(t, err)
	assert.Equal(t, 0, av.OnHand)
	assert.Equal(t, 3, av.Rented)
}

func TestAdjust_Rejects(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	owned := ownedProduct(2)
	repo.stock[owned.ID] = 2
	outsourced := outsourcedProduct()
	svc := NewService(repo, fakeProducts{owned.ID: owned, outsourced.ID: outsourced})

	_, err := svc.Adjust(ctx, owned.ID, -3, "")
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))
	assert.Equal(t, 2, repo.stock[owned.ID])

	_, err = svc.Adjust(ctx, owned.ID, 0, "")
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.Adjust(ctx, outsourced.ID, 5, "")
	assert.True(t, apperror.HasCode(err, apperror.CodeBusinessRule))
	assert.Empty(t, repo.stock[outsourced.ID])

	_, err = svc.Adjust(ctx, id.New(), 1, "")
	assert.True(t, apperror.IsNotFound(err))
}
