package store_test

import (
	"context"
	"sync"
	"testing"

	"github.com/Santi4567/Akima-sub001/internal/apperr"
	"github.com/Santi4567/Akima-sub001/internal/ledger"
	"github.com/Santi4567/Akima-sub001/internal/store"
	"github.com/Santi4567/Akima-sub001/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePaymentSettlesDebt(t *testing.T) {
	db := testutil.NewPostgres(t)
	f := newFixture(t, db)
	ctx := context.Background()

	product := f.product(t, "35.00", 10)
	order := f.order(t, store.OrderItemRequest{ProductID: product.ID, Quantity: 2})

	first, err := f.pay(ctx, order.ID, "35.00")
	require.NoError(t, err)
	assert.Equal(t, "35.00", first.NewBalance.StringFixed(2))
	assert.NotZero(t, first.Payment.ID)

	second, err := f.pay(ctx, order.ID, "35.00")
	require.NoError(t, err)
	assert.Equal(t, "0.00", second.NewBalance.StringFixed(2))

	_, err = f.pay(ctx, order.ID, "0.02")
	require.ErrorIs(t, err, ledger.ErrOverpayment)
	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, "0.00", appErr.Details["debt"])

	detail, err := store.GetOrder(ctx, db, order.ID)
	require.NoError(t, err)
	assert.True(t, detail.AmountPaid.Equal(decimal.NewFromInt(70)))
	assert.True(t, detail.Balance.IsZero())
}

func TestCreatePaymentWithinTolerance(t *testing.T) {
	db := testutil.NewPostgres(t)
	f := newFixture(t, db)
	ctx := context.Background()

	product := f.product(t, "10.00", 10)
	order := f.order(t, store.OrderItemRequest{ProductID: product.ID, Quantity: 1})

	result, err := f.pay(ctx, order.ID, "10.01")
	require.NoError(t, err)
	assert.Equal(t, "-0.01", result.NewBalance.StringFixed(2))
}

func TestCreatePaymentValidation(t *testing.T) {
	db := testutil.NewPostgres(t)
	f := newFixture(t, db)
	ctx := context.Background()

	product := f.product(t, "10.00", 10)
	order := f.order(t, store.OrderItemRequest{ProductID: product.ID, Quantity: 1})

	_, err := f.pay(ctx, order.ID, "0")
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	_, err = store.CreatePayment(ctx, db, store.CreatePaymentRequest{
		OrderID: order.ID,
		UserID:  f.user.ID,
		Amount:  decimal.NewFromInt(1),
		Method:  "bitcoin",
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidMethod)

	_, err = store.CancelOrder(ctx, db, order.ID)
	require.NoError(t, err)

	_, err = f.pay(ctx, order.ID, "1.00")
	assert.ErrorIs(t, err, ledger.ErrOrderCancelled)
}

func TestConcurrentPaymentsNeverOverpay(t *testing.T) {
	db := testutil.NewPostgres(t)
	f := newFixture(t, db)
	ctx := context.Background()

	product := f.product(t, "50.00", 10)
	order := f.order(t, store.OrderItemRequest{ProductID: product.ID, Quantity: 1})

	concurrency := 8
	var wg sync.WaitGroup
	results := make(chan error, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.pay(ctx, order.ID, "20.00")
			results <- err
		}()
	}

	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ledger.ErrOverpayment)
	}
	assert.Equal(t, 2, succeeded)

	detail, err := store.GetOrder(ctx, db, order.ID)
	require.NoError(t, err)
	assert.True(t, detail.AmountPaid.Equal(decimal.NewFromInt(40)))
}

func TestListPayments(t *testing.T) {
	db := testutil.NewPostgres(t)
	f := newFixture(t, db)
	ctx := context.Background()

	product := f.product(t, "100.00", 10)
	order := f.order(t, store.OrderItemRequest{ProductID: product.ID, Quantity: 1})
	other := f.order(t, store.OrderItemRequest{ProductID: product.ID, Quantity: 1})

	for _, amount := range []string{"10.00", "20.00", "30.00"} {
		_, err := f.pay(ctx, order.ID, amount)
		require.NoError(t, err)
	}
	_, err := f.pay(ctx, other.ID, "5.00")
	require.NoError(t, err)

	page, err := store.ListPayments(ctx, db, store.PaymentFilter{OrderID: &order.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Total)

	page, err = store.ListPayments(ctx, db, store.PaymentFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 4, page.Total)
}
