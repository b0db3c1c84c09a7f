package store_test

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/Santi4567/Akima-sub001/internal/models"
	"github.com/Santi4567/Akima-sub001/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var seq atomic.Int64

type fixture struct {
	db     *sql.DB
	user   *models.User
	client *models.Client
}

func newFixture(t *testing.T, db *sql.DB) *fixture {
	t.Helper()
	ctx := context.Background()
	n := seq.Add(1)

	user, err := store.CreateUser(ctx, db, store.UserInput{
		Name:         "Vendedor",
		Email:        fmt.Sprintf("seller%d@example.com", n),
		PasswordHash: "hash",
		Role:         models.RoleSeller,
	})
	require.NoError(t, err)

	client, err := store.CreateClient(ctx, db, store.ClientInput{
		Name:      fmt.Sprintf("Cliente %d", n),
		CreatedBy: user.ID,
	})
	require.NoError(t, err)

	return &fixture{db: db, user: user, client: client}
}

func (f *fixture) product(t *testing.T, price string, stock int) *models.Product {
	t.Helper()
	n := seq.Add(1)

	product, err := store.CreateProduct(context.Background(), f.db, store.ProductInput{
		SKU:   fmt.Sprintf("SKU-%d", n),
		Name:  fmt.Sprintf("Producto %d", n),
		Price: decimal.RequireFromString(price),
		Stock: stock,
	})
	require.NoError(t, err)
	return product
}

func (f *fixture) order(t *testing.T, lines ...store.OrderItemRequest) *models.Order {
	t.Helper()

	result, err := store.CreateOrder(context.Background(), f.db, store.CreateOrderRequest{
		ClientID: f.client.ID,
		UserID:   f.user.ID,
		Items:    lines,
	})
	require.NoError(t, err)
	return result.Order
}

func (f *fixture) pay(ctx context.Context, orderID int64, amount string) (*store.PaymentResult, error) {
	return store.CreatePayment(ctx, f.db, store.CreatePaymentRequest{
		OrderID: orderID,
		UserID:  f.user.ID,
		Amount:  decimal.RequireFromString(amount),
		Method:  models.PaymentMethodCash,
	})
}

func stockOf(t *testing.T, db *sql.DB, productID int64) int {
	t.Helper()
	product, err := store.GetProduct(context.Background(), db, productID)
	require.NoError(t, err)
	return product.StockQuantity
}
