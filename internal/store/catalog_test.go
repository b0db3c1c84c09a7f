package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/Santi4567/Akima-sub001/internal/database"
	"github.com/Santi4567/Akima-sub001/internal/models"
	"github.com/Santi4567/Akima-sub001/internal/store"
	"github.com/Santi4567/Akima-sub001/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductCRUD(t *testing.T) {
	db := testutil.NewPostgres(t)
	ctx := context.Background()

	category, err := store.CreateCategory(ctx, db, "Herramientas", "Manuales")
	require.NoError(t, err)

	product, err := store.CreateProduct(ctx, db, store.ProductInput{
		SKU:        "TOOL-001",
		Name:       "Martillo",
		CategoryID: &category.ID,
		Price:      decimal.RequireFromString("199.90"),
		Stock:      8,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, product.Version)

	_, err = store.CreateProduct(ctx, db, store.ProductInput{SKU: "TOOL-001", Name: "Otro", Price: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, store.ErrDuplicate)

	missing := int64(999999)
	_, err = store.CreateProduct(ctx, db, store.ProductInput{SKU: "TOOL-002", Name: "Otro", CategoryID: &missing, Price: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, database.ErrCategoryNotFound)

	name := "Martillo de uña"
	updated, err := store.UpdateProduct(ctx, db, product.ID, store.ProductUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)
	assert.Equal(t, "TOOL-001", updated.SKU)
	assert.Equal(t, 2, updated.Version)

	_, err = store.UpdateProduct(ctx, db, product.ID, store.ProductUpdate{})
	assert.ErrorIs(t, err, store.ErrNothingToApply)

	page, err := store.ListProducts(ctx, db, store.ProductFilter{Search: "uña"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)

	page, err = store.ListProducts(ctx, db, store.ProductFilter{CategoryID: &category.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)

	require.NoError(t, store.DeleteProduct(ctx, db, product.ID))
	_, err = store.GetProduct(ctx, db, product.ID)
	assert.ErrorIs(t, err, database.ErrProductNotFound)
	assert.ErrorIs(t, store.DeleteProduct(ctx, db, product.ID), database.ErrProductNotFound)
}

func TestDeleteProductInUse(t *testing.T) {
	db := testutil.NewPostgres(t)
	f := newFixture(t, db)

	product := f.product(t, "10.00", 10)
	f.order(t, store.OrderItemRequest{ProductID: product.ID, Quantity: 1})

	err := store.DeleteProduct(context.Background(), db, product.ID)
	assert.ErrorIs(t, err, store.ErrProductInUse)
}

func TestOptimisticStockUpdate(t *testing.T) {
	db := testutil.NewPostgres(t)
	f := newFixture(t, db)
	ctx := context.Background()

	product := f.product(t, "10.00", 10)

	require.NoError(t, store.UpdateStockOptimistic(ctx, db, product.ID, 25, product.Version))
	assert.Equal(t, 25, stockOf(t, db, product.ID))

	err := store.UpdateStockOptimistic(ctx, db, product.ID, 30, product.Version)
	assert.ErrorIs(t, err, database.ErrOptimisticLockFailed)

	err = store.UpdateStockOptimistic(ctx, db, 999999, 30, 1)
	assert.ErrorIs(t, err, database.ErrProductNotFound)
}

func TestStockRecountAfterOrderIsStale(t *testing.T) {
	db := testutil.NewPostgres(t)
	f := newFixture(t, db)
	ctx := context.Background()

	product := f.product(t, "10.00", 10)
	f.order(t, store.OrderItemRequest{ProductID: product.ID, Quantity: 3})

	err := store.UpdateStockOptimistic(ctx, db, product.ID, 15, product.Version)
	assert.ErrorIs(t, err, database.ErrOptimisticLockFailed)
	assert.Equal(t, 7, stockOf(t, db, product.ID))

	current, err := store.GetProduct(ctx, db, product.ID)
	require.NoError(t, err)
	assert.Greater(t, current.Version, product.Version)
	require.NoError(t, store.UpdateStockOptimistic(ctx, db, product.ID, 15, current.Version))
	assert.Equal(t, 15, stockOf(t, db, product.ID))
}

func TestCategoryLifecycle(t *testing.T) {
	db := testutil.NewPostgres(t)
	ctx := context.Background()

	category, err := store.CreateCategory(ctx, db, "Pinturas", "")
	require.NoError(t, err)

	_, err = store.CreateCategory(ctx, db, "Pinturas", "")
	assert.ErrorIs(t, err, store.ErrDuplicate)

	desc := "Vinílicas y esmaltes"
	updated, err := store.UpdateCategory(ctx, db, category.ID, nil, &desc)
	require.NoError(t, err)
	assert.Equal(t, "Pinturas", updated.Name)
	assert.Equal(t, desc, updated.Description)

	product, err := store.CreateProduct(ctx, db, store.ProductInput{
		SKU: "PNT-1", Name: "Blanco", CategoryID: &category.ID, Price: decimal.NewFromInt(80),
	})
	require.NoError(t, err)

	err = store.DeleteCategory(ctx, db, category.ID)
	assert.ErrorIs(t, err, store.ErrCategoryInUse)

	require.NoError(t, store.DeleteProduct(ctx, db, product.ID))
	require.NoError(t, store.DeleteCategory(ctx, db, category.ID))
	assert.ErrorIs(t, store.DeleteCategory(ctx, db, category.ID), database.ErrCategoryNotFound)

	categories, err := store.ListCategories(ctx, db)
	require.NoError(t, err)
	assert.Empty(t, categories)
}

func TestClientsAndVisits(t *testing.T) {
	db := testutil.NewPostgres(t)
	f := newFixture(t, db)
	ctx := context.Background()

	phone := "555-0101"
	updated, err := store.UpdateClient(ctx, db, f.client.ID, store.ClientUpdate{Phone: &phone})
	require.NoError(t, err)
	assert.Equal(t, phone, updated.Phone)
	assert.Equal(t, f.client.Name, updated.Name)

	page, err := store.ListClients(ctx, db, f.client.Name, store.Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)

	visit, err := store.CreateVisit(ctx, db, store.VisitInput{
		ClientID:  f.client.ID,
		UserID:    f.user.ID,
		VisitDate: time.Now().Add(-time.Hour),
		Notes:     "Mostró catálogo",
	})
	require.NoError(t, err)

	_, err = store.CreateVisit(ctx, db, store.VisitInput{ClientID: 999999, UserID: f.user.ID, VisitDate: time.Now()})
	assert.ErrorIs(t, err, database.ErrClientNotFound)

	visits, err := store.ListVisits(ctx, db, store.VisitFilter{ClientID: &f.client.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, visits.Total)

	assert.ErrorIs(t, store.DeleteClient(ctx, db, f.client.ID), store.ErrClientInUse)

	require.NoError(t, store.DeleteVisit(ctx, db, visit.ID))
	require.NoError(t, store.DeleteClient(ctx, db, f.client.ID))
	_, err = store.GetClient(ctx, db, f.client.ID)
	assert.ErrorIs(t, err, database.ErrClientNotFound)
}

func TestUsers(t *testing.T) {
	db := testutil.NewPostgres(t)
	ctx := context.Background()

	in := store.UserInput{Name: "Admin", Email: "Admin@Example.com", PasswordHash: "hash", Role: models.RoleAdmin}

	created, err := store.EnsureUser(ctx, db, in)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = store.EnsureUser(ctx, db, in)
	require.NoError(t, err)
	assert.False(t, created)

	_, err = store.CreateUser(ctx, db, in)
	assert.ErrorIs(t, err, store.ErrDuplicate)

	user, err := store.GetUserByEmail(ctx, db, "admin@example.com")
	require.NoError(t, err)
	assert.True(t, user.Active)

	require.NoError(t, store.DeactivateUser(ctx, db, user.ID))
	user, err = store.GetUser(ctx, db, user.ID)
	require.NoError(t, err)
	assert.False(t, user.Active)

	assert.ErrorIs(t, store.DeactivateUser(ctx, db, 999999), database.ErrUserNotFound)

	page, err := store.ListUsers(ctx, db, store.Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)
}
