package repositories_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokostore/internal/apperrors"
	"tokostore/internal/models"
	"tokostore/internal/repositories"
	"tokostore/internal/testutil"
)

func TestProductRepository_AdjustStock(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	repo := repositories.NewGORMProductRepository(db)
	category := testutil.CreateCategory(t, db, "Electronics")
	product := testutil.CreateProduct(t, db, category.ID, "Mouse", "25.00", 3)

	require.NoError(t, repo.AdjustStock(ctx, product.ID, -2))
	assert.Equal(t, 1, testutil.Stock(t, db, product.ID))

	err := repo.AdjustStock(ctx, product.ID, -2)
	assert.True(t, errors.Is(err, repositories.ErrInsufficientStock))
	assert.Equal(t, 1, testutil.Stock(t, db, product.ID))

	require.NoError(t, repo.AdjustStock(ctx, product.ID, 4))
	assert.Equal(t, 5, testutil.Stock(t, db, product.ID))

	err = repo.AdjustStock(ctx, "missing", -1)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestProductRepository_ListFilters(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	repo := repositories.NewGORMProductRepository(db)
	electronics := testutil.CreateCategory(t, db, "Electronics")
	books := testutil.CreateCategory(t, db, "Books")
	testutil.CreateProduct(t, db, electronics.ID, "Laptop", "1200.00", 5)
	testutil.CreateProduct(t, db, electronics.ID, "Keyboard", "75.00", 5)
	testutil.CreateProduct(t, db, books.ID, "Go Programming", "40.00", 5)

	products, total, err := repo.List(ctx, repositories.ProductFilter{Page: 1, Limit: 10, SortBy: "price", SortOrder: "asc"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, products, 3)
	assert.Equal(t, "Go Programming", products[0].Name)
	assert.NotNil(t, products[0].Category)

	products, total, err = repo.List(ctx, repositories.ProductFilter{Query: "KEY", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "Keyboard", products[0].Name)

	min := decimal.RequireFromString("50")
	products, total, err = repo.List(ctx, repositories.ProductFilter{CategoryID: electronics.ID, MinPrice: &min, Page: 1, Limit: 1, SortBy: "name", SortOrder: "asc"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, products, 1)
	assert.Equal(t, "Keyboard", products[0].Name)
}

func TestProductRepository_DeleteDropsCartLines(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	store := repositories.NewGORMStore(db)
	category := testutil.CreateCategory(t, db, "Electronics")
	product := testutil.CreateProduct(t, db, category.ID, "Mouse", "25.00", 3)

	cart := &models.Cart{}
	cart.SetOwner(models.GuestOwner("guest-token"))
	require.NoError(t, store.Carts().Create(ctx, cart))
	require.NoError(t, store.Carts().AddItemQuantity(ctx, cart.ID, product.ID, 1))

	require.NoError(t, store.Products().Delete(ctx, product.ID))

	loaded, err := store.Carts().GetByID(ctx, cart.ID)
	require.NoError(t, err)
	assert.Empty(t, loaded.Items)

	_, err = store.Products().GetByID(ctx, product.ID)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))

	// soft-deleted products still get stock back
	require.NoError(t, store.Products().RestoreStock(ctx, product.ID, 2))
	assert.Equal(t, 5, testutil.Stock(t, db, product.ID))
}

func TestCartRepository_AddItemQuantityUpserts(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	repo := repositories.NewGORMCartRepository(db)
	category := testutil.CreateCategory(t, db, "Electronics")
	product := testutil.CreateProduct(t, db, category.ID, "Mouse", "25.00", 10)
	user := testutil.CreateUser(t, db, "alice", models.RoleUser)

	cart := &models.Cart{}
	cart.SetOwner(models.UserOwner(user.ID))
	require.NoError(t, repo.Create(ctx, cart))

	require.NoError(t, repo.AddItemQuantity(ctx, cart.ID, product.ID, 2))
	require.NoError(t, repo.AddItemQuantity(ctx, cart.ID, product.ID, 3))

	loaded, err := repo.FindByOwner(ctx, models.UserOwner(user.ID))
	require.NoError(t, err)
	require.Len(t, loaded.Items, 1)
	assert.Equal(t, 5, loaded.Items[0].Quantity)
	require.NotNil(t, loaded.Items[0].Product)
	assert.Equal(t, "Mouse", loaded.Items[0].Product.Name)
	assert.NotNil(t, loaded.Items[0].Product.Category)
}

func TestCartRepository_FindByOwnerNeverCrossesKinds(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	repo := repositories.NewGORMCartRepository(db)
	user := testutil.CreateUser(t, db, "alice", models.RoleUser)

	cart := &models.Cart{}
	cart.SetOwner(models.UserOwner(user.ID))
	require.NoError(t, repo.Create(ctx, cart))

	_, err := repo.FindByOwner(ctx, models.GuestOwner(user.ID))
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))

	_, err = repo.FindByOwner(ctx, models.CartOwner{})
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestCartRepository_DeleteLinesDetectsChanges(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	repo := repositories.NewGORMCartRepository(db)
	user := testutil.CreateUser(t, db, "alice", models.RoleUser)
	category := testutil.CreateCategory(t, db, "Electronics")
	mouse := testutil.CreateProduct(t, db, category.ID, "Mouse", "25.00", 10)
	pad := testutil.CreateProduct(t, db, category.ID, "Pad", "5.00", 10)

	cart := &models.Cart{}
	cart.SetOwner(models.UserOwner(user.ID))
	require.NoError(t, repo.Create(ctx, cart))
	require.NoError(t, repo.AddItemQuantity(ctx, cart.ID, mouse.ID, 1))

	read, err := repo.FindByOwnerForUpdate(ctx, models.UserOwner(user.ID))
	require.NoError(t, err)
	require.Len(t, read.Items, 1)
	require.NotNil(t, read.Items[0].Product)

	require.NoError(t, repo.UpdateItemQuantity(ctx, read.Items[0].ID, 4))
	err = repo.DeleteLines(ctx, read.Items)
	assert.True(t, errors.Is(err, repositories.ErrCartChanged))

	// lines added after the read survive
	read, err = repo.FindByOwnerForUpdate(ctx, models.UserOwner(user.ID))
	require.NoError(t, err)
	require.NoError(t, repo.AddItemQuantity(ctx, cart.ID, pad.ID, 2))
	require.NoError(t, repo.DeleteLines(ctx, read.Items))

	left, err := repo.GetByID(ctx, cart.ID)
	require.NoError(t, err)
	require.Len(t, left.Items, 1)
	assert.Equal(t, pad.ID, left.Items[0].ProductID)
}

func TestCartRepository_SecondUserCartConflicts(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	repo := repositories.NewGORMCartRepository(db)
	user := testutil.CreateUser(t, db, "alice", models.RoleUser)

	first := &models.Cart{}
	first.SetOwner(models.UserOwner(user.ID))
	require.NoError(t, repo.Create(ctx, first))

	second := &models.Cart{}
	second.SetOwner(models.UserOwner(user.ID))
	err := repo.Create(ctx, second)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
}

func TestCategoryRepository_NameUniqueIgnoringCase(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	repo := repositories.NewGORMCategoryRepository(db)

	require.NoError(t, repo.Create(ctx, &models.Category{Name: "Phones"}))

	err := repo.Create(ctx, &models.Category{Name: "phones"})
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
	err = repo.Create(ctx, &models.Category{Name: "PHONES"})
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))

	require.NoError(t, repo.Create(ctx, &models.Category{Name: "Phone Cases"}))
}

func TestStore_TransactionRollsBack(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	store := repositories.NewGORMStore(db)
	category := testutil.CreateCategory(t, db, "Electronics")
	product := testutil.CreateProduct(t, db, category.ID, "Mouse", "25.00", 3)

	err := store.Transaction(ctx, func(tx repositories.Store) error {
		if err := tx.Products().AdjustStock(ctx, product.ID, -1); err != nil {
			return err
		}
		return tx.Products().AdjustStock(ctx, product.ID, -5)
	})
	assert.True(t, errors.Is(err, repositories.ErrInsufficientStock))
	assert.Equal(t, 3, testutil.Stock(t, db, product.ID))
}

func TestOrderRepository_StatusAndStats(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	repo := repositories.NewGORMOrderRepository(db)
	category := testutil.CreateCategory(t, db, "Electronics")
	product := testutil.CreateProduct(t, db, category.ID, "Mouse", "10.00", 10)
	alice := testutil.CreateUser(t, db, "alice", models.RoleUser)
	bob := testutil.CreateUser(t, db, "bob", models.RoleUser)

	newOrder := func(userID, total string) *models.Order {
		order := &models.Order{
			UserID:          userID,
			Status:          models.OrderStatusPending,
			TotalAmount:     decimal.RequireFromString(total),
			ShippingAddress: "1 Main St",
			PhoneNumber:     "555-0100",
			Items: []models.OrderItem{
				{ProductID: product.ID, Quantity: 1, Price: decimal.RequireFromString(total)},
			},
		}
		require.NoError(t, repo.Create(ctx, order))
		return order
	}
	first := newOrder(alice.ID, "10.00")
	newOrder(alice.ID, "20.00")
	newOrder(bob.ID, "5.00")

	require.NoError(t, repo.UpdateStatus(ctx, first.ID, models.OrderStatusPending, models.OrderStatusCancelled, nil))
	err := repo.UpdateStatus(ctx, first.ID, models.OrderStatusPending, models.OrderStatusApproved, nil)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))

	loaded, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, loaded.Status)
	require.Len(t, loaded.Items, 1)
	assert.NotNil(t, loaded.Items[0].Product)
	assert.Equal(t, "alice", loaded.User.Username)

	counts, err := repo.CountByStatus(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[models.OrderStatusCancelled])
	assert.Equal(t, int64(1), counts[models.OrderStatusPending])

	spent, err := repo.SumTotal(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("20").Equal(spent), spent.String())

	revenue, err := repo.SumTotal(ctx, "")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("25").Equal(revenue), revenue.String())

	orders, total, err := repo.List(ctx, repositories.OrderFilter{UserID: alice.ID, Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, orders, 2)

	orders, total, err = repo.List(ctx, repositories.OrderFilter{Status: models.OrderStatusPending, Page: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, orders, 1)
}

func TestRefreshTokenRepository_RevokeOnce(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	repo := repositories.NewGORMRefreshTokenRepository(db)
	user := testutil.CreateUser(t, db, "alice", models.RoleUser)

	token := &models.RefreshToken{UserID: user.ID, Token: "abc", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, repo.Create(ctx, token))

	require.NoError(t, repo.Revoke(ctx, token.ID))
	err := repo.Revoke(ctx, token.ID)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))

	deleted, err := repo.DeleteStale(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}
