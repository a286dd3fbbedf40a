// Package testutil builds throwaway databases and fixtures for tests.
package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"tokostore/internal/config"
	"tokostore/internal/database"
	"tokostore/internal/models"
)

// NewDB returns a migrated in-memory SQLite database private to the test.
// A single connection serialises concurrent transactions, like row locks would.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          "file:" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=1",
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

// CreateUser inserts a user with the given role.
func CreateUser(t *testing.T, db *gorm.DB, username string, role models.Role) *models.User {
	t.Helper()
	user := &models.User{
		ID:       uuid.NewString(),
		Email:    username + "@example.com",
		Username: username,
		Password: "not-a-hash",
		Role:     role,
	}
	require.NoError(t, db.WithContext(context.Background()).Create(user).Error)
	return user
}

// CreateCategory inserts a category.
func CreateCategory(t *testing.T, db *gorm.DB, name string) *models.Category {
	t.Helper()
	category := &models.Category{ID: uuid.NewString(), Name: name}
	require.NoError(t, db.Create(category).Error)
	return category
}

// CreateProduct inserts a product priced at price (a decimal string) with stock units.
func CreateProduct(t *testing.T, db *gorm.DB, categoryID, name, price string, stock int) *models.Product {
	t.Helper()
	product := &models.Product{
		ID:         uuid.NewString(),
		Name:       name,
		Price:      decimal.RequireFromString(price),
		Stock:      stock,
		CategoryID: categoryID,
		ImageURLs:  []string{},
	}
	require.NoError(t, db.Omit("Category").Create(product).Error)
	return product
}

// Stock reads the current stock of a product, soft-deleted ones included.
func Stock(t *testing.T, db *gorm.DB, productID string) int {
	t.Helper()
	var product models.Product
	require.NoError(t, db.Unscoped().First(&product, "id = ?", productID).Error)
	return product.Stock
}
