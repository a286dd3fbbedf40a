package repositories

import (
	"context"

	"github.com/shopspring/decimal"

	"tokostore/internal/models"
)

// ProductFilter narrows and orders a product listing.
type ProductFilter struct {
	Query      string
	CategoryID string
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	Page       int
	Limit      int
	SortBy     string // name, price, createdAt or updatedAt
	SortOrder  string // asc or desc
}

// ProductRepository defines the interface for product data access.
type ProductRepository interface {
	List(ctx context.Context, filter ProductFilter) ([]models.Product, int64, error)
	GetByID(ctx context.Context, id string) (*models.Product, error)
	GetBySlug(ctx context.Context, slug string) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	SetStock(ctx context.Context, id string, stock int) error
	// Delete soft-deletes the product and drops it from every cart.
	Delete(ctx context.Context, id string) error
	SlugTaken(ctx context.Context, slug, excludeID string) (bool, error)

	// AdjustStock adds delta to the product's stock in a single conditional
	// update. It returns ErrInsufficientStock, leaving stock untouched, when the
	// result would be negative.
	AdjustStock(ctx context.Context, id string, delta int) error
	// RestoreStock adds quantity back, including to soft-deleted products.
	RestoreStock(ctx context.Context, id string, quantity int) error
}
