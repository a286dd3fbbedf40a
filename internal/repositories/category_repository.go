package repositories

import (
	"context"

	"tokostore/internal/models"
)

// CategoryRepository defines the interface for category data access.
type CategoryRepository interface {
	// List returns all categories ordered by name, with product counts.
	List(ctx context.Context) ([]models.Category, error)
	GetByID(ctx context.Context, id string) (*models.Category, error)
	Create(ctx context.Context, category *models.Category) error
	Update(ctx context.Context, category *models.Category) error
	Delete(ctx context.Context, id string) error
	// NameTaken reports whether another category (not excludeID) has name, ignoring case.
	NameTaken(ctx context.Context, name, excludeID string) (bool, error)
	SlugTaken(ctx context.Context, slug, excludeID string) (bool, error)
	// CountProducts counts products referencing the category, soft-deleted ones included.
	CountProducts(ctx context.Context, id string) (int64, error)
}
