package repositories

import (
	"context"

	"tokostore/internal/models"
)

// CartRepository defines the interface for cart data access.
type CartRepository interface {
	Create(ctx context.Context, cart *models.Cart) error
	// GetByID loads the cart with its lines joined to product and category.
	GetByID(ctx context.Context, id string) (*models.Cart, error)
	// FindByOwner loads the cart owned by owner, lines included.
	FindByOwner(ctx context.Context, owner models.CartOwner) (*models.Cart, error)
	// FindByOwnerForUpdate is FindByOwner holding a row lock on the cart until
	// the surrounding transaction ends.
	FindByOwnerForUpdate(ctx context.Context, owner models.CartOwner) (*models.Cart, error)
	// SetOwner re-owns a cart, clearing the previous owner column.
	SetOwner(ctx context.Context, cartID string, owner models.CartOwner) error
	Delete(ctx context.Context, id string) error

	GetItem(ctx context.Context, itemID string) (*models.CartItem, error)
	// AddItemQuantity inserts a (cart, product) line or adds quantity to the
	// existing one in a single statement.
	AddItemQuantity(ctx context.Context, cartID, productID string, quantity int) error
	UpdateItemQuantity(ctx context.Context, itemID string, quantity int) error
	DeleteItem(ctx context.Context, itemID string) error
	ClearItems(ctx context.Context, cartID string) error
	// DeleteLines removes exactly the given lines, each only while its quantity
	// is unchanged. It returns ErrCartChanged when any of them was modified or
	// removed in the meantime.
	DeleteLines(ctx context.Context, items []models.CartItem) error
}
