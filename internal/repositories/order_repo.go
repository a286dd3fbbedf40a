package repositories

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"tokostore/internal/models"
)

// OrderFilter narrows an order listing. Newest orders come first.
type OrderFilter struct {
	UserID   string
	Status   models.OrderStatus
	FromDate *time.Time
	ToDate   *time.Time
	Page     int
	Limit    int
}

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	// Create inserts the order and its items.
	Create(ctx context.Context, order *models.Order) error
	// GetByID loads the order with its user and items joined to product and category.
	GetByID(ctx context.Context, id string) (*models.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]models.Order, int64, error)
	// UpdateStatus moves the order from status "from" to "to" and replaces notes.
	// It fails with NotFound when the order is no longer in status "from".
	UpdateStatus(ctx context.Context, id string, from, to models.OrderStatus, notes *string) error

	// CountByStatus groups orders by status; userID "" means every user.
	CountByStatus(ctx context.Context, userID string) (map[models.OrderStatus]int64, error)
	// SumTotal adds up totalAmount of orders not in CANCELLED; userID "" means every user.
	SumTotal(ctx context.Context, userID string) (decimal.Decimal, error)
}
