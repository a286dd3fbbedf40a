package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the order lifecycle state.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusApproved   OrderStatus = "APPROVED"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

// OrderStatuses lists every status, forward path first.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusApproved,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

var forwardRank = map[OrderStatus]int{
	OrderStatusPending:    0,
	OrderStatusApproved:   1,
	OrderStatusProcessing: 2,
	OrderStatusShipped:    3,
	OrderStatusDelivered:  4,
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	_, ok := forwardRank[s]
	return ok || s == OrderStatusCancelled
}

// Terminal reports whether no further transition is allowed from s.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanTransitionTo reports whether moving from s to next is legal: never out of
// a terminal state, CANCELLED from anywhere else, otherwise never backwards.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s.Terminal() || !next.Valid() {
		return false
	}
	if next == OrderStatusCancelled {
		return true
	}
	return forwardRank[next] >= forwardRank[s]
}

// Order is a checkout snapshot. Only Status and Notes change after creation.
type Order struct {
	ID              string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID          string          `json:"userId" gorm:"type:varchar(36);index;not null"`
	User            *User           `json:"user,omitempty" gorm:"constraint:OnDelete:RESTRICT"`
	Status          OrderStatus     `json:"status" gorm:"type:varchar(20);index;not null"`
	TotalAmount     decimal.Decimal `json:"totalAmount" gorm:"type:decimal(12,2);not null"`
	ShippingAddress string          `json:"shippingAddress" gorm:"type:text;not null"`
	PhoneNumber     string          `json:"phoneNumber" gorm:"type:varchar(32);not null"`
	Notes           *string         `json:"notes,omitempty" gorm:"type:text"`
	Items           []OrderItem     `json:"orderItems" gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time       `json:"createdAt" gorm:"index"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// OrderItem represents a single item within an order.
type OrderItem struct {
	ID        string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID   string          `json:"orderId" gorm:"type:varchar(36);index;not null"`
	ProductID string          `json:"productId" gorm:"type:varchar(36);index;not null"`
	Product   *Product        `json:"product,omitempty" gorm:"constraint:OnDelete:RESTRICT"`
	Quantity  int             `json:"quantity" gorm:"not null"`
	Price     decimal.Decimal `json:"price" gorm:"type:decimal(12,2);not null"` // Price at the time of order
	CreatedAt time.Time       `json:"createdAt"`
}

// UserOrderStats summarises one user's orders. Cancelled orders never count
// toward TotalSpent.
type UserOrderStats struct {
	TotalOrders     int64                 `json:"totalOrders"`
	TotalSpent      decimal.Decimal       `json:"totalSpent"`
	StatusBreakdown map[OrderStatus]int64 `json:"statusBreakdown"`
}

// AdminOrderStats summarises every order in the store.
type AdminOrderStats struct {
	TotalOrders     int64                 `json:"totalOrders"`
	PendingOrders   int64                 `json:"pendingOrders"`
	TotalRevenue    decimal.Decimal       `json:"totalRevenue"`
	StatusBreakdown map[OrderStatus]int64 `json:"statusBreakdown"`
}
