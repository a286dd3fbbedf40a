package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartOwner identifies who a cart belongs to: either a user or a guest token,
// never both and never neither. The zero value owns nothing.
type CartOwner struct {
	userID     string
	guestToken string
}

// UserOwner returns the owner key for an authenticated user's cart.
func UserOwner(userID string) CartOwner {
	return CartOwner{userID: userID}
}

// GuestOwner returns the owner key for a guest cart.
func GuestOwner(token string) CartOwner {
	return CartOwner{guestToken: token}
}

// UserID returns the owning user id, if the owner is a user.
func (o CartOwner) UserID() (string, bool) {
	return o.userID, o.userID != ""
}

// GuestToken returns the guest token, if the owner is a guest.
func (o CartOwner) GuestToken() (string, bool) {
	return o.guestToken, o.userID == "" && o.guestToken != ""
}

// IsZero reports whether the owner carries no identity.
func (o CartOwner) IsZero() bool {
	return o.userID == "" && o.guestToken == ""
}

// Owns reports whether o is the owner recorded on cart. A user never matches a
// guest cart and a guest token never matches a user cart.
func (o CartOwner) Owns(cart *Cart) bool {
	if cart == nil {
		return false
	}
	if id, ok := o.UserID(); ok {
		return cart.UserID != nil && *cart.UserID == id
	}
	if token, ok := o.GuestToken(); ok {
		return cart.UserID == nil && cart.GuestToken != nil && *cart.GuestToken == token
	}
	return false
}

func (o CartOwner) String() string {
	if id, ok := o.UserID(); ok {
		return "user:" + id
	}
	if _, ok := o.GuestToken(); ok {
		return "guest"
	}
	return "nobody"
}

// Cart is persisted with two nullable owner columns; exactly one is set.
type Cart struct {
	ID         string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID     *string    `json:"userId,omitempty" gorm:"uniqueIndex;type:varchar(36);check:chk_carts_owner,(user_id IS NULL) <> (guest_token IS NULL)"`
	GuestToken *string    `json:"guestToken,omitempty" gorm:"uniqueIndex;type:varchar(36)"`
	Items      []CartItem `json:"cartItems" gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Owner returns the cart's owner key.
func (c *Cart) Owner() CartOwner {
	if c.UserID != nil {
		return UserOwner(*c.UserID)
	}
	if c.GuestToken != nil {
		return GuestOwner(*c.GuestToken)
	}
	return CartOwner{}
}

// SetOwner records o on the cart's owner columns, clearing the other one.
func (c *Cart) SetOwner(o CartOwner) {
	c.UserID, c.GuestToken = nil, nil
	if id, ok := o.UserID(); ok {
		c.UserID = &id
		return
	}
	if token, ok := o.GuestToken(); ok {
		c.GuestToken = &token
	}
}

// CartItem is one (product, quantity) line. Unique per (cart, product).
type CartItem struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CartID    string    `json:"cartId" gorm:"type:varchar(36);not null;uniqueIndex:idx_cart_items_cart_product"`
	ProductID string    `json:"productId" gorm:"type:varchar(36);not null;uniqueIndex:idx_cart_items_cart_product"`
	Quantity  int       `json:"quantity" gorm:"not null;check:chk_cart_items_quantity,quantity >= 1"`
	Product   *Product  `json:"product,omitempty" gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CartView is a cart with totals computed from the live product prices.
type CartView struct {
	Cart
	TotalAmount decimal.Decimal `json:"totalAmount"`
	TotalItems  int             `json:"totalItems"`
}

// NewCartView computes totals for cart. Lines must have Product loaded.
func NewCartView(cart *Cart) *CartView {
	view := &CartView{Cart: *cart, TotalAmount: decimal.Zero}
	if view.Items == nil {
		view.Items = []CartItem{}
	}
	for _, item := range cart.Items {
		view.TotalItems += item.Quantity
		if item.Product != nil {
			view.TotalAmount = view.TotalAmount.Add(item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
	}
	return view
}
