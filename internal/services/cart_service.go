package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tokostore/internal/apperrors"
	"tokostore/internal/models"
	"tokostore/internal/repositories"
)

var errNoCartOwner = apperrors.BadRequest("user ID or guest token required")

// CartService handles business logic related to carts. The stock checks made
// here are advisory: carts reserve nothing and only checkout moves stock.
type CartService struct {
	store repositories.Store
}

// NewCartService creates a new CartService.
func NewCartService(store repositories.Store) *CartService {
	return &CartService{store: store}
}

// CreateGuestCart opens an empty cart under a fresh guest token.
func (s *CartService) CreateGuestCart(ctx context.Context) (*models.CartView, error) {
	cart := &models.Cart{}
	cart.SetOwner(models.GuestOwner(uuid.New().String()))
	if err := s.store.Carts().Create(ctx, cart); err != nil {
		return nil, err
	}
	logrus.WithField("cart_id", cart.ID).Debug("guest cart created")
	return models.NewCartView(cart), nil
}

// GetCart returns the owner's cart with totals.
func (s *CartService) GetCart(ctx context.Context, owner models.CartOwner) (*models.CartView, error) {
	if owner.IsZero() {
		return nil, errNoCartOwner
	}
	cart, err := s.store.Carts().FindByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	return models.NewCartView(cart), nil
}

// AddItem adds quantity of a product to the owner's cart, creating the cart
// on first use. A zero owner gets a new guest cart; read its token from the
// returned view.
func (s *CartService) AddItem(ctx context.Context, owner models.CartOwner, productID string, quantity int) (*models.CartView, error) {
	if quantity < 1 {
		return nil, apperrors.BadRequest("quantity must be at least 1")
	}
	product, err := s.store.Products().GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.Stock < quantity {
		return nil, apperrors.BadRequest("insufficient stock. available: %d", product.Stock)
	}

	cart, err := s.cartForAdd(ctx, owner)
	if err != nil {
		return nil, err
	}
	if err := s.store.Carts().AddItemQuantity(ctx, cart.ID, productID, quantity); err != nil {
		return nil, err
	}
	return s.view(ctx, cart.ID)
}

// cartForAdd finds or lazily creates the cart an add goes into.
func (s *CartService) cartForAdd(ctx context.Context, owner models.CartOwner) (*models.Cart, error) {
	if owner.IsZero() {
		owner = models.GuestOwner(uuid.New().String())
	}
	if token, ok := owner.GuestToken(); ok {
		if _, err := uuid.Parse(token); err != nil {
			return nil, apperrors.BadRequest("invalid guest token")
		}
	}

	cart, err := s.store.Carts().FindByOwner(ctx, owner)
	if err == nil {
		return cart, nil
	}
	if apperrors.KindOf(err) != apperrors.KindNotFound {
		return nil, err
	}

	cart = &models.Cart{}
	cart.SetOwner(owner)
	err = s.store.Carts().Create(ctx, cart)
	if apperrors.KindOf(err) == apperrors.KindConflict {
		// lost a race with a concurrent first add for the same owner
		return s.store.Carts().FindByOwner(ctx, owner)
	}
	if err != nil {
		return nil, err
	}
	return cart, nil
}

// UpdateItem sets a line's quantity; zero removes the line. Only growth is
// checked against stock.
func (s *CartService) UpdateItem(ctx context.Context, owner models.CartOwner, itemID string, quantity int) (*models.CartView, error) {
	if quantity < 0 {
		return nil, apperrors.BadRequest("quantity cannot be negative")
	}
	item, cart, err := s.ownedItem(ctx, owner, itemID)
	if err != nil {
		return nil, err
	}

	switch {
	case quantity == 0:
		err = s.store.Carts().DeleteItem(ctx, item.ID)
	default:
		if delta := quantity - item.Quantity; delta > 0 && item.Product != nil && item.Product.Stock < delta {
			return nil, apperrors.BadRequest("insufficient stock. available: %d", item.Product.Stock)
		}
		err = s.store.Carts().UpdateItemQuantity(ctx, item.ID, quantity)
	}
	if err != nil {
		return nil, err
	}
	return s.view(ctx, cart.ID)
}

// RemoveItem deletes one line from the owner's cart.
func (s *CartService) RemoveItem(ctx context.Context, owner models.CartOwner, itemID string) (*models.CartView, error) {
	item, cart, err := s.ownedItem(ctx, owner, itemID)
	if err != nil {
		return nil, err
	}
	if err := s.store.Carts().DeleteItem(ctx, item.ID); err != nil {
		return nil, err
	}
	return s.view(ctx, cart.ID)
}

// Clear empties the owner's cart.
func (s *CartService) Clear(ctx context.Context, owner models.CartOwner) (*models.CartView, error) {
	if owner.IsZero() {
		return nil, errNoCartOwner
	}
	cart, err := s.store.Carts().FindByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	if err := s.store.Carts().ClearItems(ctx, cart.ID); err != nil {
		return nil, err
	}
	return s.view(ctx, cart.ID)
}

// MergeGuestIntoUser folds the guest cart into the user's cart in one
// transaction. Without a user cart the guest cart is re-owned; otherwise
// guest lines are summed into the user's lines and the guest cart is deleted.
func (s *CartService) MergeGuestIntoUser(ctx context.Context, guestToken, userID string) (*models.CartView, error) {
	if userID == "" {
		return nil, apperrors.Unauthorized("authentication required")
	}
	if guestToken == "" {
		return nil, apperrors.BadRequest("guest token required")
	}

	var cartID string
	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		var err error
		cartID, err = mergeGuestCart(ctx, tx, guestToken, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.view(ctx, cartID)
}

// mergeGuestCart performs the merge on tx and returns the user's cart id.
func mergeGuestCart(ctx context.Context, tx repositories.Store, guestToken, userID string) (string, error) {
	guest, err := tx.Carts().FindByOwner(ctx, models.GuestOwner(guestToken))
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindNotFound {
			return "", apperrors.NotFound("guest cart not found")
		}
		return "", err
	}

	userOwner := models.UserOwner(userID)
	target, err := tx.Carts().FindByOwner(ctx, userOwner)
	if apperrors.KindOf(err) == apperrors.KindNotFound {
		if err := tx.Carts().SetOwner(ctx, guest.ID, userOwner); err != nil {
			return "", err
		}
		logrus.WithFields(logrus.Fields{"cart_id": guest.ID, "user_id": userID}).Info("guest cart re-owned")
		return guest.ID, nil
	}
	if err != nil {
		return "", err
	}

	for _, item := range guest.Items {
		if err := tx.Carts().AddItemQuantity(ctx, target.ID, item.ProductID, item.Quantity); err != nil {
			return "", err
		}
	}
	if err := tx.Carts().Delete(ctx, guest.ID); err != nil {
		return "", err
	}
	logrus.WithFields(logrus.Fields{"cart_id": target.ID, "user_id": userID, "lines": len(guest.Items)}).Info("guest cart merged")
	return target.ID, nil
}

// ownedItem loads a line and its cart, failing unless owner owns the cart.
func (s *CartService) ownedItem(ctx context.Context, owner models.CartOwner, itemID string) (*models.CartItem, *models.Cart, error) {
	if owner.IsZero() {
		return nil, nil, errNoCartOwner
	}
	item, err := s.store.Carts().GetItem(ctx, itemID)
	if err != nil {
		return nil, nil, err
	}
	cart, err := s.store.Carts().GetByID(ctx, item.CartID)
	if err != nil {
		return nil, nil, err
	}
	if !owner.Owns(cart) {
		return nil, nil, apperrors.Unauthorized("unauthorized access to cart item")
	}
	return item, cart, nil
}

func (s *CartService) view(ctx context.Context, cartID string) (*models.CartView, error) {
	cart, err := s.store.Carts().GetByID(ctx, cartID)
	if err != nil {
		return nil, err
	}
	return models.NewCartView(cart), nil
}
