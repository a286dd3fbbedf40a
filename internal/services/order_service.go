package services

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"tokostore/internal/apperrors"
	"tokostore/internal/models"
	"tokostore/internal/repositories"
)

// Order event types published after a successful commit.
const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
)

const notesSeparator = "\n\n"

// CheckoutInput is what a user submits to place an order. GuestToken, when
// set, names a guest cart merged into the user's cart first.
type CheckoutInput struct {
	ShippingAddress string
	PhoneNumber     string
	Notes           *string
	GuestToken      string
}

// OrderQuery filters an order listing. UserID is honoured for admins only.
type OrderQuery struct {
	UserID   string
	Status   models.OrderStatus
	FromDate *time.Time
	ToDate   *time.Time
	Page     int
	Limit    int
}

// OrderPage is one page of an order listing.
type OrderPage struct {
	Data []models.Order `json:"data"`
	Meta PageMeta       `json:"meta"`
}

// OrderCreatedEvent is the payload of EventOrderCreated.
type OrderCreatedEvent struct {
	OrderID     string             `json:"orderId"`
	UserID      string             `json:"userId"`
	Status      models.OrderStatus `json:"status"`
	TotalAmount string             `json:"totalAmount"`
	Items       int                `json:"items"`
}

// OrderStatusChangedEvent is the payload of EventOrderStatusChanged.
type OrderStatusChangedEvent struct {
	OrderID string             `json:"orderId"`
	UserID  string             `json:"userId"`
	From    models.OrderStatus `json:"from"`
	To      models.OrderStatus `json:"to"`
}

// OrderService handles business logic related to orders.
type OrderService struct {
	store     repositories.Store
	publisher EventPublisher
}

// NewOrderService creates a new OrderService. publisher may be nil, in which
// case no events are sent.
func NewOrderService(store repositories.Store, publisher EventPublisher) *OrderService {
	return &OrderService{
		store:     store,
		publisher: publisher,
	}
}

// Checkout turns the user's cart into an order. The cart is re-read under a
// row lock inside the transaction and the order is built from that read, so
// two checkouts of one cart cannot both succeed. Stock is decremented, the
// order written and the ordered lines removed in that same transaction; a line
// whose stock ran out since the pre-flight check rolls the whole checkout back.
func (s *OrderService) Checkout(ctx context.Context, userID string, in CheckoutInput) (*models.Order, error) {
	if userID == "" {
		return nil, apperrors.Unauthorized("authentication required to place an order")
	}
	if strings.TrimSpace(in.ShippingAddress) == "" || strings.TrimSpace(in.PhoneNumber) == "" {
		return nil, apperrors.BadRequest("shipping address and phone number are required")
	}

	if in.GuestToken != "" {
		err := s.store.Transaction(ctx, func(tx repositories.Store) error {
			_, err := mergeGuestCart(ctx, tx, in.GuestToken, userID)
			return err
		})
		if err != nil && apperrors.KindOf(err) != apperrors.KindNotFound {
			return nil, err
		}
	}

	// Pre-flight only: gives a detailed stock message before taking any lock.
	cart, err := s.store.Carts().FindByOwner(ctx, models.UserOwner(userID))
	if err != nil {
		return nil, checkoutCartError(err)
	}
	if err := checkLines(cart); err != nil {
		return nil, err
	}

	var order *models.Order
	err = s.store.Transaction(ctx, func(tx repositories.Store) error {
		locked, err := tx.Carts().FindByOwnerForUpdate(ctx, models.UserOwner(userID))
		if err != nil {
			return checkoutCartError(err)
		}
		if len(locked.Items) == 0 {
			return apperrors.BadRequest("cannot create order with empty cart")
		}
		for _, item := range locked.Items {
			if item.Product == nil {
				return apperrors.BadRequest("product %s is no longer available", item.ProductID)
			}
		}

		order = newOrder(userID, locked, in)
		if err := tx.Orders().Create(ctx, order); err != nil {
			return err
		}
		for _, item := range locked.Items {
			if err := tx.Products().AdjustStock(ctx, item.ProductID, -item.Quantity); err != nil {
				if errors.Is(err, repositories.ErrInsufficientStock) {
					return apperrors.BadRequest("insufficient stock for %s", item.Product.Name)
				}
				return err
			}
		}
		err = tx.Carts().DeleteLines(ctx, locked.Items)
		if errors.Is(err, repositories.ErrCartChanged) {
			return apperrors.BadRequest("cart changed during checkout, please retry")
		}
		return err
	})
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindBadRequest {
			return nil, err
		}
		logrus.WithError(err).WithField("user_id", userID).Error("checkout failed")
		return nil, apperrors.Wrap(err, apperrors.KindBadRequest, "failed to create order")
	}

	logrus.WithFields(logrus.Fields{"order_id": order.ID, "user_id": userID, "total": order.TotalAmount.StringFixed(2)}).Info("order created")
	s.publish(EventOrderCreated, OrderCreatedEvent{
		OrderID:     order.ID,
		UserID:      userID,
		Status:      order.Status,
		TotalAmount: order.TotalAmount.StringFixed(2),
		Items:       len(order.Items),
	})
	return s.store.Orders().GetByID(ctx, order.ID)
}

func checkoutCartError(err error) error {
	if apperrors.KindOf(err) == apperrors.KindNotFound {
		return apperrors.BadRequest("cart not found or empty")
	}
	return err
}

func checkLines(cart *models.Cart) error {
	if len(cart.Items) == 0 {
		return apperrors.BadRequest("cannot create order with empty cart")
	}
	for _, item := range cart.Items {
		if item.Product == nil {
			return apperrors.BadRequest("product %s is no longer available", item.ProductID)
		}
		if item.Product.Stock < item.Quantity {
			return insufficientStock(item.Product.Name, item.Product.Stock, item.Quantity)
		}
	}
	return nil
}

// newOrder prices the order from the cart's current product prices.
func newOrder(userID string, cart *models.Cart, in CheckoutInput) *models.Order {
	order := &models.Order{
		UserID:          userID,
		Status:          models.OrderStatusPending,
		TotalAmount:     models.NewCartView(cart).TotalAmount,
		ShippingAddress: strings.TrimSpace(in.ShippingAddress),
		PhoneNumber:     strings.TrimSpace(in.PhoneNumber),
		Notes:           in.Notes,
	}
	for _, item := range cart.Items {
		order.Items = append(order.Items, models.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Product.Price,
		})
	}
	return order
}

func insufficientStock(name string, available, requested int) error {
	return apperrors.BadRequest("insufficient stock for %s. Available: %d, Requested: %d", name, available, requested)
}

// List returns one page of orders, newest first. Non-admins only ever see
// their own orders.
func (s *OrderService) List(ctx context.Context, caller Caller, query OrderQuery) (*OrderPage, error) {
	if !caller.Authenticated() {
		return nil, apperrors.Unauthorized("authentication required")
	}
	if query.Status != "" && !query.Status.Valid() {
		return nil, apperrors.BadRequest("invalid order status %q", query.Status)
	}
	page, limit := normalizePage(query.Page, query.Limit)
	filter := repositories.OrderFilter{
		UserID:   caller.UserID,
		Status:   query.Status,
		FromDate: query.FromDate,
		ToDate:   query.ToDate,
		Page:     page,
		Limit:    limit,
	}
	if caller.IsAdmin() {
		filter.UserID = query.UserID
	}

	orders, total, err := s.store.Orders().List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &OrderPage{Data: orders, Meta: newPageMeta(page, limit, total)}, nil
}

// GetOrderByID retrieves a single order visible to the caller.
func (s *OrderService) GetOrderByID(ctx context.Context, caller Caller, id string) (*models.Order, error) {
	order, err := s.store.Orders().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() && order.UserID != caller.UserID {
		return nil, apperrors.Forbidden("you do not have access to this order")
	}
	return order, nil
}

// UpdateOrderStatus moves an order along its lifecycle. Cancelling puts every
// item's quantity back into stock in the same transaction. notes, if given,
// are appended to the order's existing notes.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, caller Caller, id string, status models.OrderStatus, notes *string) (*models.Order, error) {
	if !caller.IsAdmin() {
		return nil, apperrors.Forbidden("only admins can update order status")
	}
	if !status.Valid() {
		return nil, apperrors.BadRequest("invalid order status %q", status)
	}

	var from models.OrderStatus
	var ownerID string
	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		order, err := tx.Orders().GetByID(ctx, id)
		if err != nil {
			return err
		}
		from, ownerID = order.Status, order.UserID
		if order.Status.Terminal() {
			return apperrors.BadRequest("cannot update status of %s order", strings.ToLower(string(order.Status)))
		}
		if !order.Status.CanTransitionTo(status) {
			return apperrors.BadRequest("cannot change order status from %s to %s", order.Status, status)
		}

		if status == models.OrderStatusCancelled {
			for _, item := range order.Items {
				if err := tx.Products().RestoreStock(ctx, item.ProductID, item.Quantity); err != nil {
					return err
				}
			}
		}

		err = tx.Orders().UpdateStatus(ctx, id, order.Status, status, appendNotes(order.Notes, notes))
		if apperrors.KindOf(err) == apperrors.KindNotFound {
			return apperrors.BadRequest("order status changed concurrently, please retry")
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{"order_id": id, "from": from, "to": status}).Info("order status updated")
	s.publish(EventOrderStatusChanged, OrderStatusChangedEvent{OrderID: id, UserID: ownerID, From: from, To: status})
	return s.store.Orders().GetByID(ctx, id)
}

func appendNotes(existing, added *string) *string {
	if added == nil || strings.TrimSpace(*added) == "" {
		return existing
	}
	if existing == nil || *existing == "" {
		return added
	}
	joined := *existing + notesSeparator + *added
	return &joined
}

// UserStats summarises the user's own orders.
func (s *OrderService) UserStats(ctx context.Context, userID string) (*models.UserOrderStats, error) {
	if userID == "" {
		return nil, apperrors.Unauthorized("authentication required")
	}
	breakdown, err := s.store.Orders().CountByStatus(ctx, userID)
	if err != nil {
		return nil, err
	}
	spent, err := s.store.Orders().SumTotal(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &models.UserOrderStats{
		TotalOrders:     sumCounts(breakdown),
		TotalSpent:      spent,
		StatusBreakdown: breakdown,
	}, nil
}

// AdminStats summarises every order in the store.
func (s *OrderService) AdminStats(ctx context.Context, caller Caller) (*models.AdminOrderStats, error) {
	if !caller.IsAdmin() {
		return nil, apperrors.Forbidden("only admins can view store statistics")
	}
	breakdown, err := s.store.Orders().CountByStatus(ctx, "")
	if err != nil {
		return nil, err
	}
	revenue, err := s.store.Orders().SumTotal(ctx, "")
	if err != nil {
		return nil, err
	}
	return &models.AdminOrderStats{
		TotalOrders:     sumCounts(breakdown),
		PendingOrders:   breakdown[models.OrderStatusPending],
		TotalRevenue:    revenue,
		StatusBreakdown: breakdown,
	}, nil
}

func sumCounts(counts map[models.OrderStatus]int64) int64 {
	var total int64
	for _, n := range counts {
		total += n
	}
	return total
}

func (s *OrderService) publish(eventType string, payload interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(eventType, payload); err != nil {
		logrus.WithError(err).WithField("event", eventType).Warn("failed to publish order event")
	}
}
