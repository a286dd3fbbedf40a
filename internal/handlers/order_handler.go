package handlers

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"tokostore/internal/apperrors"
	"tokostore/internal/middleware"
	"tokostore/internal/models"
	"tokostore/internal/services"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service  *services.OrderService
	validate *validator.Validate
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the order routes. auth must authenticate the
// caller; admin additionally requires the ADMIN role.
func (h *OrderHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler, admin fiber.Handler) {
	orderRoutes := router.Group("/orders", auth)
	orderRoutes.Post("/", h.HandleCreateOrder)
	orderRoutes.Get("/", h.HandleGetOrders)
	orderRoutes.Get("/stats", h.HandleStats)
	orderRoutes.Get("/:id", h.HandleGetOrderByID)
	orderRoutes.Patch("/:id/status", admin, h.HandleUpdateOrderStatus)
}

type CreateOrderRequest struct {
	ShippingAddress string  `json:"shippingAddress" validate:"required,min=5,max=500"`
	PhoneNumber     string  `json:"phoneNumber" validate:"required,min=6,max=32"`
	Notes           *string `json:"notes" validate:"omitempty,max=1000"`
}

type OrdersQuery struct {
	Status   string `query:"status" validate:"omitempty,oneof=PENDING APPROVED PROCESSING SHIPPED DELIVERED CANCELLED"`
	UserID   string `query:"userId"`
	FromDate string `query:"fromDate"`
	ToDate   string `query:"toDate"`
	Page     int    `query:"page" validate:"omitempty,min=1"`
	Limit    int    `query:"limit" validate:"omitempty,min=1,max=100"`
}

type UpdateOrderStatusRequest struct {
	Status models.OrderStatus `json:"status" validate:"required"`
	Notes  *string            `json:"notes" validate:"omitempty,max=1000"`
}

// HandleCreateOrder checks out the caller's cart. A guest cart named by the
// X-Guest-Token header is merged in first.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	var req CreateOrderRequest
	if err := bind(c, h.validate, &req); err != nil {
		return err
	}
	order, err := h.service.Checkout(c.UserContext(), middleware.CallerFrom(c).UserID, services.CheckoutInput{
		ShippingAddress: req.ShippingAddress,
		PhoneNumber:     req.PhoneNumber,
		Notes:           req.Notes,
		GuestToken:      middleware.GuestTokenFrom(c),
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}

// HandleGetOrders lists orders, newest first. Non-admins see only their own.
func (h *OrderHandler) HandleGetOrders(c *fiber.Ctx) error {
	var q OrdersQuery
	if err := bindQuery(c, h.validate, &q); err != nil {
		return err
	}
	query := services.OrderQuery{
		UserID: q.UserID,
		Status: models.OrderStatus(q.Status),
		Page:   q.Page,
		Limit:  q.Limit,
	}
	var err error
	if query.FromDate, err = parseDate(q.FromDate, "fromDate"); err != nil {
		return err
	}
	if query.ToDate, err = parseDate(q.ToDate, "toDate"); err != nil {
		return err
	}

	page, err := h.service.List(c.UserContext(), middleware.CallerFrom(c), query)
	if err != nil {
		return err
	}
	return c.JSON(page)
}

// parseDate accepts RFC 3339 timestamps or plain YYYY-MM-DD dates.
func parseDate(value, field string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t, nil
		}
	}
	return nil, apperrors.BadRequest("%s must be a date (YYYY-MM-DD) or RFC 3339 timestamp", field)
}

// HandleGetOrderByID retrieves a single order by its ID.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	order, err := h.service.GetOrderByID(c.UserContext(), middleware.CallerFrom(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(order)
}

// HandleUpdateOrderStatus updates the status of an existing order.
func (h *OrderHandler) HandleUpdateOrderStatus(c *fiber.Ctx) error {
	var req UpdateOrderStatusRequest
	if err := bind(c, h.validate, &req); err != nil {
		return err
	}
	order, err := h.service.UpdateOrderStatus(c.UserContext(), middleware.CallerFrom(c), c.Params("id"), req.Status, req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(order)
}

// HandleStats returns store-wide figures to admins and the caller's own
// figures to everyone else.
func (h *OrderHandler) HandleStats(c *fiber.Ctx) error {
	caller := middleware.CallerFrom(c)
	if caller.IsAdmin() {
		stats, err := h.service.AdminStats(c.UserContext(), caller)
		if err != nil {
			return err
		}
		return c.JSON(stats)
	}
	stats, err := h.service.UserStats(c.UserContext(), caller.UserID)
	if err != nil {
		return err
	}
	return c.JSON(stats)
}
