package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"tokostore/internal/apperrors"
	"tokostore/internal/middleware"
	"tokostore/internal/models"
	"tokostore/internal/services"
)

// CartHandler handles HTTP requests for carts. Guests identify their cart
// with the X-Guest-Token header.
type CartHandler struct {
	service   *services.CartService
	validator middleware.TokenValidator
	validate  *validator.Validate
}

func NewCartHandler(service *services.CartService, tokens middleware.TokenValidator) *CartHandler {
	return &CartHandler{service: service, validator: tokens, validate: validator.New()}
}

func (h *CartHandler) RegisterRoutes(router fiber.Router) {
	cart := router.Group("/cart", middleware.OptionalAuth(h.validator))
	cart.Post("/guest", h.HandleCreateGuest)
	cart.Post("/add", h.HandleAdd)
	cart.Get("/", h.HandleGet)
	cart.Patch("/items/:id", h.HandleUpdateItem)
	cart.Delete("/items/:id", h.HandleRemoveItem)
	cart.Delete("/clear", h.HandleClear)
	cart.Post("/transfer", middleware.AuthRequired(h.validator), h.HandleTransfer)
}

type AddToCartRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

type TransferCartRequest struct {
	GuestToken string `json:"guestToken" validate:"omitempty,uuid"`
}

type UpdateCartItemRequest struct {
	Quantity *int `json:"quantity" validate:"required,min=0"`
}

// respondCart writes the cart and echoes a guest cart's token in the header.
func respondCart(c *fiber.Ctx, status int, view *models.CartView) error {
	if token, ok := view.Owner().GuestToken(); ok {
		c.Set(middleware.HeaderGuestToken, token)
	}
	return c.Status(status).JSON(view)
}

func (h *CartHandler) HandleCreateGuest(c *fiber.Ctx) error {
	view, err := h.service.CreateGuestCart(c.UserContext())
	if err != nil {
		return err
	}
	token, _ := view.Owner().GuestToken()
	c.Set(middleware.HeaderGuestToken, token)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"guestToken": token,
		"cart":       view,
	})
}

// HandleAdd adds a product to the caller's cart. Without any credential a new
// guest cart is opened.
func (h *CartHandler) HandleAdd(c *fiber.Ctx) error {
	var req AddToCartRequest
	if err := bind(c, h.validate, &req); err != nil {
		return err
	}
	view, err := h.service.AddItem(c.UserContext(), middleware.CartOwnerFrom(c), req.ProductID, req.Quantity)
	if err != nil {
		return err
	}
	return respondCart(c, fiber.StatusOK, view)
}

func (h *CartHandler) HandleGet(c *fiber.Ctx) error {
	view, err := h.service.GetCart(c.UserContext(), middleware.CartOwnerFrom(c))
	if err != nil {
		return err
	}
	return respondCart(c, fiber.StatusOK, view)
}

func (h *CartHandler) HandleUpdateItem(c *fiber.Ctx) error {
	var req UpdateCartItemRequest
	if err := bind(c, h.validate, &req); err != nil {
		return err
	}
	view, err := h.service.UpdateItem(c.UserContext(), middleware.CartOwnerFrom(c), c.Params("id"), *req.Quantity)
	if err != nil {
		return err
	}
	return respondCart(c, fiber.StatusOK, view)
}

func (h *CartHandler) HandleRemoveItem(c *fiber.Ctx) error {
	view, err := h.service.RemoveItem(c.UserContext(), middleware.CartOwnerFrom(c), c.Params("id"))
	if err != nil {
		return err
	}
	return respondCart(c, fiber.StatusOK, view)
}

func (h *CartHandler) HandleClear(c *fiber.Ctx) error {
	view, err := h.service.Clear(c.UserContext(), middleware.CartOwnerFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message": "Cart cleared successfully",
		"cart":    view,
	})
}

// HandleTransfer merges a guest cart into the caller's cart. The token comes
// from the body, falling back to the X-Guest-Token header.
func (h *CartHandler) HandleTransfer(c *fiber.Ctx) error {
	var req TransferCartRequest
	if len(c.Body()) > 0 {
		if err := bind(c, h.validate, &req); err != nil {
			return err
		}
	}
	token := req.GuestToken
	if token == "" {
		token = middleware.GuestTokenFrom(c)
	}
	if token == "" {
		return apperrors.BadRequest("guest token is required")
	}
	view, err := h.service.MergeGuestIntoUser(c.UserContext(), token, middleware.CallerFrom(c).UserID)
	if err != nil {
		return err
	}
	return c.JSON(view)
}
