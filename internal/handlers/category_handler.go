package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"tokostore/internal/services"
)

// CategoryHandler handles HTTP requests for categories.
type CategoryHandler struct {
	service  *services.CategoryService
	validate *validator.Validate
}

func NewCategoryHandler(service *services.CategoryService) *CategoryHandler {
	return &CategoryHandler{service: service, validate: validator.New()}
}

// RegisterRoutes mounts reads publicly and writes behind admin.
func (h *CategoryHandler) RegisterRoutes(router fiber.Router, admin ...fiber.Handler) {
	categories := router.Group("/categories")
	categories.Get("/", h.HandleList)
	categories.Get("/:id", h.HandleGet)

	guarded := categories.Group("", admin...)
	guarded.Post("/", h.HandleCreate)
	guarded.Patch("/:id", h.HandleUpdate)
	guarded.Delete("/:id", h.HandleDelete)
}

type CategoryRequest struct {
	Name        string  `json:"name" validate:"required,min=2,max=100"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	Slug        *string `json:"slug" validate:"omitempty,max=120"`
}

type UpdateCategoryRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=2,max=100"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	Slug        *string `json:"slug" validate:"omitempty,max=120"`
}

func (h *CategoryHandler) HandleList(c *fiber.Ctx) error {
	categories, err := h.service.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(categories)
}

func (h *CategoryHandler) HandleGet(c *fiber.Ctx) error {
	category, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(category)
}

func (h *CategoryHandler) HandleCreate(c *fiber.Ctx) error {
	var req CategoryRequest
	if err := bind(c, h.validate, &req); err != nil {
		return err
	}
	category, err := h.service.Create(c.UserContext(), services.CategoryInput{
		Name:        req.Name,
		Description: req.Description,
		Slug:        req.Slug,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(category)
}

func (h *CategoryHandler) HandleUpdate(c *fiber.Ctx) error {
	var req UpdateCategoryRequest
	if err := bind(c, h.validate, &req); err != nil {
		return err
	}
	category, err := h.service.Update(c.UserContext(), c.Params("id"), services.CategoryUpdate{
		Name:        req.Name,
		Description: req.Description,
		Slug:        req.Slug,
	})
	if err != nil {
		return err
	}
	return c.JSON(category)
}

func (h *CategoryHandler) HandleDelete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Category deleted successfully"})
}
