package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"tokostore/internal/apperrors"
	"tokostore/internal/repositories"
	"tokostore/internal/services"
	"tokostore/internal/storage"
)

// ProductHandler handles HTTP requests for products.
type ProductHandler struct {
	service  *services.ProductService
	validate *validator.Validate
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(service *services.ProductService) *ProductHandler {
	return &ProductHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes mounts catalog reads publicly and writes behind admin.
func (h *ProductHandler) RegisterRoutes(router fiber.Router, admin ...fiber.Handler) {
	products := router.Group("/products")
	products.Get("/", h.HandleList)
	products.Get("/search", h.HandleSearch)
	products.Get("/slug/:slug", h.HandleGetBySlug)
	products.Get("/:id", h.HandleGetByID)

	guarded := products.Group("", admin...)
	guarded.Post("/", h.HandleCreate)
	guarded.Patch("/:id", h.HandleUpdate)
	guarded.Delete("/:id", h.HandleDelete)
	guarded.Patch("/:id/stock", h.HandleUpdateStock)
	guarded.Post("/:id/images", h.HandleUploadImages)
}

// ProductQuery is the query string of a product listing.
type ProductQuery struct {
	Q          string `query:"q" validate:"omitempty,max=200"`
	CategoryID string `query:"categoryId"`
	MinPrice   string `query:"minPrice" validate:"omitempty,numeric"`
	MaxPrice   string `query:"maxPrice" validate:"omitempty,numeric"`
	Page       int    `query:"page" validate:"omitempty,min=1"`
	Limit      int    `query:"limit" validate:"omitempty,min=1,max=100"`
	SortBy     string `query:"sortBy" validate:"omitempty,oneof=name price createdAt updatedAt"`
	SortOrder  string `query:"sortOrder" validate:"omitempty,oneof=asc desc"`
}

func (q ProductQuery) filter() repositories.ProductFilter {
	filter := repositories.ProductFilter{
		Query:      q.Q,
		CategoryID: q.CategoryID,
		Page:       q.Page,
		Limit:      q.Limit,
		SortBy:     q.SortBy,
		SortOrder:  q.SortOrder,
	}
	// numeric validation already ran
	if q.MinPrice != "" {
		min := decimal.RequireFromString(q.MinPrice)
		filter.MinPrice = &min
	}
	if q.MaxPrice != "" {
		max := decimal.RequireFromString(q.MaxPrice)
		filter.MaxPrice = &max
	}
	return filter
}

type ProductRequest struct {
	Name        string           `json:"name" validate:"required,min=2,max=200"`
	Description *string          `json:"description" validate:"omitempty,max=5000"`
	Price       *decimal.Decimal `json:"price" validate:"required"`
	Stock       int              `json:"stock" validate:"min=0"`
	CategoryID  string           `json:"categoryId" validate:"required"`
	ImageURLs   []string         `json:"imageUrls" validate:"omitempty,dive,url"`
}

type UpdateProductRequest struct {
	Name        *string          `json:"name" validate:"omitempty,min=2,max=200"`
	Description *string          `json:"description" validate:"omitempty,max=5000"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock" validate:"omitempty,min=0"`
	CategoryID  *string          `json:"categoryId"`
	ImageURLs   []string         `json:"imageUrls" validate:"omitempty,dive,url"`
}

type UpdateStockRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

// HandleList lists products with filters, sorting and pagination.
func (h *ProductHandler) HandleList(c *fiber.Ctx) error {
	var q ProductQuery
	if err := bindQuery(c, h.validate, &q); err != nil {
		return err
	}
	page, err := h.service.List(c.UserContext(), q.filter())
	if err != nil {
		return err
	}
	return c.JSON(page)
}

func (h *ProductHandler) HandleSearch(c *fiber.Ctx) error {
	var q ProductQuery
	if err := bindQuery(c, h.validate, &q); err != nil {
		return err
	}
	page, err := h.service.Search(c.UserContext(), q.Q, q.Page, q.Limit)
	if err != nil {
		return err
	}
	return c.JSON(page)
}

// HandleGetByID retrieves a single product by its ID.
func (h *ProductHandler) HandleGetByID(c *fiber.Ctx) error {
	product, err := h.service.GetProductByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(product)
}

func (h *ProductHandler) HandleGetBySlug(c *fiber.Ctx) error {
	product, err := h.service.GetProductBySlug(c.UserContext(), c.Params("slug"))
	if err != nil {
		return err
	}
	return c.JSON(product)
}

// HandleCreate creates a new product.
func (h *ProductHandler) HandleCreate(c *fiber.Ctx) error {
	var req ProductRequest
	if err := bind(c, h.validate, &req); err != nil {
		return err
	}
	product, err := h.service.CreateProduct(c.UserContext(), services.ProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       *req.Price,
		Stock:       req.Stock,
		CategoryID:  req.CategoryID,
		ImageURLs:   req.ImageURLs,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(product)
}

func (h *ProductHandler) HandleUpdate(c *fiber.Ctx) error {
	var req UpdateProductRequest
	if err := bind(c, h.validate, &req); err != nil {
		return err
	}
	product, err := h.service.UpdateProduct(c.UserContext(), c.Params("id"), services.ProductUpdate{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		CategoryID:  req.CategoryID,
		ImageURLs:   req.ImageURLs,
	})
	if err != nil {
		return err
	}
	return c.JSON(product)
}

func (h *ProductHandler) HandleDelete(c *fiber.Ctx) error {
	if err := h.service.DeleteProduct(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Product deleted successfully"})
}

// HandleUpdateStock applies a signed stock delta.
func (h *ProductHandler) HandleUpdateStock(c *fiber.Ctx) error {
	var req UpdateStockRequest
	if err := bind(c, h.validate, &req); err != nil {
		return err
	}
	product, err := h.service.UpdateStock(c.UserContext(), c.Params("id"), *req.Quantity)
	if err != nil {
		return err
	}
	return c.JSON(product)
}

// HandleUploadImages replaces a product's images with the multipart "images" files.
func (h *ProductHandler) HandleUploadImages(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return apperrors.Wrap(err, apperrors.KindBadRequest, "multipart form expected")
	}
	headers := form.File["images"]
	uploads := make([]storage.Image, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return errors.Wrapf(err, "open upload %s", fh.Filename)
		}
		defer f.Close()
		uploads = append(uploads, storage.Image{Filename: fh.Filename, Body: f})
	}

	product, err := h.service.ReplaceImages(c.UserContext(), c.Params("id"), uploads)
	if err != nil {
		return err
	}
	return c.JSON(product)
}
