package handlers

import (
	"github.com/gofiber/fiber/v2"

	"tokostore/internal/middleware"
	"tokostore/internal/services"
)

// API bundles the services behind the /api routes.
type API struct {
	Auth       *services.AuthService
	Categories *services.CategoryService
	Products   *services.ProductService
	Carts      *services.CartService
	Orders     *services.OrderService
	Images     services.ImageStore
}

// Mount registers every API route on router.
func (a API) Mount(router fiber.Router) {
	auth := middleware.AuthRequired(a.Auth)
	admin := middleware.AdminOnly()

	NewAuthHandler(a.Auth).RegisterRoutes(router)
	NewCategoryHandler(a.Categories).RegisterRoutes(router, auth, admin)
	NewProductHandler(a.Products).RegisterRoutes(router, auth, admin)
	NewCartHandler(a.Carts, a.Auth).RegisterRoutes(router)
	NewOrderHandler(a.Orders).RegisterRoutes(router, auth, admin)
	NewUploadHandler(a.Images).RegisterRoutes(router, auth, admin)
}
