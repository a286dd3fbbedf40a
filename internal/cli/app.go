package cli

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/afero"
	"gorm.io/gorm"

	"tokostore/internal/config"
	"tokostore/internal/database"
	"tokostore/internal/handlers"
	"tokostore/internal/middleware"
	"tokostore/internal/repositories"
	"tokostore/internal/services"
	"tokostore/internal/storage"
)

// NewApp wires repositories, services and handlers into a Fiber app. A nil
// publisher disables order events.
func NewApp(c *config.Config, db *gorm.DB, images *storage.ImageStore, publisher services.EventPublisher) *fiber.App {
	store := repositories.NewGORMStore(db)
	authService := services.NewAuthService(store.Users(), store.RefreshTokens(), c.Auth)

	app := fiber.New(fiber.Config{
		AppName:      "toko",
		ErrorHandler: handlers.ErrorHandler,
		BodyLimit:    int(c.Storage.MaxBytes) * 4,
	})

	// --- Middleware ---
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:  c.Server.CORSOrigins,
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, " + middleware.HeaderGuestToken,
		ExposeHeaders: middleware.HeaderGuestToken,
	}))

	// Uploaded images are served read-only.
	app.Use("/uploads", filesystem.New(filesystem.Config{
		Root: afero.NewHttpFs(afero.NewReadOnlyFs(images.Fs())),
	}))

	handlers.API{
		Auth:       authService,
		Categories: services.NewCategoryService(store.Categories()),
		Products:   services.NewProductService(store, images),
		Carts:      services.NewCartService(store),
		Orders:     services.NewOrderService(store, publisher),
		Images:     images,
	}.Mount(app.Group("/api"))

	handlers.NewHealthHandler(func() error { return database.Ping(db) }).RegisterRoutes(app)
	return app
}
