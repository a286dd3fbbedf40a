package cli

import (
	"context"
	"strings"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"tokostore/internal/apperrors"
	"tokostore/internal/config"
	"tokostore/internal/database"
	"tokostore/internal/models"
	"tokostore/internal/repositories"
	"tokostore/internal/services"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert an admin, sample users and a starter catalog",
	Long: `Seed inserts the default admin, a few sample users, categories and
products. Rows that already exist are left untouched, so running it twice is
harmless.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.Open(cfg.Database)
		if err != nil {
			return err
		}
		defer database.Close(db)

		report, err := seed(cmd.Context(), db, cfg.Auth)
		if err != nil {
			return err
		}
		logrus.WithFields(logrus.Fields{
			"users":      report.Users,
			"categories": report.Categories,
			"products":   report.Products,
		}).Info("seeding completed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

type seedReport struct {
	Users      int
	Categories int
	Products   int
}

type seedProduct struct {
	name        string
	description string
	price       string
	stock       int
}

var seedCatalog = []struct {
	name        string
	description string
	products    []seedProduct
}{
	{"Electronics", "Latest electronic devices and gadgets", []seedProduct{
		{"Wireless Noise-Cancelling Headphones", "Over-ear headphones with 30 hour battery life", "249.99", 40},
		{"Mechanical Keyboard", "Hot-swappable switches and RGB backlight", "89.00", 75},
		{"4K Monitor 27 inch", "IPS panel with USB-C power delivery", "379.50", 20},
	}},
	{"Clothing", "Fashion and apparel for all ages", []seedProduct{
		{"Classic Denim Jacket", "Medium wash denim with a relaxed fit", "59.90", 60},
		{"Merino Wool Sweater", "Lightweight crew neck sweater", "74.00", 35},
	}},
	{"Home & Garden", "Home improvement and garden supplies", []seedProduct{
		{"Ceramic Plant Pot Set", "Three glazed pots with drainage trays", "32.50", 80},
	}},
	{"Books", "Books, magazines, and educational materials", []seedProduct{
		{"The Go Programming Language", "A thorough introduction to Go", "39.99", 100},
		{"Designing Data-Intensive Applications", "Reliable, scalable and maintainable systems", "45.00", 50},
	}},
	{"Sports & Outdoors", "Sports equipment and outdoor gear", []seedProduct{
		{"Trail Running Shoes", "Grippy outsole and breathable mesh upper", "119.00", 45},
	}},
}

var seedUsers = []services.RegisterInput{
	{Email: "john.doe@example.com", Username: "johndoe", Password: "password123", Name: strPtr("John Doe")},
	{Email: "jane.smith@example.com", Username: "janesmith", Password: "password123", Name: strPtr("Jane Smith")},
	{Email: "bob.wilson@example.com", Username: "bobwilson", Password: "password123", Name: strPtr("Bob Wilson")},
}

func strPtr(s string) *string { return &s }

// seed inserts the starter data, skipping rows whose unique keys already exist.
func seed(ctx context.Context, db *gorm.DB, auth config.AuthConfig) (*seedReport, error) {
	store := repositories.NewGORMStore(db)
	authService := services.NewAuthService(store.Users(), store.RefreshTokens(), auth)
	categoryService := services.NewCategoryService(store.Categories())
	productService := services.NewProductService(store, nil)
	report := &seedReport{}

	_, err := authService.CreateAdmin(ctx, services.RegisterInput{
		Email:    "admin@toko.local",
		Username: "admin",
		Password: "admin123",
		Name:     strPtr("System Administrator"),
	})
	switch {
	case err == nil:
		report.Users++
	case apperrors.KindOf(err) != apperrors.KindConflict:
		return nil, err
	}

	for _, in := range seedUsers {
		_, err := authService.RegisterUser(ctx, in)
		switch {
		case err == nil:
			report.Users++
		case apperrors.KindOf(err) != apperrors.KindConflict:
			return nil, err
		}
	}

	existing, err := categoryService.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, entry := range seedCatalog {
		category := findCategory(existing, entry.name)
		if category == nil {
			description := entry.description
			category, err = categoryService.Create(ctx, services.CategoryInput{Name: entry.name, Description: &description})
			if err != nil {
				return nil, err
			}
			report.Categories++
		}

		for _, p := range entry.products {
			_, err := productService.GetProductBySlug(ctx, slug.Make(p.name))
			if err == nil {
				continue
			}
			if apperrors.KindOf(err) != apperrors.KindNotFound {
				return nil, err
			}
			description := p.description
			_, err = productService.CreateProduct(ctx, services.ProductInput{
				Name:        p.name,
				Description: &description,
				Price:       decimal.RequireFromString(p.price),
				Stock:       p.stock,
				CategoryID:  category.ID,
			})
			if err != nil {
				return nil, err
			}
			report.Products++
		}
	}
	return report, nil
}

func findCategory(categories []models.Category, name string) *models.Category {
	for i := range categories {
		if strings.EqualFold(categories[i].Name, name) {
			return &categories[i]
		}
	}
	return nil
}
