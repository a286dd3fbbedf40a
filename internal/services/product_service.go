package services

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"tokostore/internal/apperrors"
	"tokostore/internal/models"
	"tokostore/internal/repositories"
	"tokostore/internal/storage"
)

// ProductInput carries the fields of a new product.
type ProductInput struct {
	Name        string
	Description *string
	Price       decimal.Decimal
	Stock       int
	CategoryID  string
	ImageURLs   []string
}

// ProductUpdate carries optional product changes. Nil fields are left alone;
// Stock replaces the stock level outright.
type ProductUpdate struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Stock       *int
	CategoryID  *string
	ImageURLs   []string
}

// ProductPage is one page of a product listing.
type ProductPage struct {
	Data []models.Product `json:"data"`
	Meta PageMeta         `json:"meta"`
}

// ProductService handles business logic related to products.
type ProductService struct {
	store  repositories.Store
	images ImageStore
}

// NewProductService creates a new ProductService. images may be nil when
// image uploads are not served.
func NewProductService(store repositories.Store, images ImageStore) *ProductService {
	return &ProductService{
		store:  store,
		images: images,
	}
}

// List returns one page of products matching filter.
func (s *ProductService) List(ctx context.Context, filter repositories.ProductFilter) (*ProductPage, error) {
	filter.Page, filter.Limit = normalizePage(filter.Page, filter.Limit)
	if filter.MinPrice != nil && filter.MaxPrice != nil && filter.MinPrice.GreaterThan(*filter.MaxPrice) {
		return nil, apperrors.BadRequest("minPrice cannot be greater than maxPrice")
	}
	products, total, err := s.store.Products().List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []models.Product{}
	}
	return &ProductPage{Data: products, Meta: newPageMeta(filter.Page, filter.Limit, total)}, nil
}

// Search matches query against product names and descriptions.
func (s *ProductService) Search(ctx context.Context, query string, page, limit int) (*ProductPage, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperrors.BadRequest("search query is required")
	}
	return s.List(ctx, repositories.ProductFilter{Query: strings.TrimSpace(query), Page: page, Limit: limit})
}

// GetProductByID retrieves a single product by its ID.
func (s *ProductService) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	return s.store.Products().GetByID(ctx, id)
}

func (s *ProductService) GetProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	return s.store.Products().GetBySlug(ctx, slug)
}

// CreateProduct creates a new product in an existing category.
func (s *ProductService) CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	if in.Price.IsNegative() {
		return nil, apperrors.BadRequest("price cannot be negative")
	}
	if in.Stock < 0 {
		return nil, apperrors.BadRequest("stock cannot be negative")
	}
	if err := ensureCategory(ctx, s.store, in.CategoryID); err != nil {
		return nil, err
	}
	slug, err := productSlug(ctx, s.store, in.Name, "")
	if err != nil {
		return nil, err
	}

	product := &models.Product{
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Slug:        &slug,
		Price:       in.Price,
		Stock:       in.Stock,
		CategoryID:  in.CategoryID,
		ImageURLs:   in.ImageURLs,
	}
	if err := s.store.Products().Create(ctx, product); err != nil {
		return nil, err
	}
	logrus.WithField("product_id", product.ID).Info("product created")
	return s.store.Products().GetByID(ctx, product.ID)
}

// UpdateProduct updates an existing product.
func (s *ProductService) UpdateProduct(ctx context.Context, id string, in ProductUpdate) (*models.Product, error) {
	err := s.store.Transaction(ctx, func(tx repositories.Store) error {
		product, err := tx.Products().GetByID(ctx, id)
		if err != nil {
			return err
		}

		if in.Name != nil && strings.TrimSpace(*in.Name) != product.Name {
			product.Name = strings.TrimSpace(*in.Name)
			slug, err := productSlug(ctx, tx, product.Name, id)
			if err != nil {
				return err
			}
			product.Slug = &slug
		}
		if in.Description != nil {
			product.Description = in.Description
		}
		if in.Price != nil {
			if in.Price.IsNegative() {
				return apperrors.BadRequest("price cannot be negative")
			}
			product.Price = *in.Price
		}
		if in.CategoryID != nil && *in.CategoryID != product.CategoryID {
			if err := ensureCategory(ctx, tx, *in.CategoryID); err != nil {
				return err
			}
			product.CategoryID = *in.CategoryID
			product.Category = nil
		}
		if in.ImageURLs != nil {
			product.ImageURLs = in.ImageURLs
		}
		if err := tx.Products().Update(ctx, product); err != nil {
			return err
		}

		if in.Stock != nil {
			if *in.Stock < 0 {
				return apperrors.BadRequest("stock cannot be negative")
			}
			return tx.Products().SetStock(ctx, id, *in.Stock)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.store.Products().GetByID(ctx, id)
}

// UpdateStock applies a signed delta to a product's stock.
func (s *ProductService) UpdateStock(ctx context.Context, id string, delta int) (*models.Product, error) {
	product, err := s.store.Products().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.Products().AdjustStock(ctx, id, delta); err != nil {
		if errors.Is(err, repositories.ErrInsufficientStock) {
			return nil, apperrors.BadRequest("insufficient stock. current stock: %d, requested change: %d", product.Stock, delta)
		}
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"product_id": id, "delta": delta}).Info("stock adjusted")
	return s.store.Products().GetByID(ctx, id)
}

// DeleteProduct removes a product from the catalog and from every cart.
// Order history keeps referring to it.
func (s *ProductService) DeleteProduct(ctx context.Context, id string) error {
	product, err := s.store.Products().GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Products().Delete(ctx, id); err != nil {
		return err
	}
	s.deleteImages(ctx, product.ImageURLs)
	logrus.WithField("product_id", id).Info("product deleted")
	return nil
}

// ReplaceImages stores uploads as the product's images and removes the old ones.
func (s *ProductService) ReplaceImages(ctx context.Context, id string, uploads []storage.Image) (*models.Product, error) {
	if s.images == nil {
		return nil, apperrors.BadRequest("image uploads are not enabled")
	}
	if len(uploads) == 0 {
		return nil, apperrors.BadRequest("no images uploaded")
	}
	product, err := s.store.Products().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	urls := make([]string, 0, len(uploads))
	for _, upload := range uploads {
		url, err := s.images.Upload(ctx, id, upload)
		if err != nil {
			s.deleteImages(ctx, urls)
			return nil, err
		}
		urls = append(urls, url)
	}

	old := product.ImageURLs
	product.ImageURLs = urls
	if err := s.store.Products().Update(ctx, product); err != nil {
		s.deleteImages(ctx, urls)
		return nil, err
	}
	s.deleteImages(ctx, old)
	return s.store.Products().GetByID(ctx, id)
}

// deleteImages removes images we own, logging failures.
func (s *ProductService) deleteImages(ctx context.Context, urls []string) {
	if s.images == nil {
		return
	}
	for _, url := range urls {
		if err := s.images.Delete(ctx, url); err != nil {
			logrus.WithError(err).WithField("url", url).Warn("failed to delete product image")
		}
	}
}

func ensureCategory(ctx context.Context, store repositories.Store, categoryID string) error {
	if _, err := store.Categories().GetByID(ctx, categoryID); err != nil {
		if apperrors.KindOf(err) == apperrors.KindNotFound {
			return apperrors.BadRequest("category not found")
		}
		return err
	}
	return nil
}

func productSlug(ctx context.Context, store repositories.Store, name, excludeID string) (string, error) {
	return uniqueSlug(name, func(candidate string) (bool, error) {
		return store.Products().SlugTaken(ctx, candidate, excludeID)
	})
}
