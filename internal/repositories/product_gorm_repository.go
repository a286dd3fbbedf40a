package repositories

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"tokostore/internal/models"
)

// GORMProductRepository is a GORM implementation of ProductRepository.
type GORMProductRepository struct {
	db *gorm.DB
}

// NewGORMProductRepository creates a new instance of GORMProductRepository.
func NewGORMProductRepository(db *gorm.DB) *GORMProductRepository {
	return &GORMProductRepository{
		db: db,
	}
}

var productSortColumns = map[string]string{
	"name":      "name",
	"price":     "price",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

// List retrieves one page of products matching filter, plus the total match count.
func (r *GORMProductRepository) List(ctx context.Context, filter ProductFilter) ([]models.Product, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Product{})
	if filter.Query != "" {
		like := "%" + strings.ToLower(filter.Query) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(COALESCE(description, '')) LIKE ?", like, like)
	}
	if filter.CategoryID != "" {
		q = q.Where("category_id = ?", filter.CategoryID)
	}
	if filter.MinPrice != nil {
		q = q.Where("price >= ?", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		q = q.Where("price <= ?", *filter.MaxPrice)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate(err, "product")
	}

	column, ok := productSortColumns[filter.SortBy]
	if !ok {
		column = "created_at"
	}
	order := "DESC"
	if strings.EqualFold(filter.SortOrder, "asc") {
		order = "ASC"
	}

	var products []models.Product
	err := q.Preload("Category").
		Order(column + " " + order).
		Scopes(paginate(filter.Page, filter.Limit)).
		Find(&products).Error
	if err != nil {
		return nil, 0, translate(err, "product")
	}
	return products, total, nil
}

// GetByID retrieves a single product by its ID from the database.
func (r *GORMProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Preload("Category").First(&product, "id = ?", id).Error; err != nil {
		return nil, translate(err, "product")
	}
	return &product, nil
}

func (r *GORMProductRepository) GetBySlug(ctx context.Context, slug string) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Preload("Category").First(&product, "slug = ?", slug).Error; err != nil {
		return nil, translate(err, "product")
	}
	return &product, nil
}

// Create creates a new product in the database.
func (r *GORMProductRepository) Create(ctx context.Context, product *models.Product) error {
	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	if product.ImageURLs == nil {
		product.ImageURLs = []string{}
	}
	return translate(r.db.WithContext(ctx).Omit("Category").Create(product).Error, "product")
}

// Update saves the editable catalog fields of product. Stock is only changed
// through SetStock and AdjustStock.
func (r *GORMProductRepository) Update(ctx context.Context, product *models.Product) error {
	res := r.db.WithContext(ctx).Model(product).
		Select("Name", "Description", "Slug", "Price", "CategoryID", "ImageURLs").
		Updates(product)
	if res.Error != nil {
		return translate(res.Error, "product")
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "product")
	}
	return nil
}

// Delete deletes a product by its ID from the database.
func (r *GORMProductRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.Product{}, "id = ?", id)
		if res.Error != nil {
			return translate(res.Error, "product")
		}
		if res.RowsAffected == 0 {
			return translate(gorm.ErrRecordNotFound, "product")
		}
		return translate(tx.Where("product_id = ?", id).Delete(&models.CartItem{}).Error, "cart item")
	})
}

func (r *GORMProductRepository) SlugTaken(ctx context.Context, slug, excludeID string) (bool, error) {
	q := r.db.WithContext(ctx).Unscoped().Model(&models.Product{}).Where("slug = ?", slug)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, translate(err, "product")
	}
	return count > 0, nil
}

func (r *GORMProductRepository) SetStock(ctx context.Context, id string, stock int) error {
	res := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Update("stock", stock)
	if res.Error != nil {
		return translate(res.Error, "product")
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "product")
	}
	return nil
}

func (r *GORMProductRepository) AdjustStock(ctx context.Context, id string, delta int) error {
	res := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ? AND stock + ? >= 0", id, delta).
		Update("stock", gorm.Expr("stock + ?", delta))
	if res.Error != nil {
		return translate(res.Error, "product")
	}
	if res.RowsAffected == 1 {
		return nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrInsufficientStock
}

func (r *GORMProductRepository) RestoreStock(ctx context.Context, id string, quantity int) error {
	res := r.db.WithContext(ctx).Unscoped().Model(&models.Product{}).
		Where("id = ?", id).
		Update("stock", gorm.Expr("stock + ?", quantity))
	if res.Error != nil {
		return translate(res.Error, "product")
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "product")
	}
	return nil
}
