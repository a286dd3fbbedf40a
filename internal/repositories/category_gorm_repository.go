package repositories

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"tokostore/internal/models"
)

// GORMCategoryRepository is a GORM implementation of CategoryRepository.
type GORMCategoryRepository struct {
	db *gorm.DB
}

func NewGORMCategoryRepository(db *gorm.DB) *GORMCategoryRepository {
	return &GORMCategoryRepository{db: db}
}

const categoryProductCount = "(SELECT COUNT(*) FROM products WHERE products.category_id = categories.id AND products.deleted_at IS NULL) AS product_count"

func (r *GORMCategoryRepository) List(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	err := r.db.WithContext(ctx).Model(&models.Category{}).
		Select("categories.*, " + categoryProductCount).
		Order("name ASC").
		Find(&categories).Error
	if err != nil {
		return nil, translate(err, "category")
	}
	return categories, nil
}

func (r *GORMCategoryRepository) GetByID(ctx context.Context, id string) (*models.Category, error) {
	var category models.Category
	err := r.db.WithContext(ctx).Model(&models.Category{}).
		Select("categories.*, "+categoryProductCount).
		Where("categories.id = ?", id).
		Take(&category).Error
	if err != nil {
		return nil, translate(err, "category")
	}
	return &category, nil
}

func (r *GORMCategoryRepository) Create(ctx context.Context, category *models.Category) error {
	if category.ID == "" {
		category.ID = uuid.New().String()
	}
	return translate(r.db.WithContext(ctx).Create(category).Error, "category")
}

func (r *GORMCategoryRepository) Update(ctx context.Context, category *models.Category) error {
	res := r.db.WithContext(ctx).Model(category).Select("Name", "Description", "Slug").Updates(category)
	if res.Error != nil {
		return translate(res.Error, "category")
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "category")
	}
	return nil
}

func (r *GORMCategoryRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.Category{}, "id = ?", id)
	if res.Error != nil {
		return translate(res.Error, "category")
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "category")
	}
	return nil
}

func (r *GORMCategoryRepository) NameTaken(ctx context.Context, name, excludeID string) (bool, error) {
	q := r.db.WithContext(ctx).Model(&models.Category{}).Where("LOWER(name) = ?", strings.ToLower(name))
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, translate(err, "category")
	}
	return count > 0, nil
}

func (r *GORMCategoryRepository) SlugTaken(ctx context.Context, slug, excludeID string) (bool, error) {
	q := r.db.WithContext(ctx).Model(&models.Category{}).Where("slug = ?", slug)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, translate(err, "category")
	}
	return count > 0, nil
}

func (r *GORMCategoryRepository) CountProducts(ctx context.Context, id string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Unscoped().Model(&models.Product{}).Where("category_id = ?", id).Count(&count).Error
	if err != nil {
		return 0, translate(err, "product")
	}
	return count, nil
}
