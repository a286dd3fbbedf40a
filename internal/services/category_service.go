package services

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"tokostore/internal/apperrors"
	"tokostore/internal/models"
	"tokostore/internal/repositories"
)

// CategoryInput carries the fields of a new category.
type CategoryInput struct {
	Name        string
	Description *string
	Slug        *string
}

// CategoryUpdate carries optional category changes. Nil fields are left alone.
type CategoryUpdate struct {
	Name        *string
	Description *string
	Slug        *string
}

// CategoryService handles business logic related to categories.
type CategoryService struct {
	repo repositories.CategoryRepository
}

// NewCategoryService creates a new CategoryService.
func NewCategoryService(repo repositories.CategoryRepository) *CategoryService {
	return &CategoryService{repo: repo}
}

func (s *CategoryService) List(ctx context.Context) ([]models.Category, error) {
	return s.repo.List(ctx)
}

func (s *CategoryService) Get(ctx context.Context, id string) (*models.Category, error) {
	return s.repo.GetByID(ctx, id)
}

// Create adds a category. Names are unique ignoring case; the slug defaults
// to one derived from the name.
func (s *CategoryService) Create(ctx context.Context, in CategoryInput) (*models.Category, error) {
	name := strings.TrimSpace(in.Name)
	if err := s.ensureNameFree(ctx, name, ""); err != nil {
		return nil, err
	}
	slug, err := s.slugFor(ctx, name, in.Slug, "")
	if err != nil {
		return nil, err
	}

	category := &models.Category{Name: name, Description: in.Description, Slug: &slug}
	if err := s.repo.Create(ctx, category); err != nil {
		return nil, err
	}
	logrus.WithField("category_id", category.ID).Info("category created")
	return category, nil
}

func (s *CategoryService) Update(ctx context.Context, id string, in CategoryUpdate) (*models.Category, error) {
	category, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if !strings.EqualFold(name, category.Name) {
			if err := s.ensureNameFree(ctx, name, id); err != nil {
				return nil, err
			}
		}
		category.Name = name
	}
	if in.Description != nil {
		category.Description = in.Description
	}
	if in.Slug != nil {
		slug, err := s.slugFor(ctx, category.Name, in.Slug, id)
		if err != nil {
			return nil, err
		}
		category.Slug = &slug
	}

	if err := s.repo.Update(ctx, category); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// Delete removes a category that no product references.
func (s *CategoryService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	count, err := s.repo.CountProducts(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return apperrors.BadRequest("cannot delete category with existing products")
	}
	return s.repo.Delete(ctx, id)
}

func (s *CategoryService) ensureNameFree(ctx context.Context, name, excludeID string) error {
	taken, err := s.repo.NameTaken(ctx, name, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return apperrors.Conflict("category with this name already exists")
	}
	return nil
}

// slugFor uses the requested slug as the base when given, otherwise the name.
func (s *CategoryService) slugFor(ctx context.Context, name string, requested *string, excludeID string) (string, error) {
	base := name
	if requested != nil && strings.TrimSpace(*requested) != "" {
		base = *requested
	}
	return uniqueSlug(base, func(candidate string) (bool, error) {
		return s.repo.SlugTaken(ctx, candidate, excludeID)
	})
}
