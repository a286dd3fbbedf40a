package services

import (
	"context"
	"fmt"
	"math"

	"github.com/gosimple/slug"

	"tokostore/internal/models"
	"tokostore/internal/storage"
)

// Caller is the authenticated identity invoking an operation. The zero value
// is an anonymous caller.
type Caller struct {
	UserID string
	Role   models.Role
}

func (c Caller) IsAdmin() bool {
	return c.Role == models.RoleAdmin
}

func (c Caller) Authenticated() bool {
	return c.UserID != ""
}

// PageMeta describes one page of a listing.
type PageMeta struct {
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	Total       int64 `json:"total"`
	TotalPages  int   `json:"totalPages"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}

func newPageMeta(page, limit int, total int64) PageMeta {
	totalPages := int(math.Ceil(float64(total) / float64(limit)))
	return PageMeta{
		Page:        page,
		Limit:       limit,
		Total:       total,
		TotalPages:  totalPages,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1,
	}
}

// EventPublisher delivers order events to a message broker.
type EventPublisher interface {
	Publish(eventType string, payload interface{}) error
}

// ImageStore keeps product images and hands out their public URLs.
type ImageStore interface {
	Upload(ctx context.Context, prefix string, image storage.Image) (string, error)
	Delete(ctx context.Context, url string) error
}

// uniqueSlug slugifies base and appends -1, -2, ... until taken reports the
// candidate free.
func uniqueSlug(base string, taken func(candidate string) (bool, error)) (string, error) {
	root := slug.Make(base)
	if root == "" {
		root = "item"
	}
	candidate := root
	for counter := 1; ; counter++ {
		used, err := taken(candidate)
		if err != nil {
			return "", err
		}
		if !used {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", root, counter)
	}
}
