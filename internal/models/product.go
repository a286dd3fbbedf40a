package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Category groups products.
type Category struct {
	ID           string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name         string    `json:"name" gorm:"uniqueIndex;type:varchar(100);not null"`
	Description  *string   `json:"description,omitempty" gorm:"type:text"`
	Slug         *string   `json:"slug,omitempty" gorm:"uniqueIndex;type:varchar(120)"`
	ProductCount int64     `json:"productCount" gorm:"->;-:migration"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Product represents a product in the store. Stock never goes below zero; the
// check constraint backs the conditional decrement used at checkout.
type Product struct {
	ID          string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name        string          `json:"name" gorm:"type:varchar(200);not null"`
	Description *string         `json:"description,omitempty" gorm:"type:text"`
	Slug        *string         `json:"slug,omitempty" gorm:"uniqueIndex;type:varchar(220)"`
	Price       decimal.Decimal `json:"price" gorm:"type:decimal(12,2);not null"`
	Stock       int             `json:"stock" gorm:"not null;default:0;check:chk_products_stock,stock >= 0"`
	CategoryID  string          `json:"categoryId" gorm:"type:varchar(36);index;not null"`
	Category    *Category       `json:"category,omitempty" gorm:"constraint:OnDelete:RESTRICT"`
	ImageURLs   []string        `json:"imageUrls" gorm:"serializer:json;type:text"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	DeletedAt   gorm.DeletedAt  `json:"-" gorm:"index"`
}
