package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tokostore/internal/models"
)

// GORMCartRepository is a GORM implementation of CartRepository.
type GORMCartRepository struct {
	db *gorm.DB
}

func NewGORMCartRepository(db *gorm.DB) *GORMCartRepository {
	return &GORMCartRepository{db: db}
}

func (r *GORMCartRepository) withLines(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("cart_items.created_at ASC") }).
		Preload("Items.Product").
		Preload("Items.Product.Category")
}

func (r *GORMCartRepository) Create(ctx context.Context, cart *models.Cart) error {
	if cart.ID == "" {
		cart.ID = uuid.New().String()
	}
	return translate(r.db.WithContext(ctx).Omit("Items").Create(cart).Error, "cart")
}

func (r *GORMCartRepository) GetByID(ctx context.Context, id string) (*models.Cart, error) {
	var cart models.Cart
	if err := r.withLines(ctx).First(&cart, "id = ?", id).Error; err != nil {
		return nil, translate(err, "cart")
	}
	return &cart, nil
}

func ownedBy(q *gorm.DB, owner models.CartOwner) (*gorm.DB, bool) {
	if id, ok := owner.UserID(); ok {
		return q.Where("user_id = ?", id), true
	}
	if token, ok := owner.GuestToken(); ok {
		return q.Where("guest_token = ? AND user_id IS NULL", token), true
	}
	return q, false
}

func (r *GORMCartRepository) FindByOwner(ctx context.Context, owner models.CartOwner) (*models.Cart, error) {
	q, ok := ownedBy(r.withLines(ctx), owner)
	if !ok {
		return nil, translate(gorm.ErrRecordNotFound, "cart")
	}

	var cart models.Cart
	if err := q.First(&cart).Error; err != nil {
		return nil, translate(err, "cart")
	}
	return &cart, nil
}

// FindByOwnerForUpdate locks the bare cart row first, then reads the lines, so
// a second caller blocks until the first transaction has committed. SQLite has
// no row locks; its single writer serialises the transactions instead.
func (r *GORMCartRepository) FindByOwnerForUpdate(ctx context.Context, owner models.CartOwner) (*models.Cart, error) {
	q, ok := ownedBy(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), owner)
	if !ok {
		return nil, translate(gorm.ErrRecordNotFound, "cart")
	}
	var locked models.Cart
	if err := q.Select("id").First(&locked).Error; err != nil {
		return nil, translate(err, "cart")
	}
	return r.GetByID(ctx, locked.ID)
}

func (r *GORMCartRepository) SetOwner(ctx context.Context, cartID string, owner models.CartOwner) error {
	var cart models.Cart
	cart.SetOwner(owner)
	res := r.db.WithContext(ctx).Model(&models.Cart{}).Where("id = ?", cartID).Updates(map[string]interface{}{
		"user_id":     cart.UserID,
		"guest_token": cart.GuestToken,
	})
	if res.Error != nil {
		return translate(res.Error, "cart")
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "cart")
	}
	return nil
}

func (r *GORMCartRepository) Delete(ctx context.Context, id string) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("cart_id = ?", id).Delete(&models.CartItem{}).Error; err != nil {
		return translate(err, "cart item")
	}
	res := db.Delete(&models.Cart{}, "id = ?", id)
	if res.Error != nil {
		return translate(res.Error, "cart")
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "cart")
	}
	return nil
}

func (r *GORMCartRepository) GetItem(ctx context.Context, itemID string) (*models.CartItem, error) {
	var item models.CartItem
	if err := r.db.WithContext(ctx).Preload("Product").First(&item, "id = ?", itemID).Error; err != nil {
		return nil, translate(err, "cart item")
	}
	return &item, nil
}

func (r *GORMCartRepository) AddItemQuantity(ctx context.Context, cartID, productID string, quantity int) error {
	now := time.Now()
	item := models.CartItem{
		ID:        uuid.New().String(),
		CartID:    cartID,
		ProductID: productID,
		Quantity:  quantity,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "cart_id"}, {Name: "product_id"}},
		DoUpdates: clause.Set{
			{Column: clause.Column{Name: "quantity"}, Value: gorm.Expr("cart_items.quantity + excluded.quantity")},
			{Column: clause.Column{Name: "updated_at"}, Value: gorm.Expr("excluded.updated_at")},
		},
	}).Omit("Product").Create(&item).Error
	return translate(err, "cart item")
}

func (r *GORMCartRepository) UpdateItemQuantity(ctx context.Context, itemID string, quantity int) error {
	res := r.db.WithContext(ctx).Model(&models.CartItem{}).Where("id = ?", itemID).Update("quantity", quantity)
	if res.Error != nil {
		return translate(res.Error, "cart item")
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "cart item")
	}
	return nil
}

func (r *GORMCartRepository) DeleteItem(ctx context.Context, itemID string) error {
	res := r.db.WithContext(ctx).Delete(&models.CartItem{}, "id = ?", itemID)
	if res.Error != nil {
		return translate(res.Error, "cart item")
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "cart item")
	}
	return nil
}

func (r *GORMCartRepository) ClearItems(ctx context.Context, cartID string) error {
	return translate(r.db.WithContext(ctx).Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error, "cart item")
}

func (r *GORMCartRepository) DeleteLines(ctx context.Context, items []models.CartItem) error {
	db := r.db.WithContext(ctx)
	for _, item := range items {
		res := db.Where("id = ? AND quantity = ?", item.ID, item.Quantity).Delete(&models.CartItem{})
		if res.Error != nil {
			return translate(res.Error, "cart item")
		}
		if res.RowsAffected == 0 {
			return ErrCartChanged
		}
	}
	return nil
}
