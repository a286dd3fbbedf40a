package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"tokostore/internal/models"
)

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db *gorm.DB
}

func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{db: db}
}

func (r *GORMOrderRepository) withDetails(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("User").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("order_items.created_at ASC") }).
		Preload("Items.Product", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Preload("Items.Product.Category")
}

func (r *GORMOrderRepository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	for i := range order.Items {
		if order.Items[i].ID == "" {
			order.Items[i].ID = uuid.New().String()
		}
		order.Items[i].OrderID = order.ID
	}
	err := r.db.WithContext(ctx).Omit("User").Create(order).Error
	return translate(err, "order")
}

func (r *GORMOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := r.withDetails(ctx).First(&order, "id = ?", id).Error; err != nil {
		return nil, translate(err, "order")
	}
	return &order, nil
}

func (r *GORMOrderRepository) List(ctx context.Context, filter OrderFilter) ([]models.Order, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Order{})
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.FromDate != nil {
		q = q.Where("created_at >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		q = q.Where("created_at <= ?", *filter.ToDate)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate(err, "order")
	}

	var ids []string
	err := q.Order("created_at DESC").Scopes(paginate(filter.Page, filter.Limit)).Pluck("id", &ids).Error
	if err != nil {
		return nil, 0, translate(err, "order")
	}
	if len(ids) == 0 {
		return []models.Order{}, total, nil
	}

	var orders []models.Order
	if err := r.withDetails(ctx).Where("id IN ?", ids).Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, 0, translate(err, "order")
	}
	return orders, total, nil
}

func (r *GORMOrderRepository) UpdateStatus(ctx context.Context, id string, from, to models.OrderStatus, notes *string) error {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{"status": to, "notes": notes})
	if res.Error != nil {
		return translate(res.Error, "order")
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "order")
	}
	return nil
}

func (r *GORMOrderRepository) CountByStatus(ctx context.Context, userID string) (map[models.OrderStatus]int64, error) {
	var rows []struct {
		Status models.OrderStatus
		Count  int64
	}
	q := r.db.WithContext(ctx).Model(&models.Order{})
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	if err := q.Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		return nil, translate(err, "order")
	}

	counts := make(map[models.OrderStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (r *GORMOrderRepository) SumTotal(ctx context.Context, userID string) (decimal.Decimal, error) {
	q := r.db.WithContext(ctx).Model(&models.Order{}).Where("status <> ?", models.OrderStatusCancelled)
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	var total decimal.NullDecimal
	if err := q.Select("SUM(total_amount)").Row().Scan(&total); err != nil {
		return decimal.Zero, translate(err, "order")
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}
