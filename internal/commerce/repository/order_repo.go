package repository

import (
	"context"
	"time"

	"github.com/tienbob/Tubex-sub002/internal/commerce/entity"
	"gorm.io/gorm"
)

// OrderRepository 订单仓库
type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// FindByID 查找订单及订单行
func (r *OrderRepository) FindByID(ctx context.Context, id string, lock LockMode) (*entity.Order, error) {
	var order entity.Order
	err := withLock(r.db.WithContext(ctx), lock).
		Preload("Items").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, translate(err, "order")
	}
	return &order, nil
}

// Create 创建订单（含订单行）
func (r *OrderRepository) Create(ctx context.Context, order *entity.Order) error {
	return translate(r.db.WithContext(ctx).Create(order).Error, "order")
}

// MarkCancelled 取消订单
func (r *OrderRepository) MarkCancelled(ctx context.Context, id string, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&entity.Order{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       entity.OrderStatusCancelled,
			"cancelled_at": at,
			"updated_at":   at,
		}).Error
	return translate(err, "order")
}
