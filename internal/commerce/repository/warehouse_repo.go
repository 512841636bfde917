package repository

import (
	"context"

	"github.com/tienbob/Tubex-sub002/internal/commerce/entity"
	"gorm.io/gorm"
)

// WarehouseRepository 仓库仓储
type WarehouseRepository struct {
	db *gorm.DB
}

func NewWarehouseRepository(db *gorm.DB) *WarehouseRepository {
	return &WarehouseRepository{db: db}
}

// FindByID 根据ID查找仓库
func (r *WarehouseRepository) FindByID(ctx context.Context, id string) (*entity.Warehouse, error) {
	var w entity.Warehouse
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&w).Error; err != nil {
		return nil, translate(err, "warehouse")
	}
	return &w, nil
}

// Update 更新仓库。company_id 永远不写
func (r *WarehouseRepository) Update(ctx context.Context, w *entity.Warehouse) error {
	err := r.db.WithContext(ctx).Model(w).
		Select("name", "address", "capacity", "type", "status", "updated_at").
		Updates(w).Error
	return translate(err, "warehouse")
}
