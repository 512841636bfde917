package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tienbob/Tubex-sub002/internal/commerce/entity"
	"github.com/tienbob/Tubex-sub002/internal/shared/apperr"
	"gorm.io/gorm"
)

// InventoryRepository 库存仓库
type InventoryRepository struct {
	db *gorm.DB
}

func NewInventoryRepository(db *gorm.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

// InventoryKey identifies the unique stock row (product, warehouse, company).
type InventoryKey struct {
	ProductID   string
	WarehouseID string
	CompanyID   string
}

// FindByID 根据ID查找库存
func (r *InventoryRepository) FindByID(ctx context.Context, id string, lock LockMode) (*entity.Inventory, error) {
	var inv entity.Inventory
	err := withLock(r.db.WithContext(ctx), lock).Where("id = ?", id).First(&inv).Error
	if err != nil {
		return nil, translate(err, "inventory")
	}
	return &inv, nil
}

// FindByIDAndCompany 按租户查找库存，其他租户的行视为不存在
func (r *InventoryRepository) FindByIDAndCompany(ctx context.Context, id, companyID string, lock LockMode) (*entity.Inventory, error) {
	var inv entity.Inventory
	err := withLock(r.db.WithContext(ctx), lock).
		Where("id = ? AND company_id = ?", id, companyID).
		First(&inv).Error
	if err != nil {
		return nil, translate(err, "inventory")
	}
	return &inv, nil
}

// FindByKey 获取指定产品在指定仓库的库存
func (r *InventoryRepository) FindByKey(ctx context.Context, key InventoryKey, lock LockMode) (*entity.Inventory, error) {
	var inv entity.Inventory
	err := withLock(r.db.WithContext(ctx), lock).
		Where("product_id = ? AND warehouse_id = ? AND company_id = ?", key.ProductID, key.WarehouseID, key.CompanyID).
		First(&inv).Error
	if err != nil {
		return nil, translate(err, "inventory")
	}
	return &inv, nil
}

// Create 创建库存记录。并发创建同一行时返回可重试的冲突
func (r *InventoryRepository) Create(ctx context.Context, inv *entity.Inventory) error {
	err := r.db.WithContext(ctx).Create(inv).Error
	if apperr.IsUniqueViolation(err) {
		return fmt.Errorf("%w: inventory row for product %s in warehouse %s was created concurrently",
			apperr.ErrTransactionConflict, inv.ProductID, inv.WarehouseID)
	}
	return translate(err, "inventory")
}

// UpdateQuantity 写入新数量
func (r *InventoryRepository) UpdateQuantity(ctx context.Context, id string, quantity decimal.Decimal) error {
	err := r.db.WithContext(ctx).Model(&entity.Inventory{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"quantity":   quantity,
			"updated_at": time.Now(),
		}).Error
	return translate(err, "inventory")
}

// StampReorder 记录触发补货的时间
func (r *InventoryRepository) StampReorder(ctx context.Context, id string, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&entity.Inventory{}).
		Where("id = ?", id).
		Update("last_reorder_date", at).Error
	return translate(err, "inventory")
}

// CreateTransaction 写入库存流水
func (r *InventoryRepository) CreateTransaction(ctx context.Context, tx *entity.InventoryTransaction) error {
	return translate(r.db.WithContext(ctx).Create(tx).Error, "inventory transaction")
}

// ListTransactions 查询某库存行的流水
func (r *InventoryRepository) ListTransactions(ctx context.Context, inventoryID string, page, size int) ([]entity.InventoryTransaction, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.InventoryTransaction{}).Where("inventory_id = ?", inventoryID)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translate(err, "inventory transaction")
	}
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	var txs []entity.InventoryTransaction
	err := query.Order("created_at DESC").Offset((page - 1) * size).Limit(size).Find(&txs).Error
	return txs, total, translate(err, "inventory transaction")
}

// FindWarehouseMismatches 库存行声明的公司与其仓库所属公司不一致（跨租户泄漏）
func (r *InventoryRepository) FindWarehouseMismatches(ctx context.Context, companyID string) ([]entity.Inventory, error) {
	query := r.db.WithContext(ctx).Model(&entity.Inventory{}).
		Select("inventory.*").
		Joins("JOIN warehouses ON warehouses.id = inventory.warehouse_id").
		Where("warehouses.company_id <> inventory.company_id")
	if companyID != "" {
		query = query.Where("inventory.company_id = ? OR warehouses.company_id = ?", companyID, companyID)
	}
	var items []entity.Inventory
	err := query.Order("inventory.id").Find(&items).Error
	return items, translate(err, "inventory")
}
